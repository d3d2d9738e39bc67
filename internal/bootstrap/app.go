package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/analyses"
	"sealdeal-backend/internal/analytics"
	"sealdeal-backend/internal/benchmarks"
	"sealdeal-backend/internal/chat"
	"sealdeal-backend/internal/deals"
	"sealdeal-backend/internal/ingest"
	"sealdeal-backend/internal/llm"
	"sealdeal-backend/internal/llm/gemini"
	"sealdeal-backend/internal/llm/vertex"
	"sealdeal-backend/internal/pipeline"
	"sealdeal-backend/internal/queue"
	"sealdeal-backend/internal/shared/auth"
	"sealdeal-backend/internal/shared/config"
	"sealdeal-backend/internal/shared/server"
	"sealdeal-backend/internal/shared/storage/db"
	"sealdeal-backend/internal/shared/storage/object"
	gcsstore "sealdeal-backend/internal/shared/storage/object/gcs"
	localstore "sealdeal-backend/internal/shared/storage/object/local"
	miniostore "sealdeal-backend/internal/shared/storage/object/minio"
	s3store "sealdeal-backend/internal/shared/storage/object/s3"
	"sealdeal-backend/internal/shared/telemetry"
	"sealdeal-backend/internal/uploads"
	"sealdeal-backend/internal/users"
	"sealdeal-backend/internal/workerproc"
)

// App holds every constructed dependency. Binaries pick what they need.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Queue    queue.Client
	BigQuery *bigquery.Client
	Tokens   *auth.Tokens

	Users      *users.Service
	Deals      *deals.Service
	DealsRepo  deals.Repo
	Benchmarks *benchmarks.Service
	Analytics  *analytics.Service
	Analyses   *analyses.Service
	Pipeline   *pipeline.Pipeline
	Uploads    *uploads.Service
	Chat       *chat.Service
	Agent      *chat.Agent
	Processor  *workerproc.Processor
}

type repos struct {
	users      users.Repo
	deals      deals.Repo
	benchmarks benchmarks.Repo
	rows       analytics.Repo
	analyses   analyses.Repo
	chat       chat.Store
}

// Build constructs the application graph and its HTTP router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokens(cfg.Env, cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Tokens: tokens,
	}

	if cfg.SQSQueueURL != "" {
		q, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return nil, err
		}
		app.Queue = q
	}

	if cfg.GCPProject != "" {
		bq, err := bigquery.NewClient(ctx, cfg.GCPProject)
		if err != nil {
			return nil, fmt.Errorf("bigquery client: %w", err)
		}
		app.BigQuery = bq
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	var presign uploads.Presigner
	if cfg.S3Bucket != "" {
		p, err := uploads.NewS3Presigner(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		presign = p
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:     cfg,
		Tokens:     tokens,
		Users:      users.NewHandler(app.Users),
		Deals:      deals.NewHandler(app.Deals),
		Benchmarks: benchmarks.NewHandler(app.Benchmarks),
		Analyses:   analyses.NewHandler(app.Analyses),
		Analytics:  &analytics.Handler{Svc: app.Analytics, Backfill: app.Analyses, Roles: app.Users},
		Pipeline:   pipeline.NewHandler(app.Pipeline, app.Deals),
		Uploads:    uploads.NewHandler(app.Uploads, presign),
		Chat:       chat.NewHandler(app.Chat, app.Agent),
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	case "gcs":
		return gcsstore.New(ctx, cfg.GCSBucket)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRepos(sqlDB *sql.DB) repos {
	if sqlDB != nil {
		return repos{
			users:      &users.PGRepo{DB: sqlDB},
			deals:      &deals.PGRepo{DB: sqlDB},
			benchmarks: &benchmarks.PGRepo{DB: sqlDB},
			rows:       &analytics.PGRepo{DB: sqlDB},
			analyses:   &analyses.PGRepo{DB: sqlDB},
			chat:       &chat.PGStore{DB: sqlDB},
		}
	}
	rows := analytics.NewMemoryRepo()
	return repos{
		users:      users.NewMemoryRepo(),
		deals:      deals.NewMemoryRepo(),
		benchmarks: benchmarks.NewMemoryRepo(),
		rows:       rows,
		analyses:   analyses.NewMemoryRepo(rows),
		chat:       chat.NewMemoryStore(),
	}
}

// buildLLM returns a client for model, or llm.Unconfigured in dev when no GCP
// project is set.
func buildLLM(ctx context.Context, cfg config.Config, model, operation string) (llm.Client, error) {
	if cfg.GCPProject == "" && cfg.IsDevLike() {
		telemetry.Warn("bootstrap.llm_unconfigured", map[string]any{"operation": operation})
		return llm.Unconfigured{}, nil
	}
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLMProvider {
	case "genai":
		client, err = gemini.New(ctx, cfg.GCPProject, cfg.GCPLocation, model)
	default:
		client, err = vertex.New(ctx, cfg.GCPProject, cfg.GCPLocation, model)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func buildServices(ctx context.Context, app *App) error {
	cfg := app.Config
	r := buildRepos(app.DB)

	analysisLLM, err := buildLLM(ctx, cfg, cfg.GeminiModel, "analyze")
	if err != nil {
		return err
	}
	chatModel := cfg.GeminiChatModel
	if chatModel == "" {
		chatModel = cfg.GeminiModel
	}
	chatLLM, err := buildLLM(ctx, cfg, chatModel, "chat")
	if err != nil {
		return err
	}
	agentLLM, err := buildLLM(ctx, cfg, cfg.GeminiAgentModel, "agent")
	if err != nil {
		return err
	}

	var (
		exporter analytics.Exporter = analytics.LogExporter{}
		querier  analytics.Querier
	)
	switch {
	case app.BigQuery != nil:
		exporter = analytics.NewBigQueryExporter(app.BigQuery, cfg.BigQueryDataset, cfg.BigQueryTable)
		querier = analytics.NewBigQueryQuerier(app.BigQuery, cfg.GCPProject, cfg.BigQueryDataset, cfg.BigQueryTable)
	case app.DB != nil:
		querier = &analytics.PGQuerier{
			DB:      app.DB,
			Role:    cfg.AnalyticsReaderRole,
			Timeout: cfg.AnalyticsQueryTimeout,
		}
	}

	app.Users = users.NewService(r.users)
	app.DealsRepo = r.deals
	app.Deals = &deals.Service{Repo: r.deals, Admins: app.Users}
	app.Benchmarks = benchmarks.NewService(r.benchmarks, app.Users)
	app.Analytics = &analytics.Service{Repo: r.rows, Exporter: exporter}
	app.Analyses = &analyses.Service{
		Repo:      r.analyses,
		Rows:      r.rows,
		Analytics: app.Analytics,
		Deals:     r.deals,
		Access:    app.Deals,
	}
	app.Pipeline = &pipeline.Pipeline{
		Deals:      r.deals,
		Ingest:     &ingest.Ingestor{Store: app.Store, MaxInlineBytes: cfg.MaxInlineBytes},
		Benchmarks: app.Benchmarks,
		LLM:        analysisLLM,
		Analyses:   app.Analyses,
		StaleAfter: cfg.AnalysisStaleAfter,
	}

	app.Uploads = &uploads.Service{
		Deals:  app.Deals,
		Store:  app.Store,
		Runner: app.Pipeline,
	}
	if cfg.UploadTrigger == "queue" {
		app.Uploads.Queue = app.Queue
	}

	publicTable := ""
	if querier != nil && querier.Dialect() == analytics.DialectBigQuery {
		publicTable = cfg.BigQueryPublicTable
	}
	sqlRetry := llm.RetryConfig("chat_sql")
	app.Chat = &chat.Service{
		LLM:         chatLLM,
		Querier:     querier,
		Store:       r.chat,
		SQLRetry:    &sqlRetry,
		PublicTable: publicTable,
	}
	app.Agent = &chat.Agent{
		LLM:   agentLLM,
		Data:  app.Chat,
		Rows:  r.rows,
		Store: r.chat,
	}

	app.Processor = &workerproc.Processor{Events: app.Uploads, Prefix: cfg.S3Prefix}
	return nil
}
