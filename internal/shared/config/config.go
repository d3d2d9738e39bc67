package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Env             string   `mapstructure:"env"`
	Port            string   `mapstructure:"port"`
	LogLevel        string   `mapstructure:"log_level"`
	CORSAllowOrigin []string `mapstructure:"-"`
	DatabaseURL     string   `mapstructure:"database_url"`
	JWTSecret       string   `mapstructure:"jwt_secret"`

	ObjectStoreType string `mapstructure:"object_store"`
	LocalStoreDir   string `mapstructure:"local_store_dir"`
	AWSRegion       string `mapstructure:"aws_region"`
	S3Bucket        string `mapstructure:"s3_bucket"`
	S3Prefix        string `mapstructure:"s3_prefix"`
	SSEKMSKeyID     string `mapstructure:"sse_kms_key_id"`
	MinioEndpoint   string `mapstructure:"minio_endpoint"`
	MinioAccessKey  string `mapstructure:"minio_access_key"`
	MinioSecretKey  string `mapstructure:"minio_secret_key"`
	MinioBucket     string `mapstructure:"minio_bucket"`
	MinioUseSSL     bool   `mapstructure:"minio_use_ssl"`
	GCSBucket       string `mapstructure:"gcs_bucket"`

	GCPProject       string `mapstructure:"gcp_project"`
	GCPLocation      string `mapstructure:"gcp_location"`
	LLMProvider      string `mapstructure:"llm_provider"`
	GeminiModel      string `mapstructure:"gemini_model"`
	GeminiChatModel  string `mapstructure:"gemini_chat_model"`
	GeminiAgentModel string `mapstructure:"gemini_agent_model"`

	BigQueryDataset     string `mapstructure:"bigquery_dataset"`
	BigQueryTable       string `mapstructure:"bigquery_table"`
	BigQueryPublicTable string `mapstructure:"bigquery_public_table"`

	AnalyticsReaderRole   string        `mapstructure:"analytics_reader_role"`
	AnalyticsQueryTimeout time.Duration `mapstructure:"analytics_query_timeout"`

	UploadTrigger      string        `mapstructure:"upload_trigger"`
	SQSQueueURL        string        `mapstructure:"sqs_queue_url"`
	WorkerConcurrency  int           `mapstructure:"worker_concurrency"`
	AnalysisStaleAfter time.Duration `mapstructure:"analysis_stale_after"`
	MaxInlineBytes     int64         `mapstructure:"max_inline_bytes"`

	RateLimitRPS       float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
	ChatRateLimitRPS   float64 `mapstructure:"chat_rate_limit_rps"`
	ChatRateLimitBurst int     `mapstructure:"chat_rate_limit_burst"`
}

var defaults = map[string]any{
	"env":                     "dev",
	"port":                    "8080",
	"log_level":               "info",
	"cors_allow_origins":      "http://localhost:5173",
	"database_url":            "",
	"jwt_secret":              "",
	"object_store":            "local",
	"local_store_dir":         "./data",
	"aws_region":              "",
	"s3_bucket":               "",
	"s3_prefix":               "",
	"sse_kms_key_id":          "",
	"minio_endpoint":          "",
	"minio_access_key":        "",
	"minio_secret_key":        "",
	"minio_bucket":            "sealdeal",
	"minio_use_ssl":           false,
	"gcs_bucket":              "",
	"gcp_project":             "",
	"gcp_location":            "asia-south1",
	"llm_provider":            "vertex",
	"gemini_model":            "gemini-1.5-flash-002",
	"gemini_chat_model":       "gemini-1.5-flash-002",
	"gemini_agent_model":      "gemini-1.5-pro",
	"bigquery_dataset":        "deal_analysis",
	"bigquery_table":          "analyses",
	"bigquery_public_table":   "",
	"analytics_reader_role":   "sealdeal_analytics_reader",
	"analytics_query_timeout": "10s",
	"upload_trigger":          "inline",
	"sqs_queue_url":           "",
	"worker_concurrency":      4,
	"analysis_stale_after":    "15m",
	"max_inline_bytes":        20 << 20,
	"rate_limit_rps":          5.0,
	"rate_limit_burst":        20,
	"chat_rate_limit_rps":     1.0,
	"chat_rate_limit_burst":   5,
}

// Load reads configuration from .env files and environment variables with sensible defaults.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience; real env wins.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, eris.Wrap(err, "config: unmarshal")
	}

	cfg.Env = normalizeEnv(cfg.Env)
	cfg.ObjectStoreType = normalizeStoreType(cfg.ObjectStoreType)
	cfg.UploadTrigger = normalizeTrigger(cfg.UploadTrigger)
	cfg.LLMProvider = normalizeProvider(cfg.LLMProvider)
	cfg.CORSAllowOrigin = splitAndTrim(v.GetString("cors_allow_origins"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that must hold before the process starts.
func (c Config) Validate() error {
	var errs []string
	if c.Env == "production" {
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required in production")
		}
		if c.JWTSecret == "" {
			errs = append(errs, "JWT_SECRET is required in production")
		}
	}
	switch c.ObjectStoreType {
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, "S3_BUCKET is required when OBJECT_STORE=s3")
		}
	case "minio":
		if c.MinioEndpoint == "" {
			errs = append(errs, "MINIO_ENDPOINT is required when OBJECT_STORE=minio")
		}
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, "GCS_BUCKET is required when OBJECT_STORE=gcs")
		}
	}
	if c.UploadTrigger == "queue" && c.SQSQueueURL == "" {
		errs = append(errs, "SQS_QUEUE_URL is required when UPLOAD_TRIGGER=queue")
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, "WORKER_CONCURRENCY must be >= 1")
	}
	if c.MaxInlineBytes <= 0 {
		errs = append(errs, "MAX_INLINE_BYTES must be > 0")
	}
	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	case "gcs":
		return "gcs"
	default:
		return "local"
	}
}

func normalizeTrigger(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "queue") {
		return "queue"
	}
	return "inline"
}

func normalizeProvider(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "genai") {
		return "genai"
	}
	return "vertex"
}
