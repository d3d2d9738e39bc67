// Package pipeline runs a deal analysis end to end under the deal's run lease.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sealdeal-backend/internal/analyses"
	"sealdeal-backend/internal/benchmarks"
	"sealdeal-backend/internal/deals"
	"sealdeal-backend/internal/ingest"
	"sealdeal-backend/internal/llm"
	"sealdeal-backend/internal/prompt"
	"sealdeal-backend/internal/shared/metrics"
	"sealdeal-backend/internal/shared/telemetry"
)

const (
	benchmarkLimit = 10
	maxReruns      = 3
	// DefaultStaleAfter is how long a Processing lease blocks a new run.
	DefaultStaleAfter = 15 * time.Minute
)

// Ingester converts stored documents into request parts.
type Ingester interface {
	Ingest(ctx context.Context, docs []ingest.Source) ([]ingest.Part, error)
}

// BenchmarkSource lists peer benchmarks.
type BenchmarkSource interface {
	List(ctx context.Context, industry string, limit int) ([]benchmarks.Benchmark, error)
}

// Recorder persists a decoded result.
type Recorder interface {
	Record(ctx context.Context, in analyses.RecordInput) (analyses.Analysis, error)
}

// Pipeline wires the analysis steps together. Every dependency is injected.
type Pipeline struct {
	Deals      deals.Repo
	Ingest     Ingester
	Benchmarks BenchmarkSource
	LLM        llm.Client
	Analyses   Recorder
	StaleAfter time.Duration
	Now        func() time.Time
}

// RunInput selects the deal and the status written when the run fails.
type RunInput struct {
	DealID     string
	UserID     string
	FailStatus deals.Status
	// QueueIfBusy flags a rerun instead of failing when a run is active.
	QueueIfBusy bool
}

type RunResult struct {
	AnalysisID string
	Queued     bool
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Pipeline) staleAfter() time.Duration {
	if p.StaleAfter > 0 {
		return p.StaleAfter
	}
	return DefaultStaleAfter
}

// Run analyzes the deal. When a rerun is requested while it works, the deal is
// analyzed again so late uploads are included, whether or not the first pass
// succeeded.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (RunResult, error) {
	if in.DealID == "" {
		return RunResult{}, deals.ErrInvalidInput
	}
	if in.FailStatus == "" {
		in.FailStatus = deals.StatusAnalysisFailed
	}

	var res RunResult
	var err error
	for attempt := 0; attempt <= maxReruns; attempt++ {
		var rerun bool
		res, rerun, err = p.runLeased(ctx, in)
		if res.Queued || !rerun {
			return res, err
		}
		fields := map[string]any{"deal_id": in.DealID, "request_id": RequestIDFromContext(ctx)}
		if err != nil {
			fields["previous_error"] = err
		}
		telemetry.Info("deal.rerun", fields)
	}
	return res, err
}

func (p *Pipeline) runLeased(ctx context.Context, in RunInput) (RunResult, bool, error) {
	runID := uuid.NewString()
	fields := map[string]any{"deal_id": in.DealID, "user_id": in.UserID, "run_id": runID, "request_id": RequestIDFromContext(ctx)}

	from, err := p.Deals.BeginRun(ctx, in.DealID, runID, p.now(), p.staleAfter(), in.QueueIfBusy)
	if err != nil {
		if errors.Is(err, deals.ErrRunQueued) {
			metrics.IncRunRejected()
			telemetry.Info("deal.run_queued", fields)
			return RunResult{Queued: true}, false, nil
		}
		if errors.Is(err, deals.ErrRunInProgress) {
			metrics.IncRunRejected()
		}
		return RunResult{}, false, err
	}
	metrics.IncRunStarted()
	logTransition(fields, from, deals.StatusProcessing)
	started := time.Now()

	analysis, runErr := p.analyze(ctx, in)

	to := deals.StatusAnalyzed
	if runErr != nil {
		to = in.FailStatus
	}
	// Release the lease even when the caller's context is gone.
	finishCtx, cancel := context.WithTimeout(detached(ctx), 30*time.Second)
	defer cancel()
	rerun, finishErr := p.Deals.FinishRun(finishCtx, in.DealID, runID, to, p.now())
	metrics.ObserveRunDuration(time.Since(started))

	if runErr != nil {
		metrics.IncRunFailed()
		fields["error"] = runErr
		telemetry.Error("deal.analysis_failed", fields)
		delete(fields, "error")
		if finishErr == nil {
			logTransition(fields, deals.StatusProcessing, to)
		}
		return RunResult{}, rerun && finishErr == nil, runErr
	}
	if finishErr != nil {
		return RunResult{}, false, fmt.Errorf("finish run: %w", finishErr)
	}
	metrics.IncRunCompleted()
	fields["analysis_id"] = analysis.ID
	logTransition(fields, deals.StatusProcessing, to)
	return RunResult{AnalysisID: analysis.ID}, rerun, nil
}

func (p *Pipeline) analyze(ctx context.Context, in RunInput) (analyses.Analysis, error) {
	d, err := p.Deals.Get(ctx, in.DealID)
	if err != nil {
		return analyses.Analysis{}, err
	}
	dealName := strings.TrimSpace(d.DealName)
	if dealName == "" {
		dealName = "Unknown Deal"
	}
	userID := in.UserID
	if userID == "" {
		userID = d.OwnerID
	}

	docs, err := p.Deals.ListDocuments(ctx, in.DealID)
	if err != nil {
		return analyses.Analysis{}, err
	}
	if len(docs) == 0 {
		return analyses.Analysis{}, &deals.NoDocumentsError{DealID: in.DealID}
	}
	sources := make([]ingest.Source, 0, len(docs))
	fileNames := make([]string, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, ingest.Source{FileName: doc.FileName, StoragePath: doc.StoragePath})
		fileNames = append(fileNames, doc.FileName)
	}

	parts, err := p.Ingest.Ingest(ctx, sources)
	if err != nil {
		return analyses.Analysis{}, err
	}
	peers, err := p.Benchmarks.List(ctx, benchmarks.DefaultIndustry, benchmarkLimit)
	if err != nil {
		return analyses.Analysis{}, fmt.Errorf("load benchmarks: %w", err)
	}
	req, err := prompt.Build(peers, parts)
	if err != nil {
		return analyses.Analysis{}, err
	}

	text, err := p.LLM.Generate(ctx, req)
	if err != nil {
		return analyses.Analysis{}, err
	}
	result, err := analyses.Decode(text)
	if err != nil {
		return analyses.Analysis{}, err
	}

	return p.Analyses.Record(ctx, analyses.RecordInput{
		DealID:      in.DealID,
		DealName:    dealName,
		UserID:      userID,
		SourceFiles: fileNames,
		Result:      result,
	})
}

// Start runs the pipeline in the background with a detached context.
func (p *Pipeline) Start(ctx context.Context, in RunInput) {
	runCtx := detached(ctx)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("deal.analysis_panic", map[string]any{"deal_id": in.DealID, "panic": fmt.Sprint(rec)})
			}
		}()
		if _, err := p.Run(runCtx, in); err != nil && !errors.Is(err, deals.ErrRunInProgress) {
			telemetry.Warn("deal.async_run_failed", map[string]any{"deal_id": in.DealID, "error": err})
		}
	}()
}

func logTransition(fields map[string]any, from, to deals.Status) {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["status_transition"] = string(from) + "->" + string(to)
	telemetry.Info("deal.status", out)
}
