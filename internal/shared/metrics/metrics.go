package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal   atomic.Uint64
	runsCompletedTotal atomic.Uint64
	runsFailedTotal    atomic.Uint64
	runsRejectedTotal  atomic.Uint64

	llmRetriesTotal atomic.Uint64

	exportsTotal       atomic.Uint64
	exportsFailedTotal atomic.Uint64

	uploadEventsTotal        atomic.Uint64
	uploadEventsIgnoredTotal atomic.Uint64

	chatMessagesTotal atomic.Uint64

	queueReceivedTotal      atomic.Uint64
	queueCompletedTotal     atomic.Uint64
	queueFailedTotal        atomic.Uint64
	queueUnrecoverableTotal atomic.Uint64

	httpRequests2xx  atomic.Uint64
	httpRequests4xx  atomic.Uint64
	httpRequests5xx  atomic.Uint64
	rateLimitedTotal atomic.Uint64

	runDuration  = newHistogram([]float64{1000, 2500, 5000, 10000, 20000, 30000, 60000, 120000})
	httpDuration = newHistogram([]float64{5, 25, 100, 250, 1000, 5000, 30000})
)

// IncRunStarted counts a pipeline run that acquired its lease.
func IncRunStarted() { runsStartedTotal.Add(1) }

// IncRunCompleted counts a run that reached 4_Analyzed.
func IncRunCompleted() { runsCompletedTotal.Add(1) }

// IncRunFailed counts a run that ended in an error status.
func IncRunFailed() { runsFailedTotal.Add(1) }

// IncRunRejected counts a run refused because another run holds the lease.
func IncRunRejected() { runsRejectedTotal.Add(1) }

// IncLLMRetry counts a retried model call.
func IncLLMRetry() { llmRetriesTotal.Add(1) }

// IncExport counts a warehouse export attempt outcome.
func IncExport(ok bool) {
	if ok {
		exportsTotal.Add(1)
		return
	}
	exportsFailedTotal.Add(1)
}

// IncUploadEvent counts a storage event, ignored or not.
func IncUploadEvent(ignored bool) {
	if ignored {
		uploadEventsIgnoredTotal.Add(1)
		return
	}
	uploadEventsTotal.Add(1)
}

func IncChatMessage() { chatMessagesTotal.Add(1) }

// IncQueueReceived counts a queue message picked up by the worker.
func IncQueueReceived() { queueReceivedTotal.Add(1) }

// IncQueueCompleted counts a message processed and deleted.
func IncQueueCompleted() { queueCompletedTotal.Add(1) }

// IncQueueFailed counts a message left on the queue for redelivery.
func IncQueueFailed() { queueFailedTotal.Add(1) }

// IncQueueUnrecoverable counts a message deleted because it could not be parsed.
func IncQueueUnrecoverable() { queueUnrecoverableTotal.Add(1) }

func IncRateLimited() { rateLimitedTotal.Add(1) }

// ObserveRunDuration records a pipeline run duration.
func ObserveRunDuration(d time.Duration) {
	runDuration.Observe(durationMs(d))
}

// ObserveRequest records an HTTP response by status class.
func ObserveRequest(status int, d time.Duration) {
	switch {
	case status >= 500:
		httpRequests5xx.Add(1)
	case status >= 400:
		httpRequests4xx.Add(1)
	default:
		httpRequests2xx.Add(1)
	}
	httpDuration.Observe(durationMs(d))
}

func durationMs(d time.Duration) float64 {
	v := float64(d) / float64(time.Millisecond)
	if v < 0 {
		return 0
	}
	return v
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "deal_runs_started_total", "Analysis runs started", runsStartedTotal.Load())
	writeCounter(&buf, "deal_runs_completed_total", "Analysis runs completed", runsCompletedTotal.Load())
	writeCounter(&buf, "deal_runs_failed_total", "Analysis runs failed", runsFailedTotal.Load())
	writeCounter(&buf, "deal_runs_rejected_total", "Analysis runs rejected while another run was active", runsRejectedTotal.Load())
	writeCounter(&buf, "llm_retries_total", "Model calls retried after rate limiting", llmRetriesTotal.Load())
	writeCounter(&buf, "analytics_exports_total", "Analytics rows exported to the warehouse", exportsTotal.Load())
	writeCounter(&buf, "analytics_exports_failed_total", "Analytics exports that failed", exportsFailedTotal.Load())
	writeCounter(&buf, "upload_events_total", "Storage upload events processed", uploadEventsTotal.Load())
	writeCounter(&buf, "upload_events_ignored_total", "Storage upload events ignored", uploadEventsIgnoredTotal.Load())
	writeCounter(&buf, "chat_messages_total", "Chat messages handled", chatMessagesTotal.Load())
	writeCounter(&buf, "upload_queue_received_total", "Upload queue messages received", queueReceivedTotal.Load())
	writeCounter(&buf, "upload_queue_completed_total", "Upload queue messages processed", queueCompletedTotal.Load())
	writeCounter(&buf, "upload_queue_failed_total", "Upload queue messages left for redelivery", queueFailedTotal.Load())
	writeCounter(&buf, "upload_queue_unrecoverable_total", "Upload queue messages deleted as unparseable", queueUnrecoverableTotal.Load())
	writeCounter(&buf, "http_requests_2xx_total", "HTTP responses below 400", httpRequests2xx.Load())
	writeCounter(&buf, "http_requests_4xx_total", "HTTP 4xx responses", httpRequests4xx.Load())
	writeCounter(&buf, "http_requests_5xx_total", "HTTP 5xx responses", httpRequests5xx.Load())
	writeCounter(&buf, "http_rate_limited_total", "Requests rejected by the rate limiter", rateLimitedTotal.Load())
	writeHistogram(&buf, "deal_run_duration_ms", "Analysis run duration in milliseconds", runDuration.Snapshot())
	writeHistogram(&buf, "http_request_duration_ms", "HTTP request duration in milliseconds", httpDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
