package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"sessiongate/internal/telemetry/producer"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry returns middleware that traces each request, counts it, and
// emits an http_request event after the handler returns. Best-effort:
// emit failures are logged and do not fail the request. If p is nil, no
// events are emitted. skipPaths is the set of exact paths to not emit
// (e.g. /healthz).
func Telemetry(p producer.Producer, skipPaths map[string]bool) func(http.Handler) http.Handler {
	tracer := otel.Tracer("sessiongate/server")
	meter := otel.Meter("sessiongate/server")
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests handled, by path and status code"))
	if err != nil {
		log.Printf("telemetry: counter init failed: %v", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			span.SetAttributes(attribute.Int("http.status_code", rec.status))
			span.End()

			if requests != nil {
				requests.Add(ctx, 1,
					metric.WithAttributes(
						attribute.String("path", r.URL.Path),
						attribute.Int("status", rec.status),
					))
			}

			if p == nil || skipPaths[r.URL.Path] {
				return
			}
			meta := httpRequestMetadata{
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: rec.status,
				DurationMs: time.Since(start).Milliseconds(),
				ClientIP:   ClientIP(r),
			}
			metaJSON, _ := json.Marshal(meta)
			event := &producer.Event{
				EventType: "http_request",
				Source:    "http_middleware",
				Metadata:  metaJSON,
				CreatedAt: time.Now().UTC(),
			}
			go func() {
				emitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if emitErr := p.Emit(emitCtx, event); emitErr != nil {
					log.Printf("telemetry: middleware emit failed: %v", emitErr)
				}
			}()
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
