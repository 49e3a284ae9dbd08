package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/configuration"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/routing"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type LoggerOptions struct {
	// LogBodies logs JSON and form bodies of mutating API requests and
	// their JSON responses at debug level.
	LogBodies     bool
	MaxBodyLength int
	// Repanic re-raises recovered panics after the response is written.
	Repanic bool
}

func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{LogBodies: true, MaxBodyLength: 2048}
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
	body    *bytes.Buffer
	limit   int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.written {
		return
	}
	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	if w.body != nil && w.body.Len() < w.limit {
		w.body.Write(b[:min(len(b), w.limit-w.body.Len())])
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps the /ws upgrade working behind the logger.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

var tracer = otel.Tracer("admin-portal/middleware")

// TracedMiddleware opens a span around the rest of the chain.
func TracedMiddleware(name string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "middleware."+name,
				trace.WithAttributes(attribute.String("middleware.name", name)))
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sensitiveKeys never reach the request log.
var sensitiveKeys = []string{"password", "code", "secret", "token", "response", "credential"}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func redactForm(f url.Values) map[string]string {
	out := make(map[string]string, len(f))
	for key, values := range f {
		if isSensitive(key) {
			out[key] = "[redacted]"
			continue
		}
		out[key] = strings.Join(values, ",")
	}
	return out
}

// redactJSON walks objects and arrays, masking values under sensitive keys.
func redactJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for key, val := range t {
			if isSensitive(key) {
				t[key] = "[redacted]"
				continue
			}
			t[key] = redactJSON(val)
		}
	case []any:
		for i := range t {
			t[i] = redactJSON(t[i])
		}
	}
	return v
}

func requestBody(r *http.Request, limit int) (any, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "application/json"):
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return truncate(string(raw), limit), nil
		}
		return redactJSON(parsed), nil
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return redactForm(r.PostForm), nil
	}
	return nil, nil
}

func truncate(s string, n int) string {
	if n > 0 && len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// WithLogger assigns a request id, opens the request span, stores a
// request-scoped logger in the context and recovers handler panics.
// Health and asset requests are logged at debug level only.
func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	conf := configuration.Use()
	classifier := routing.NewClassifier(routing.DefaultRules())
	propagator := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			class := classifier.ClassifyPath(r.URL.Path)
			quiet := class == routing.RouteClassOps || class == routing.RouteClassAsset

			requestID := r.Header.Get(conf.RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ip := clientIP(r, conf.RealIPHeader)
			entry := logger.WithFields(logrus.Fields{
				"request-id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", r.URL.Path),
					attribute.String("http.request_id", requestID),
					attribute.String("net.peer.ip", ip),
				),
			)
			defer span.End()
			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set("X-Trace-Id", sc.TraceID().String())
				entry = entry.WithField("trace-id", sc.TraceID().String())
			}
			w.Header().Set("X-Request-Id", requestID)

			captureBodies := opts.LogBodies && class == routing.RouteClassAPI && logger.IsLevelEnabled(logrus.DebugLevel)
			if captureBodies && isMutating(r.Method) && r.Body != nil {
				body, err := requestBody(r, opts.MaxBodyLength)
				if err != nil {
					entry.WithError(err).Warn("failed to read request body")
					_ = httpapi.WriteError(w, serrors.FieldError("body", "unreadable request body"))
					return
				}
				if body != nil {
					entry.WithField("request-body", body).Debug("request body")
				}
			}

			rec := &statusRecorder{ResponseWriter: w}
			if captureBodies {
				rec.body = &bytes.Buffer{}
				rec.limit = opts.MaxBodyLength
			}
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				span.SetStatus(codes.Error, "panic")
				entry.WithFields(logrus.Fields{
					"panic":      recovered,
					"stack":      string(debug.Stack()),
					"ip":         ip,
					"user-agent": r.UserAgent(),
					"duration":   time.Since(start),
				}).Error("panic recovered in request handler")
				if !rec.written {
					if classifier.WantsJSON(r.URL.Path) {
						_ = httpapi.WriteError(rec, serrors.NewError(serrors.Internal, "internal server error", ""))
					} else {
						http.Error(rec, "Internal Server Error", http.StatusInternalServerError)
					}
				}
				if opts.Repanic {
					panic(recovered)
				}
			}()

			next.ServeHTTP(rec, r.WithContext(composables.WithLogger(ctx, entry)))

			status := rec.Status()
			duration := time.Since(start)
			span.SetAttributes(
				attribute.Int("http.status_code", status),
				attribute.Int64("http.duration_ms", duration.Milliseconds()),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			done := entry.WithFields(logrus.Fields{
				"status":   status,
				"duration": duration,
				"ip":       ip,
			})
			if rec.body != nil && rec.body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
				var parsed any
				if err := json.Unmarshal(rec.body.Bytes(), &parsed); err == nil {
					done = done.WithField("response-body", redactJSON(parsed))
				}
			}
			switch {
			case quiet:
				done.Debug("request completed")
			case status >= http.StatusInternalServerError:
				done.Error("request completed")
			case status >= http.StatusBadRequest:
				done.Warn("request completed")
			default:
				done.Info("request completed")
			}
		})
	}
}
