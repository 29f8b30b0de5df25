// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ManuGH/questplay/internal/log"
	"github.com/ManuGH/questplay/internal/telemetry"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

// tracing wraps the router with OpenTelemetry server spans. Operational
// endpoints and the long-lived websocket are not traced.
func tracing(tp trace.TracerProvider) func(http.Handler) http.Handler {
	opts := []otelhttp.Option{
		otelhttp.WithFilter(shouldTrace),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	}
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "questplay-api", opts...)
	}
}

func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics", "/ws":
		return false
	}
	return true
}

// requestID adds a unique ID to every request.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String(telemetry.RequestIDKey, reqID))
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoverer turns a handler panic into a logged 500 JSON response.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			buf := make([]byte, 8192)
			n := runtime.Stack(buf, false)

			path := r.URL.Path
			if !utf8.ValidString(path) {
				path = strings.ToValidUTF8(path, "")
			}
			logger := log.WithComponentFromContext(r.Context(), "panic-recovery")
			logger.Error().
				Str(log.FieldEvent, "panic.recovered").
				Str("method", r.Method).
				Str(log.FieldPath, path).
				Interface("panic_value", rec).
				Str("stack_trace", string(buf[:n])).
				Msg("panic recovered in HTTP handler")

			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:     "internal_error",
				Detail:    "An unexpected error occurred.",
				RequestID: log.RequestIDFromContext(r.Context()),
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one line per request after the handler returns.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger := log.WithComponentFromContext(r.Context(), "http")
		ev := logger.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			ev = logger.Warn()
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			ev = ev.Str(log.FieldTraceID, sc.TraceID().String())
		}
		ev.Str(log.FieldEvent, "http.request").
			Str("method", r.Method).
			Str(log.FieldPath, r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

// rateLimit limits requests per client IP with a sliding window. A limit of
// zero disables it.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error:     "rate_limit_exceeded",
				Detail:    "Too many requests. Please try again later.",
				RequestID: log.RequestIDFromContext(r.Context()),
			})
		}),
	)
}
