// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package story

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout   = 10 * time.Second
	defaultHTTPRate      = 5.0
	defaultHTTPBurst     = 2
	maxDocumentBytes     = 8 << 20
	defaultHTTPUserAgent = "questplay"
)

// HTTPOptions tunes an HTTPFetcher. Zero values select defaults.
type HTTPOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string

	// Client replaces the default traced client.
	Client *http.Client

	// TracerProvider for client spans; nil selects the global provider.
	TracerProvider trace.TracerProvider
}

// HTTPFetcher downloads <base>/<titleID>.json, appending a cache-busting
// v=<unix ms> query parameter so intermediaries never serve a stale story.
type HTTPFetcher struct {
	base      *url.URL
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	now       func() time.Time
}

// NewHTTPFetcher validates baseURL and builds a fetcher.
func NewHTTPFetcher(baseURL string, opts HTTPOptions) (*HTTPFetcher, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid story base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid story base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid story base URL %q: missing host", baseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultHTTPRate
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultHTTPBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultHTTPUserAgent
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout:   opts.Timeout,
			Transport: newTracedTransport(opts.TracerProvider),
		}
	}

	return &HTTPFetcher{
		base:      u,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		userAgent: opts.UserAgent,
		now:       time.Now,
	}, nil
}

// newTracedTransport records a client span per request and propagates the
// W3C trace context to the story server.
func newTracedTransport(tp trace.TracerProvider) http.RoundTripper {
	opts := []otelhttp.Option{
		otelhttp.WithPropagators(propagation.TraceContext{}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "story.fetch " + r.URL.Path
		}),
	}
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return otelhttp.NewTransport(http.DefaultTransport, opts...)
}

// URL returns the request URL for a title at the current time.
func (f *HTTPFetcher) URL(titleID string) string {
	u := *f.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + titleID + ".json"
	q := u.Query()
	q.Set("v", strconv.FormatInt(f.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, titleID string) (*Document, error) {
	if err := ValidateTitleID(titleID); err != nil {
		return nil, classify(titleID, "", ErrNotFound, 0, err)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, classify(titleID, "", ErrTransport, 0, fmt.Errorf("rate limiter: %w", err))
	}

	target := f.URL(titleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, classify(titleID, target, ErrTransport, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(titleID, target, ErrTransport, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, classify(titleID, target, ErrNotFound, resp.StatusCode, nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, classify(titleID, target, ErrTransport, resp.StatusCode, nil)
	}

	doc, err := Parse(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, classify(titleID, target, ErrMalformed, resp.StatusCode, err)
	}
	return doc, nil
}
