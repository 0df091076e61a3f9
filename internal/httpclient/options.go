// Package httpclient provides an HTTP client instrumented with OTEL tracing and metrics.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Options holds configuration for the instrumented client.
type Options struct {
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	providerName   string
	roundTripper   http.RoundTripper
	requestTimeout time.Duration
	headers        map[string]string
	baseURL        string
	logResponse    bool
}

// Option configures Options.
type Option func(*Options)

func newOptions(opts ...Option) *Options {
	o := &Options{
		providerName:   "default",
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithMeterProvider sets the OTEL meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Options) { o.meterProvider = mp }
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Options) { o.tracer = t }
}

// WithProviderName labels metrics and spans with the remote's name.
func WithProviderName(name string) Option {
	return func(o *Options) { o.providerName = name }
}

// WithRoundTripper replaces the base transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) { o.roundTripper = rt }
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.requestTimeout = timeout }
}

// WithHeaders sets headers sent on every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) { o.headers = headers }
}

// WithBaseURL resolves relative request paths against url.
func WithBaseURL(url string) Option {
	return func(o *Options) { o.baseURL = url }
}

// WithResponseLogging attaches response bodies to spans as events.
func WithResponseLogging() Option {
	return func(o *Options) { o.logResponse = true }
}
