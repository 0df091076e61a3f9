package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/internal/apperror"
)

const (
	defaultDialKeepAlive   = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 5
	defaultIdleConnTimeout = 2 * time.Minute

	instrumentationName  = "github.com/fd1az/mev-bundler/internal/httpclient"
	metricRequestCounter = "http_client_requests_total"
	maxResponseBytes     = 4 << 20
)

// Client issues instrumented HTTP requests.
type Client struct {
	http     *http.Client
	opts     *Options
	tracer   trace.Tracer
	requests metric.Int64Counter
}

// New creates a client whose transport is wrapped by otelhttp.
func New(opts ...Option) (*Client, error) {
	o := newOptions(opts...)

	base := o.roundTripper
	if base == nil {
		base = &http.Transport{
			DialContext:     (&net.Dialer{KeepAlive: defaultDialKeepAlive}).DialContext,
			MaxConnsPerHost: defaultMaxConnsPerHost,
			IdleConnTimeout: defaultIdleConnTimeout,
		}
	}

	transport := otelhttp.NewTransport(base,
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName,
		metric.WithInstrumentationAttributes(attribute.String("provider", o.providerName)))

	requests, err := meter.Int64Counter(metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"))
	if err != nil {
		return nil, err
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &Client{
		http:     &http.Client{Timeout: o.requestTimeout, Transport: transport},
		opts:     o,
		tracer:   tracer,
		requests: requests,
	}, nil
}

// GetJSON performs a GET and decodes a 2xx JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext(c.opts.providerName+": decode response"))
	}
	return nil
}

// Get performs a GET and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	url := c.resolve(path)

	ctx, span := c.tracer.Start(ctx, "http.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.url", url),
			attribute.String("provider", c.opts.providerName),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.opts.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.fail(ctx, span, err)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, apperror.New(apperror.CodeServiceTimeout, apperror.WithCause(err),
				apperror.WithContext(c.opts.providerName))
		}
		return nil, apperror.New(apperror.CodeExternalServiceError, apperror.WithCause(err),
			apperror.WithContext(c.opts.providerName))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.fail(ctx, span, err)
		return nil, apperror.New(apperror.CodeExternalServiceError, apperror.WithCause(err),
			apperror.WithContext(c.opts.providerName+": read body"))
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if c.opts.logResponse {
		span.AddEvent("response.body", trace.WithAttributes(
			attribute.String("http.response_body", string(body))))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		c.fail(ctx, span, err)
		code := apperror.CodeExternalServiceError
		if resp.StatusCode == http.StatusTooManyRequests {
			code = apperror.CodeRateLimitExceeded
		}
		return nil, apperror.New(code, apperror.WithCause(err), apperror.WithContext(c.opts.providerName))
	}

	span.SetStatus(codes.Ok, "")
	c.record(ctx, true)
	return body, nil
}

func (c *Client) resolve(path string) string {
	if c.opts.baseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(c.opts.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) fail(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.record(ctx, false)
}

func (c *Client) record(ctx context.Context, success bool) {
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", c.opts.providerName),
		attribute.Bool("success", success),
	))
}
