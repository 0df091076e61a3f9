// Package httpfeed polls a JSON congestion endpoint.
package httpfeed

import (
	"context"
	"time"

	"github.com/fd1az/mev-bundler/business/network/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/cache"
	"github.com/fd1az/mev-bundler/internal/circuitbreaker"
	"github.com/fd1az/mev-bundler/internal/httpclient"
)

const cacheKey = "congestion"

// Config holds the endpoint settings.
type Config struct {
	URL           string
	Network       string
	Timeout       time.Duration
	CacheTTL      time.Duration
	BaselineFee   float64 // used when the endpoint reports a fee rather than a multiplier
	MaxMultiplier float64
}

// response accepts either a ready multiplier or a raw priority fee.
type response struct {
	Multiplier  *float64   `json:"multiplier"`
	PriorityFee *float64   `json:"priority_fee"`
	ObservedAt  *time.Time `json:"observed_at"`
}

// Feed reads congestion from an HTTP endpoint.
type Feed struct {
	config Config
	client *httpclient.Client
	cache  *cache.Cache[string, domain.CongestionState]
	cb     *circuitbreaker.CircuitBreaker[domain.CongestionState]
}

// New creates a feed.
func New(cfg Config, opts ...httpclient.Option) (*Feed, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	opts = append([]httpclient.Option{
		httpclient.WithProviderName("congestion-feed"),
		httpclient.WithRequestTimeout(cfg.Timeout),
	}, opts...)

	client, err := httpclient.New(opts...)
	if err != nil {
		return nil, err
	}

	return &Feed{
		config: cfg,
		client: client,
		cache:  cache.New[string, domain.CongestionState](time.Minute),
		cb:     circuitbreaker.New[domain.CongestionState](circuitbreaker.DefaultConfig("congestion-feed")),
	}, nil
}

func (f *Feed) Name() string { return "http" }

// Fetch returns the cached state when fresh, otherwise polls the endpoint.
func (f *Feed) Fetch(ctx context.Context) (domain.CongestionState, error) {
	if st, ok := f.cache.Get(ctx, cacheKey); ok {
		return st, nil
	}

	st, err := f.cb.Execute(func() (domain.CongestionState, error) {
		return f.poll(ctx)
	})
	if err != nil {
		return domain.CongestionState{}, err
	}

	if f.config.CacheTTL > 0 {
		f.cache.Set(ctx, cacheKey, st, f.config.CacheTTL)
	}
	return st, nil
}

func (f *Feed) poll(ctx context.Context) (domain.CongestionState, error) {
	var resp response
	if err := f.client.GetJSON(ctx, f.config.URL, &resp); err != nil {
		return domain.CongestionState{}, err
	}

	var m float64
	switch {
	case resp.Multiplier != nil:
		m = domain.ClampMultiplier(*resp.Multiplier, f.config.MaxMultiplier)
	case resp.PriorityFee != nil:
		m = domain.MultiplierFromFees([]float64{*resp.PriorityFee}, f.config.BaselineFee, f.config.MaxMultiplier)
	default:
		return domain.CongestionState{}, apperror.Malformed("congestion response has neither multiplier nor priority_fee")
	}

	observed := time.Now()
	if resp.ObservedAt != nil && !resp.ObservedAt.IsZero() {
		observed = *resp.ObservedAt
	}

	return domain.CongestionState{
		Network:    f.config.Network,
		Multiplier: m,
		Source:     f.Name(),
		ObservedAt: observed,
	}, nil
}

// Close stops the cache janitor.
func (f *Feed) Close() error {
	f.cache.Close()
	return nil
}
