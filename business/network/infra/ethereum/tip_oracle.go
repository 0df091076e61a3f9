// Package ethereum reads congestion from EIP-1559 priority fee suggestions.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/business/network/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/cache"
	"github.com/fd1az/mev-bundler/internal/circuitbreaker"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/network/infra/ethereum"
	meterName  = "github.com/fd1az/mev-bundler/business/network/infra/ethereum"

	tipCacheKey = "tip"
)

var weiPerGwei = big.NewFloat(1e9)

// Config holds configuration for the tip oracle.
type Config struct {
	RPCURL        string
	Network       string
	CacheTTL      time.Duration // ~1 block
	BaselineGwei  float64       // tip at multiplier 1
	MaxMultiplier float64
}

type tipOracleMetrics struct {
	fetches     metric.Int64Counter
	tipGwei     metric.Float64Gauge
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// TipOracle maps the suggested gas tip cap to a congestion multiplier.
type TipOracle struct {
	config Config
	logger logger.LoggerInterface

	client   *ethclient.Client
	clientMu sync.RWMutex

	tipCache *cache.Cache[string, float64]
	cb       *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	metrics *tipOracleMetrics
}

// New creates a tip oracle; the node is dialed lazily on first Fetch.
func New(cfg Config, log logger.LoggerInterface) (*TipOracle, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 12 * time.Second
	}
	if cfg.BaselineGwei <= 0 {
		cfg.BaselineGwei = 1
	}

	o := &TipOracle{
		config:   cfg,
		logger:   log,
		tipCache: cache.New[string, float64](time.Minute),
		cb:       circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("eth-tip-oracle")),
		tracer:   otel.Tracer(tracerName),
	}

	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return o, nil
}

func (o *TipOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &tipOracleMetrics{}

	o.metrics.fetches, err = meter.Int64Counter(
		"eth_tip_fetches_total",
		metric.WithDescription("Total tip cap fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	o.metrics.tipGwei, err = meter.Float64Gauge(
		"eth_tip_gwei",
		metric.WithDescription("Suggested priority fee in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	o.metrics.cacheHits, err = meter.Int64Counter(
		"eth_tip_cache_hits_total",
		metric.WithDescription("Tip cache hits"),
	)
	if err != nil {
		return err
	}

	o.metrics.cacheMisses, err = meter.Int64Counter(
		"eth_tip_cache_misses_total",
		metric.WithDescription("Tip cache misses"),
	)
	return err
}

func (o *TipOracle) Name() string { return "ethereum" }

// Connect dials the node.
func (o *TipOracle) Connect(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "tip.connect",
		trace.WithAttributes(attribute.String("url", o.config.RPCURL)),
	)
	defer span.End()

	client, err := ethclient.DialContext(ctx, o.config.RPCURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeRPCConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect tip oracle"))
	}

	o.clientMu.Lock()
	o.client = client
	o.clientMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	o.logger.Info(ctx, "tip oracle connected", "url", o.config.RPCURL)
	return nil
}

// Fetch returns the congestion implied by the current tip cap.
func (o *TipOracle) Fetch(ctx context.Context) (domain.CongestionState, error) {
	ctx, span := o.tracer.Start(ctx, "tip.fetch")
	defer span.End()

	gwei, err := o.tipGwei(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return domain.CongestionState{}, err
	}

	m := domain.ClampMultiplier(gwei/o.config.BaselineGwei, o.config.MaxMultiplier)
	span.SetAttributes(attribute.Float64("gwei", gwei), attribute.Float64("multiplier", m))
	span.SetStatus(codes.Ok, "fetched")

	return domain.CongestionState{
		Network:    o.config.Network,
		Multiplier: m,
		Source:     o.Name(),
		ObservedAt: time.Now(),
	}, nil
}

func (o *TipOracle) tipGwei(ctx context.Context) (float64, error) {
	if gwei, found := o.tipCache.Get(ctx, tipCacheKey); found {
		o.metrics.cacheHits.Add(ctx, 1)
		return gwei, nil
	}
	o.metrics.cacheMisses.Add(ctx, 1)

	o.clientMu.RLock()
	client := o.client
	o.clientMu.RUnlock()

	if client == nil {
		if err := o.Connect(ctx); err != nil {
			return 0, err
		}
		o.clientMu.RLock()
		client = o.client
		o.clientMu.RUnlock()
	}

	o.metrics.fetches.Add(ctx, 1)
	wei, err := o.cb.Execute(func() (*big.Int, error) {
		return client.SuggestGasTipCap(ctx)
	})
	if err != nil {
		return 0, apperror.New(apperror.CodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get gas tip cap"))
	}

	gwei := WeiToGwei(wei)
	o.tipCache.Set(ctx, tipCacheKey, gwei, o.config.CacheTTL)
	o.metrics.tipGwei.Record(ctx, gwei)
	return gwei, nil
}

// WeiToGwei converts wei to gwei.
func WeiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerGwei).Float64()
	return f
}

// Close releases the node connection.
func (o *TipOracle) Close() error {
	o.clientMu.Lock()
	defer o.clientMu.Unlock()

	if o.client != nil {
		o.client.Close()
		o.client = nil
	}
	o.tipCache.Close()
	return nil
}
