// Package solana reads congestion from recent prioritization fees.
package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/business/network/domain"
	"github.com/fd1az/mev-bundler/internal/apperror"
	"github.com/fd1az/mev-bundler/internal/circuitbreaker"
	"github.com/fd1az/mev-bundler/internal/logger"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/network/infra/solana"
	meterName  = "github.com/fd1az/mev-bundler/business/network/infra/solana"
)

// FeeReader is the subset of the RPC client used here.
type FeeReader interface {
	GetRecentPrioritizationFees(ctx context.Context, accounts solana.PublicKeySlice) ([]rpc.PriorizationFeeResult, error)
}

// Config holds the fee source settings.
type Config struct {
	RPCURL        string
	Network       string
	Accounts      []string // writable accounts of the local fee market; empty reads the global market
	BaselineFee   float64  // micro-lamports per CU at multiplier 1
	MaxMultiplier float64
}

type feeMetrics struct {
	fetches   metric.Int64Counter
	medianFee metric.Float64Gauge
}

// FeeSource maps the median recent prioritization fee to a multiplier.
type FeeSource struct {
	config   Config
	accounts solana.PublicKeySlice
	client   FeeReader
	cb       *circuitbreaker.CircuitBreaker[[]rpc.PriorizationFeeResult]
	logger   logger.LoggerInterface

	tracer  trace.Tracer
	metrics *feeMetrics
}

// New creates a fee source backed by a JSON-RPC client.
func New(cfg Config, log logger.LoggerInterface) (*FeeSource, error) {
	return NewWithClient(cfg, rpc.New(cfg.RPCURL), log)
}

// NewWithClient creates a fee source over an existing reader.
func NewWithClient(cfg Config, client FeeReader, log logger.LoggerInterface) (*FeeSource, error) {
	accounts := make(solana.PublicKeySlice, 0, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		pk, err := solana.PublicKeyFromBase58(acc)
		if err != nil {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("fee account %q", acc)))
		}
		accounts = append(accounts, pk)
	}

	s := &FeeSource{
		config:   cfg,
		accounts: accounts,
		client:   client,
		cb:       circuitbreaker.New[[]rpc.PriorizationFeeResult](circuitbreaker.DefaultConfig("solana-fees")),
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *FeeSource) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &feeMetrics{}

	s.metrics.fetches, err = meter.Int64Counter(
		"solana_priority_fee_fetches_total",
		metric.WithDescription("Prioritization fee RPC calls"),
	)
	if err != nil {
		return err
	}

	s.metrics.medianFee, err = meter.Float64Gauge(
		"solana_priority_fee_multiplier",
		metric.WithDescription("Multiplier derived from recent prioritization fees"),
	)
	return err
}

func (s *FeeSource) Name() string { return "solana" }

// Fetch reads the recent fees. Slots with zero fee are part of the sample:
// an idle market should pull the median down.
func (s *FeeSource) Fetch(ctx context.Context) (domain.CongestionState, error) {
	ctx, span := s.tracer.Start(ctx, "solana.prioritization_fees",
		trace.WithAttributes(attribute.Int("accounts", len(s.accounts))))
	defer span.End()

	s.metrics.fetches.Add(ctx, 1)

	results, err := s.cb.Execute(func() ([]rpc.PriorizationFeeResult, error) {
		return s.client.GetRecentPrioritizationFees(ctx, s.accounts)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rpc failed")
		return domain.CongestionState{}, apperror.New(apperror.CodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("getRecentPrioritizationFees"))
	}

	fees := make([]float64, len(results))
	for i, r := range results {
		fees[i] = float64(r.PrioritizationFee)
	}
	m := domain.MultiplierFromFees(fees, s.config.BaselineFee, s.config.MaxMultiplier)

	s.metrics.medianFee.Record(ctx, m)
	span.SetAttributes(attribute.Int("samples", len(fees)), attribute.Float64("multiplier", m))
	span.SetStatus(codes.Ok, "")

	return domain.CongestionState{
		Network:    s.config.Network,
		Multiplier: m,
		Source:     s.Name(),
		ObservedAt: time.Now(),
	}, nil
}
