// Package wsfeed ingests snapshot events from a websocket stream.
package wsfeed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mev-bundler/business/market/domain"
	"github.com/fd1az/mev-bundler/internal/logger"
	"github.com/fd1az/mev-bundler/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/mev-bundler/business/market/infra/wsfeed"
	meterName  = "github.com/fd1az/mev-bundler/business/market/infra/wsfeed"
)

// Config holds the feed settings.
type Config struct {
	URL            string
	Channels       []string // sent in a subscribe request after every connect
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// subscribeRequest is sent on every (re)connect.
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type feedMetrics struct {
	messages    metric.Int64Counter
	parseErrors metric.Int64Counter
	dropped     metric.Int64Counter
	connected   metric.Int64UpDownCounter
}

// Feed is a market.Source backed by a reconnecting websocket.
type Feed struct {
	config  Config
	logger  logger.LoggerInterface
	nextID  atomic.Int64
	skipped atomic.Int64

	tracer  trace.Tracer
	metrics *feedMetrics
}

// New creates a websocket feed.
func New(cfg Config, log logger.LoggerInterface) (*Feed, error) {
	f := &Feed{
		config: cfg,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return f, nil
}

func (f *Feed) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &feedMetrics{}

	f.metrics.messages, err = meter.Int64Counter(
		"wsfeed_messages_total",
		metric.WithDescription("Websocket messages received"),
	)
	if err != nil {
		return err
	}

	f.metrics.parseErrors, err = meter.Int64Counter(
		"wsfeed_parse_errors_total",
		metric.WithDescription("Messages that failed to decode"),
	)
	if err != nil {
		return err
	}

	f.metrics.dropped, err = meter.Int64Counter(
		"wsfeed_dropped_total",
		metric.WithDescription("Events dropped during shutdown"),
	)
	if err != nil {
		return err
	}

	f.metrics.connected, err = meter.Int64UpDownCounter(
		"wsfeed_connected",
		metric.WithDescription("1 while the feed holds a live connection"),
	)
	return err
}

func (f *Feed) Name() string { return "ws:" + f.config.URL }

func (f *Feed) Skipped() int64 { return f.skipped.Load() }

// Run connects with retry and forwards decoded events until ctx is done.
func (f *Feed) Run(ctx context.Context, out chan<- domain.Event) error {
	wsCfg := wsconn.DefaultConfig(f.config.URL, "market-feed")
	if f.config.InitialBackoff > 0 {
		wsCfg.InitialBackoff = f.config.InitialBackoff
	}
	if f.config.MaxBackoff > 0 {
		wsCfg.MaxBackoff = f.config.MaxBackoff
	}

	client, err := wsconn.New(wsCfg)
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnMessage(func(_ context.Context, msg []byte) {
		f.handle(ctx, msg, out)
	})
	client.OnStateChange(func(state wsconn.State, err error) {
		switch state {
		case wsconn.StateConnected:
			f.metrics.connected.Add(ctx, 1)
			f.logger.Info(ctx, "market feed connected", "url", f.config.URL)
		case wsconn.StateReconnecting:
			f.metrics.connected.Add(ctx, -1)
			f.logger.Warn(ctx, "market feed reconnecting", "url", f.config.URL, "error", err)
		}
	})
	client.OnConnect(func(connCtx context.Context) error {
		return f.subscribe(connCtx, client)
	})

	if err := client.ConnectWithRetry(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

func (f *Feed) subscribe(ctx context.Context, client *wsconn.Client) error {
	if len(f.config.Channels) == 0 {
		return nil
	}

	ctx, span := f.tracer.Start(ctx, "wsfeed.subscribe",
		trace.WithAttributes(attribute.StringSlice("channels", f.config.Channels)))
	defer span.End()

	req := subscribeRequest{
		Method: "subscribe",
		Params: f.config.Channels,
		ID:     f.nextID.Add(1),
	}
	if err := client.SendJSON(ctx, req); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (f *Feed) handle(ctx context.Context, msg []byte, out chan<- domain.Event) {
	f.metrics.messages.Add(ctx, 1)

	ev, err := domain.DecodeEvent(msg)
	if err != nil {
		// subscription acks and heartbeats land here too
		f.skipped.Add(1)
		f.metrics.parseErrors.Add(ctx, 1)
		f.logger.Debug(ctx, "skipping feed message", "error", err)
		return
	}

	select {
	case out <- ev:
	case <-ctx.Done():
		f.metrics.dropped.Add(ctx, 1)
	}
}
