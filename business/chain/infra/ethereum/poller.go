package ethereum

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashblocks-catcher/business/chain/app"
	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/internal/logger"
)

// PollerConfig holds configuration for a polling block source.
type PollerConfig struct {
	Cadence    domain.Cadence
	Interval   time.Duration
	BufferSize int
}

// DefaultPollerConfig polls the standard cadence every 2s, one block time.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Cadence:    domain.Standard,
		Interval:   2 * time.Second,
		BufferSize: 16,
	}
}

type pollerMetrics struct {
	blocksReceived metric.Int64Counter
	pollErrors     metric.Int64Counter
}

// Poller implements BlockSource by polling a BlockFetcher.
type Poller struct {
	config  PollerConfig
	fetcher app.BlockFetcher
	logger  logger.LoggerInterface
	clock   clock.Clock

	state      atomic.Value // domain.ConnectionState
	lastBlock  atomic.Uint64
	lastUpdate atomic.Int64
	subscribed atomic.Bool

	mu       sync.Mutex
	lastHash common.Hash

	tracer  trace.Tracer
	metrics *pollerMetrics
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) PollerOption {
	return func(p *Poller) {
		p.clock = c
	}
}

// NewPoller creates a polling block source.
func NewPoller(cfg PollerConfig, fetcher app.BlockFetcher, log logger.LoggerInterface, opts ...PollerOption) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}

	p := &Poller{
		config:  cfg,
		fetcher: fetcher,
		logger:  log,
		clock:   clock.New(),
		tracer:  otel.Tracer(tracerName),
	}
	p.state.Store(domain.StateDisconnected)

	for _, opt := range opts {
		opt(p)
	}

	meter := otel.Meter(meterName)
	var err error
	p.metrics = &pollerMetrics{}
	p.metrics.blocksReceived, err = meter.Int64Counter(
		"blocks_polled_total",
		metric.WithDescription("Blocks emitted by polling sources"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, err
	}
	p.metrics.pollErrors, err = meter.Int64Counter(
		"block_poll_errors_total",
		metric.WithDescription("Failed block polls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Subscribe starts polling. The first emitted update carries Reset.
func (p *Poller) Subscribe(ctx context.Context) (<-chan domain.BlockUpdate, error) {
	if !p.subscribed.CompareAndSwap(false, true) {
		return nil, errors.New("poller already subscribed")
	}

	out := make(chan domain.BlockUpdate, p.config.BufferSize)
	ticker := p.clock.Ticker(p.config.Interval)
	p.state.Store(domain.StateConnecting)

	go p.run(ctx, ticker, out)

	return out, nil
}

func (p *Poller) run(ctx context.Context, ticker *clock.Ticker, out chan<- domain.BlockUpdate) {
	defer func() {
		ticker.Stop()
		p.state.Store(domain.StateDisconnected)
		p.subscribed.Store(false)
		close(out)
	}()

	p.logger.Info(ctx, "block poller started",
		"cadence", p.config.Cadence.String(),
		"interval", p.config.Interval.String())

	first := true
	if !p.poll(ctx, out, &first) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.poll(ctx, out, &first) {
				return
			}
		}
	}
}

// poll fetches once and emits when the head moved. It returns false once ctx is done.
func (p *Poller) poll(ctx context.Context, out chan<- domain.BlockUpdate, first *bool) bool {
	ctx, span := p.tracer.Start(ctx, "chain.poll",
		trace.WithAttributes(attribute.String("cadence", p.config.Cadence.String())),
	)
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("cadence", p.config.Cadence.String()))

	block, err := p.fetcher.LatestBlock(ctx, p.config.Cadence)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		span.RecordError(err)
		p.metrics.pollErrors.Add(ctx, 1, attrs)
		p.state.Store(domain.StateReconnecting)
		p.logger.Warn(ctx, "block poll failed", "cadence", p.config.Cadence.String(), "error", err)
		return true
	}

	p.state.Store(domain.StateConnected)

	p.mu.Lock()
	unchanged := !*first && block.Hash == p.lastHash
	p.lastHash = block.Hash
	p.mu.Unlock()

	if unchanged {
		span.AddEvent("head_unchanged")
		return true
	}

	update := domain.BlockUpdate{Block: block, Reset: *first}
	select {
	case out <- update:
	case <-ctx.Done():
		return false
	}
	*first = false

	p.lastBlock.Store(block.Number)
	p.lastUpdate.Store(p.clock.Now().UnixNano())
	p.metrics.blocksReceived.Add(ctx, 1, attrs)
	span.SetStatus(codes.Ok, "emitted")
	return true
}

// Status returns the poller's connection status.
func (p *Poller) Status() domain.ConnectionStatus {
	st := domain.ConnectionStatus{
		Cadence:   p.config.Cadence,
		State:     p.state.Load().(domain.ConnectionState),
		LastBlock: p.lastBlock.Load(),
	}
	if ns := p.lastUpdate.Load(); ns > 0 {
		st.LastUpdate = time.Unix(0, ns)
	}
	return st
}
