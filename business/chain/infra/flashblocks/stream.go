package flashblocks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/flashblocks-catcher/business/chain/app"
	"github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/internal/logger"
	"github.com/fd1az/flashblocks-catcher/internal/wsconn"
)

const meterName = "github.com/fd1az/flashblocks-catcher/business/chain/infra/flashblocks"

// StreamConfig holds configuration for the flashblock stream.
type StreamConfig struct {
	WS wsconn.Config

	// PollInterval paces pending-block polling while the socket is down.
	PollInterval time.Duration
	BufferSize   int
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig(url string) StreamConfig {
	return StreamConfig{
		WS:           wsconn.DefaultConfig(url, "flashblocks"),
		PollInterval: 200 * time.Millisecond,
		BufferSize:   64,
	}
}

type streamMetrics struct {
	received        metric.Int64Counter
	decodeErrors    metric.Int64Counter
	fallbackPolls   metric.Int64Counter
	reconnects      metric.Int64Counter
	connectionState metric.Int64Gauge
}

// Stream implements BlockSource for the flash cadence. It reads the
// flashblock WebSocket and polls the pending block whenever the socket is
// not connected.
type Stream struct {
	config   StreamConfig
	fallback app.BlockFetcher
	logger   logger.LoggerInterface
	clock    clock.Clock
	merger   *Merger

	ws atomic.Pointer[wsconn.Client]

	outMu  sync.RWMutex
	out    chan domain.BlockUpdate
	closed bool

	resetPending  atomic.Bool
	usingFallback atomic.Bool
	subscribed    atomic.Bool
	connectedOnce atomic.Bool
	state         atomic.Value // domain.ConnectionState
	lastBlock     atomic.Uint64
	lastUpdate    atomic.Int64

	pollMu   sync.Mutex
	lastPoll common.Hash

	metrics *streamMetrics
}

// Option configures a Stream.
type Option func(*Stream)

// WithClock replaces the wall clock used by the fallback poller.
func WithClock(c clock.Clock) Option {
	return func(s *Stream) {
		s.clock = c
	}
}

// NewStream creates a flashblock stream. fallback serves the pending block
// while the socket is down.
func NewStream(cfg StreamConfig, fallback app.BlockFetcher, log logger.LoggerInterface, opts ...Option) (*Stream, error) {
	if cfg.WS.URL == "" {
		return nil, errors.New("flashblocks: websocket url is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	s := &Stream{
		config:   cfg,
		fallback: fallback,
		logger:   log,
		clock:    clock.New(),
		merger:   NewMerger(),
	}
	s.state.Store(domain.StateDisconnected)

	for _, opt := range opts {
		opt(s)
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stream) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &streamMetrics{}

	s.metrics.received, err = meter.Int64Counter(
		"flashblocks_received_total",
		metric.WithDescription("Flashblock stream messages received"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	s.metrics.decodeErrors, err = meter.Int64Counter(
		"flashblock_decode_errors_total",
		metric.WithDescription("Flashblock stream messages that could not be decoded"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.fallbackPolls, err = meter.Int64Counter(
		"flashblock_fallback_polls_total",
		metric.WithDescription("Pending-block polls made while the stream was down"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return err
	}

	s.metrics.reconnects, err = meter.Int64Counter(
		"stream_reconnects_total",
		metric.WithDescription("Flashblock stream reconnections"),
		metric.WithUnit("{reconnect}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"stream_connection_state",
		metric.WithDescription("Flashblock stream state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=polling)"),
		metric.WithUnit("{state}"),
	)
	return err
}

func (s *Stream) setState(state domain.ConnectionState) {
	s.state.Store(state)

	var v int64
	switch state {
	case domain.StateConnecting:
		v = 1
	case domain.StateConnected:
		v = 2
	case domain.StateReconnecting:
		v = 3
	case domain.StatePolling:
		v = 4
	}
	s.metrics.connectionState.Record(context.Background(), v)
}

// Subscribe connects the socket and starts the fallback poller. The channel
// closes after ctx ends and both have stopped.
func (s *Stream) Subscribe(ctx context.Context) (<-chan domain.BlockUpdate, error) {
	if !s.subscribed.CompareAndSwap(false, true) {
		return nil, errors.New("flashblock stream already subscribed")
	}

	ws, err := wsconn.New(s.config.WS)
	if err != nil {
		s.subscribed.Store(false)
		return nil, err
	}
	s.ws.Store(ws)
	s.out = make(chan domain.BlockUpdate, s.config.BufferSize)
	s.resetPending.Store(true)
	s.usingFallback.Store(true)
	s.setState(domain.StateConnecting)

	ws.OnMessage(func(_ context.Context, msg []byte) {
		s.handleMessage(ctx, msg)
	})
	ws.OnStateChange(s.handleState)

	ticker := s.clock.Ticker(s.config.PollInterval)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := ws.ConnectWithRetry(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "flashblock stream unavailable, polling only", "error", err)
		}
	}()

	go func() {
		defer wg.Done()
		s.runFallback(ctx, ticker)
	}()

	go func() {
		<-ctx.Done()
		_ = ws.Close()
		wg.Wait()

		s.setState(domain.StateDisconnected)
		s.subscribed.Store(false)

		s.outMu.Lock()
		s.closed = true
		close(s.out)
		s.outMu.Unlock()
	}()

	return s.out, nil
}

func (s *Stream) handleState(state wsconn.State, err error) {
	ctx := context.Background()

	switch state {
	case wsconn.StateConnected:
		if s.connectedOnce.Swap(true) {
			s.metrics.reconnects.Add(ctx, 1)
		}
		// A fresh connection may replay flashblocks already delivered.
		s.merger.Reset()
		s.resetPending.Store(true)
		s.usingFallback.Store(false)
		s.setState(domain.StateConnected)
		s.logger.Info(ctx, "flashblock stream connected", "url", s.config.WS.URL)
	case wsconn.StateReconnecting, wsconn.StateDisconnected:
		s.usingFallback.Store(true)
		if s.state.Load() != domain.StatePolling {
			s.setState(domain.StateReconnecting)
		}
		if err != nil {
			s.logger.Warn(ctx, "flashblock stream down", "state", string(state), "error", err)
		}
	}
}

func (s *Stream) handleMessage(ctx context.Context, msg []byte) {
	s.metrics.received.Add(ctx, 1)

	p, err := DecodePayload(msg)
	if err != nil {
		s.metrics.decodeErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "skipping undecodable flashblock message",
			"error", err, "message", truncate(msg, 100))
		return
	}

	block, err := s.merger.Merge(p)
	if err != nil {
		s.logger.Debug(ctx, "skipping flashblock", "payload_id", p.PayloadID, "index", p.Index, "error", err)
		return
	}

	s.emit(ctx, block)
}

func (s *Stream) runFallback(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if ws := s.ws.Load(); (ws != nil && ws.IsConnected()) || s.fallback == nil {
			continue
		}

		s.metrics.fallbackPolls.Add(ctx, 1)
		block, err := s.fallback.LatestBlock(ctx, domain.Flash)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug(ctx, "pending block poll failed", "error", err)
			}
			continue
		}
		if !s.usingFallback.Load() {
			continue
		}
		s.setState(domain.StatePolling)

		s.pollMu.Lock()
		seen := block.Hash == s.lastPoll
		s.lastPoll = block.Hash
		s.pollMu.Unlock()

		if !seen {
			s.emit(ctx, block)
		}
	}
}

func (s *Stream) emit(ctx context.Context, block *domain.Block) {
	s.outMu.RLock()
	defer s.outMu.RUnlock()

	if s.closed {
		return
	}

	update := domain.BlockUpdate{Block: block, Reset: s.resetPending.Swap(false)}
	select {
	case s.out <- update:
		s.lastBlock.Store(block.Number)
		s.lastUpdate.Store(s.clock.Now().UnixNano())
	case <-ctx.Done():
	}
}

// Status returns the stream's connection status.
func (s *Stream) Status() domain.ConnectionStatus {
	st := domain.ConnectionStatus{
		Cadence:       domain.Flash,
		State:         s.state.Load().(domain.ConnectionState),
		LastBlock:     s.lastBlock.Load(),
		UsingFallback: s.usingFallback.Load(),
	}
	if ws := s.ws.Load(); ws != nil {
		st.Reconnects = ws.Reconnects()
	}
	if ns := s.lastUpdate.Load(); ns > 0 {
		st.LastUpdate = time.Unix(0, ns)
	}
	return st
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
