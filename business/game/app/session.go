package app

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
	"github.com/fd1az/flashblocks-catcher/internal/apperror"
	"github.com/fd1az/flashblocks-catcher/internal/logger"
)

// SessionConfig holds the play session settings.
type SessionConfig struct {
	Recipient     common.Address
	Value         decimal.Decimal
	Arena         domain.ArenaConfig
	WindowSize    int
	FrameInterval time.Duration
	StatsWindow   time.Duration
	StatsRefresh  time.Duration
	WalletRefresh time.Duration
	Seed          uint64
}

// DefaultSessionConfig returns the stock 60x20 arena at 20 frames per second.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Arena:         domain.DefaultArenaConfig(60, 20, 12),
		WindowSize:    domain.DefaultWindowSize,
		FrameInterval: 50 * time.Millisecond,
		StatsWindow:   time.Minute,
		StatsRefresh:  5 * time.Second,
		WalletRefresh: 10 * time.Second,
		Seed:          uint64(time.Now().UnixNano()),
	}
}

// Session is one game: it ingests both cadences, drives the arena and the
// confirmation race, and publishes snapshots to a reporter.
type Session struct {
	gateway  ChainGateway
	coord    *Coordinator
	reporter Reporter
	cfg      SessionConfig
	logger   logger.LoggerInterface
	clock    clock.Clock

	ingestors [chain.NumCadences]*Ingestor

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	arena      *domain.Arena
	stats      domain.Stats
	wallet     domain.WalletView
	submitting bool
	lastErr    string
	events     []domain.RaceEvent
	frame      uint64
	started    bool
}

// eventLogSize is the number of race events shown in the race log.
const eventLogSize = 8

// NewSession wires a session. The coordinator's lifetime is owned by the
// session from here on.
func NewSession(
	gateway ChainGateway,
	coord *Coordinator,
	reporter Reporter,
	cfg SessionConfig,
	log logger.LoggerInterface,
	opts ...Option,
) (*Session, error) {
	if cfg.FrameInterval <= 0 || cfg.StatsRefresh <= 0 || cfg.WalletRefresh <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("session intervals must be positive"))
	}
	o := buildOptions(opts)

	s := &Session{
		gateway:  gateway,
		coord:    coord,
		reporter: reporter,
		cfg:      cfg,
		logger:   log,
		clock:    o.clock,
		arena:    domain.NewArena(cfg.Arena, cfg.Seed),
	}

	for _, cad := range chain.Cadences {
		ing, err := NewIngestor(cad, cfg.WindowSize, coord.ActiveTx, opts...)
		if err != nil {
			return nil, err
		}
		s.ingestors[cad] = ing
	}

	coord.Subscribe(RaceObserverFunc(s.onRaceEvent))
	return s, nil
}

// Start subscribes to both cadences and starts the frame loop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("session already started"))
	}
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.reporter.Start(ctx); err != nil {
		cancel()
		return err
	}

	for _, cad := range chain.Cadences {
		updates, err := s.gateway.SubscribeBlocks(ctx, cad)
		if err != nil {
			cancel()
			s.wg.Wait()
			return err
		}
		ing := s.ingestors[cad]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			RunIngestion(ctx, updates, ing, s.coord.HandleBlockEvent, s.onBlock)
		}()
	}

	frames := s.clock.Ticker(s.cfg.FrameInterval)
	stats := s.clock.Ticker(s.cfg.StatsRefresh)
	wallet := s.clock.Ticker(s.cfg.WalletRefresh)

	s.wg.Add(2)
	go s.frameLoop(ctx, frames, stats)
	go s.walletLoop(ctx, wallet)

	s.logger.Info(ctx, "game session started")
	return nil
}

func (s *Session) frameLoop(ctx context.Context, frames, stats *clock.Ticker) {
	defer s.wg.Done()
	defer frames.Stop()
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-frames.C:
			s.step(ctx)
		case <-stats.C:
			s.refreshStats()
		}
	}
}

func (s *Session) walletLoop(ctx context.Context, ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	s.refreshWallet(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshWallet(ctx)
		}
	}
}

func (s *Session) step(ctx context.Context) {
	s.mu.Lock()
	catches := s.arena.Step()
	s.frame++
	s.mu.Unlock()

	for _, c := range catches {
		s.logger.Debug(ctx, "block caught", "cadence", c.Block.Cadence.String(), "number", c.Block.Number, "points", c.Points)
	}
	s.reporter.Update(s.Snapshot())
}

func (s *Session) onBlock(_ context.Context, ev domain.BlockEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena.Spawn(ev)
}

// onRaceEvent runs under the coordinator's lock; it only touches session
// fields.
func (s *Session) onRaceEvent(ev domain.RaceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if len(s.events) > eventLogSize {
		s.events = append(s.events[:0:0], s.events[len(s.events)-eventLogSize:]...)
	}
}

func (s *Session) refreshStats() {
	windows := s.windows()
	history := s.coord.History()
	stats := domain.ComputeStats(windows, history, s.clock.Now(), s.cfg.StatsWindow)

	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

func (s *Session) refreshWallet(ctx context.Context) {
	info, err := s.gateway.Wallet(ctx)
	view := domain.WalletView{Configured: true, Address: info.Address, Balance: info.Balance}
	if err != nil {
		if apperror.GetCode(err) != apperror.CodeWalletNotConfigured {
			if ctx.Err() == nil {
				s.logger.Warn(ctx, "wallet refresh failed", "error", err)
			}
			return
		}
		view = domain.WalletView{}
	}

	s.mu.Lock()
	s.wallet = view
	s.mu.Unlock()
}

// Submit sends the configured test transaction and starts its race. On
// failure the error is reported once and no race is armed.
func (s *Session) Submit(ctx context.Context) (chain.TxID, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return "", apperror.New(apperror.CodeInvalidState, apperror.WithContext("submission already in progress"))
	}
	s.submitting = true
	s.lastErr = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	tx, err := s.gateway.SubmitTransaction(ctx, s.cfg.Recipient, s.cfg.Value)
	if err != nil {
		return "", s.failSubmit(ctx, err)
	}

	if _, err := s.coord.OnSubmit(ctx, tx); err != nil {
		return "", s.failSubmit(ctx, err)
	}
	return tx, nil
}

func (s *Session) failSubmit(ctx context.Context, cause error) error {
	err := apperror.Recode(cause, apperror.CodeTxSubmitFailed, apperror.WithSpan(ctx))
	s.logger.Error(ctx, "transaction submission failed", "error", cause)

	s.mu.Lock()
	s.lastErr = submitErrorText(cause)
	s.mu.Unlock()

	s.reporter.ReportError(err)
	return err
}

func submitErrorText(err error) string {
	if apperror.GetCode(err) == apperror.CodeWalletNotConfigured {
		return "no wallet configured: set CATCHER_PRIVATE_KEY"
	}
	return "submission failed: " + err.Error()
}

// MovePaddle shifts the paddle by dx cells.
func (s *Session) MovePaddle(dx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena.MovePaddle(dx)
}

// AwaitRace waits until the race of tx is terminal.
func (s *Session) AwaitRace(ctx context.Context, tx chain.TxID) (domain.Race, error) {
	return s.coord.AwaitRace(ctx, tx)
}

func (s *Session) windows() [chain.NumCadences][]domain.ObservedBlock {
	var out [chain.NumCadences][]domain.ObservedBlock
	for _, cad := range chain.Cadences {
		out[cad] = s.ingestors[cad].Window()
	}
	return out
}

// Snapshot returns the current game state.
func (s *Session) Snapshot() domain.GameState {
	// Coordinator first: its observers take s.mu while it holds its lock.
	race, hasRace := s.coord.Race()
	history := s.coord.History()

	st := domain.GameState{
		Race:    race,
		HasRace: hasRace,
		History: history,
		Windows: s.windows(),
		Now:     s.clock.Now(),
	}
	for _, cad := range chain.Cadences {
		st.Connections[cad] = s.gateway.Status(cad)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.Arena = s.arena.Snapshot()
	st.Score = st.Arena.Score
	st.Caught = st.Arena.Caught
	st.Stats = s.stats
	st.Wallet = s.wallet
	st.Submitting = s.submitting
	st.LastError = s.lastErr
	st.Events = append([]domain.RaceEvent(nil), s.events...)
	st.Frame = s.frame
	return st
}

// Stop ends the loops, the race channels and the reporter.
func (s *Session) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	err := s.coord.Close()
	if rerr := s.reporter.Stop(); err == nil {
		err = rerr
	}
	return err
}
