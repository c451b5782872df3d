package app

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chainApp "github.com/fd1az/flashblocks-catcher/business/chain/app"
	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
	"github.com/fd1az/flashblocks-catcher/internal/apm"
	"github.com/fd1az/flashblocks-catcher/internal/apperror"
	"github.com/fd1az/flashblocks-catcher/internal/logger"
)

// HistorySize is the number of past races kept for statistics.
const HistorySize = 20

// CoordinatorConfig holds the race channels and the late signal policy.
type CoordinatorConfig struct {
	Channels   []ChannelSpec
	AcceptLate bool
}

type coordinatorMetrics struct {
	started     metric.Int64Counter
	signals     metric.Int64Counter
	latency     metric.Float64Histogram
	queryErrors metric.Int64Counter
	timeouts    metric.Int64Counter
}

// raceRun is the live machinery of one race. It is only touched with the
// coordinator's lock held.
type raceRun struct {
	race domain.Race

	ctx        context.Context
	cancel     context.CancelFunc
	cadCtx     [chain.NumCadences]context.Context
	cadCancel  [chain.NumCadences]context.CancelFunc
	pushArmed  [chain.NumCadences]bool
	deadlines  [chain.NumCadences]*clock.Timer
	span       apm.Span
	done       chan struct{}
	finished   bool
	superseded bool
}

// Coordinator runs the confirmation race of the active transaction. Each
// cadence keeps the fastest confirmation from any of its channels.
type Coordinator struct {
	receipts chainApp.ReceiptQuerier
	cfg      CoordinatorConfig
	rules    domain.RaceRules
	logger   logger.LoggerInterface
	clock    clock.Clock
	tracer   apm.Tracer
	metrics  *coordinatorMetrics

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	run       *raceRun
	observers []RaceObserver
	history   []domain.Race
	closed    bool
}

// NewCoordinator creates a coordinator that queries receipts for its
// direct-query channels.
func NewCoordinator(receipts chainApp.ReceiptQuerier, cfg CoordinatorConfig, log logger.LoggerInterface, opts ...Option) (*Coordinator, error) {
	if err := validateChannels(cfg.Channels); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}
	o := buildOptions(opts)

	c := &Coordinator{
		receipts: receipts,
		cfg:      cfg,
		rules: domain.RaceRules{
			Timeouts:   raceTimeouts(cfg.Channels),
			AcceptLate: cfg.AcceptLate,
		},
		logger:  log,
		clock:   o.clock,
		tracer:  apm.NewTracer("game.coordinator"),
		metrics: &coordinatorMetrics{},
	}
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())

	meter := otel.Meter(meterName)
	var err error
	c.metrics.started, err = meter.Int64Counter(
		"race_started_total",
		metric.WithDescription("Confirmation races started"),
		metric.WithUnit("{race}"),
	)
	if err != nil {
		return nil, err
	}
	c.metrics.signals, err = meter.Int64Counter(
		"confirmation_signals_total",
		metric.WithDescription("Confirmation signals offered to a race, by outcome"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, err
	}
	c.metrics.latency, err = meter.Float64Histogram(
		"confirmation_latency_ms",
		metric.WithDescription("Winning confirmation latency"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(50, 100, 200, 300, 500, 1000, 2000, 3000, 5000, 10000, 30000, 60000),
	)
	if err != nil {
		return nil, err
	}
	c.metrics.queryErrors, err = meter.Int64Counter(
		"direct_query_errors_total",
		metric.WithDescription("Failed receipt queries, swallowed by the channel"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	c.metrics.timeouts, err = meter.Int64Counter(
		"race_timeouts_total",
		metric.WithDescription("Cadences that timed out without confirmation"),
		metric.WithUnit("{cadence}"),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Subscribe adds an observer. Observers are called in registration order.
func (c *Coordinator) Subscribe(o RaceObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// OnSubmit starts the race for tx, superseding any race in progress. The
// previous race's channels are disarmed before the new ones are armed.
func (c *Coordinator) OnSubmit(ctx context.Context, tx chain.TxID) (domain.Race, error) {
	if tx.IsZero() {
		return domain.Race{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("empty transaction id"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.Race{}, apperror.New(apperror.CodeInvalidState, apperror.WithContext("coordinator closed"))
	}

	if prev := c.run; prev != nil {
		c.stopRun(prev)
		prev.superseded = true
		c.archive(prev.race)
		prev.span.AddEvent("superseded")
		prev.span.End()
		c.notify(domain.RaceEvent{Kind: domain.RaceSuperseded, Race: prev.race})
		c.logger.Info(prev.ctx, "race superseded", "race_id", prev.race.ID, "tx", prev.race.TxID.Short())
	}

	race := domain.NewRace(uuid.NewString(), tx, c.clock.Now(), c.rules)

	// Channels outlive the caller's request but keep its trace.
	runCtx, span := c.tracer.StartDetached(c.baseCtx, ctx, "game.race",
		attribute.String("race.id", race.ID),
		attribute.String("tx.hash", tx.String()),
	)

	run := &raceRun{race: race, span: span, done: make(chan struct{})}
	run.ctx, run.cancel = context.WithCancel(runCtx)
	c.run = run

	for _, cad := range chain.Cadences {
		run.cadCtx[cad], run.cadCancel[cad] = context.WithCancel(run.ctx)
		run.deadlines[cad] = c.clock.AfterFunc(c.rules.Timeouts[cad], func() { c.expire(run, cad) })
	}

	for _, spec := range c.cfg.Channels {
		switch spec.Transport {
		case domain.ChannelPush:
			run.pushArmed[spec.Cadence] = true
		case domain.ChannelDirectQuery:
			ticker := c.clock.Ticker(spec.Period)
			c.wg.Add(1)
			go c.directQuery(run.cadCtx[spec.Cadence], race, spec, ticker)
		}
	}

	c.metrics.started.Add(run.ctx, 1)
	c.notify(domain.RaceEvent{Kind: domain.RaceStarted, Race: race})
	c.logger.Info(run.ctx, "race started", "race_id", race.ID, "tx", tx.Short(), "channels", len(c.cfg.Channels))

	return race, nil
}

// directQuery polls the receipt of race's tx until it confirms, the
// channel's timeout passes, or ctx is cancelled by confirmation of the
// cadence or supersession. Query errors count as not yet confirmed.
func (c *Coordinator) directQuery(ctx context.Context, race domain.Race, spec ChannelSpec, ticker *clock.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()

	deadline := race.SubmitTime.Add(spec.Timeout)
	attrs := metric.WithAttributes(attribute.String("cadence", spec.Cadence.String()))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !c.clock.Now().Before(deadline) {
			return
		}

		rcpt, err := c.receipts.QueryReceipt(ctx, race.TxID, spec.Cadence)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.metrics.queryErrors.Add(ctx, 1, attrs)
			if apperror.Transient(err) {
				c.logger.Debug(ctx, "receipt query failed", "cadence", spec.Cadence.String(), "tx", race.TxID.Short(), "error", err)
			} else {
				c.logger.Warn(ctx, "receipt query failed", "cadence", spec.Cadence.String(), "tx", race.TxID.Short(), "error", err)
			}
			continue
		}
		if rcpt.Pending {
			c.logger.Debug(ctx, "transaction seen in pending block", "cadence", spec.Cadence.String(), "tx", race.TxID.Short())
		}
		if !rcpt.Confirmed {
			continue
		}

		latency := c.clock.Now().Sub(race.SubmitTime)
		c.RecordConfirmation(race.TxID, spec.Cadence, latency, domain.ChannelDirectQuery)
		return
	}
}

// HandleBlockEvent feeds the push channels. A block carrying the active
// transaction confirms its cadence at the time the block was observed.
func (c *Coordinator) HandleBlockEvent(_ context.Context, ev domain.BlockEvent) {
	if !ev.ContainsUserTx || !ev.Cadence.Valid() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	run := c.run
	if run == nil || !run.pushArmed[ev.Cadence] {
		return
	}
	latency := max(ev.ObservedAt.Sub(run.race.SubmitTime), 0)
	c.record(run, ev.UserTx, ev.Cadence, latency, domain.ChannelPush)
}

// RecordConfirmation offers a confirmation of tx on cadence. Only a strictly
// faster signal for the active transaction changes the race and notifies
// observers.
func (c *Coordinator) RecordConfirmation(tx chain.TxID, cadence chain.Cadence, latency time.Duration, ch domain.Channel) domain.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	run := c.run
	if run == nil {
		c.countSignal(c.baseCtx, cadence, ch, domain.OutcomeStale)
		return domain.OutcomeStale
	}
	return c.record(run, tx, cadence, latency, ch)
}

func (c *Coordinator) record(run *raceRun, tx chain.TxID, cadence chain.Cadence, latency time.Duration, ch domain.Channel) domain.Outcome {
	outcome := run.race.Record(tx, cadence, latency, ch)
	c.countSignal(run.ctx, cadence, ch, outcome)

	if outcome != domain.OutcomeImproved {
		c.logger.Debug(run.ctx, "confirmation signal ignored",
			"cadence", cadence.String(), "channel", ch.String(), "latency", latency, "outcome", outcome.String())
		return outcome
	}

	c.metrics.latency.Record(run.ctx, float64(latency.Microseconds())/1000, metric.WithAttributes(
		attribute.String("cadence", cadence.String()),
		attribute.String("channel", ch.String()),
	))
	run.span.AddEvent("confirmation", trace.WithAttributes(
		attribute.String("cadence", cadence.String()),
		attribute.String("channel", ch.String()),
		attribute.Int64("latency_ms", latency.Milliseconds()),
	))
	c.logger.Info(run.ctx, "confirmation recorded",
		"race_id", run.race.ID, "cadence", cadence.String(), "channel", ch.String(), "latency", latency)

	// Polling stops once any channel confirms; push stays armed so a
	// faster observation can still lower the latency.
	run.cadCancel[cadence]()

	c.notify(domain.RaceEvent{
		Kind:    domain.ConfirmationUpdated,
		Race:    run.race,
		Cadence: cadence,
		Latency: latency,
		Channel: ch,
	})

	if run.finished {
		c.archive(run.race)
	} else if run.race.Terminal() {
		c.finish(run)
	}
	return outcome
}

func (c *Coordinator) countSignal(ctx context.Context, cadence chain.Cadence, ch domain.Channel, outcome domain.Outcome) {
	c.metrics.signals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cadence", cadence.String()),
		attribute.String("channel", ch.String()),
		attribute.String("outcome", outcome.String()),
	))
}

// expire fires at a cadence's deadline: its channels are disarmed and an
// unconfirmed cadence becomes TimedOut.
func (c *Coordinator) expire(run *raceRun, cadence chain.Cadence) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != run {
		return
	}

	run.pushArmed[cadence] = false
	run.cadCancel[cadence]()

	if run.race.MarkTimedOut(cadence) {
		c.metrics.timeouts.Add(run.ctx, 1, metric.WithAttributes(attribute.String("cadence", cadence.String())))
		c.logger.Warn(run.ctx, "no confirmation within timeout",
			"race_id", run.race.ID, "cadence", cadence.String(), "timeout", run.race.Rules.Timeouts[cadence])
		c.notify(domain.RaceEvent{Kind: domain.CadenceTimedOut, Race: run.race, Cadence: cadence})
	}

	if run.race.Terminal() {
		c.finish(run)
	}
}

func (c *Coordinator) finish(run *raceRun) {
	if run.finished {
		return
	}
	run.finished = true
	close(run.done)
	c.archive(run.race)

	run.span.SetAttributes(attribute.Float64("race.speedup", run.race.Speedup()))
	run.span.Ok("race finished")
	run.span.End()

	c.notify(domain.RaceEvent{Kind: domain.RaceFinished, Race: run.race})
	c.logger.Info(run.ctx, "race finished",
		"race_id", run.race.ID,
		"standard", describe(run.race.Results[chain.Standard]),
		"flash", describe(run.race.Results[chain.Flash]),
	)
}

// stopRun disarms every channel of run and releases its waiters.
func (c *Coordinator) stopRun(run *raceRun) {
	for _, cad := range chain.Cadences {
		run.pushArmed[cad] = false
		if t := run.deadlines[cad]; t != nil {
			t.Stop()
		}
	}
	run.cancel()
	if !run.finished {
		run.finished = true
		close(run.done)
	}
}

// archive stores race in the history, replacing an older copy of itself.
func (c *Coordinator) archive(race domain.Race) {
	if n := len(c.history); n > 0 && c.history[n-1].ID == race.ID {
		c.history[n-1] = race
		return
	}
	c.history = append(c.history, race)
	if len(c.history) > HistorySize {
		c.history = append(c.history[:0:0], c.history[len(c.history)-HistorySize:]...)
	}
}

func (c *Coordinator) notify(ev domain.RaceEvent) {
	for _, o := range c.observers {
		o.OnRaceEvent(ev)
	}
}

// Race returns a snapshot of the current race.
func (c *Coordinator) Race() (domain.Race, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return domain.Race{}, false
	}
	return c.run.race, true
}

// ActiveTx returns the tracked transaction, empty if none.
func (c *Coordinator) ActiveTx() chain.TxID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return ""
	}
	return c.run.race.TxID
}

// History returns past races, oldest first. A finished current race is
// included.
func (c *Coordinator) History() []domain.Race {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Race, len(c.history))
	copy(out, c.history)
	return out
}

// AwaitRace blocks until the race for tx is terminal and returns it. A race
// superseded while waiting is returned with a RACE_NOT_ACTIVE error.
func (c *Coordinator) AwaitRace(ctx context.Context, tx chain.TxID) (domain.Race, error) {
	c.mu.Lock()
	run := c.run
	if run == nil || !run.race.TxID.Equal(tx) {
		c.mu.Unlock()
		return domain.Race{}, apperror.New(apperror.CodeRaceNotActive, apperror.WithContext(tx.String()))
	}
	done := run.done
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return domain.Race{}, ctx.Err()
	case <-done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if run.superseded || (c.closed && !run.race.Terminal()) {
		return run.race, apperror.New(apperror.CodeRaceNotActive, apperror.WithContext(tx.String()))
	}
	return run.race, nil
}

// Close stops every channel and waits for the query goroutines to exit.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if run := c.run; run != nil {
		c.stopRun(run)
		c.archive(run.race)
		run.span.End()
	}
	c.baseCancel()
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func describe(r domain.CadenceResult) string {
	switch {
	case r.Confirmed:
		return r.BestLatency.String() + " via " + r.Winner.String()
	case r.TimedOut:
		return "timed out"
	default:
		return "pending"
	}
}
