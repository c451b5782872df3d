package app

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

const meterName = "github.com/fd1az/flashblocks-catcher/business/game/app"

// ActiveTxFunc returns the currently tracked transaction, empty if none.
type ActiveTxFunc func() chain.TxID

type ingestorMetrics struct {
	ingested     metric.Int64Counter
	deduplicated metric.Int64Counter
}

// Ingestor keeps the deduplicated, bounded view of one cadence's blocks.
type Ingestor struct {
	cadence  chain.Cadence
	activeTx ActiveTxFunc
	clock    clock.Clock

	mu     sync.Mutex
	dedup  *domain.DedupSet
	window *domain.BlockWindow

	attrs   metric.MeasurementOption
	metrics *ingestorMetrics
}

// NewIngestor creates an ingestor for cadence holding windowSize blocks.
func NewIngestor(cadence chain.Cadence, windowSize int, activeTx ActiveTxFunc, opts ...Option) (*Ingestor, error) {
	o := buildOptions(opts)
	if activeTx == nil {
		activeTx = func() chain.TxID { return "" }
	}

	i := &Ingestor{
		cadence:  cadence,
		activeTx: activeTx,
		clock:    o.clock,
		dedup:    domain.NewDedupSet(),
		window:   domain.NewBlockWindow(windowSize),
		attrs:    metric.WithAttributes(attribute.String("cadence", cadence.String())),
		metrics:  &ingestorMetrics{},
	}

	meter := otel.Meter(meterName)
	var err error
	i.metrics.ingested, err = meter.Int64Counter(
		"blocks_ingested_total",
		metric.WithDescription("New blocks accepted by ingestion"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, err
	}
	i.metrics.deduplicated, err = meter.Int64Counter(
		"blocks_deduplicated_total",
		metric.WithDescription("Blocks dropped as already seen"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, err
	}

	return i, nil
}

// Cadence returns the cadence this ingestor serves.
func (i *Ingestor) Cadence() chain.Cadence {
	return i.cadence
}

// Ingest records b and returns its event, or false if b was already seen.
func (i *Ingestor) Ingest(b *chain.Block) (domain.BlockEvent, bool) {
	if b == nil {
		return domain.BlockEvent{}, false
	}
	// Read before locking: the tracked tx belongs to the coordinator.
	active := i.activeTx()
	now := i.clock.Now()

	i.mu.Lock()
	if !i.dedup.Add(b.Identity()) {
		i.mu.Unlock()
		i.metrics.deduplicated.Add(context.Background(), 1, i.attrs)
		return domain.BlockEvent{}, false
	}
	contains := b.ContainsTx(active)
	i.window.Push(domain.ObservedBlock{Block: b, ObservedAt: now, ContainsUserTx: contains})
	i.mu.Unlock()

	i.metrics.ingested.Add(context.Background(), 1, i.attrs)

	ev := domain.BlockEvent{
		Cadence:        i.cadence,
		Block:          b,
		ObservedAt:     now,
		ContainsUserTx: contains,
	}
	if contains {
		ev.UserTx = active
	}
	return ev, true
}

// Reset forgets every seen identity. The window is kept for display.
func (i *Ingestor) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dedup.Reset()
}

// Window returns the recent blocks, oldest first.
func (i *Ingestor) Window() []domain.ObservedBlock {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.window.Snapshot()
}

// Seen returns the number of identities in the dedup set.
func (i *Ingestor) Seen() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dedup.Len()
}
