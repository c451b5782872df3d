package domain

import (
	"time"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// CadenceStats are the throughput and latency figures of one cadence.
type CadenceStats struct {
	// BlocksPerMinute and TxPerMinute are rates over the stats window, or
	// over the span the block window covers when that is shorter. A 50
	// block window holds only about 10s of flash blocks.
	BlocksPerMinute float64
	TxPerMinute     float64
	AvgLatency      time.Duration
	Confirmations   int
}

// Stats summarizes both cadences.
type Stats struct {
	Cadences  [chain.NumCadences]CadenceStats
	Speedup   float64 // standard avg latency / flash avg latency
	UpdatedAt time.Time
}

// Throughput returns per-minute block and transaction rates for blocks
// observed within window before now. When no observed block is older than
// window, the blocks do not reach back far enough to count over it, and the
// rate is measured across the interval between the oldest and newest block.
func Throughput(blocks []ObservedBlock, now time.Time, window time.Duration) (blocksPerMin, txPerMin float64) {
	if window <= 0 {
		return 0, 0
	}
	var (
		nBlocks, nTx   int
		truncated      = true
		oldest, newest time.Time
	)
	for _, b := range blocks {
		if now.Sub(b.ObservedAt) >= window {
			truncated = false
			continue
		}
		if nBlocks == 0 || b.ObservedAt.Before(oldest) {
			oldest = b.ObservedAt
		}
		if nBlocks == 0 || b.ObservedAt.After(newest) {
			newest = b.ObservedAt
		}
		nBlocks++
		nTx += len(b.Block.Transactions)
	}
	if nBlocks == 0 {
		return 0, 0
	}

	if span := newest.Sub(oldest); truncated && nBlocks > 1 && span > 0 {
		blocksPerMin = float64(nBlocks-1) * float64(time.Minute) / float64(span)
	} else {
		blocksPerMin = float64(nBlocks) * float64(time.Minute) / float64(window)
	}
	return blocksPerMin, blocksPerMin * float64(nTx) / float64(nBlocks)
}

// ComputeStats derives Stats from the block windows and finished races.
func ComputeStats(windows [chain.NumCadences][]ObservedBlock, races []Race, now time.Time, window time.Duration) Stats {
	var s Stats
	s.UpdatedAt = now

	for _, c := range chain.Cadences {
		cs := &s.Cadences[c]
		cs.BlocksPerMinute, cs.TxPerMinute = Throughput(windows[c], now, window)

		var total time.Duration
		for _, r := range races {
			if res := r.Results[c]; res.Confirmed {
				total += res.BestLatency
				cs.Confirmations++
			}
		}
		if cs.Confirmations > 0 {
			cs.AvgLatency = total / time.Duration(cs.Confirmations)
		}
	}

	if std, flash := s.Cadences[chain.Standard].AvgLatency, s.Cadences[chain.Flash].AvgLatency; std > 0 && flash > 0 {
		s.Speedup = float64(std) / float64(flash)
	}
	return s
}
