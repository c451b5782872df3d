// Package domain holds the game's core types: the confirmation race, block
// dedup and windows, arena physics and statistics.
package domain

import (
	"time"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
)

// Channel is the transport by which a confirmation was detected.
type Channel uint8

const (
	ChannelNone Channel = iota
	ChannelPush
	ChannelDirectQuery
)

func (c Channel) String() string {
	switch c {
	case ChannelPush:
		return "push"
	case ChannelDirectQuery:
		return "direct-query"
	default:
		return "none"
	}
}

// Outcome is the result of offering a confirmation signal to a race.
type Outcome uint8

const (
	// OutcomeImproved: new running minimum, state changed.
	OutcomeImproved Outcome = iota
	// OutcomeNotFaster: the cadence already holds an equal or lower latency.
	OutcomeNotFaster
	// OutcomeExpired: the signal arrived past the cadence timeout and late signals are rejected.
	OutcomeExpired
	// OutcomeStale: the signal belongs to a superseded transaction.
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImproved:
		return "improved"
	case OutcomeNotFaster:
		return "not_faster"
	case OutcomeExpired:
		return "expired"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// CadenceResult is the race state of one cadence.
type CadenceResult struct {
	Confirmed   bool
	TimedOut    bool
	BestLatency time.Duration // valid when Confirmed
	Winner      Channel
}

// Settled reports whether the cadence reached a terminal state.
func (r CadenceResult) Settled() bool {
	return r.Confirmed || r.TimedOut
}

// RaceRules are the limits a race enforces on incoming signals.
type RaceRules struct {
	Timeouts   [chain.NumCadences]time.Duration
	AcceptLate bool
}

// Race is one transaction's confirmation race. It is a value: copies are
// independent snapshots.
type Race struct {
	ID         string
	TxID       chain.TxID
	SubmitTime time.Time
	Rules      RaceRules
	Results    [chain.NumCadences]CadenceResult
}

// NewRace starts a race with every cadence cleared.
func NewRace(id string, tx chain.TxID, submitTime time.Time, rules RaceRules) Race {
	return Race{
		ID:         id,
		TxID:       tx,
		SubmitTime: submitTime,
		Rules:      rules,
	}
}

// Record offers a confirmation with the given latency. Only a strictly
// faster signal for the race's own transaction mutates the race; once
// confirmed, a cadence never reverts. Unless late signals are accepted, a
// timed out cadence stays timed out.
func (r *Race) Record(tx chain.TxID, cadence chain.Cadence, latency time.Duration, ch Channel) Outcome {
	if !tx.Equal(r.TxID) || !cadence.Valid() {
		return OutcomeStale
	}

	res := &r.Results[cadence]
	if !r.Rules.AcceptLate {
		if res.TimedOut {
			return OutcomeExpired
		}
		if limit := r.Rules.Timeouts[cadence]; limit > 0 && latency > limit {
			return OutcomeExpired
		}
	}

	if res.Confirmed && latency >= res.BestLatency {
		return OutcomeNotFaster
	}

	res.Confirmed = true
	res.TimedOut = false
	res.BestLatency = latency
	res.Winner = ch
	return OutcomeImproved
}

// MarkTimedOut moves an unconfirmed cadence to TimedOut. It reports
// whether anything changed.
func (r *Race) MarkTimedOut(cadence chain.Cadence) bool {
	res := &r.Results[cadence]
	if res.Settled() {
		return false
	}
	res.TimedOut = true
	return true
}

// Terminal reports whether every cadence is confirmed or timed out.
func (r *Race) Terminal() bool {
	for _, res := range r.Results {
		if !res.Settled() {
			return false
		}
	}
	return true
}

// Speedup is standard latency over flash latency, zero unless both confirmed.
func (r *Race) Speedup() float64 {
	std, flash := r.Results[chain.Standard], r.Results[chain.Flash]
	if !std.Confirmed || !flash.Confirmed || flash.BestLatency <= 0 {
		return 0
	}
	return float64(std.BestLatency) / float64(flash.BestLatency)
}

// RaceEventKind classifies coordinator notifications.
type RaceEventKind uint8

const (
	RaceStarted RaceEventKind = iota
	ConfirmationUpdated
	CadenceTimedOut
	RaceFinished
	RaceSuperseded
)

func (k RaceEventKind) String() string {
	switch k {
	case RaceStarted:
		return "race_started"
	case ConfirmationUpdated:
		return "confirmation_updated"
	case CadenceTimedOut:
		return "cadence_timed_out"
	case RaceFinished:
		return "race_finished"
	case RaceSuperseded:
		return "race_superseded"
	default:
		return "unknown"
	}
}

// RaceEvent is a coordinator notification. Race is a snapshot taken when
// the event fired; Cadence, Latency and Channel are set for confirmation
// and timeout events.
type RaceEvent struct {
	Kind    RaceEventKind
	Race    Race
	Cadence chain.Cadence
	Latency time.Duration
	Channel Channel
}
