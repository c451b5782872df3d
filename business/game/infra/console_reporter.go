// Package infra contains presentation adapters for the game context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

// DefaultSummaryInterval is how often the console prints a block summary.
const DefaultSummaryInterval = 10 * time.Second

// ConsoleReporter implements Reporter for headless CLI output. It prints
// race transitions as they happen and a block summary at most once per
// interval.
type ConsoleReporter struct {
	out      io.Writer
	interval time.Duration

	mu          sync.Mutex
	raceID      string
	results     [chain.NumCadences]domain.CadenceResult
	finished    bool
	connections [chain.NumCadences]chain.ConnectionState
	lastSummary time.Time
}

// NewConsoleReporter creates a ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout, DefaultSummaryInterval)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to out.
func NewConsoleReporterTo(out io.Writer, interval time.Duration) *ConsoleReporter {
	return &ConsoleReporter{out: out, interval: interval}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Flashblocks Catcher Started")
	fmt.Fprintln(r.out, "===========================")
	return nil
}

// Update prints whatever changed since the previous snapshot.
func (r *ConsoleReporter) Update(st domain.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := st.Now.Format("15:04:05")

	for _, c := range chain.Cadences {
		state := st.Connections[c].State
		if state != "" && state != r.connections[c] {
			fmt.Fprintf(r.out, "[%s] %s: %s\n", ts, c, state)
			r.connections[c] = state
		}
	}

	if st.HasRace {
		r.reportRace(ts, st.Race)
	}

	if r.interval > 0 && st.Now.Sub(r.lastSummary) >= r.interval {
		r.lastSummary = st.Now
		r.printSummary(ts, st)
	}
}

func (r *ConsoleReporter) reportRace(ts string, race domain.Race) {
	if race.ID != r.raceID {
		r.raceID = race.ID
		r.results = [chain.NumCadences]domain.CadenceResult{}
		r.finished = false
		fmt.Fprintf(r.out, "[%s] race started for %s\n", ts, race.TxID)
	}

	for _, c := range chain.Cadences {
		res := race.Results[c]
		if res == r.results[c] {
			continue
		}
		switch {
		case res.Confirmed:
			fmt.Fprintf(r.out, "[%s] %s confirmed in %dms via %s\n", ts, c, res.BestLatency.Milliseconds(), res.Winner)
		case res.TimedOut:
			fmt.Fprintf(r.out, "[%s] %s timed out after %s\n", ts, c, race.Rules.Timeouts[c])
		}
		r.results[c] = res
	}

	if !r.finished && race.Terminal() {
		r.finished = true
		if sp := race.Speedup(); sp > 0 {
			fmt.Fprintf(r.out, "[%s] race finished for %s (flash %.1fx faster)\n", ts, race.TxID, sp)
		} else {
			fmt.Fprintf(r.out, "[%s] race finished for %s\n", ts, race.TxID)
		}
	}
}

func (r *ConsoleReporter) printSummary(ts string, st domain.GameState) {
	fmt.Fprintf(r.out, "[%s] blocks", ts)
	for _, c := range chain.Cadences {
		var last uint64
		if w := st.Windows[c]; len(w) > 0 && w[len(w)-1].Block != nil {
			last = w[len(w)-1].Block.Number
		}
		fmt.Fprintf(r.out, " %s #%d (%.1f/min)", c, last, st.Stats.Cadences[c].BlocksPerMinute)
	}
	fmt.Fprintln(r.out)
}

// ReportError prints a failure.
func (r *ConsoleReporter) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "error: %v\n", err)
}

// Stop prints the closing line.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Flashblocks Catcher Stopped")
	return nil
}

// FormatRaceSummary renders a finished race as a block of text.
func FormatRaceSummary(race domain.Race) string {
	s := "================================================================================\n"
	s += fmt.Sprintf("CONFIRMATION RACE %s\n", race.TxID)
	s += "--------------------------------------------------------------------------------\n"
	for _, c := range chain.Cadences {
		res := race.Results[c]
		switch {
		case res.Confirmed:
			s += fmt.Sprintf("  %-9s %8dms  via %s\n", c, res.BestLatency.Milliseconds(), res.Winner)
		case res.TimedOut:
			s += fmt.Sprintf("  %-9s timed out after %s\n", c, race.Rules.Timeouts[c])
		default:
			s += fmt.Sprintf("  %-9s pending\n", c)
		}
	}
	if sp := race.Speedup(); sp > 0 {
		s += fmt.Sprintf("  speedup   %.1fx\n", sp)
	}
	s += "================================================================================"
	return s
}
