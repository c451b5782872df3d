package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

var (
	raceLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	raceWin     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	raceTimeout = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	racePending = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

// RenderRace draws the confirmation race of the tracked transaction.
func RenderRace(race domain.Race, hasRace bool, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(raceLabel.Render("CONFIRMATION RACE"))
	sb.WriteByte('\n')

	if !hasRace {
		sb.WriteString(raceLabel.Render("press t to send a test transaction"))
		return sb.String()
	}

	fmt.Fprintf(&sb, "tx %s\n", race.TxID.Short())
	for _, c := range chain.Cadences {
		fmt.Fprintf(&sb, "%-9s %s\n", c.String(), cadenceResult(race, c, now))
	}

	if s := race.Speedup(); s > 0 {
		fmt.Fprintf(&sb, "flash was %s faster", raceWin.Render(fmt.Sprintf("%.1fx", s)))
	} else {
		sb.WriteString(raceLabel.Render("waiting for both cadences"))
	}
	return sb.String()
}

func cadenceResult(race domain.Race, c chain.Cadence, now time.Time) string {
	r := race.Results[c]
	switch {
	case r.Confirmed:
		return raceWin.Render(fmt.Sprintf("✓ %s", FormatLatency(r.BestLatency))) +
			raceLabel.Render(" via "+r.Winner.String())
	case r.TimedOut:
		return raceTimeout.Render(fmt.Sprintf("✗ no confirmation in %s", race.Rules.Timeouts[c]))
	default:
		elapsed := max(now.Sub(race.SubmitTime), 0)
		return racePending.Render(fmt.Sprintf("… %s", FormatLatency(elapsed)))
	}
}

// RenderRaceLog lists recent race events, newest last.
func RenderRaceLog(events []domain.RaceEvent) string {
	if len(events) == 0 {
		return raceLabel.Render("no race events yet")
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, describeEvent(ev))
	}
	return strings.Join(lines, "\n")
}

func describeEvent(ev domain.RaceEvent) string {
	tx := ev.Race.TxID.Short()
	switch ev.Kind {
	case domain.RaceStarted:
		return fmt.Sprintf("▶ race started for %s", tx)
	case domain.ConfirmationUpdated:
		return fmt.Sprintf("✓ %s confirmed %s in %s via %s", ev.Cadence, tx, FormatLatency(ev.Latency), ev.Channel)
	case domain.CadenceTimedOut:
		return fmt.Sprintf("✗ %s timed out for %s", ev.Cadence, tx)
	case domain.RaceFinished:
		return fmt.Sprintf("■ race for %s finished", tx)
	case domain.RaceSuperseded:
		return fmt.Sprintf("↺ race for %s superseded", tx)
	default:
		return ev.Kind.String()
	}
}

// FormatLatency renders ms below 10s and seconds above.
func FormatLatency(d time.Duration) string {
	if d < 10*time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
