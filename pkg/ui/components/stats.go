package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

// RenderStats draws throughput and average latency per cadence.
func RenderStats(s domain.Stats, score int, caught [chain.NumCadences]int) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)

	var sb strings.Builder
	sb.WriteString(style.Render("STATS"))
	fmt.Fprintf(&sb, "\nscore %s\n", valueStyle.Render(fmt.Sprintf("%d", score)))
	fmt.Fprintf(&sb, "%-9s %8s %8s %8s %6s\n", "", "blk/min", "tx/min", "avg", "caught")
	for _, c := range chain.Cadences {
		cs := s.Cadences[c]
		avg := "-"
		if cs.Confirmations > 0 {
			avg = FormatLatency(cs.AvgLatency)
		}
		fmt.Fprintf(&sb, "%-9s %8.1f %8.1f %8s %6d\n", c.String(), cs.BlocksPerMinute, cs.TxPerMinute, avg, caught[c])
	}
	if s.Speedup > 0 {
		fmt.Fprintf(&sb, "avg speed-up %s", valueStyle.Render(fmt.Sprintf("%.1fx", s.Speedup)))
	} else {
		sb.WriteString(style.Render("avg speed-up -"))
	}
	return sb.String()
}
