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
	statusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	statusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	statusDown  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	statusMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// RenderConnections draws one line per cadence source.
func RenderConnections(conns [chain.NumCadences]chain.ConnectionStatus, now time.Time) string {
	lines := make([]string, 0, len(conns))
	for _, c := range chain.Cadences {
		st := conns[c]
		line := fmt.Sprintf("├─ %s: %s", c.String(), stateLabel(st))
		if st.LastBlock > 0 {
			line += statusMuted.Render(fmt.Sprintf(" #%d", st.LastBlock))
		}
		if !st.LastUpdate.IsZero() {
			line += statusMuted.Render(fmt.Sprintf(" %s ago", now.Sub(st.LastUpdate).Round(100*time.Millisecond)))
		}
		if st.Reconnects > 0 {
			line += statusMuted.Render(fmt.Sprintf(" (%d reconnects)", st.Reconnects))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func stateLabel(st chain.ConnectionStatus) string {
	switch st.State {
	case chain.StateConnected:
		return statusOK.Render("● connected")
	case chain.StatePolling:
		return statusWarn.Render("◐ polling")
	case chain.StateConnecting, chain.StateReconnecting:
		return statusWarn.Render("○ " + string(st.State))
	default:
		return statusDown.Render("○ disconnected")
	}
}

// RenderWallet draws the submitting account.
func RenderWallet(w domain.WalletView) string {
	if !w.Configured {
		return statusMuted.Render("wallet: not configured")
	}
	addr := w.Address.Hex()
	return fmt.Sprintf("wallet %s…%s  %s ETH", addr[:6], addr[len(addr)-4:], w.Balance.StringFixed(6))
}
