// Package components provides reusable TUI components.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

type cell uint8

const (
	cellEmpty cell = iota
	cellStandard
	cellFlash
	cellUserTx
	cellPaddle
)

var cellStyles = map[cell]lipgloss.Style{
	cellEmpty:    lipgloss.NewStyle(),
	cellStandard: lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
	cellFlash:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
	cellUserTx:   lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
	cellPaddle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true),
}

var cellGlyphs = map[cell]string{
	cellEmpty:    " ",
	cellStandard: "█",
	cellFlash:    "▓",
	cellUserTx:   "█",
	cellPaddle:   "▀",
}

// RenderArena draws the playfield: falling blocks and the paddle on the
// bottom row.
func RenderArena(a domain.ArenaSnapshot) string {
	if a.Width <= 0 || a.Height <= 0 {
		return ""
	}

	grid := make([][]cell, a.Height)
	for i := range grid {
		grid[i] = make([]cell, a.Width)
	}

	for _, b := range a.Blocks {
		row := int(b.Y)
		if b.Y < 0 || row >= a.Height-1 {
			continue
		}
		kind := cellStandard
		if b.Cadence == chain.Flash {
			kind = cellFlash
		}
		if b.UserTx {
			kind = cellUserTx
		}
		from := max(int(b.X), 0)
		to := min(int(b.X+b.Width+0.5), a.Width)
		for x := from; x < to; x++ {
			grid[row][x] = kind
		}
	}

	paddleRow := grid[a.Height-1]
	for x := max(a.PaddleX, 0); x < min(a.PaddleX+a.PaddleWidth, a.Width); x++ {
		paddleRow[x] = cellPaddle
	}

	var sb strings.Builder
	for i, row := range grid {
		if i > 0 {
			sb.WriteByte('\n')
		}
		renderRow(&sb, row)
	}
	return sb.String()
}

// renderRow styles runs of equal cells together.
func renderRow(sb *strings.Builder, row []cell) {
	start := 0
	for i := 1; i <= len(row); i++ {
		if i < len(row) && row[i] == row[start] {
			continue
		}
		run := strings.Repeat(cellGlyphs[row[start]], i-start)
		if row[start] == cellEmpty {
			sb.WriteString(run)
		} else {
			sb.WriteString(cellStyles[row[start]].Render(run))
		}
		start = i
	}
}
