package infra

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/flashblocks-catcher/business/game/domain"
	"github.com/fd1az/flashblocks-catcher/pkg/ui"
)

// TUIReporter implements Reporter for the Bubble Tea TUI. The program itself
// is owned by main; the reporter only forwards messages to it.
type TUIReporter struct {
	send    func(tea.Msg)
	stopped atomic.Bool
}

// NewTUIReporter creates a TUIReporter that sends to the running program.
func NewTUIReporter() *TUIReporter {
	return NewTUIReporterWith(ui.Send)
}

// NewTUIReporterWith creates a TUIReporter with a custom message sink.
func NewTUIReporterWith(send func(tea.Msg)) *TUIReporter {
	return &TUIReporter{send: send}
}

// Start marks the stream step as done on the startup screen.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.StartupMsg{Step: "stream", Status: "connected"})
	return nil
}

// Update forwards a snapshot to the model.
func (r *TUIReporter) Update(state domain.GameState) {
	if r.stopped.Load() {
		return
	}
	r.send(ui.StateMsg{State: state})
}

// ReportError forwards a failure to the model's error panel.
func (r *TUIReporter) ReportError(err error) {
	if r.stopped.Load() || err == nil {
		return
	}
	r.send(ui.ErrorMsg{Error: err})
}

// Stop drops every later message.
func (r *TUIReporter) Stop() error {
	r.stopped.Store(true)
	return nil
}
