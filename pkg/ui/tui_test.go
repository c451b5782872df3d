package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

type fakeController struct {
	moves   []int
	submits int
	err     error
}

func (f *fakeController) MovePaddle(dx int) { f.moves = append(f.moves, dx) }

func (f *fakeController) Submit(context.Context) (chain.TxID, error) {
	f.submits++
	if f.err != nil {
		return "", f.err
	}
	return "0xabc", nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func TestModel_Phases(t *testing.T) {
	started := make(chan struct{}, 1)
	OnStartModules = func() { started <- struct{}{} }
	t.Cleanup(func() { OnStartModules = nil })

	m := New()
	m, _ = update(t, m, runes("x"))
	if m.phase != PhaseStartup {
		t.Fatalf("phase = %s, want startup", m.phase)
	}
	<-started

	m, _ = update(t, m, StartupMsg{Step: "rpc", Status: "failed", Message: "dial failed"})
	if m.stepIndex["rpc"].Status != "failed" || len(m.errors) != 1 {
		t.Errorf("rpc step = %s, errors = %d", m.stepIndex["rpc"].Status, len(m.errors))
	}

	m, _ = update(t, m, StateMsg{State: domain.GameState{Score: 10}})
	if m.phase != PhaseGame || m.state.Score != 10 {
		t.Errorf("phase = %s, score = %d", m.phase, m.state.Score)
	}
}

func TestModel_Controls(t *testing.T) {
	ctrl := &fakeController{}
	SetController(ctrl)
	t.Cleanup(func() { SetController(nil) })

	m := New()
	m.phase = PhaseGame

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = update(t, m, runes("d"))
	if len(ctrl.moves) != 2 || ctrl.moves[0] != -paddleStep || ctrl.moves[1] != paddleStep {
		t.Errorf("moves = %v", ctrl.moves)
	}

	m, cmd := update(t, m, runes("t"))
	if cmd == nil || !m.submitting {
		t.Fatal("submit key did not start a submission")
	}
	// A second press while in flight is ignored.
	if _, again := update(t, m, runes("t")); again != nil {
		t.Error("second submission started while the first is in flight")
	}

	res, ok := cmd().(SubmitResultMsg)
	if !ok || res.Error != nil || res.Tx != "0xabc" {
		t.Fatalf("submit result = %#v", res)
	}
	m, _ = update(t, m, res)
	if m.submitting {
		t.Error("still submitting after the result")
	}
	if ctrl.submits != 1 {
		t.Errorf("submits = %d, want 1", ctrl.submits)
	}
}

func TestModel_ErrorsCapped(t *testing.T) {
	m := New()
	m.phase = PhaseGame
	for i := 0; i < 5; i++ {
		m, _ = update(t, m, ErrorMsg{Error: errors.New("boom")})
	}
	if len(m.errors) != 3 {
		t.Errorf("errors = %d, want 3", len(m.errors))
	}
	m, _ = update(t, m, runes("e"))
	if len(m.errors) != 0 {
		t.Errorf("errors after clear = %d, want 0", len(m.errors))
	}
}

func TestModel_Quit(t *testing.T) {
	m := New()
	m, cmd := update(t, m, runes("q"))
	if !m.quitting || cmd == nil {
		t.Fatal("q did not quit")
	}
	if m.View() != "Goodbye!\n" {
		t.Errorf("View() = %q", m.View())
	}
}
