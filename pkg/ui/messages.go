// Package ui provides the Bubble Tea TUI for the block catcher game.
package ui

import (
	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
)

// Message types for TUI updates

// StateMsg carries a fresh game snapshot.
type StateMsg struct {
	State domain.GameState
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// SubmitResultMsg reports the outcome of a transaction submission.
type SubmitResultMsg struct {
	Tx    chain.TxID
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}
