// Package ui provides the Bubble Tea TUI for the block catcher game.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chain "github.com/fd1az/flashblocks-catcher/business/chain/domain"
	"github.com/fd1az/flashblocks-catcher/business/game/domain"
	"github.com/fd1az/flashblocks-catcher/pkg/ui/components"
)

// Controller is the game's inbound command surface.
type Controller interface {
	MovePaddle(dx int)
	Submit(ctx context.Context) (chain.TxID, error)
}

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome Phase = "welcome" // Initial welcome screen
	PhaseStartup Phase = "startup" // Loading/connecting
	PhaseGame    Phase = "game"    // Arena and race panels
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// submitTimeout bounds one submission from the TUI.
const submitTimeout = 30 * time.Second

// paddleStep is how far one key press moves the paddle.
const paddleStep = 3

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	phase        Phase
	welcomeStart time.Time

	ready      bool
	quitting   bool
	width      int
	height     int
	state      domain.GameState
	hasState   bool
	submitting bool
	errors     []ErrorEntry // last 3
	logs       []string

	startupSteps []*StartupStep
	stepIndex    map[string]*StartupStep
}

// New creates a new TUI model.
func New() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorFlash)

	steps := []*StartupStep{
		{Name: "Loading configuration", Status: "pending"},
		{Name: "Connecting to RPC endpoints", Status: "pending"},
		{Name: "Subscribing to block streams", Status: "pending"},
	}
	m := Model{
		keys:         DefaultKeyMap(),
		help:         help.New(),
		spinner:      sp,
		phase:        PhaseWelcome,
		welcomeStart: time.Now(),
		errors:       make([]ErrorEntry, 0, 3),
		logs:         make([]string, 0, 5),
		startupSteps: steps,
		stepIndex: map[string]*StartupStep{
			"config": steps[0],
			"rpc":    steps[1],
			"stream": steps[2],
		},
	}
	return m
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.spinner.Tick)
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

func submitCmd() tea.Cmd {
	return func() tea.Msg {
		c := controller()
		if c == nil {
			return SubmitResultMsg{Error: fmt.Errorf("game not started")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		tx, err := c.Submit(ctx)
		return SubmitResultMsg{Tx: tx, Error: err}
	}
}

func (m *Model) startModules() {
	m.phase = PhaseStartup
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.startModules()
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Left):
			if c := controller(); c != nil {
				c.MovePaddle(-paddleStep)
			}
		case key.Matches(msg, m.keys.Right):
			if c := controller(); c != nil {
				c.MovePaddle(paddleStep)
			}
		case key.Matches(msg, m.keys.Submit):
			if m.phase == PhaseGame && !m.submitting {
				m.submitting = true
				return m, submitCmd()
			}
		case key.Matches(msg, m.keys.Clear):
			m.errors = m.errors[:0]
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.startModules()
		}
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StateMsg:
		m.state = msg.State
		m.hasState = true
		if m.phase == PhaseStartup {
			m.phase = PhaseGame
		}

	case SubmitResultMsg:
		m.submitting = false
		if msg.Error != nil {
			m.errors = addError(m.errors, msg.Error.Error())
		} else {
			m.logs = addLog(m.logs, "info", "sent "+msg.Tx.Short())
		}

	case ErrorMsg:
		m.errors = addError(m.errors, msg.Error.Error())
		m.logs = addLog(m.logs, "error", msg.Error.Error())

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		if step, ok := m.stepIndex[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Status == "failed" && msg.Message != "" {
			m.errors = addError(m.errors, msg.Message)
		}
	}

	return m, nil
}

func addError(errs []ErrorEntry, msg string) []ErrorEntry {
	errs = append(errs, ErrorEntry{Message: msg, Timestamp: time.Now()})
	if len(errs) > 3 {
		errs = errs[len(errs)-3:]
	}
	return errs
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	logs = append(logs, fmt.Sprintf("[%s] %s: %s", time.Now().Format("15:04:05"), level, message))
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}
	if !m.ready || !m.hasState {
		return m.spinner.View() + " waiting for blocks..."
	}
	return m.renderGame()
}

func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	flashStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorFlash)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n")
	sb.WriteString(titleStyle.Render("   ▓▓ FLASHBLOCKS CATCHER ▓▓"))
	sb.WriteString("\n\n")
	sb.WriteString("   Catch falling blocks. Send a transaction.\n")
	sb.WriteString("   Watch ")
	sb.WriteString(flashStyle.Render("200ms flashblocks"))
	sb.WriteString(" race ")
	sb.WriteString(lipgloss.NewStyle().Foreground(ColorStandard).Render("2s blocks"))
	sb.WriteString(" to confirm it.\n\n")
	sb.WriteString(MutedValue.Render("   press any key to start" + dots))
	return sb.String()
}

func (m Model) renderStartupScreen() string {
	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(HeaderStyle.Render("Starting up"))
	sb.WriteString("\n\n")
	for _, step := range m.startupSteps {
		var icon string
		switch step.Status {
		case "connected", "done":
			icon = lipgloss.NewStyle().Foreground(ColorSecondary).Render("✓")
		case "failed":
			icon = ErrorStyle.Render("✗")
		case "connecting":
			icon = m.spinner.View()
		default:
			icon = MutedValue.Render("·")
		}
		fmt.Fprintf(&sb, "  %s %s\n", icon, step.Name)
	}
	for _, e := range m.errors {
		sb.WriteString("\n  " + ErrorStyle.Render(e.Message))
	}
	return sb.String()
}

func (m Model) renderGame() string {
	st := m.state

	title := TitleStyle.Render("FLASHBLOCKS CATCHER")
	legend := lipgloss.NewStyle().Foreground(ColorStandard).Render("█ standard") + "  " +
		lipgloss.NewStyle().Foreground(ColorFlash).Render("▓ flash") + "  " +
		lipgloss.NewStyle().Foreground(ColorSecondary).Render("█ your tx")
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", legend)

	arena := BoxStyle.Render(components.RenderArena(st.Arena))

	race := components.RenderRace(st.Race, st.HasRace, st.Now)
	if m.submitting || st.Submitting {
		race += "\n" + m.spinner.View() + " submitting..."
	}
	side := lipgloss.JoinVertical(lipgloss.Left,
		BoxStyle.Width(48).Render(race),
		BoxStyle.Width(48).Render(components.RenderStats(st.Stats, st.Score, st.Caught)),
		BoxStyle.Width(48).Render(
			components.RenderConnections(st.Connections, st.Now)+"\n"+components.RenderWallet(st.Wallet),
		),
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, arena, side)
	raceLog := BoxStyle.Render(components.RenderRaceLog(st.Events))

	parts := []string{header, body, raceLog}
	if st.LastError != "" {
		parts = append(parts, ErrorStyle.Render(st.LastError))
	}
	for _, e := range m.errors {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("[%s] %s", e.Timestamp.Format("15:04:05"), e.Message)))
	}
	if len(m.logs) > 0 {
		parts = append(parts, MutedValue.Render(strings.Join(m.logs, "\n")))
	}
	parts = append(parts, HelpStyle.Render(m.help.View(m.keys)))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

var (
	controlsMu sync.RWMutex
	controls   Controller
)

// SetController installs the receiver of paddle and submit commands. Set by
// main.go once the game session exists.
func SetController(c Controller) {
	controlsMu.Lock()
	defer controlsMu.Unlock()
	controls = c
}

func controller() Controller {
	controlsMu.RLock()
	defer controlsMu.RUnlock()
	return controls
}

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// NewProgram creates the Bubble Tea program and publishes it in Program.
func NewProgram() *tea.Program {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	return Program
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
