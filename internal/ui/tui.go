// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and its key-driven control channels
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries user requests from the TUI to the main loop
type Controls struct {
	Quit    chan struct{}
	Restart chan struct{}

	quitOnce sync.Once
}

// NewControls creates the control channels
func NewControls() *Controls {
	return &Controls{
		Quit:    make(chan struct{}),
		Restart: make(chan struct{}, 1),
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	c.quitOnce.Do(func() { close(c.Quit) })
}

// restart drops the request if one is already pending
func (c *Controls) restart() {
	if c == nil {
		return
	}
	select {
	case c.Restart <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Controls) Model {
	return Model{
		state:    "closed",
		controls: ctrl,
	}
}

// Run creates the TUI program; the caller starts it
func Run(ctrl *Controls) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}
