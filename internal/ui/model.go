// ABOUTME: Bubbletea model for the sink status TUI
// ABOUTME: Shows device, stream format, buffer fill and underruns
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/resonate-sink/pkg/sink"
)

const boxWidth = 58

var (
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(boxWidth)
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// Model represents the TUI state
type Model struct {
	controls *Controls

	// Output
	backend    string
	device     string
	state      string
	format     string
	resampling bool
	session    string

	// Producer
	source string

	// Buffer
	queued          int
	capacity        int
	pushed          uint64
	pulled          uint64
	underruns       uint64
	underrunSamples uint64
	abandoned       uint64

	lastError string

	// Debug
	showDebug  bool
	goroutines int
	memAlloc   uint64
	memSys     uint64

	width  int
	height int
}

// StatusMsg updates TUI state; zero fields are left unchanged
type StatusMsg struct {
	Backend    string
	Device     string
	State      string
	Format     string
	Resampling *bool
	Session    *string
	Source     string
	Buffer     *BufferStats
	Error      string
	Goroutines int
	MemAlloc   uint64
	MemSys     uint64
}

// BufferStats mirrors the transfer channel counters
type BufferStats struct {
	Queued          int
	Capacity        int
	Pushed          uint64
	Pulled          uint64
	Underruns       uint64
	UnderrunSamples uint64
	Abandoned       uint64
}

// StatusFromSink converts a sink snapshot into a status update
func StatusFromSink(st sink.Stats) StatusMsg {
	resampling := st.Resampling
	session := st.SessionID

	msg := StatusMsg{
		Device:     st.Device,
		State:      st.State.String(),
		Resampling: &resampling,
		Session:    &session,
		Buffer: &BufferStats{
			Queued:          st.Channel.Queued,
			Capacity:        st.Channel.Capacity,
			Pushed:          st.Channel.Pushed,
			Pulled:          st.Channel.Pulled,
			Underruns:       st.Channel.Underruns,
			UnderrunSamples: st.Channel.UnderrunSamples,
			Abandoned:       st.Channel.Abandoned,
		},
	}
	if st.Format.SampleRate > 0 {
		msg.Format = st.Format.String()
	}
	return msg
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var lines []string
	lines = append(lines, m.renderHeader()...)
	lines = append(lines, "")
	lines = append(lines, m.renderStream()...)
	lines = append(lines, "")
	lines = append(lines, m.renderBuffer()...)

	if m.showDebug {
		lines = append(lines, "")
		lines = append(lines, m.renderDebug()...)
	}

	lines = append(lines, "", labelStyle.Render("r:Restart  d:Debug  q:Quit"))
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m Model) renderHeader() []string {
	state := m.state
	switch state {
	case "playing":
		state = okStyle.Render(state)
	case "":
		state = "closed"
	}

	device := m.device
	if device == "" {
		device = "(none)"
	}

	return []string{
		titleStyle.Render("Resonate Sink"),
		fmt.Sprintf("%s %s via %s", labelStyle.Render("Device:"), truncate(device, 32), m.backend),
		fmt.Sprintf("%s  %s", labelStyle.Render("State:"), state),
	}
}

func (m Model) renderStream() []string {
	if m.format == "" {
		return []string{"No stream"}
	}

	rate := "44100Hz passthrough"
	if m.resampling {
		rate = "resampling from 44100Hz"
	}

	lines := []string{
		fmt.Sprintf("%s %s (%s)", labelStyle.Render("Format:"), m.format, rate),
	}
	if m.source != "" {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Source:"), truncate(m.source, 44)))
	}
	return lines
}

func (m Model) renderBuffer() []string {
	fill := fmt.Sprintf("%s [%s] %d/%d",
		labelStyle.Render("Buffer:"), renderBar(m.queued, m.capacity, 20), m.queued, m.capacity)

	underruns := fmt.Sprintf("%s %d (%d samples)", labelStyle.Render("Underruns:"), m.underruns, m.underrunSamples)
	if m.underruns > 0 {
		underruns = warnStyle.Render(underruns)
	}

	lines := []string{
		fill,
		fmt.Sprintf("%s %d  %s %d", labelStyle.Render("Pushed:"), m.pushed, labelStyle.Render("Pulled:"), m.pulled),
		underruns,
	}
	if m.lastError != "" {
		lines = append(lines, warnStyle.Render("Error: "+truncate(m.lastError, 48)))
	}
	return lines
}

func (m Model) renderDebug() []string {
	session := m.session
	if session == "" {
		session = "-"
	}
	return []string{
		titleStyle.Render("Debug"),
		fmt.Sprintf("Session:    %s", session),
		fmt.Sprintf("Abandoned:  %d samples", m.abandoned),
		fmt.Sprintf("Goroutines: %d", m.goroutines),
		fmt.Sprintf("Memory:     %.1f MB alloc / %.1f MB sys", float64(m.memAlloc)/(1<<20), float64(m.memSys)/(1<<20)),
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "r":
		m.controls.restart()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Device != "" {
		m.device = msg.Device
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	if msg.Resampling != nil {
		m.resampling = *msg.Resampling
	}
	if msg.Session != nil {
		m.session = *msg.Session
	}
	if msg.Source != "" {
		m.source = msg.Source
	}
	if b := msg.Buffer; b != nil {
		m.queued = b.Queued
		m.capacity = b.Capacity
		m.pushed = b.Pushed
		m.pulled = b.Pulled
		m.underruns = b.Underruns
		m.underrunSamples = b.UnderrunSamples
		m.abandoned = b.Abandoned
	}
	if msg.Error != "" {
		m.lastError = msg.Error
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
		m.memSys = msg.MemSys
	}
}

func renderBar(value, max, width int) string {
	filled := 0
	if max > 0 {
		filled = min(value*width/max, width)
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
