// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling and rendering
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/transfer"
	"github.com/Resonate-Protocol/resonate-sink/pkg/sink"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // Controls are optional for testing

	if model.state != "closed" {
		t.Errorf("expected initial state closed, got %q", model.state)
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestStatusMsgDevice(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Backend: "malgo", Device: "Speakers", State: "idle"})

	if model.backend != "malgo" || model.device != "Speakers" || model.state != "idle" {
		t.Errorf("unexpected model %+v", model)
	}
}

func TestStatusMsgPartialUpdate(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Device: "Speakers", Format: "2ch, F32, 48000Hz"})
	model.applyStatus(StatusMsg{State: "playing"})

	if model.device != "Speakers" {
		t.Error("previous device was lost")
	}
	if model.format != "2ch, F32, 48000Hz" {
		t.Error("previous format was lost")
	}
	if model.state != "playing" {
		t.Error("new state not applied")
	}
}

func TestStatusMsgBufferZeroes(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Buffer: &BufferStats{Queued: 100, Capacity: 200, Underruns: 3}})
	model.applyStatus(StatusMsg{Buffer: &BufferStats{Capacity: 200}})

	// a buffer snapshot replaces every counter, zeroes included
	if model.queued != 0 || model.underruns != 0 {
		t.Errorf("expected counters reset, got queued=%d underruns=%d", model.queued, model.underruns)
	}
}

func TestStatusMsgSessionCleared(t *testing.T) {
	model := NewModel(nil)

	id := "abc"
	model.applyStatus(StatusMsg{Session: &id})
	empty := ""
	model.applyStatus(StatusMsg{Session: &empty})

	if model.session != "" {
		t.Errorf("expected session cleared, got %q", model.session)
	}
}

func TestStatusFromSink(t *testing.T) {
	msg := StatusFromSink(sink.Stats{
		State:      sink.StatePlaying,
		SessionID:  "s-1",
		Device:     "Speakers",
		Format:     audio.Format{SampleRate: 48000, Channels: 2, SampleFormat: audio.FormatF32},
		Resampling: true,
		Channel:    transfer.Stats{Capacity: 9600, Queued: 4800, Underruns: 2},
	})

	if msg.State != "playing" {
		t.Errorf("expected playing, got %q", msg.State)
	}
	if msg.Format != "2ch, F32, 48000Hz" {
		t.Errorf("unexpected format %q", msg.Format)
	}
	if msg.Resampling == nil || !*msg.Resampling {
		t.Error("expected resampling flag")
	}
	if msg.Buffer == nil || msg.Buffer.Queued != 4800 || msg.Buffer.Underruns != 2 {
		t.Errorf("unexpected buffer %+v", msg.Buffer)
	}

	idle := StatusFromSink(sink.Stats{State: sink.StateIdle})
	if idle.Format != "" {
		t.Errorf("expected no format while idle, got %q", idle.Format)
	}
}

func TestViewShowsSinkStatus(t *testing.T) {
	model := NewModel(nil)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model = updated.(Model)

	resampling := true
	model.applyStatus(StatusMsg{
		Backend:    "null",
		Device:     "bench",
		State:      "playing",
		Format:     "2ch, S16, 48000Hz",
		Resampling: &resampling,
		Buffer:     &BufferStats{Queued: 10, Capacity: 20, Underruns: 1, UnderrunSamples: 64},
	})

	view := model.View()
	for _, want := range []string{"bench", "null", "playing", "48000Hz", "resampling", "10/20", "64 samples"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestViewBeforeResize(t *testing.T) {
	if got := NewModel(nil).View(); got != "Loading..." {
		t.Errorf("expected loading placeholder, got %q", got)
	}
}

func TestQuitKeySignalsControls(t *testing.T) {
	ctrl := NewControls()
	model := NewModel(ctrl)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("expected quit command")
	}

	select {
	case <-ctrl.Quit:
	default:
		t.Error("expected quit channel closed")
	}

	// second quit must not panic
	model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
}

func TestRestartKeyIsCoalesced(t *testing.T) {
	ctrl := NewControls()
	model := NewModel(ctrl)

	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
	model.Update(key)
	model.Update(key)

	if len(ctrl.Restart) != 1 {
		t.Errorf("expected one pending restart, got %d", len(ctrl.Restart))
	}
}

func TestDebugToggle(t *testing.T) {
	model := NewModel(nil)
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})

	if !updated.(Model).showDebug {
		t.Error("expected debug view enabled")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max int
		expected   string
	}{
		{0, 10, "░░░░"},
		{5, 10, "██░░"},
		{10, 10, "████"},
		{20, 10, "████"},
		{3, 0, "░░░░"},
	}

	for _, tt := range tests {
		if got := renderBar(tt.value, tt.max, 4); got != tt.expected {
			t.Errorf("renderBar(%d, %d) = %q, expected %q", tt.value, tt.max, got, tt.expected)
		}
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"this is longer than allowed", 15, "this is long..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}
