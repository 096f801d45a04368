// ABOUTME: Tests for the oto output host
// ABOUTME: Verifies the reader adaptor without opening an audio context
package oto

import (
	"errors"
	"testing"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
)

type constRenderer struct {
	value byte
}

func (r constRenderer) Render(out []byte) {
	for i := range out {
		out[i] = r.value
	}
}

func (r constRenderer) RenderInt16(out []int16) {}

func TestHostImplementsHost(t *testing.T) {
	var _ output.Host = (*Host)(nil)
	var _ output.Stream = (*stream)(nil)
}

func TestNewHostRejectsUnsupportedFormat(t *testing.T) {
	_, err := NewHost(44100, audio.FormatU16, nil)
	if !errors.Is(err, output.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestReadRendersWholeFrames(t *testing.T) {
	s := &stream{
		format:     audio.Format{SampleRate: 44100, Channels: 2, SampleFormat: audio.FormatS16},
		frameBytes: 4,
	}
	s.renderer.Store(&rendererBox{r: constRenderer{value: 7}})

	p := make([]byte, 10)
	n, err := s.Read(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 bytes, got %d", n)
	}
	for i := 0; i < 8; i++ {
		if p[i] != 7 {
			t.Errorf("byte %d: expected rendered value, got %d", i, p[i])
		}
	}
	if p[8] != 0 || p[9] != 0 {
		t.Errorf("partial frame should be silent, got %v", p[8:])
	}
}

func TestReadSilentBeforeStart(t *testing.T) {
	s := &stream{
		format:     audio.Format{SampleRate: 44100, Channels: 2, SampleFormat: audio.FormatS16},
		frameBytes: 4,
	}

	p := []byte{1, 1, 1, 1}
	if _, err := s.Read(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, b := range p {
		if b != 0 {
			t.Errorf("byte %d: expected silence, got %d", i, b)
		}
	}
}
