// ABOUTME: Sine tone generator
// ABOUTME: Produces an endless 44.1kHz stereo test signal
package source

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
)

// Tone generates a sine wave at half scale on both channels
type Tone struct {
	frequency   float64
	sampleIndex uint64
}

// NewTone creates a tone generator at frequency Hz
func NewTone(frequency float64) *Tone {
	return &Tone{frequency: frequency}
}

func (t *Tone) Read(samples []int16) (int, error) {
	frames := len(samples) / 2

	for i := 0; i < frames; i++ {
		pos := float64(t.sampleIndex+uint64(i)) / float64(audio.CanonicalRate)
		v := int16(math.Sin(2*math.Pi*t.frequency*pos) * 32767.0 * 0.5)

		samples[i*2] = v
		samples[i*2+1] = v
	}

	t.sampleIndex += uint64(frames)
	return frames * 2, nil
}

func (t *Tone) Title() string {
	return fmt.Sprintf("%gHz tone", t.frequency)
}

func (t *Tone) Close() error { return nil }
