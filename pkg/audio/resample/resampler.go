// ABOUTME: Linear resampler converting canonical 44.1kHz stereo to a device rate
// ABOUTME: Carries the last input frame and fractional position across chunks
package resample

import (
	"errors"
	"math"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
)

// ErrInvalidChunkLength is returned for input that is not a whole number of stereo frames
var ErrInvalidChunkLength = errors.New("chunk length must be a whole number of stereo frames")

// State is the continuity state carried between chunks
type State struct {
	LastFrame  audio.Frame
	TargetRate float64
}

// Resampler performs linear interpolation between successive stereo frames.
// The interpolation control points for a chunk are the last input frame of the
// previous chunk followed by the chunk's own frames, so no click is introduced
// at chunk boundaries.
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64 // input frames advanced per output frame
	position   float64 // offset from lastFrame, in [0, ratio)
	lastFrame  audio.Frame
}

// New creates a resampler from inputRate to outputRate
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// FromCanonical creates a resampler from the canonical rate to targetRate
func FromCanonical(targetRate int) *Resampler {
	return New(audio.CanonicalRate, targetRate)
}

// NeedsResampling reports whether a device at rate requires adaptation.
// Matching rates are passed through untouched rather than resampled 1:1.
func NeedsResampling(rate int) bool {
	return rate != audio.CanonicalRate
}

// Adapt resamples an interleaved stereo chunk and returns the new samples
func (r *Resampler) Adapt(input []int16) ([]int16, error) {
	return r.AdaptInto(make([]int16, 0, r.OutputSamplesNeeded(len(input))+2), input)
}

// AdaptInto appends the resampled chunk to dst.
// Odd-length input is rejected with ErrInvalidChunkLength and leaves the state untouched.
func (r *Resampler) AdaptInto(dst, input []int16) ([]int16, error) {
	if len(input)%2 != 0 {
		return dst, ErrInvalidChunkLength
	}

	frames := len(input) / 2
	if frames == 0 {
		return dst, nil
	}

	pos := r.position
	end := float64(frames)

	for pos < end {
		idx := int(pos)
		frac := pos - float64(idx)

		a := r.lastFrame
		if idx > 0 {
			a = audio.FrameAt(input, idx-1)
		}
		b := audio.FrameAt(input, idx)

		dst = append(dst, lerp(a.L, b.L, frac), lerp(a.R, b.R, frac))
		pos += r.ratio
	}

	r.position = pos - end
	r.lastFrame = audio.FrameAt(input, frames-1)

	return dst, nil
}

// Reset returns the resampler to a fresh zero frame
func (r *Resampler) Reset() {
	r.position = 0
	r.lastFrame = audio.Frame{}
}

// State returns the continuity state
func (r *Resampler) State() State {
	return State{
		LastFrame:  r.lastFrame,
		TargetRate: float64(r.outputRate),
	}
}

// InputRate returns the source rate
func (r *Resampler) InputRate() int {
	return r.inputRate
}

// OutputRate returns the target rate
func (r *Resampler) OutputRate() int {
	return r.outputRate
}

// OutputSamplesNeeded estimates how many output samples inputSamples will produce
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / 2
	outputFrames := int(math.Ceil(float64(inputFrames) / r.ratio))
	return outputFrames * 2
}

func lerp(a, b int16, frac float64) int16 {
	return int16(math.Round(float64(a) + (float64(b)-float64(a))*frac))
}
