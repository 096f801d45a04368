// ABOUTME: PCM type definitions for the canonical sink contract
// ABOUTME: Defines frames, stream formats and sample rescaling at the hardware boundary
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// CanonicalRate is the rate every producer delivers audio at
	CanonicalRate = 44100

	// CanonicalChannels is the interleaved channel count (left, right)
	CanonicalChannels = 2
)

// SampleFormat identifies how a device wants each sample encoded
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatS16                  // signed 16-bit little-endian
	FormatU16                  // unsigned 16-bit little-endian, 0x8000 is silence
	FormatS32                  // signed 32-bit little-endian
	FormatF32                  // 32-bit float in [-1, 1]
)

// String returns a short human readable name
func (f SampleFormat) String() string {
	switch f {
	case FormatS16:
		return "S16"
	case FormatU16:
		return "U16"
	case FormatS32:
		return "S32"
	case FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// BytesPerSample returns the encoded width of one sample
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatS16, FormatU16:
		return 2
	case FormatS32, FormatF32:
		return 4
	default:
		return 0
	}
}

// Format describes a device stream format
type Format struct {
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
}

// String renders the format the way device listings print it
func (f Format) String() string {
	return fmt.Sprintf("%dch, %s, %dHz", f.Channels, f.SampleFormat, f.SampleRate)
}

// Canonical reports whether f matches the producer contract exactly
func (f Format) Canonical() bool {
	return f.SampleRate == CanonicalRate && f.Channels == CanonicalChannels && f.SampleFormat == FormatS16
}

// Frame is one left/right sample pair
type Frame struct {
	L int16
	R int16
}

// FrameAt returns the frame starting at interleaved sample index 2*i
func FrameAt(samples []int16, i int) Frame {
	return Frame{L: samples[2*i], R: samples[2*i+1]}
}

// SampleToUint16 shifts a signed sample into the unsigned range
func SampleToUint16(s int16) uint16 {
	return uint16(int32(s) + 32768)
}

// SampleToFloat32 scales a signed sample into [-1, 1]
func SampleToFloat32(s int16) float32 {
	if s < 0 {
		return float32(s) / 32768.0
	}
	return float32(s) / 32767.0
}

// SampleToInt32 left-justifies a 16-bit sample in a 32-bit container
func SampleToInt32(s int16) int32 {
	return int32(s) << 16
}

// Encode writes samples into out using format f and returns the bytes written.
// out must hold len(samples)*f.BytesPerSample() bytes.
func Encode(out []byte, samples []int16, f SampleFormat) int {
	switch f {
	case FormatS16:
		for i, s := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
		}
	case FormatU16:
		for i, s := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], SampleToUint16(s))
		}
	case FormatS32:
		for i, s := range samples {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(SampleToInt32(s)))
		}
	case FormatF32:
		for i, s := range samples {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(SampleToFloat32(s)))
		}
	default:
		return 0
	}
	return len(samples) * f.BytesPerSample()
}

// Silence fills out with the encoding of a zero sample in format f
func Silence(out []byte, f SampleFormat) {
	if f == FormatU16 {
		for i := 0; i+1 < len(out); i += 2 {
			binary.LittleEndian.PutUint16(out[i:], 0x8000)
		}
		return
	}
	clear(out)
}

// DecodeS16LE converts little-endian s16 bytes to samples, appending to dst
func DecodeS16LE(dst []int16, data []byte) []int16 {
	for i := 0; i+1 < len(data); i += 2 {
		dst = append(dst, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	return dst
}

// FloatToInt16 clamps a [-1, 1] float sample into the 16-bit range
func FloatToInt16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(math.Round(float64(v) * 32768))
	}
	return int16(math.Round(float64(v) * 32767))
}

// SamplesForMs returns the interleaved sample count covering ms milliseconds
func SamplesForMs(rate, channels, ms int) int {
	return rate * channels * ms / 1000
}

// ToStereo appends in to dst as stereo. Mono is duplicated and anything
// wider keeps its first two channels.
func ToStereo(dst, in []int16, channels int) []int16 {
	switch channels {
	case 1:
		for _, s := range in {
			dst = append(dst, s, s)
		}
	case 2:
		dst = append(dst, in...)
	default:
		for i := 0; i+channels <= len(in); i += channels {
			dst = append(dst, in[i], in[i+1])
		}
	}
	return dst
}
