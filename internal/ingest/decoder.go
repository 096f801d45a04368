// ABOUTME: Per-session frame decoding for the ingest server
// ABOUTME: Turns PCM or Opus messages into canonical 44.1kHz stereo samples
package ingest

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/resample"
)

const (
	CodecPCM  = "pcm"
	CodecOpus = "opus"
)

var (
	ErrBadHeader       = errors.New("invalid stream header")
	ErrOddPayload      = errors.New("pcm payload is not whole samples")
	ErrOpusUnavailable = errors.New("opus support not compiled in (build with -tags opus)")
)

const (
	minRate = 8000
	maxRate = 192000
)

var opusRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

// Header opens every ingest session
type Header struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Validate checks the header against what the decoders accept
func (h Header) Validate() error {
	switch h.Codec {
	case CodecPCM:
	case CodecOpus:
		if !opusRates[h.SampleRate] {
			return fmt.Errorf("%w: opus does not support %dHz", ErrBadHeader, h.SampleRate)
		}
	default:
		return fmt.Errorf("%w: unknown codec %q", ErrBadHeader, h.Codec)
	}

	if h.SampleRate < minRate || h.SampleRate > maxRate {
		return fmt.Errorf("%w: sample rate %d out of range", ErrBadHeader, h.SampleRate)
	}
	if h.Channels < 1 || h.Channels > 2 {
		return fmt.Errorf("%w: %d channels", ErrBadHeader, h.Channels)
	}
	return nil
}

// frameDecoder decodes one message payload into native interleaved samples
type frameDecoder interface {
	Decode(dst []int16, payload []byte) ([]int16, error)
}

type pcmDecoder struct{}

func (pcmDecoder) Decode(dst []int16, payload []byte) ([]int16, error) {
	if len(payload)%2 != 0 {
		return dst, ErrOddPayload
	}
	return audio.DecodeS16LE(dst, payload), nil
}

// pipeline is the per-session decode and canonicalise chain
type pipeline struct {
	header    Header
	dec       frameDecoder
	resampler *resample.Resampler

	native []int16
	stereo []int16
	out    []int16
}

func newPipeline(h Header) (*pipeline, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	p := &pipeline{header: h}
	switch h.Codec {
	case CodecPCM:
		p.dec = pcmDecoder{}
	case CodecOpus:
		dec, err := newOpusDecoder(h.SampleRate, h.Channels)
		if err != nil {
			return nil, err
		}
		p.dec = dec
	}

	if h.SampleRate != audio.CanonicalRate {
		p.resampler = resample.New(h.SampleRate, audio.CanonicalRate)
	}
	return p, nil
}

// process returns canonical samples for one payload. The slice is reused by
// the next call.
func (p *pipeline) process(payload []byte) ([]int16, error) {
	native, err := p.dec.Decode(p.native[:0], payload)
	if err != nil {
		return nil, err
	}
	p.native = native

	if p.header.Channels == 1 && len(native) > 0 {
		p.stereo = audio.ToStereo(p.stereo[:0], native, 1)
	} else {
		if len(native)%2 != 0 {
			return nil, ErrOddPayload
		}
		p.stereo = native
	}

	if p.resampler == nil {
		return p.stereo, nil
	}

	out, err := p.resampler.AdaptInto(p.out[:0], p.stereo)
	if err != nil {
		return nil, err
	}
	p.out = out
	return out, nil
}
