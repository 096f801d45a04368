//go:build opus

// ABOUTME: Opus packet decoding for ingest sessions
// ABOUTME: Requires libopus via cgo, enabled with the opus build tag
package ingest

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is the largest frame libopus emits per channel (120ms at 48kHz)
const maxOpusFrame = 5760

type opusDecoder struct {
	dec      *opus.Decoder
	channels int
	pcm      []int16
}

func newOpusDecoder(rate, channels int) (frameDecoder, error) {
	dec, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &opusDecoder{
		dec:      dec,
		channels: channels,
		pcm:      make([]int16, maxOpusFrame*channels),
	}, nil
}

func (d *opusDecoder) Decode(dst []int16, payload []byte) ([]int16, error) {
	n, err := d.dec.Decode(payload, d.pcm)
	if err != nil {
		return dst, fmt.Errorf("opus decode failed: %w", err)
	}
	return append(dst, d.pcm[:n*d.channels]...), nil
}
