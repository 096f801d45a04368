package sink

import (
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/transfer"
)

// defaultScratchFrames covers the callback periods hosts use in practice
const defaultScratchFrames = 4096

// renderer is the consumer end of the transfer channel. It runs on the host's
// realtime thread: it pulls, rescales to the device format and never blocks.
type renderer struct {
	ch      *transfer.Channel
	format  audio.SampleFormat
	scratch []int16
}

func newRenderer(ch *transfer.Channel, format audio.SampleFormat, framesPerBuffer int) *renderer {
	frames := max(framesPerBuffer, defaultScratchFrames)
	return &renderer{
		ch:      ch,
		format:  format,
		scratch: make([]int16, frames*audio.CanonicalChannels),
	}
}

func (r *renderer) Render(out []byte) {
	bps := r.format.BytesPerSample()
	if bps == 0 {
		clear(out)
		return
	}

	n := len(out) / bps
	if n > len(r.scratch) {
		// only when the host period outgrows the preallocation
		r.scratch = make([]int16, n)
	}

	buf := r.scratch[:n]
	r.ch.Pull(buf)
	written := audio.Encode(out, buf, r.format)
	clear(out[written:])
}

func (r *renderer) RenderInt16(out []int16) {
	r.ch.Pull(out)
}
