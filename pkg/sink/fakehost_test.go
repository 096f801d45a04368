package sink

import (
	"slices"
	"sync"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
)

// fakeHost lets tests drive the render callback by hand
type fakeHost struct {
	mu         sync.Mutex
	devices    []output.Device
	defaultDev output.Device
	format     audio.Format
	openErr    error
	startErr   error
	streams    []*fakeStream
}

// newFakeHost creates a host whose first named device is the default
func newFakeHost(rate int, names ...string) *fakeHost {
	h := &fakeHost{
		format: audio.Format{
			SampleRate:   rate,
			Channels:     audio.CanonicalChannels,
			SampleFormat: audio.FormatS16,
		},
	}
	for i, name := range names {
		dev := &output.DeviceInfo{
			DeviceName:    name,
			Default:       i == 0,
			DeviceFormats: []audio.Format{h.format},
		}
		h.devices = append(h.devices, dev)
		if i == 0 {
			h.defaultDev = dev
		}
	}
	return h
}

func (h *fakeHost) Name() string { return "fake" }

func (h *fakeHost) Devices() ([]output.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.devices), nil
}

func (h *fakeHost) DefaultDevice() (output.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.defaultDev == nil {
		return nil, output.ErrNoDevice
	}
	return h.defaultDev, nil
}

func (h *fakeHost) OpenStream(dev output.Device, cfg output.StreamConfig) (output.Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.openErr != nil {
		return nil, h.openErr
	}

	st := &fakeStream{format: h.format, cfg: cfg, startErr: h.startErr}
	h.streams = append(h.streams, st)
	return st, nil
}

func (h *fakeHost) Close() error { return nil }

func (h *fakeHost) removeDevices() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices = nil
	h.defaultDev = nil
}

func (h *fakeHost) lastStream() *fakeStream {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.streams) == 0 {
		return nil
	}
	return h.streams[len(h.streams)-1]
}

type fakeStream struct {
	format   audio.Format
	cfg      output.StreamConfig
	startErr error

	mu     sync.Mutex
	r      output.Renderer
	closed bool
}

func (s *fakeStream) Format() audio.Format { return s.format }

func (s *fakeStream) Start(r output.Renderer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.r = r
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.r = nil
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// render plays the part of one device callback asking for n samples
func (s *fakeStream) render(n int) []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int16, n)
	if s.r != nil {
		s.r.RenderInt16(out)
	}
	return out
}

func (s *fakeStream) renderBytes(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, n)
	if s.r != nil {
		s.r.Render(out)
	}
	return out
}

func (s *fakeStream) fail(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}
