// ABOUTME: Oto-based output host
// ABOUTME: Feeds a persistent oto player from the sink through an io.Reader adaptor
package oto

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
)

// Host is an output.Host backed by oto. Oto exposes only the system default
// device and allows a single context per process, so the context is created
// on first use and reused by every later stream.
type Host struct {
	format audio.Format
	device *output.DeviceInfo
	logger zerolog.Logger

	mu     sync.Mutex
	otoCtx *oto.Context
	active bool
}

// NewHost creates an oto host that opens the default device at rate using
// sampleFormat (S16 or F32)
func NewHost(rate int, sampleFormat audio.SampleFormat, logger *zerolog.Logger) (*Host, error) {
	if _, err := otoFormat(sampleFormat); err != nil {
		return nil, err
	}

	l := log.Logger
	if logger != nil {
		l = *logger
	}

	format := audio.Format{
		SampleRate:   rate,
		Channels:     audio.CanonicalChannels,
		SampleFormat: sampleFormat,
	}

	return &Host{
		format: format,
		device: &output.DeviceInfo{
			DeviceName:    "default",
			Default:       true,
			DeviceFormats: []audio.Format{format},
		},
		logger: l.With().Str("backend", "oto").Logger(),
	}, nil
}

func (h *Host) Name() string { return "oto" }

func (h *Host) Devices() ([]output.Device, error) {
	return []output.Device{h.device}, nil
}

func (h *Host) DefaultDevice() (output.Device, error) {
	return h.device, nil
}

// OpenStream creates a paused player on the shared context
func (h *Host) OpenStream(dev output.Device, cfg output.StreamConfig) (output.Stream, error) {
	if dev != output.Device(h.device) {
		return nil, output.ErrForeignDevice
	}
	if cfg.Channels > 0 && cfg.Channels != h.format.Channels {
		return nil, output.ErrUnsupported
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active {
		return nil, fmt.Errorf("oto player already active: %w", output.ErrDeviceBusy)
	}

	if err := h.ensureContext(); err != nil {
		return nil, err
	}

	s := &stream{
		host:       h,
		format:     h.format,
		frameBytes: h.format.Channels * h.format.SampleFormat.BytesPerSample(),
	}
	s.player = h.otoCtx.NewPlayer(s)
	if cfg.FramesPerBuffer > 0 {
		s.player.SetBufferSize(cfg.FramesPerBuffer * s.frameBytes)
	}

	h.active = true
	return s, nil
}

// ensureContext creates the process-wide oto context (must hold h.mu)
func (h *Host) ensureContext() error {
	if h.otoCtx != nil {
		if err := h.otoCtx.Resume(); err != nil {
			return fmt.Errorf("failed to resume oto context: %w", err)
		}
		return nil
	}

	format, _ := otoFormat(h.format.SampleFormat)
	op := &oto.NewContextOptions{
		SampleRate:   h.format.SampleRate,
		ChannelCount: h.format.Channels,
		Format:       format,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	h.otoCtx = ctx
	h.logger.Info().
		Int("rate", h.format.SampleRate).
		Int("channels", h.format.Channels).
		Str("format", h.format.SampleFormat.String()).
		Msg("audio output initialized")
	return nil
}

func (h *Host) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.active = false
	if h.otoCtx != nil {
		if err := h.otoCtx.Suspend(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to suspend oto context")
		}
	}
}

// Close leaves the context suspended; oto cannot tear it down
func (h *Host) Close() error {
	return nil
}

type rendererBox struct {
	r output.Renderer
}

// stream adapts a Renderer into the io.Reader oto pulls from
type stream struct {
	host       *Host
	player     *oto.Player
	format     audio.Format
	frameBytes int

	renderer atomic.Pointer[rendererBox]
	mu       sync.Mutex
	started  bool
	closed   bool
}

func (s *stream) Format() audio.Format {
	return s.format
}

func (s *stream) Start(r output.Renderer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return output.ErrStreamClosed
	}
	if s.started {
		return output.ErrStreamStarted
	}

	s.renderer.Store(&rendererBox{r: r})
	s.player.Play()
	s.started = true
	return nil
}

// Read is called from oto's mixing goroutine and always returns len(p)
func (s *stream) Read(p []byte) (int, error) {
	whole := len(p) - len(p)%s.frameBytes

	box := s.renderer.Load()
	if box == nil {
		audio.Silence(p, s.format.SampleFormat)
		return len(p), nil
	}

	box.r.Render(p[:whole])
	audio.Silence(p[whole:], s.format.SampleFormat)
	return len(p), nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.player.Pause()
	s.renderer.Store(nil)
	err := s.player.Close()
	s.host.release()
	if err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	return nil
}

func otoFormat(f audio.SampleFormat) (oto.Format, error) {
	switch f {
	case audio.FormatS16:
		return oto.FormatSignedInt16LE, nil
	case audio.FormatF32:
		return oto.FormatFloat32LE, nil
	default:
		return 0, fmt.Errorf("oto cannot play %s: %w", f, output.ErrUnsupported)
	}
}
