// ABOUTME: Malgo-based output host using the miniaudio library
// ABOUTME: Enumerates playback devices and drives the realtime data callback
package malgo

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
)

// ErrDeviceStopped is reported when miniaudio stops a stream we did not close
var ErrDeviceStopped = errors.New("playback device stopped unexpectedly")

// Host is an output.Host backed by a miniaudio context
type Host struct {
	ctx    *malgo.AllocatedContext
	logger zerolog.Logger
	mu     sync.Mutex
}

// device keeps the miniaudio id next to the generic device description
type device struct {
	output.DeviceInfo
	id    malgo.DeviceID
	hasID bool
}

// NewHost initializes a miniaudio context
func NewHost(logger *zerolog.Logger) (*Host, error) {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	l = l.With().Str("backend", "malgo").Logger()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		l.Debug().Msg(strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	return &Host{ctx: ctx, logger: l}, nil
}

func (h *Host) Name() string { return "malgo" }

// Devices returns playback devices in miniaudio's enumeration order
func (h *Host) Devices() ([]output.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	infos, err := h.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate playback devices: %w", err)
	}

	devices := make([]output.Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, &device{
			DeviceInfo: output.DeviceInfo{
				DeviceName:    info.Name(),
				Default:       info.IsDefault != 0,
				DeviceFormats: h.formats(info.ID),
			},
			id:    info.ID,
			hasID: true,
		})
	}
	return devices, nil
}

// formats queries the native formats of a device, best effort
func (h *Host) formats(id malgo.DeviceID) []audio.Format {
	full, err := h.ctx.DeviceInfo(malgo.Playback, id, malgo.Shared)
	if err != nil {
		h.logger.Debug().Err(err).Msg("device info unavailable")
		return nil
	}

	var formats []audio.Format
	for _, df := range full.Formats[:full.FormatCount] {
		formats = append(formats, audio.Format{
			SampleRate:   int(df.SampleRate),
			Channels:     int(df.Channels),
			SampleFormat: sampleFormat(df.Format),
		})
	}
	return formats
}

// DefaultDevice returns the device miniaudio flags as default. Backends that
// do not flag one fall back to miniaudio's implicit default device.
func (h *Host) DefaultDevice() (output.Device, error) {
	devices, err := h.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, output.ErrNoDevice
	}

	for _, d := range devices {
		if d.IsDefault() {
			return d, nil
		}
	}

	return &device{
		DeviceInfo: output.DeviceInfo{DeviceName: "default", Default: true},
	}, nil
}

// OpenStream initializes a playback device at its native rate and format
func (h *Host) OpenStream(dev output.Device, cfg output.StreamConfig) (output.Stream, error) {
	d, ok := dev.(*device)
	if !ok {
		return nil, output.ErrForeignDevice
	}

	channels := cfg.Channels
	if channels == 0 {
		channels = audio.CanonicalChannels
	}

	s := &stream{onError: cfg.OnError}

	dev0, err := h.initDevice(d, cfg, channels, malgo.FormatUnknown, s)
	if err != nil {
		return nil, err
	}

	// Fall back to S16 when the native format is one we do not render
	if sampleFormat(dev0.PlaybackFormat()) == audio.FormatUnknown {
		dev0.Uninit()
		dev0, err = h.initDevice(d, cfg, channels, malgo.FormatS16, s)
		if err != nil {
			return nil, err
		}
	}

	s.device = dev0
	s.format = audio.Format{
		SampleRate:   int(dev0.SampleRate()),
		Channels:     int(dev0.PlaybackChannels()),
		SampleFormat: sampleFormat(dev0.PlaybackFormat()),
	}
	s.frameBytes = s.format.Channels * s.format.SampleFormat.BytesPerSample()

	h.logger.Info().
		Str("device", dev.Name()).
		Int("rate", s.format.SampleRate).
		Int("channels", s.format.Channels).
		Str("format", s.format.SampleFormat.String()).
		Msg("audio output initialized")

	return s, nil
}

func (h *Host) initDevice(d *device, cfg output.StreamConfig, channels int, format malgo.FormatType, s *stream) (*malgo.Device, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)
	deviceConfig.Alsa.NoMMap = 1
	if d.hasID {
		deviceConfig.Playback.DeviceID = d.id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: s.dataCallback,
		Stop: s.stopCallback,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dev, err := malgo.InitDevice(h.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device %q: %w", d.Name(), err)
	}
	return dev, nil
}

// Close releases the miniaudio context
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx == nil {
		return nil
	}
	if err := h.ctx.Uninit(); err != nil {
		h.logger.Warn().Err(err).Msg("malgo context uninit error")
	}
	h.ctx.Free()
	h.ctx = nil
	return nil
}

type rendererBox struct {
	r output.Renderer
}

// stream wraps one initialized miniaudio device
type stream struct {
	device     *malgo.Device
	format     audio.Format
	frameBytes int
	onError    func(error)

	renderer atomic.Pointer[rendererBox]
	closing  atomic.Bool
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
	if err := s.device.Start(); err != nil {
		s.renderer.Store(nil)
		return fmt.Errorf("failed to start device: %w", err)
	}
	s.started = true
	return nil
}

// dataCallback runs on miniaudio's realtime thread
func (s *stream) dataCallback(pOutput, _ []byte, frameCount uint32) {
	out := pOutput[:int(frameCount)*s.frameBytes]

	box := s.renderer.Load()
	if box == nil {
		audio.Silence(out, s.format.SampleFormat)
		return
	}
	box.r.Render(out)
}

func (s *stream) stopCallback() {
	if s.closing.Load() {
		return
	}
	if s.onError != nil {
		s.onError(ErrDeviceStopped)
	}
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.closing.Store(true)

	if s.started {
		if err := s.device.Stop(); err != nil {
			log.Warn().Err(err).Msg("device stop error")
		}
	}
	s.device.Uninit()
	s.renderer.Store(nil)
	return nil
}

func sampleFormat(f malgo.FormatType) audio.SampleFormat {
	switch f {
	case malgo.FormatS16:
		return audio.FormatS16
	case malgo.FormatS32:
		return audio.FormatS32
	case malgo.FormatF32:
		return audio.FormatF32
	default:
		return audio.FormatUnknown
	}
}
