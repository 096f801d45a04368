//go:build portaudio

// ABOUTME: PortAudio output host
// ABOUTME: Cross-platform device enumeration and callback streams using PortAudio
package portaudio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
)

// Host is an output.Host backed by PortAudio
type Host struct {
	logger zerolog.Logger
	mu     sync.Mutex
	closed bool
}

type device struct {
	output.DeviceInfo
	info *portaudio.DeviceInfo
}

// NewHost initializes PortAudio
func NewHost(logger *zerolog.Logger) (*Host, error) {
	l := log.Logger
	if logger != nil {
		l = *logger
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Host{logger: l.With().Str("backend", "portaudio").Logger()}, nil
}

func (h *Host) Name() string { return "portaudio" }

// Devices returns every device with output channels, in PortAudio order
func (h *Host) Devices() ([]output.Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	def, _ := portaudio.DefaultOutputDevice()

	var devices []output.Device
	for _, info := range infos {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		devices = append(devices, newDevice(info, def != nil && info.Name == def.Name && info.HostApi == def.HostApi))
	}
	return devices, nil
}

func (h *Host) DefaultDevice() (output.Device, error) {
	info, err := portaudio.DefaultOutputDevice()
	if err != nil || info == nil {
		return nil, output.ErrNoDevice
	}
	return newDevice(info, true), nil
}

func newDevice(info *portaudio.DeviceInfo, isDefault bool) *device {
	return &device{
		DeviceInfo: output.DeviceInfo{
			DeviceName: info.Name,
			Default:    isDefault,
			DeviceFormats: []audio.Format{{
				SampleRate:   int(info.DefaultSampleRate),
				Channels:     info.MaxOutputChannels,
				SampleFormat: audio.FormatS16,
			}},
		},
		info: info,
	}
}

// OpenStream opens a callback stream at the device's default rate
func (h *Host) OpenStream(dev output.Device, cfg output.StreamConfig) (output.Stream, error) {
	d, ok := dev.(*device)
	if !ok {
		return nil, output.ErrForeignDevice
	}

	channels := cfg.Channels
	if channels == 0 {
		channels = audio.CanonicalChannels
	}

	rate := d.info.DefaultSampleRate
	if cfg.SampleRate > 0 {
		rate = float64(cfg.SampleRate)
	}

	params := portaudio.HighLatencyParameters(nil, d.info)
	params.Output.Channels = channels
	params.SampleRate = rate
	params.FramesPerBuffer = cfg.FramesPerBuffer

	s := &stream{
		onError: cfg.OnError,
		format: audio.Format{
			SampleRate:   int(rate),
			Channels:     channels,
			SampleFormat: audio.FormatS16,
		},
	}

	paStream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream on %q: %w", d.Name(), err)
	}
	s.stream = paStream

	h.logger.Info().
		Str("device", d.Name()).
		Int("rate", s.format.SampleRate).
		Int("channels", channels).
		Msg("audio output initialized")

	return s, nil
}

// Close terminates PortAudio
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return portaudio.Terminate()
}

type rendererBox struct {
	r output.Renderer
}

type stream struct {
	stream  *portaudio.Stream
	format  audio.Format
	onError func(error)

	renderer  atomic.Pointer[rendererBox]
	underflow atomic.Bool
	mu        sync.Mutex
	started   bool
	closed    bool
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
	if err := s.stream.Start(); err != nil {
		s.renderer.Store(nil)
		return fmt.Errorf("failed to start stream: %w", err)
	}
	s.started = true
	return nil
}

// callback runs on PortAudio's realtime thread
func (s *stream) callback(out []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags&portaudio.OutputUnderflow != 0 && s.onError != nil && !s.underflow.Swap(true) {
		s.onError(fmt.Errorf("portaudio output underflow"))
	}

	box := s.renderer.Load()
	if box == nil {
		clear(out)
		return
	}
	box.r.RenderInt16(out)
}

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.started {
		if err := s.stream.Stop(); err != nil {
			log.Warn().Err(err).Msg("portaudio stream stop error")
		}
	}
	s.renderer.Store(nil)
	return s.stream.Close()
}
