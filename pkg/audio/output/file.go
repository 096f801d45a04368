// ABOUTME: WAV capture output host
// ABOUTME: Records everything the sink renders into a 16-bit PCM WAV file
package output

import (
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
)

// FileHost exposes a single device that writes rendered audio to a WAV file.
// Each stream truncates the file.
type FileHost struct {
	path   string
	device *DeviceInfo
	format audio.Format
	cfg    clockConfig

	mu   sync.Mutex
	busy bool
}

// NewFileHost creates a capture host writing to path at rate
func NewFileHost(path string, rate int, opts ...HostOption) *FileHost {
	cfg := newClockConfig("wav:"+path, opts)
	format := audio.Format{
		SampleRate:   rate,
		Channels:     audio.CanonicalChannels,
		SampleFormat: audio.FormatS16,
	}

	return &FileHost{
		path: path,
		device: &DeviceInfo{
			DeviceName:    cfg.deviceName,
			Default:       true,
			DeviceFormats: []audio.Format{format},
		},
		format: format,
		cfg:    cfg,
	}
}

func (h *FileHost) Name() string { return "file" }

func (h *FileHost) Devices() ([]Device, error) {
	return []Device{h.device}, nil
}

func (h *FileHost) DefaultDevice() (Device, error) {
	return h.device, nil
}

func (h *FileHost) OpenStream(dev Device, cfg StreamConfig) (Stream, error) {
	if dev != Device(h.device) {
		return nil, ErrForeignDevice
	}
	if cfg.Channels > 0 && cfg.Channels != h.format.Channels {
		return nil, ErrUnsupported
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.busy {
		return nil, fmt.Errorf("%s: %w", h.path, ErrDeviceBusy)
	}

	f, err := os.Create(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}

	enc := wav.NewEncoder(f, h.format.SampleRate, 16, h.format.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: h.format.Channels,
			SampleRate:  h.format.SampleRate,
		},
		SourceBitDepth: 16,
	}

	deliver := func(samples []int16) error {
		buf.Data = buf.Data[:0]
		for _, s := range samples {
			buf.Data = append(buf.Data, int(s))
		}
		return enc.Write(buf)
	}

	release := func() error {
		h.mu.Lock()
		h.busy = false
		h.mu.Unlock()

		encErr := enc.Close()
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close capture file: %w", err)
		}
		if encErr != nil {
			return fmt.Errorf("failed to finalize wav header: %w", encErr)
		}
		return nil
	}

	h.busy = true
	return newClockedStream(h.format, h.cfg.period, deliver, release, cfg.OnError), nil
}

// Path returns the capture file path
func (h *FileHost) Path() string {
	return h.path
}

func (h *FileHost) Close() error { return nil }
