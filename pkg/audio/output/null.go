// ABOUTME: Null output host that discards audio at real-time speed
// ABOUTME: Lets the sink run headless at any device rate
package output

import (
	"sync/atomic"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
)

// NullHost exposes a single device that consumes and discards audio
type NullHost struct {
	device   *DeviceInfo
	format   audio.Format
	cfg      clockConfig
	rendered atomic.Uint64
}

// NewNullHost creates a null host whose device runs at rate
func NewNullHost(rate int, opts ...HostOption) *NullHost {
	cfg := newClockConfig("null", opts)
	format := audio.Format{
		SampleRate:   rate,
		Channels:     audio.CanonicalChannels,
		SampleFormat: audio.FormatS16,
	}

	return &NullHost{
		device: &DeviceInfo{
			DeviceName:    cfg.deviceName,
			Default:       true,
			DeviceFormats: []audio.Format{format},
		},
		format: format,
		cfg:    cfg,
	}
}

func (h *NullHost) Name() string { return "null" }

func (h *NullHost) Devices() ([]Device, error) {
	return []Device{h.device}, nil
}

func (h *NullHost) DefaultDevice() (Device, error) {
	return h.device, nil
}

// OpenStream opens a stream at the device's fixed rate; requested rates are ignored
func (h *NullHost) OpenStream(dev Device, cfg StreamConfig) (Stream, error) {
	if dev != Device(h.device) {
		return nil, ErrForeignDevice
	}

	format := h.format
	if cfg.Channels > 0 && cfg.Channels != format.Channels {
		return nil, ErrUnsupported
	}

	deliver := func(samples []int16) error {
		h.rendered.Add(uint64(len(samples)))
		return nil
	}
	return newClockedStream(format, h.cfg.period, deliver, nil, cfg.OnError), nil
}

// Rendered returns the number of samples consumed so far
func (h *NullHost) Rendered() uint64 {
	return h.rendered.Load()
}

func (h *NullHost) Close() error { return nil }
