// ABOUTME: Audio output host abstraction
// ABOUTME: Common interfaces for enumerating devices and driving callback streams
package output

import (
	"errors"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
)

var (
	ErrNoDevice      = errors.New("no output device available")
	ErrDeviceBusy    = errors.New("output device busy")
	ErrForeignDevice = errors.New("device does not belong to this host")
	ErrStreamStarted = errors.New("stream already started")
	ErrStreamClosed  = errors.New("stream closed")
	ErrUnsupported   = errors.New("unsupported stream format")
)

// Device is a host output device handle
type Device interface {
	// Name is the human readable name used for matching
	Name() string

	// IsDefault reports whether the host considers this the default output
	IsDefault() bool

	// Formats lists the formats the device advertises, for display only
	Formats() []audio.Format
}

// Renderer produces audio for a running stream. Both methods are called on
// the host's realtime thread and must not block.
type Renderer interface {
	// Render fills out with samples encoded in the stream's sample format
	Render(out []byte)

	// RenderInt16 fills out with signed 16-bit samples
	RenderInt16(out []int16)
}

// StreamConfig requests a stream shape from a host
type StreamConfig struct {
	// Channels is the interleaved channel count, normally 2
	Channels int

	// SampleRate requests a rate; 0 keeps the device's native rate
	SampleRate int

	// FramesPerBuffer hints the callback period; 0 lets the host decide
	FramesPerBuffer int

	// OnError receives errors raised on the host's audio thread
	OnError func(error)
}

// Stream is an opened but not necessarily running device stream
type Stream interface {
	// Format is the negotiated format, known before Start
	Format() audio.Format

	// Start registers r and activates the hardware
	Start(r Renderer) error

	// Close stops the hardware. r is not called after Close returns.
	Close() error
}

// Host enumerates devices and opens streams on them
type Host interface {
	Name() string
	Devices() ([]Device, error)
	DefaultDevice() (Device, error)
	OpenStream(dev Device, cfg StreamConfig) (Stream, error)
	Close() error
}

// DeviceInfo is a plain Device implementation shared by the hosts
type DeviceInfo struct {
	DeviceName    string
	Default       bool
	DeviceFormats []audio.Format
}

func (d *DeviceInfo) Name() string            { return d.DeviceName }
func (d *DeviceInfo) IsDefault() bool         { return d.Default }
func (d *DeviceInfo) Formats() []audio.Format { return d.DeviceFormats }
