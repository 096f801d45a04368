package sink

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
)

// DefaultDevice is the hint that selects the host's default output
const DefaultDevice = "default"

// DeviceInfo describes one output device for listings
type DeviceInfo struct {
	Name    string
	Default bool
	Formats []audio.Format
}

// Locator resolves device-name hints against a host
type Locator struct {
	host output.Host
}

// NewLocator creates a locator for host
func NewLocator(host output.Host) *Locator {
	return &Locator{host: host}
}

// Resolve maps a hint to a device. An empty hint or "default" selects the
// system default; anything else must equal a device name exactly, and the
// first match in host enumeration order wins.
func (l *Locator) Resolve(hint string) (output.Device, error) {
	if hint == "" || hint == DefaultDevice {
		dev, err := l.host.DefaultDevice()
		if err != nil {
			if errors.Is(err, output.ErrNoDevice) {
				return nil, ErrNoDeviceAvailable
			}
			return nil, fmt.Errorf("%w: %w", ErrNoDeviceAvailable, err)
		}
		if dev == nil {
			return nil, ErrNoDeviceAvailable
		}
		return dev, nil
	}

	devices, err := l.host.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate output devices: %w", err)
	}

	for _, dev := range devices {
		if dev.Name() == hint {
			return dev, nil
		}
	}
	return nil, &NotFoundError{Name: hint}
}

// ListDevices returns every output device in host order
func (l *Locator) ListDevices() ([]DeviceInfo, error) {
	devices, err := l.host.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate output devices: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		infos = append(infos, DeviceInfo{
			Name:    dev.Name(),
			Default: dev.IsDefault(),
			Formats: dev.Formats(),
		})
	}
	return infos, nil
}
