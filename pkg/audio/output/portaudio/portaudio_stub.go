//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package portaudio

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
)

// ErrNotEnabled is returned when the binary was built without PortAudio
var ErrNotEnabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// NewHost reports that PortAudio is unavailable
func NewHost(logger *zerolog.Logger) (output.Host, error) {
	return nil, ErrNotEnabled
}
