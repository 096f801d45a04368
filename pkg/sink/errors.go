package sink

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/transfer"
)

var (
	ErrNoDeviceAvailable = errors.New("no output device available")
	ErrNotFound          = errors.New("output device not found")
	ErrDeviceBusy        = errors.New("output device busy")
	ErrStreamStartFailed = errors.New("failed to start output stream")
	ErrNotOpen           = errors.New("sink not open")
	ErrAlreadyOpen       = errors.New("sink already open")
	ErrAlreadyPlaying    = errors.New("sink already playing")
	ErrNotPlaying        = errors.New("sink not playing")

	// Re-exported so callers can classify Write errors without importing internals
	ErrChannelClosed       = transfer.ErrChannelClosed
	ErrBackpressureTimeout = transfer.ErrBackpressureTimeout
	ErrInvalidChunkLength  = resample.ErrInvalidChunkLength
)

// NotFoundError reports a device hint that matched nothing
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no output device matching %q found", e.Name)
}

// Is makes errors.Is(err, ErrNotFound) hold
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// startError classifies a host failure raised while bringing a stream up
func startError(err error) error {
	if errors.Is(err, output.ErrDeviceBusy) {
		return fmt.Errorf("%w: %w", ErrDeviceBusy, err)
	}
	return fmt.Errorf("%w: %w", ErrStreamStartFailed, err)
}
