// ABOUTME: Clock-driven stream for hosts without a hardware callback
// ABOUTME: A dedicated goroutine pulls one period of audio per tick
package output

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
)

const defaultPeriod = 10 * time.Millisecond

// HostOption configures the pure-Go hosts
type HostOption func(*clockConfig)

type clockConfig struct {
	period     time.Duration
	deviceName string
}

// WithPeriod sets how much audio is drained per tick
func WithPeriod(d time.Duration) HostOption {
	return func(c *clockConfig) {
		c.period = d
	}
}

// WithDeviceName overrides the single device's name
func WithDeviceName(name string) HostOption {
	return func(c *clockConfig) {
		c.deviceName = name
	}
}

func newClockConfig(defaultName string, opts []HostOption) clockConfig {
	cfg := clockConfig{period: defaultPeriod, deviceName: defaultName}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.period <= 0 {
		cfg.period = defaultPeriod
	}
	return cfg
}

// clockedStream drains a Renderer at the stream's real-time cadence
type clockedStream struct {
	format  audio.Format
	period  time.Duration
	frames  int
	deliver func(samples []int16) error
	release func() error
	onError func(error)

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

func newClockedStream(format audio.Format, period time.Duration, deliver func([]int16) error, release func() error, onError func(error)) *clockedStream {
	frames := int(int64(format.SampleRate) * int64(period) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}

	return &clockedStream{
		format:  format,
		period:  period,
		frames:  frames,
		deliver: deliver,
		release: release,
		onError: onError,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *clockedStream) Format() audio.Format {
	return s.format
}

func (s *clockedStream) Start(r Renderer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if s.started {
		return ErrStreamStarted
	}
	s.started = true

	go s.run(r)
	return nil
}

func (s *clockedStream) run(r Renderer) {
	defer close(s.done)

	buf := make([]int16, s.frames*s.format.Channels)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		r.RenderInt16(buf)

		if s.deliver == nil {
			continue
		}
		if err := s.deliver(buf); err != nil && s.onError != nil {
			s.onError(err)
		}
	}
}

func (s *clockedStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	close(s.stop)
	if started {
		<-s.done
	}

	if s.release != nil {
		return s.release()
	}
	return nil
}
