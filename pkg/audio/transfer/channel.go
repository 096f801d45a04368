// ABOUTME: Bounded single-producer/single-consumer sample channel
// ABOUTME: Blocks the producer when full and fills consumer shortfalls with silence
package transfer

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrChannelClosed       = errors.New("transfer channel closed")
	ErrBackpressureTimeout = errors.New("transfer channel backpressure timeout")
)

const (
	// DefaultCapacity holds ~100ms of canonical stereo audio
	DefaultCapacity = 2 * 4410

	// LowLatencyCapacity holds ~10ms of canonical stereo audio
	LowLatencyCapacity = 2 * 441
)

// Stats is a snapshot of channel counters
type Stats struct {
	Capacity        int
	Queued          int
	Pushed          uint64
	Pulled          uint64
	Underruns       uint64
	UnderrunSamples uint64
	Abandoned       uint64
}

// Option configures a Channel
type Option func(*Channel)

// WithPushTimeout makes Push give up with ErrBackpressureTimeout when no
// space frees for d. Zero waits until the channel is closed.
func WithPushTimeout(d time.Duration) Option {
	return func(c *Channel) {
		c.pushTimeout = d
	}
}

// WithUnderrunHook registers fn to be called from the consumer side whenever a
// pull comes up short. fn runs on the consumer's thread and must not block.
func WithUnderrunHook(fn func(got, want int)) Option {
	return func(c *Channel) {
		c.onUnderrun = fn
	}
}

// Channel is a bounded FIFO of interleaved samples shared by exactly one
// producer and one consumer. Push blocks while the channel is full; Pull never
// waits for data.
type Channel struct {
	mu       sync.Mutex
	buf      []int16
	readPos  int
	writePos int
	count    int
	closed   bool

	space     chan struct{} // holds at most one wakeup for a blocked producer
	done      chan struct{}
	closeOnce sync.Once

	pushTimeout time.Duration
	onUnderrun  func(got, want int)

	pushed          atomic.Uint64
	pulled          atomic.Uint64
	underruns       atomic.Uint64
	underrunSamples atomic.Uint64
	abandoned       atomic.Uint64
}

// New creates a channel holding capacity samples, rounded up to whole frames
func New(capacity int, opts ...Option) *Channel {
	if capacity < 2 {
		capacity = 2
	}
	if capacity%2 != 0 {
		capacity++
	}

	c := &Channel{
		buf:   make([]int16, capacity),
		space: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push enqueues all samples in order, splitting them into as many sub-writes
// as the free space allows. It returns ErrChannelClosed if the channel is
// closed before everything was queued.
func (c *Channel) Push(samples []int16) error {
	var timer *time.Timer
	var timeout <-chan time.Time

	for len(samples) > 0 {
		n, err := c.write(samples)
		if err != nil {
			return err
		}
		samples = samples[n:]
		if len(samples) == 0 {
			break
		}

		if c.pushTimeout > 0 {
			if timer == nil {
				timer = time.NewTimer(c.pushTimeout)
				defer timer.Stop()
				timeout = timer.C
			} else if n > 0 {
				timer.Reset(c.pushTimeout)
			}
		}

		select {
		case <-c.space:
		case <-c.done:
			return ErrChannelClosed
		case <-timeout:
			return ErrBackpressureTimeout
		}
	}

	return nil
}

// write copies as many samples as fit and returns the count
func (c *Channel) write(samples []int16) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrChannelClosed
	}

	n := min(len(samples), len(c.buf)-c.count)
	first := min(n, len(c.buf)-c.writePos)
	copy(c.buf[c.writePos:], samples[:first])
	copy(c.buf, samples[first:n])

	c.writePos = (c.writePos + n) % len(c.buf)
	c.count += n
	c.pushed.Add(uint64(n))

	return n, nil
}

// Pull fills dst with queued samples and zero-fills whatever is missing.
// It returns the number of real samples copied.
func (c *Channel) Pull(dst []int16) int {
	c.mu.Lock()
	n := min(len(dst), c.count)
	first := min(n, len(c.buf)-c.readPos)
	copy(dst, c.buf[c.readPos:c.readPos+first])
	copy(dst[first:n], c.buf[:n-first])
	c.readPos = (c.readPos + n) % len(c.buf)
	c.count -= n
	closed := c.closed
	c.mu.Unlock()

	clear(dst[n:])

	if n > 0 {
		c.pulled.Add(uint64(n))
		select {
		case c.space <- struct{}{}:
		default:
		}
	}

	if n < len(dst) && !closed {
		c.underruns.Add(1)
		c.underrunSamples.Add(uint64(len(dst) - n))
		if c.onUnderrun != nil {
			c.onUnderrun(n, len(dst))
		}
	}

	return n
}

// Close abandons queued audio and wakes blocked producers. Safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.abandoned.Add(uint64(c.count))
		c.count = 0
		c.readPos = c.writePos
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed reports whether Close has been called
func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed when the channel closes
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Len returns the number of queued samples
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Cap returns the capacity in samples
func (c *Channel) Cap() int {
	return len(c.buf)
}

// Stats returns a snapshot of the channel counters
func (c *Channel) Stats() Stats {
	return Stats{
		Capacity:        len(c.buf),
		Queued:          c.Len(),
		Pushed:          c.pushed.Load(),
		Pulled:          c.pulled.Load(),
		Underruns:       c.underruns.Load(),
		UnderrunSamples: c.underrunSamples.Load(),
		Abandoned:       c.abandoned.Load(),
	}
}
