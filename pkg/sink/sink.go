package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/transfer"
)

const (
	// DefaultBufferMs sizes the transfer channel when Config.BufferMs is zero
	DefaultBufferMs = 100

	defaultWatchInterval = time.Second
)

// State is the sink lifecycle position
type State int

const (
	StateClosed State = iota
	StateIdle
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds sink tuning
type Config struct {
	// BufferMs is the transfer channel depth in milliseconds of device audio
	BufferMs int

	// FramesPerBuffer is passed to the host as the callback period hint
	FramesPerBuffer int

	// PushTimeout bounds how long Write waits without progress; zero waits forever
	PushTimeout time.Duration

	// WatchInterval is how often underrun deltas are logged; negative disables
	WatchInterval time.Duration

	Logger *zerolog.Logger

	// OnUnderrun runs on the audio thread and must not block
	OnUnderrun func(got, want int)

	// OnStreamError may run on the audio thread and must not call back into the Sink
	OnStreamError func(error)
}

// Stats is a snapshot of sink activity
type Stats struct {
	State      State
	SessionID  string
	Device     string
	Format     audio.Format
	Resampling bool
	Channel    transfer.Stats
}

// playback is everything that lives for one Playing session
type playback struct {
	id        uuid.UUID
	stream    output.Stream
	format    audio.Format
	channel   *transfer.Channel
	resampler *resample.Resampler
	scratch   []int16

	stopWatch chan struct{}
	watchDone chan struct{}
}

// Sink accepts canonical 44.1kHz stereo s16 audio and plays it on a host device
type Sink struct {
	host    output.Host
	locator *Locator
	cfg     Config
	logger  zerolog.Logger

	mu       sync.Mutex
	state    State
	hint     string
	device   output.Device
	playback *playback

	// serialises producers so the channel keeps a single writer
	writeMu sync.Mutex
}

// New creates a closed sink on host
func New(host output.Host, cfg Config) *Sink {
	if cfg.BufferMs <= 0 {
		cfg.BufferMs = DefaultBufferMs
	}
	if cfg.WatchInterval == 0 {
		cfg.WatchInterval = defaultWatchInterval
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Sink{
		host:    host,
		locator: NewLocator(host),
		cfg:     cfg,
		logger:  logger.With().Str("component", "sink").Logger(),
		state:   StateClosed,
	}
}

// Locator returns the locator bound to the sink's host
func (s *Sink) Locator() *Locator {
	return s.locator
}

// Open resolves the device named by hint and moves the sink to Idle
func (s *Sink) Open(hint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		return ErrAlreadyOpen
	}

	dev, err := s.locator.Resolve(hint)
	if err != nil {
		return err
	}

	s.hint = hint
	s.device = dev
	s.state = StateIdle

	s.logger.Info().Str("device", dev.Name()).Str("host", s.host.Name()).Msg("output device selected")
	return nil
}

// Start opens a stream on the device and begins playback. The device is
// resolved again so one that vanished since Open is reported here.
func (s *Sink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return ErrNotOpen
	case StatePlaying:
		return ErrAlreadyPlaying
	}

	dev, err := s.locator.Resolve(s.hint)
	if err != nil {
		return err
	}

	stream, err := s.host.OpenStream(dev, output.StreamConfig{
		Channels:        audio.CanonicalChannels,
		FramesPerBuffer: s.cfg.FramesPerBuffer,
		OnError:         s.streamError,
	})
	if err != nil {
		return startError(err)
	}

	format := stream.Format()
	if format.Channels != audio.CanonicalChannels || format.SampleFormat.BytesPerSample() == 0 {
		stream.Close()
		return startError(fmt.Errorf("%w: %s", output.ErrUnsupported, format))
	}

	pb := &playback{
		id:        uuid.New(),
		stream:    stream,
		format:    format,
		stopWatch: make(chan struct{}),
		watchDone: make(chan struct{}),
	}
	if resample.NeedsResampling(format.SampleRate) {
		pb.resampler = resample.FromCanonical(format.SampleRate)
	}

	opts := []transfer.Option{transfer.WithPushTimeout(s.cfg.PushTimeout)}
	if s.cfg.OnUnderrun != nil {
		opts = append(opts, transfer.WithUnderrunHook(s.cfg.OnUnderrun))
	}
	capacity := audio.SamplesForMs(format.SampleRate, audio.CanonicalChannels, s.cfg.BufferMs)
	pb.channel = transfer.New(capacity, opts...)

	if err := stream.Start(newRenderer(pb.channel, format.SampleFormat, s.cfg.FramesPerBuffer)); err != nil {
		pb.channel.Close()
		stream.Close()
		return startError(err)
	}

	s.device = dev
	s.playback = pb
	s.state = StatePlaying

	s.logger.Info().
		Str("session", pb.id.String()).
		Str("device", dev.Name()).
		Str("format", format.String()).
		Bool("resampling", pb.resampler != nil).
		Int("buffer_samples", pb.channel.Cap()).
		Msg("playback started")

	if s.cfg.WatchInterval > 0 {
		go s.watch(pb, s.cfg.WatchInterval)
	} else {
		close(pb.watchDone)
	}
	return nil
}

// Stop ends playback and returns to Idle. Queued audio is discarded and
// blocked writers return ErrChannelClosed. Stopping a sink that is not
// playing does nothing.
func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlaying {
		return nil
	}

	pb := s.playback
	s.playback = nil
	s.state = StateIdle
	return s.teardown(pb)
}

// teardown must run with s.mu held
func (s *Sink) teardown(pb *playback) error {
	// stream first so the callback is gone before the channel is
	closeErr := pb.stream.Close()
	pb.channel.Close()

	if s.cfg.WatchInterval > 0 {
		close(pb.stopWatch)
	}
	<-pb.watchDone

	st := pb.channel.Stats()
	s.logger.Info().
		Str("session", pb.id.String()).
		Uint64("pushed", st.Pushed).
		Uint64("pulled", st.Pulled).
		Uint64("underruns", st.Underruns).
		Uint64("abandoned", st.Abandoned).
		Msg("playback stopped")

	if closeErr != nil {
		return fmt.Errorf("failed to close output stream: %w", closeErr)
	}
	return nil
}

// Close stops playback if needed and releases the device
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.state == StatePlaying {
		pb := s.playback
		s.playback = nil
		err = s.teardown(pb)
	}

	s.state = StateClosed
	s.device = nil
	s.hint = ""
	return err
}

// Write queues a chunk of canonical interleaved stereo samples. It blocks
// while the transfer channel is full.
func (s *Sink) Write(samples []int16) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	pb := s.playback
	s.mu.Unlock()

	if pb == nil {
		return ErrNotPlaying
	}
	if len(samples)%audio.CanonicalChannels != 0 {
		return ErrInvalidChunkLength
	}
	if len(samples) == 0 {
		return nil
	}

	out := samples
	if pb.resampler != nil {
		var err error
		pb.scratch, err = pb.resampler.AdaptInto(pb.scratch[:0], samples)
		if err != nil {
			return err
		}
		out = pb.scratch
	}

	return pb.channel.Push(out)
}

// State returns the current lifecycle state
func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Device returns the resolved device, nil while closed
func (s *Sink) Device() output.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Format returns the negotiated stream format while playing
func (s *Sink) Format() (audio.Format, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playback == nil {
		return audio.Format{}, false
	}
	return s.playback.format, true
}

// SessionID identifies the current playing session, empty otherwise
func (s *Sink) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playback == nil {
		return ""
	}
	return s.playback.id.String()
}

func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{State: s.state}
	if s.device != nil {
		st.Device = s.device.Name()
	}
	if pb := s.playback; pb != nil {
		st.SessionID = pb.id.String()
		st.Format = pb.format
		st.Resampling = pb.resampler != nil
		st.Channel = pb.channel.Stats()
	}
	return st
}

func (s *Sink) streamError(err error) {
	s.logger.Error().Err(err).Msg("output stream error")
	if s.cfg.OnStreamError != nil {
		s.cfg.OnStreamError(err)
	}
}

// watch logs underrun growth off the audio thread
func (s *Sink) watch(pb *playback, interval time.Duration) {
	defer close(pb.watchDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastCount, lastSamples uint64
	for {
		select {
		case <-pb.stopWatch:
			return
		case <-ticker.C:
		}

		st := pb.channel.Stats()
		if st.Underruns > lastCount {
			s.logger.Warn().
				Str("session", pb.id.String()).
				Uint64("underruns", st.Underruns-lastCount).
				Uint64("missing_samples", st.UnderrunSamples-lastSamples).
				Int("queued", st.Queued).
				Msg("output underrun")
			lastCount = st.Underruns
			lastSamples = st.UnderrunSamples
		}
	}
}
