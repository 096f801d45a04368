// ABOUTME: Entry point for the Resonate sink
// ABOUTME: Plays files, tones or websocket PCM through a host audio device
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-sink/internal/config"
	"github.com/Resonate-Protocol/resonate-sink/internal/discovery"
	"github.com/Resonate-Protocol/resonate-sink/internal/ingest"
	"github.com/Resonate-Protocol/resonate-sink/internal/logging"
	"github.com/Resonate-Protocol/resonate-sink/internal/source"
	"github.com/Resonate-Protocol/resonate-sink/internal/ui"
	"github.com/Resonate-Protocol/resonate-sink/internal/version"
	"github.com/Resonate-Protocol/resonate-sink/pkg/sink"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "resonate-sink: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if errors.Is(err, config.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	useTUI := cfg.UseTUI()

	// TUI mode logs only to the file, streaming mode to both
	logger, logCloser, err := logging.Setup(logging.Config{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: !useTUI && !cfg.List,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	host, err := newHost(cfg, &logger)
	if err != nil {
		return fmt.Errorf("failed to initialise %s backend: %w", cfg.Backend, err)
	}
	defer host.Close()

	if cfg.List {
		return listDevices(os.Stdout, host)
	}

	if !cfg.HasSource() && cfg.Listen == "" {
		return errors.New("nothing to play: use --file, --tone or --listen")
	}

	logger.Info().Str("version", version.Version).Str("backend", cfg.Backend).Msg("starting " + version.Product)

	var tuiProg *tea.Program
	var controls *ui.Controls
	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				logger.Error().Err(err).Msg("tui failed")
			}
		}()
		defer tuiProg.Quit()
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	s := sink.New(host, sink.Config{
		BufferMs:    cfg.BufferMs,
		PushTimeout: cfg.PushTimeout,
		Logger:      &logger,
		OnStreamError: func(err error) {
			updateTUI(ui.StatusMsg{Error: err.Error()})
		},
	})

	if err := s.Open(cfg.Device); err != nil {
		if errors.Is(err, sink.ErrNotFound) {
			listDevices(os.Stderr, host)
		}
		return err
	}
	defer s.Close()

	if err := s.Start(); err != nil {
		return err
	}
	updateTUI(ui.StatusMsg{Backend: cfg.Backend})
	updateTUI(ui.StatusFromSink(s.Stats()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	producerDone := make(chan error, 2)

	if cfg.HasSource() {
		src, err := openSource(cfg)
		if err != nil {
			return err
		}
		defer src.Close()
		updateTUI(ui.StatusMsg{Source: src.Title()})

		go func() {
			err := source.Pump(ctx, src, &resilientWriter{ctx: ctx, sink: s}, 0)
			if err == nil {
				err = drain(ctx, s)
			}
			producerDone <- err
		}()
	}

	if cfg.Listen != "" {
		if err := startIngest(ctx, cfg, s, &logger, updateTUI, producerDone); err != nil {
			return err
		}
	}

	if tuiProg != nil {
		go statsUpdateLoop(ctx, s, updateTUI)
	}

	var quit <-chan struct{}
	var restart <-chan struct{}
	if controls != nil {
		quit = controls.Quit
		restart = controls.Restart
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return nil
		case <-quit:
			logger.Info().Msg("quit requested from tui")
			return nil
		case err := <-producerDone:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.Info().Msg("playback finished")
			return nil
		case <-restart:
			logger.Info().Msg("restarting output stream")
			if err := s.Stop(); err != nil {
				logger.Warn().Err(err).Msg("stop failed")
			}
			if err := s.Start(); err != nil {
				return err
			}
			updateTUI(ui.StatusFromSink(s.Stats()))
		}
	}
}

func openSource(cfg *config.Config) (source.Source, error) {
	if cfg.Tone > 0 {
		return source.NewTone(cfg.Tone), nil
	}
	return source.Open(cfg.File)
}

func startIngest(ctx context.Context, cfg *config.Config, s *sink.Sink, logger *zerolog.Logger, updateTUI func(ui.StatusMsg), done chan<- error) error {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	srv := ingest.New(ingest.Config{
		Writer: s,
		Logger: logger,
		OnSessionStart: func(sess ingest.Session) {
			updateTUI(ui.StatusMsg{Source: fmt.Sprintf("%s (%s %dHz %dch)",
				sess.Remote, sess.Header.Codec, sess.Header.SampleRate, sess.Header.Channels)})
		},
		OnSessionEnd: func(st ingest.SessionStats) {
			if st.Err != nil {
				updateTUI(ui.StatusMsg{Error: st.Err.Error()})
			}
		},
	})

	go func() {
		done <- srv.Serve(ctx, ln)
	}()

	if cfg.Advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		mgr := discovery.NewManager(discovery.Config{
			ServiceName: cfg.ServiceName(),
			Port:        port,
			Path:        ingest.DefaultPath,
			Logger:      logger,
		})
		if err := mgr.Advertise(); err != nil {
			logger.Warn().Err(err).Msg("failed to start mDNS advertisement")
		} else {
			go func() {
				<-ctx.Done()
				mgr.Stop()
			}()
		}
	}
	return nil
}

// resilientWriter rides out a stream restart instead of ending the source
type resilientWriter struct {
	ctx  context.Context
	sink *sink.Sink
}

func (w *resilientWriter) Write(samples []int16) error {
	for {
		err := w.sink.Write(samples)
		if !errors.Is(err, sink.ErrChannelClosed) && !errors.Is(err, sink.ErrNotPlaying) {
			return err
		}

		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// drain waits for queued audio to reach the device
func drain(ctx context.Context, s *sink.Sink) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for s.Stats().Channel.Queued > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// statsUpdateLoop periodically updates TUI with sink statistics
func statsUpdateLoop(ctx context.Context, s *sink.Sink, updateTUI func(ui.StatusMsg)) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	// runtime stats are slower to collect
	runtimeTicker := time.NewTicker(2 * time.Second)
	defer runtimeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-runtimeTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			updateTUI(ui.StatusMsg{
				Goroutines: runtime.NumGoroutine(),
				MemAlloc:   m.Alloc,
				MemSys:     m.Sys,
			})
		case <-ticker.C:
			updateTUI(ui.StatusFromSink(s.Stats()))
		}
	}
}
