// ABOUTME: Websocket PCM ingest server
// ABOUTME: Accepts one streaming session at a time and feeds it into the sink
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/resonate-sink/internal/version"
)

// DefaultPath is where the websocket endpoint is mounted
const DefaultPath = "/pcm"

const (
	handshakeTimeout = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Writer receives canonical samples; *sink.Sink satisfies it
type Writer interface {
	Write(samples []int16) error
}

// Session describes one connected producer
type Session struct {
	ID     string
	Remote string
	Header Header
}

// SessionStats is reported when a session ends
type SessionStats struct {
	Session
	Messages int64
	Samples  int64
	Err      error
}

type Config struct {
	Path   string
	Writer Writer
	Logger *zerolog.Logger

	OnSessionStart func(Session)
	OnSessionEnd   func(SessionStats)
}

type readyMessage struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Server  string `json:"server"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Server accepts websocket producers
type Server struct {
	config   Config
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu     sync.Mutex
	active *websocket.Conn

	wg sync.WaitGroup
}

// New creates an ingest server writing into cfg.Writer
func New(cfg Config) *Server {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Server{
		config: cfg,
		logger: logger.With().Str("component", "ingest").Logger(),
		upgrader: websocket.Upgrader{
			// producers on the local network are not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc(cfg.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the ingest endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Str("path", s.config.Path).Msg("ingest listening")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("ingest shutdown")
	}

	// hijacked connections are not closed by Shutdown
	s.mu.Lock()
	if s.active != nil {
		s.active.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()

	if serveErr != nil {
		return fmt.Errorf("ingest server failed: %w", serveErr)
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	defer conn.Close()

	if !s.claim(conn) {
		s.sendError(conn, "another producer is already streaming")
		return
	}
	defer s.release(conn)

	s.handleConnection(conn, r.RemoteAddr)
}

// claim makes conn the single active producer
func (s *Server) claim(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return false
	}
	s.active = conn
	return true
}

func (s *Server) release(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == conn {
		s.active = nil
	}
}

func (s *Server) handleConnection(conn *websocket.Conn, remote string) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	var header Header
	if err := conn.ReadJSON(&header); err != nil {
		s.logger.Warn().Err(err).Str("remote", remote).Msg("failed to read stream header")
		s.sendError(conn, "expected JSON stream header")
		return
	}

	p, err := newPipeline(header)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", remote).Msg("rejected stream header")
		s.sendError(conn, err.Error())
		return
	}
	conn.SetReadDeadline(time.Time{})

	session := Session{ID: uuid.New().String(), Remote: remote, Header: header}
	logger := s.logger.With().Str("session", session.ID).Logger()

	if err := conn.WriteJSON(readyMessage{Type: "ready", Session: session.ID, Server: version.String()}); err != nil {
		logger.Warn().Err(err).Msg("failed to send ready")
		return
	}

	logger.Info().
		Str("remote", remote).
		Str("codec", header.Codec).
		Int("rate", header.SampleRate).
		Int("channels", header.Channels).
		Msg("ingest session started")
	if s.config.OnSessionStart != nil {
		s.config.OnSessionStart(session)
	}

	stats := SessionStats{Session: session}
	stats.Err = s.stream(conn, p, &stats)

	if stats.Err != nil {
		logger.Warn().Err(stats.Err).Int64("samples", stats.Samples).Msg("ingest session ended")
	} else {
		logger.Info().Int64("samples", stats.Samples).Msg("ingest session ended")
	}
	if s.config.OnSessionEnd != nil {
		s.config.OnSessionEnd(stats)
	}
}

// stream pumps binary messages into the writer until the producer leaves
func (s *Server) stream(conn *websocket.Conn, p *pipeline, stats *SessionStats) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		samples, err := p.process(data)
		if err != nil {
			s.sendError(conn, err.Error())
			return err
		}
		stats.Messages++
		if len(samples) == 0 {
			continue
		}

		if err := s.config.Writer.Write(samples); err != nil {
			s.sendError(conn, err.Error())
			return fmt.Errorf("failed to write to sink: %w", err)
		}
		stats.Samples += int64(len(samples))
	}
}

func (s *Server) sendError(conn *websocket.Conn, msg string) {
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := conn.WriteJSON(errorMessage{Type: "error", Message: msg}); err != nil {
		s.logger.Debug().Err(err).Msg("failed to send error message")
	}
}
