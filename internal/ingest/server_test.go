package ingest

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	samples []int16
	err     error
}

func (w *recordingWriter) Write(samples []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.samples = append(w.samples, samples...)
	return nil
}

func (w *recordingWriter) Samples() []int16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int16(nil), w.samples...)
}

func encodePCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

type testServer struct {
	server *Server
	http   *httptest.Server
	writer *recordingWriter
	ended  chan SessionStats
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	ts := &testServer{writer: &recordingWriter{}, ended: make(chan SessionStats, 4)}
	ts.server = New(Config{
		Writer:       ts.writer,
		Logger:       &logger,
		OnSessionEnd: func(st SessionStats) { ts.ended <- st },
	})
	ts.http = httptest.NewServer(ts.server.Handler())
	t.Cleanup(ts.http.Close)
	return ts
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + DefaultPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func handshake(t *testing.T, conn *websocket.Conn, h Header) map[string]string {
	t.Helper()
	require.NoError(t, conn.WriteJSON(h))
	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func closeNormally(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, msg))
}

func (ts *testServer) waitEnd(t *testing.T) SessionStats {
	t.Helper()
	select {
	case st := <-ts.ended:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
		return SessionStats{}
	}
}

func TestPCMPassthrough(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	reply := handshake(t, conn, Header{Codec: CodecPCM, SampleRate: 44100, Channels: 2})
	assert.Equal(t, "ready", reply["type"])
	assert.NotEmpty(t, reply["session"])

	first := []int16{1, -1, 2, -2}
	second := []int16{3, -3}
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodePCM(first)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodePCM(second)))
	closeNormally(t, conn)

	st := ts.waitEnd(t)
	assert.NoError(t, st.Err)
	assert.Equal(t, reply["session"], st.ID)
	assert.Equal(t, int64(2), st.Messages)
	assert.Equal(t, int64(6), st.Samples)
	assert.Equal(t, append(first, second...), ts.writer.Samples())
}

func TestPCMMonoIsCanonicalised(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	handshake(t, conn, Header{Codec: CodecPCM, SampleRate: 22050, Channels: 1})

	mono := make([]int16, 2205) // 100ms
	for i := range mono {
		mono[i] = 500
	}
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodePCM(mono)))
	closeNormally(t, conn)
	ts.waitEnd(t)

	got := ts.writer.Samples()
	assert.Equal(t, 0, len(got)%2)
	assert.InDelta(t, 2*4410, len(got), 4)
	assert.Equal(t, int16(500), got[len(got)-1])
	assert.Equal(t, got[len(got)-2], got[len(got)-1])
}

func TestRejectsBadHeader(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	reply := handshake(t, conn, Header{Codec: "flac", SampleRate: 44100, Channels: 2})
	assert.Equal(t, "error", reply["type"])
	assert.Contains(t, reply["message"], "flac")
}

func TestRejectsOddPayload(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	handshake(t, conn, Header{Codec: CodecPCM, SampleRate: 44100, Channels: 2})
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

	st := ts.waitEnd(t)
	assert.ErrorIs(t, st.Err, ErrOddPayload)
}

func TestSinkErrorEndsSession(t *testing.T) {
	ts := newTestServer(t)
	ts.writer.err = errors.New("sink not playing")
	conn := ts.dial(t)

	handshake(t, conn, Header{Codec: CodecPCM, SampleRate: 44100, Channels: 2})
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, encodePCM([]int16{1, 2})))

	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply["type"])
	assert.Contains(t, reply["message"], "not playing")

	st := ts.waitEnd(t)
	assert.Error(t, st.Err)
}

func TestSecondProducerRejected(t *testing.T) {
	ts := newTestServer(t)
	first := ts.dial(t)
	handshake(t, first, Header{Codec: CodecPCM, SampleRate: 44100, Channels: 2})

	second := ts.dial(t)
	var reply map[string]string
	require.NoError(t, second.ReadJSON(&reply))
	assert.Equal(t, "error", reply["type"])
	assert.Contains(t, reply["message"], "already streaming")
}

func TestServeStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	srv := New(Config{Writer: &recordingWriter{}, Logger: &logger})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+DefaultPath, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(Header{Codec: CodecPCM, SampleRate: 44100, Channels: 2}))

	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestHeaderValidate(t *testing.T) {
	tests := []struct {
		name    string
		header  Header
		wantErr bool
	}{
		{"pcm stereo", Header{CodecPCM, 44100, 2}, false},
		{"pcm mono 96k", Header{CodecPCM, 96000, 1}, false},
		{"opus 48k", Header{CodecOpus, 48000, 2}, false},
		{"opus 44.1k", Header{CodecOpus, 44100, 2}, true},
		{"unknown codec", Header{"aac", 44100, 2}, true},
		{"rate too low", Header{CodecPCM, 4000, 2}, true},
		{"surround", Header{CodecPCM, 48000, 6}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.header.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadHeader)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
