// ABOUTME: Tests for the pure-Go output hosts
// ABOUTME: Verifies clocked draining, device handles and WAV capture
package output

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRenderer emits an increasing sample sequence
type countingRenderer struct {
	mu    sync.Mutex
	next  int16
	calls int
}

func (r *countingRenderer) Render(out []byte) {}

func (r *countingRenderer) RenderInt16(out []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for i := range out {
		out[i] = r.next
		r.next++
	}
}

func (r *countingRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestHostsImplementHost(t *testing.T) {
	var _ Host = (*NullHost)(nil)
	var _ Host = (*FileHost)(nil)
	var _ Device = (*DeviceInfo)(nil)
}

func TestNullHostDevices(t *testing.T) {
	host := NewNullHost(48000, WithDeviceName("bench"))

	devices, err := host.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "bench", devices[0].Name())
	assert.True(t, devices[0].IsDefault())
	assert.Equal(t, 48000, devices[0].Formats()[0].SampleRate)

	def, err := host.DefaultDevice()
	require.NoError(t, err)
	assert.Equal(t, devices[0], def)
}

func TestNullHostRejectsForeignDevice(t *testing.T) {
	host := NewNullHost(48000)
	_, err := host.OpenStream(&DeviceInfo{DeviceName: "other"}, StreamConfig{Channels: 2})
	assert.ErrorIs(t, err, ErrForeignDevice)
}

func TestNullHostRejectsChannelCount(t *testing.T) {
	host := NewNullHost(48000)
	dev, _ := host.DefaultDevice()
	_, err := host.OpenStream(dev, StreamConfig{Channels: 6})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestClockedStreamDrainsUntilClosed(t *testing.T) {
	host := NewNullHost(48000, WithPeriod(time.Millisecond))
	dev, _ := host.DefaultDevice()

	stream, err := host.OpenStream(dev, StreamConfig{Channels: 2})
	require.NoError(t, err)
	assert.Equal(t, 48000, stream.Format().SampleRate)

	r := &countingRenderer{}
	require.NoError(t, stream.Start(r))
	assert.ErrorIs(t, stream.Start(r), ErrStreamStarted)

	require.Eventually(t, func() bool { return r.Calls() >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, stream.Close())
	calls := r.Calls()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, calls, r.Calls(), "renderer called after Close returned")

	// 48 frames of stereo per 1ms tick
	assert.Equal(t, uint64(calls*96), host.Rendered())

	require.NoError(t, stream.Close())
	assert.ErrorIs(t, stream.Start(r), ErrStreamClosed)
}

func TestFileHostCapturesWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	host := NewFileHost(path, 44100, WithPeriod(time.Millisecond))
	dev, err := host.DefaultDevice()
	require.NoError(t, err)
	assert.Equal(t, "wav:"+path, dev.Name())

	stream, err := host.OpenStream(dev, StreamConfig{Channels: 2})
	require.NoError(t, err)

	_, err = host.OpenStream(dev, StreamConfig{Channels: 2})
	assert.ErrorIs(t, err, ErrDeviceBusy)

	r := &countingRenderer{}
	require.NoError(t, stream.Start(r))
	require.Eventually(t, func() bool { return r.Calls() >= 2 }, time.Second, time.Millisecond)
	require.NoError(t, stream.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 44100, buf.Format.SampleRate)
	require.NotEmpty(t, buf.Data)
	for i, v := range buf.Data {
		if v != int(int16(i)) {
			t.Fatalf("sample %d: expected %d, got %d", i, int16(i), v)
		}
	}

	// The device is free again once the stream is closed
	stream, err = host.OpenStream(dev, StreamConfig{Channels: 2})
	require.NoError(t, err)
	require.NoError(t, stream.Close())
}
