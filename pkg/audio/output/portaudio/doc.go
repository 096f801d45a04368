// Package portaudio provides an output.Host backed by PortAudio.
//
// PortAudio is only compiled in with the portaudio build tag:
//
//	go build -tags portaudio ./cmd/resonate-sink
//
// Without the tag NewHost returns ErrNotEnabled.
package portaudio
