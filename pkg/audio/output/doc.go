// ABOUTME: Audio output package for driving host audio devices
// ABOUTME: Provides Host/Stream/Renderer interfaces and pure-Go null and file hosts
// Package output abstracts the host audio API behind a small set of interfaces.
//
// A Host enumerates Devices and opens a Stream on one of them. The stream's
// negotiated Format is available before Start, so the caller can prepare its
// resampler and buffers. Start registers a Renderer that the host calls from
// its audio thread.
//
// Hardware backends live in sub-packages (malgo, oto, portaudio). This package
// ships two pure-Go hosts driven by a clocked goroutine: NewNullHost discards
// audio and NewFileHost captures it to a WAV file.
//
// Example:
//
//	host := output.NewNullHost(48000)
//	dev, _ := host.DefaultDevice()
//	stream, _ := host.OpenStream(dev, output.StreamConfig{Channels: 2})
//	err := stream.Start(renderer)
package output
