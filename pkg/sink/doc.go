// Package sink plays canonical 44.1kHz interleaved stereo s16 PCM on a host
// output device.
//
// A Sink moves through three states. Open resolves a device and leaves the
// sink Idle. Start negotiates a stream, inserts a linear resampler when the
// device does not run at 44.1kHz, and begins playback. Write hands chunks to
// a bounded transfer channel that the device callback drains; it blocks while
// the channel is full. Stop tears the session down and Close releases the
// device.
//
//	s := sink.New(host, sink.Config{})
//	if err := s.Open(""); err != nil {
//		return err
//	}
//	if err := s.Start(); err != nil {
//		return err
//	}
//	defer s.Close()
//	for chunk := range chunks {
//		if err := s.Write(chunk); err != nil {
//			return err
//		}
//	}
package sink
