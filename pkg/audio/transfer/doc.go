// Package transfer hands interleaved samples from a producer goroutine to a
// realtime consumer.
//
// A Channel is sized in samples (DefaultCapacity is about 100ms of canonical
// stereo audio). Push blocks until the consumer drains enough space, which
// throttles decoding to playback speed. Pull never waits: a shortfall is
// padded with silence and counted as an underrun. Close unblocks any waiting
// producer with ErrChannelClosed.
package transfer
