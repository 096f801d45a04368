// ABOUTME: Audio fundamentals package providing core PCM types and utilities
// ABOUTME: Defines Frame, Format, SampleFormat and boundary sample conversions
// Package audio provides the PCM types shared by the sink and its backends.
//
// The producer contract is fixed: 2-channel, 16-bit signed, interleaved PCM at
// 44100 Hz. Devices may negotiate other rates and sample formats; rescaling to
// those formats happens only at the hardware boundary via Encode.
//
// Example:
//
//	out := make([]byte, len(samples)*audio.FormatF32.BytesPerSample())
//	audio.Encode(out, samples, audio.FormatF32)
package audio
