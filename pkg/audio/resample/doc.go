// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Adapts canonical 44.1kHz stereo PCM to whatever rate a device requires
// Package resample provides stereo sample rate conversion for the sink.
//
// Each chunk is interpolated starting from the last frame of the previous
// chunk, so consecutive chunks join without discontinuity. Input must be a
// whole number of interleaved stereo frames.
//
// Example:
//
//	r := resample.FromCanonical(48000)
//	out, err := r.Adapt(chunk)
package resample
