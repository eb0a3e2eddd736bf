// ABOUTME: Audio resampling package with interchangeable interpolation methods
// ABOUTME: Converts sample sequences between lengths and sample rates
// Package resample provides sample sequence length conversion.
//
// A Method maps one channel onto a different length. Nearest, Linear,
// Cubic (Catmull-Rom) and Lanczos (windowed sinc) are provided. Reads outside
// the input range are clamped to the nearest edge sample.
//
// Resampler applies a Method to every channel of a channel-major buffer.
// Stream keeps interpolation state between consecutive chunks, for
// continuous rate conversion of a live signal.
//
// Example:
//
//	r := resample.New(resample.Cubic{})
//	out, err := r.ResampleTo(buf, 480)
package resample
