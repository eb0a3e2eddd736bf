// ABOUTME: Channel-major buffer helpers
// ABOUTME: Allocation, shape checks, padding and interleaving of float buffers
package audio

import "fmt"

// NewBuffer allocates a zeroed [channels][frames] buffer
func NewBuffer(channels, frames int) [][]float32 {
	buf := make([][]float32, channels)
	backing := make([]float32, channels*frames)
	for ch := range buf {
		buf[ch] = backing[ch*frames : (ch+1)*frames : (ch+1)*frames]
	}
	return buf
}

// Frames returns the per-channel length of buf, or 0 for an empty buffer
func Frames(buf [][]float32) int {
	if len(buf) == 0 {
		return 0
	}
	return len(buf[0])
}

// CheckLength verifies that buf has at least one channel and that all
// channels share the same length
func CheckLength(buf [][]float32) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	n := len(buf[0])
	for ch := 1; ch < len(buf); ch++ {
		if len(buf[ch]) != n {
			return fmt.Errorf("%w: channel %d has %d frames, expected %d", ErrLengthMismatch, ch, len(buf[ch]), n)
		}
	}
	return nil
}

// CheckShape verifies channel count and per-channel length
func CheckShape(buf [][]float32, channels, frames int) error {
	if len(buf) != channels {
		return fmt.Errorf("%w: got %d, expected %d", ErrChannelsMismatch, len(buf), channels)
	}
	for ch := range buf {
		if len(buf[ch]) != frames {
			return fmt.Errorf("%w: channel %d has %d frames, expected %d", ErrLengthMismatch, ch, len(buf[ch]), frames)
		}
	}
	return nil
}

// CopyInto copies src into dst. Shapes must match exactly.
func CopyInto(dst, src [][]float32) error {
	if err := CheckShape(dst, len(src), Frames(src)); err != nil {
		return err
	}
	for ch := range src {
		copy(dst[ch], src[ch])
	}
	return nil
}

// Zero clears every sample in buf
func Zero(buf [][]float32) {
	for ch := range buf {
		clear(buf[ch])
	}
}

// Clone returns a deep copy of buf
func Clone(buf [][]float32) [][]float32 {
	out := NewBuffer(len(buf), Frames(buf))
	for ch := range buf {
		copy(out[ch], buf[ch])
	}
	return out
}

// PadWithLast returns buf extended to frames, repeating each channel's last
// sample. Buffers already at least frames long are returned unchanged.
func PadWithLast(buf [][]float32, frames int) [][]float32 {
	if Frames(buf) >= frames {
		return buf
	}
	out := NewBuffer(len(buf), frames)
	for ch := range buf {
		n := copy(out[ch], buf[ch])
		var last float32
		if n > 0 {
			last = buf[ch][n-1]
		}
		for i := n; i < frames; i++ {
			out[ch][i] = last
		}
	}
	return out
}

// Cut returns buf trimmed to frames without copying
func Cut(buf [][]float32, frames int) [][]float32 {
	if Frames(buf) <= frames {
		return buf
	}
	out := make([][]float32, len(buf))
	for ch := range buf {
		out[ch] = buf[ch][:frames]
	}
	return out
}

// Interleave converts a channel-major buffer into frame-major samples
func Interleave(buf [][]float32) []float32 {
	channels := len(buf)
	frames := Frames(buf)
	out := make([]float32, channels*frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = buf[ch][i]
		}
	}
	return out
}

// Deinterleave splits frame-major samples into a channel-major buffer.
// A trailing partial frame is dropped.
func Deinterleave(samples []float32, channels int) [][]float32 {
	if channels <= 0 {
		return nil
	}
	frames := len(samples) / channels
	out := NewBuffer(channels, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[ch][i] = samples[i*channels+ch]
		}
	}
	return out
}
