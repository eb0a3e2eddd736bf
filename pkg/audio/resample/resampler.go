// ABOUTME: Multi-channel resampler built on a single-channel Method
// ABOUTME: Validates buffer shape and resamples each channel independently
package resample

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

// Resampler converts channel-major buffers between lengths
type Resampler struct {
	method Method
}

// New creates a resampler. A nil method selects Linear.
func New(method Method) *Resampler {
	if method == nil {
		method = Linear{}
	}
	return &Resampler{method: method}
}

// Method returns the interpolation method in use
func (r *Resampler) Method() Method {
	return r.method
}

// Resample fills out from in. Both buffers must have the same channel count
// and every channel of each buffer must share one length.
func (r *Resampler) Resample(in, out [][]float32) error {
	if err := audio.CheckLength(in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err := audio.CheckLength(out); err != nil {
		return fmt.Errorf("invalid output: %w", err)
	}
	if len(in) != len(out) {
		return fmt.Errorf("%w: input has %d channels, output %d", audio.ErrChannelsMismatch, len(in), len(out))
	}
	if audio.Frames(in) == audio.Frames(out) {
		for ch := range in {
			copy(out[ch], in[ch])
		}
		return nil
	}
	for ch := range in {
		r.method.Resample(in[ch], out[ch])
	}
	return nil
}

// ResampleTo returns a new buffer of frames frames resampled from in
func (r *Resampler) ResampleTo(in [][]float32, frames int) ([][]float32, error) {
	if frames < 0 {
		return nil, fmt.Errorf("%w: negative target length %d", audio.ErrLengthMismatch, frames)
	}
	out := audio.NewBuffer(len(in), frames)
	if err := r.Resample(in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Speed resamples in so that it plays back speed times faster
func (r *Resampler) Speed(in [][]float32, speed float64) ([][]float32, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("invalid speed %v", speed)
	}
	frames := int(math.Ceil(float64(audio.Frames(in)) / speed))
	return r.ResampleTo(in, frames)
}
