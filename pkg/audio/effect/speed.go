// ABOUTME: Playback speed effect that changes buffer length
// ABOUTME: Resamples the input so it plays faster or slower than realtime
package effect

import (
	"math"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/resample"
)

// Speed changes playback speed by resampling. It implements VaryingSize:
// producing n frames consumes ceil(n*speed) frames.
type Speed struct {
	Base
	speed  *control.Float
	method resample.Method
}

// NewSpeed creates a speed effect. A nil method selects cubic interpolation.
func NewSpeed(method resample.Method) *Speed {
	if method == nil {
		method = resample.Cubic{}
	}
	return &Speed{
		Base:   NewBase(Realtime),
		speed:  control.NewFloat("Speed", 0.001, 50, 1),
		method: method,
	}
}

// Speed returns the speed control
func (s *Speed) Speed() *control.Float { return s.speed }

// TargetLength implements VaryingSize
func (s *Speed) TargetLength(outputLength int) int {
	return int(math.Ceil(float64(outputLength) * float64(s.speed.Value())))
}

// Render resamples buf in place. When slowing down, only the first
// TargetLength(len) frames carry signal; the rest is padding and is
// overwritten. When speeding up, frames past the resampled length are zeroed.
func (s *Speed) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	n := audio.Frames(buf)
	if n == 0 {
		return nil
	}
	speed := float64(s.speed.Value())
	if speed == 1 {
		return nil
	}

	src := n
	dst := n
	if speed < 1 {
		src = max(1, min(n, int(math.Ceil(float64(n)*speed))))
	} else {
		dst = max(1, int(math.Ceil(float64(n)/speed)))
	}

	tmp := make([]float32, dst)
	for ch := range buf {
		s.method.Resample(buf[ch][:src], tmp)
		copy(buf[ch], tmp)
		clear(buf[ch][dst:])
	}
	return nil
}
