// ABOUTME: Dynamics and saturation effects
// ABOUTME: Limiter and compressor envelopes plus a tanh saturator
package effect

import (
	"math"

	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
)

func dbToLinear(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

// Limiter keeps peaks under a ceiling with a soft knee and an
// attack/sustain/release gain envelope. Envelope state carries across calls.
type Limiter struct {
	Base
	gain      *control.Float
	threshold *control.Float
	ceiling   *control.Float
	attack    *control.Float
	release   *control.Float
	sustain   *control.Float

	envelope float32
	hold     float32
}

// NewLimiter creates a limiter
func NewLimiter() *Limiter {
	return &Limiter{
		Base:      NewBase(Realtime),
		gain:      control.NewFloat("Gain", -24, 24, 0),
		threshold: control.NewFloat("Soft Saturation Threshold", -12, 0, -6),
		ceiling:   control.NewFloat("Limiter Ceiling", -20, 0, -0.1),
		attack:    control.NewFloat("Envelope Attack", 0.001, 1, 0.01),
		release:   control.NewFloat("Envelope Release", 0.01, 3, 0.1),
		sustain:   control.NewFloat("Envelope Sustain", 0, 1, 0),
		envelope:  1,
	}
}

func (e *Limiter) Gain() *control.Float      { return e.gain }
func (e *Limiter) Threshold() *control.Float { return e.threshold }
func (e *Limiter) Ceiling() *control.Float   { return e.ceiling }
func (e *Limiter) Attack() *control.Float    { return e.attack }
func (e *Limiter) Release() *control.Float   { return e.release }
func (e *Limiter) Sustain() *control.Float   { return e.sustain }

func (e *Limiter) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	gain := dbToLinear(e.gain.Value())
	soft := dbToLinear(e.threshold.Value())
	ceiling := dbToLinear(e.ceiling.Value())
	attackCoeff := float32(math.Exp(-1 / (float64(sampleRate) * float64(e.attack.Value()))))
	releaseCoeff := float32(math.Exp(-1 / (float64(sampleRate) * float64(e.release.Value()))))
	sustainFrames := e.sustain.Value() * float32(sampleRate)

	frames := len(buf[0])
	for i := 0; i < frames; i++ {
		var peak float32
		for ch := range buf {
			v := buf[ch][i] * gain
			if v < 0 {
				v = -v
			}
			peak = max(peak, v)
		}

		reduction := float32(1)
		if peak > soft {
			if peak > ceiling {
				reduction = ceiling / peak
			} else if ceiling > soft {
				excess := (peak - soft) / (ceiling - soft)
				reduction = 1 / (1 + excess*excess)
			}
		}

		if reduction < e.envelope {
			e.envelope = attackCoeff*(e.envelope-reduction) + reduction
			e.hold = sustainFrames
		} else if e.hold > 0 {
			e.hold--
		} else {
			e.envelope = releaseCoeff*(e.envelope-1) + 1
		}
		// the ceiling is a hard limit regardless of envelope lag
		if peak*e.envelope > ceiling {
			e.envelope = ceiling / peak
		}

		g := gain * e.envelope
		for ch := range buf {
			buf[ch][i] *= g
		}
	}
	return nil
}

// Saturator adds tanh saturation blended with the dry signal
type Saturator struct {
	Base
	saturation *control.Float
	dry        *control.Float
	wet        *control.Float
}

// NewSaturator creates a saturator
func NewSaturator() *Saturator {
	return &Saturator{
		Base:       NewBase(Realtime),
		saturation: control.NewFloat("Saturation", 0, 20, 1.5),
		dry:        control.NewFloat("Dry", 0, 1.25, 1),
		wet:        control.NewFloat("Wet", 0, 1.25, 0.5),
	}
}

func (e *Saturator) Saturation() *control.Float { return e.saturation }
func (e *Saturator) Dry() *control.Float        { return e.dry }
func (e *Saturator) Wet() *control.Float        { return e.wet }

func (e *Saturator) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	drive := float64(e.saturation.Value())
	dry := e.dry.Value()
	wet := e.wet.Value()
	for ch := range buf {
		for i, v := range buf[ch] {
			s := float32(math.Tanh(float64(v) * drive))
			buf[ch][i] = s*wet + v*dry
		}
	}
	return nil
}

// Compressor reduces the level above a threshold by ratio, following the
// average absolute level across channels with an attack/release envelope.
type Compressor struct {
	Base
	threshold *control.Float
	ratio     *control.Float
	attack    *control.Float
	release   *control.Float
	makeup    *control.Float

	envelope float32
}

// NewCompressor creates a compressor (-24 dB threshold, 3:1)
func NewCompressor() *Compressor {
	return &Compressor{
		Base:      NewBase(Realtime),
		threshold: control.NewFloat("Threshold", -60, 0, -24),
		ratio:     control.NewFloat("Ratio", 1, 20, 3),
		attack:    control.NewFloat("Attack", 0.0001, 0.2, 0.01),
		release:   control.NewFloat("Release", 0.001, 2, 0.2),
		makeup:    control.NewFloat("Makeup Gain", -24, 24, 2),
		envelope:  1,
	}
}

func (e *Compressor) Threshold() *control.Float { return e.threshold }
func (e *Compressor) Ratio() *control.Float     { return e.ratio }
func (e *Compressor) Attack() *control.Float    { return e.attack }
func (e *Compressor) Release() *control.Float   { return e.release }
func (e *Compressor) Makeup() *control.Float    { return e.makeup }

func (e *Compressor) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	threshold := float64(e.threshold.Value())
	ratio := float64(e.ratio.Value())
	makeup := dbToLinear(e.makeup.Value())
	attackCoeff := float32(math.Exp(-1 / (float64(sampleRate) * float64(e.attack.Value()))))
	releaseCoeff := float32(math.Exp(-1 / (float64(sampleRate) * float64(e.release.Value()))))

	frames := len(buf[0])
	for i := 0; i < frames; i++ {
		var level float32
		for ch := range buf {
			v := buf[ch][i]
			if v < 0 {
				v = -v
			}
			level += v
		}
		level /= float32(len(buf))

		target := float32(1)
		db := 20 * math.Log10(float64(level)+1e-8)
		if db > threshold {
			reduction := threshold + (db-threshold)/ratio - db
			target = float32(math.Pow(10, reduction/20))
		}

		if target < e.envelope {
			e.envelope = attackCoeff*(e.envelope-target) + target
		} else {
			e.envelope = releaseCoeff*(e.envelope-target) + target
		}

		g := e.envelope * makeup
		for ch := range buf {
			buf[ch][i] *= g
		}
	}
	return nil
}
