// ABOUTME: Second-order IIR filter effect
// ABOUTME: RBJ cookbook coefficients with per-channel direct form I state
package effect

import (
	"math"
	"sync/atomic"

	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
)

// FilterKind selects the biquad response
type FilterKind int32

const (
	LowPassFilter FilterKind = iota
	HighPassFilter
	BandPassFilter
	NotchFilter
	PeakFilter
	AllPassFilter
)

func (k FilterKind) String() string {
	switch k {
	case LowPassFilter:
		return "lowpass"
	case HighPassFilter:
		return "highpass"
	case BandPassFilter:
		return "bandpass"
	case NotchFilter:
		return "notch"
	case PeakFilter:
		return "peak"
	case AllPassFilter:
		return "allpass"
	}
	return "unknown"
}

type biquadState struct {
	x1, x2, y1, y2 float32
}

// Biquad is a two-pole, two-zero filter. Gain only affects PeakFilter.
type Biquad struct {
	Base
	kind   atomic.Int32
	cutoff *control.Float
	q      *control.Float
	gain   *control.Float

	state []biquadState
}

// NewBiquad creates a filter of the given kind (cutoff 1 kHz, Q 0.707)
func NewBiquad(kind FilterKind) *Biquad {
	b := &Biquad{
		Base:   NewBase(Realtime),
		cutoff: control.NewFloat("Cutoff", 20, 22000, 1000),
		q:      control.NewFloat("Q", 0.1, 20, 0.707),
		gain:   control.NewFloat("Gain", -24, 24, 0),
	}
	b.kind.Store(int32(kind))
	return b
}

func (e *Biquad) Cutoff() *control.Float { return e.cutoff }
func (e *Biquad) Q() *control.Float      { return e.q }
func (e *Biquad) Gain() *control.Float   { return e.gain }

// Kind returns the filter response
func (e *Biquad) Kind() FilterKind { return FilterKind(e.kind.Load()) }

// SetKind switches the response. Filter state is kept.
func (e *Biquad) SetKind(k FilterKind) { e.kind.Store(int32(k)) }

// coefficients returns b0, b1, b2, a1, a2 normalized by a0
func (e *Biquad) coefficients(sampleRate int) [5]float64 {
	fs := float64(sampleRate)
	fc := float64(e.cutoff.Value())
	if fc >= fs/2 {
		fc = fs / 4
	}
	q := float64(e.q.Value())
	a := math.Pow(10, float64(e.gain.Value())/40)

	w := 2 * math.Pi * fc / fs
	sn, cs := math.Sin(w), math.Cos(w)
	alpha := sn / (2 * q)

	var b0, b1, b2, a0, a1, a2 float64
	a0, a1, a2 = 1+alpha, -2*cs, 1-alpha
	switch e.Kind() {
	case HighPassFilter:
		b0, b1, b2 = (1+cs)/2, -(1 + cs), (1+cs)/2
	case BandPassFilter:
		b0, b1, b2 = alpha, 0, -alpha
	case NotchFilter:
		b0, b1, b2 = 1, -2*cs, 1
	case PeakFilter:
		b0, b1, b2 = 1+alpha*a, -2*cs, 1-alpha*a
		a0, a2 = 1+alpha/a, 1-alpha/a
	case AllPassFilter:
		b0, b1, b2 = 1-alpha, -2*cs, 1+alpha
	default:
		b0, b1, b2 = (1-cs)/2, 1-cs, (1-cs)/2
	}
	return [5]float64{b0 / a0, b1 / a0, b2 / a0, a1 / a0, a2 / a0}
}

func (e *Biquad) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	if len(e.state) != len(buf) {
		e.state = make([]biquadState, len(buf))
	}
	c := e.coefficients(sampleRate)
	b0, b1, b2 := float32(c[0]), float32(c[1]), float32(c[2])
	a1, a2 := float32(c[3]), float32(c[4])

	for ch := range buf {
		s := e.state[ch]
		for i, x := range buf[ch] {
			y := b0*x + b1*s.x1 + b2*s.x2 - a1*s.y1 - a2*s.y2
			s.x2, s.x1 = s.x1, x
			s.y2, s.y1 = s.y1, y
			buf[ch][i] = y
		}
		e.state[ch] = s
	}
	return nil
}
