// ABOUTME: Single-channel interpolation methods
// ABOUTME: Nearest, linear, Catmull-Rom cubic and Lanczos windowed sinc
package resample

import (
	"fmt"
	"math"
	"strings"
)

// Method fills out from in. The target length is len(out).
type Method interface {
	Resample(in, out []float32)
}

// ParseMethod returns the method with the given name
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return Nearest{}, nil
	case "linear", "":
		return Linear{}, nil
	case "cubic":
		return Cubic{}, nil
	case "lanczos":
		return Lanczos{}, nil
	}
	return nil, fmt.Errorf("unknown resample method %q", name)
}

// sampleAt returns in[i] with i clamped to the valid range
func sampleAt(in []float32, i int) float32 {
	if i < 0 {
		return in[0]
	}
	if i >= len(in) {
		return in[len(in)-1]
	}
	return in[i]
}

// step returns the input distance between consecutive output samples so that
// the first and last outputs land on the first and last inputs
func step(inLen, outLen int) float64 {
	if outLen <= 1 {
		return 0
	}
	return float64(inLen-1) / float64(outLen-1)
}

// fill handles the degenerate cases shared by every method.
// It returns true when out has been fully written.
func fill(in, out []float32) bool {
	switch {
	case len(out) == 0:
		return true
	case len(in) == 0:
		clear(out)
		return true
	case len(in) == len(out):
		copy(out, in)
		return true
	case len(in) == 1:
		for i := range out {
			out[i] = in[0]
		}
		return true
	}
	return false
}

// Nearest picks the closest input sample
type Nearest struct{}

func (Nearest) Resample(in, out []float32) {
	if fill(in, out) {
		return
	}
	s := step(len(in), len(out))
	for i := range out {
		idx := int(math.Round(float64(i) * s))
		out[i] = sampleAt(in, idx)
	}
}

func (Nearest) String() string { return "nearest" }

// Linear interpolates between the two surrounding samples
type Linear struct{}

func (Linear) Resample(in, out []float32) {
	if fill(in, out) {
		return
	}
	s := step(len(in), len(out))
	for i := range out {
		pos := float64(i) * s
		i0 := int(pos)
		t := float32(pos - float64(i0))
		if i0 >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		out[i] = in[i0] + (in[i0+1]-in[i0])*t
	}
}

func (Linear) String() string { return "linear" }

// Cubic interpolates with a Catmull-Rom spline over four neighbours
type Cubic struct{}

func (Cubic) Resample(in, out []float32) {
	if fill(in, out) {
		return
	}
	s := step(len(in), len(out))
	for i := range out {
		pos := float64(i) * s
		i1 := int(pos)
		t := float32(pos - float64(i1))
		out[i] = catmullRom(
			sampleAt(in, i1-1),
			sampleAt(in, i1),
			sampleAt(in, i1+1),
			sampleAt(in, i1+2),
			t,
		)
	}
}

func (Cubic) String() string { return "cubic" }

// CatmullRom evaluates the spline segment between p1 and p2 at t in [0, 1]
func CatmullRom(p0, p1, p2, p3, t float32) float32 {
	return catmullRom(p0, p1, p2, p3, t)
}

func catmullRom(p0, p1, p2, p3, t float32) float32 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * (2*p1 +
		(p2-p0)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(3*p1-p0-3*p2+p3)*t3)
}

// Lanczos interpolates with a windowed sinc kernel of A lobes (default 3)
type Lanczos struct {
	A int
}

func (l Lanczos) Resample(in, out []float32) {
	if fill(in, out) {
		return
	}
	a := l.A
	if a <= 0 {
		a = 3
	}
	ratio := float64(len(in)) / float64(len(out))
	for i := range out {
		center := (float64(i)+0.5)*ratio - 0.5
		i0 := int(math.Floor(center))
		var sum, weights float64
		for j := -a + 1; j <= a; j++ {
			idx := i0 + j
			w := lanczosKernel(center-float64(idx), a)
			sum += float64(sampleAt(in, idx)) * w
			weights += w
		}
		if weights != 0 {
			sum /= weights
		}
		out[i] = float32(sum)
	}
}

func (l Lanczos) String() string { return "lanczos" }

func lanczosKernel(x float64, a int) float64 {
	if x == 0 {
		return 1
	}
	if math.Abs(x) >= float64(a) {
		return 0
	}
	px := math.Pi * x
	pxa := px / float64(a)
	return (math.Sin(px) / px) * (math.Sin(pxa) / pxa)
}
