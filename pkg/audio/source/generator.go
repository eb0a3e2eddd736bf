// ABOUTME: Waveform and noise generator node
// ABOUTME: Phase is continuous across render calls and sample rate changes
package source

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
)

// Waveform selects what a Generator produces
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
	Noise
	Constant
)

var waveformNames = []string{"sine", "square", "sawtooth", "triangle", "noise", "constant"}

func (w Waveform) String() string {
	if w < 0 || int(w) >= len(waveformNames) {
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
	return waveformNames[w]
}

// ParseWaveform returns the waveform with the given name. "saw" is accepted
// for Sawtooth.
func ParseWaveform(name string) (Waveform, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "saw" {
		return Sawtooth, nil
	}
	for i, n := range waveformNames {
		if n == name {
			return Waveform(i), nil
		}
	}
	return 0, fmt.Errorf("unknown waveform %q (supported: %s)", name, strings.Join(waveformNames, ", "))
}

// Value returns the waveform at phase, in cycles. Noise and Constant ignore
// the phase.
func (w Waveform) Value(phase float64) float32 {
	phase -= math.Floor(phase)
	switch w {
	case Sine:
		return float32(math.Sin(2 * math.Pi * phase))
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return float32(2*phase - 1)
	case Triangle:
		return float32(1 - 4*math.Abs(phase-0.5))
	case Constant:
		return 1
	default:
		return 0
	}
}

// Generator is a leaf node producing one waveform on every channel
type Generator struct {
	waveform  Waveform
	frequency *control.Float
	amplitude *control.Float

	mu    sync.Mutex
	phase float64
	rng   *rand.Rand
}

// NewGenerator creates a 440 Hz generator at half amplitude
func NewGenerator(w Waveform) *Generator {
	return &Generator{
		waveform:  w,
		frequency: control.NewFloat("Frequency", 1, 20000, 440),
		amplitude: control.NewFloat("Amplitude", 0, 1, 0.5),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (g *Generator) Waveform() Waveform        { return g.waveform }
func (g *Generator) Frequency() *control.Float { return g.frequency }
func (g *Generator) Amplitude() *control.Float { return g.amplitude }

// Seed makes noise output reproducible
func (g *Generator) Seed(seed uint64) {
	g.mu.Lock()
	g.rng = rand.New(rand.NewPCG(seed, seed))
	g.mu.Unlock()
}

// Reset returns the phase to the start of a cycle
func (g *Generator) Reset() {
	g.mu.Lock()
	g.phase = 0
	g.mu.Unlock()
}

// Render fills buf. Noise is independent per channel; every other waveform
// is identical on all channels.
func (g *Generator) Render(buf [][]float32, sampleRate int) error {
	if err := audio.CheckLength(buf); err != nil {
		return err
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", audio.ErrInvalidFormat, sampleRate)
	}
	amp := g.amplitude.Value()
	step := float64(g.frequency.Value()) / float64(sampleRate)

	g.mu.Lock()
	defer g.mu.Unlock()

	frames := audio.Frames(buf)
	if g.waveform == Noise {
		for ch := range buf {
			for i := range buf[ch] {
				buf[ch][i] = (g.rng.Float32()*2 - 1) * amp
			}
		}
		return nil
	}
	for i := 0; i < frames; i++ {
		v := g.waveform.Value(g.phase) * amp
		for ch := range buf {
			buf[ch][i] = v
		}
		g.phase += step
		if g.phase >= 1 {
			g.phase -= math.Floor(g.phase)
		}
	}
	return nil
}
