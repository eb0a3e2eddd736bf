// ABOUTME: Time-based effects
// ABOUTME: Per-channel delay, feedback echo and a one-pole low-pass filter
package effect

import (
	"math"

	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
)

// ChannelDelay delays the left and right channels independently
type ChannelDelay struct {
	Base
	left  *control.Float
	right *control.Float

	lines [2][]float32
	write int
}

// NewChannelDelay creates a channel delay (0..5 seconds per side)
func NewChannelDelay() *ChannelDelay {
	return &ChannelDelay{
		Base:  NewBase(Realtime),
		left:  control.NewFloat("Delay Left", 0, 5, 0),
		right: control.NewFloat("Delay Right", 0, 5, 0),
	}
}

// Left returns the left delay in seconds
func (e *ChannelDelay) Left() *control.Float { return e.left }

// Right returns the right delay in seconds
func (e *ChannelDelay) Right() *control.Float { return e.right }

func (e *ChannelDelay) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	if len(buf) < 2 {
		return nil
	}
	frames := len(buf[0])
	delays := [2]int{
		int(e.left.Value() * float32(sampleRate)),
		int(e.right.Value() * float32(sampleRate)),
	}
	need := max(delays[0], delays[1]) + frames
	if len(e.lines[0]) < need {
		e.lines[0] = make([]float32, need)
		e.lines[1] = make([]float32, need)
		e.write = 0
	}
	size := len(e.lines[0])

	for i := 0; i < frames; i++ {
		for side := 0; side < 2; side++ {
			line := e.lines[side]
			read := (e.write + size - delays[side]) % size
			in := buf[side][i]
			line[e.write] = in
			buf[side][i] = line[read]
		}
		e.write = (e.write + 1) % size
	}
	return nil
}

// Echo mixes a low-passed signal with a feedback delay line
type Echo struct {
	Base
	time     *control.Float
	feedback *control.Float
	wet      *control.Float

	lines [][]float32
	write int
}

// NewEcho creates an echo (time 0.01..2 s, feedback 0..0.99)
func NewEcho() *Echo {
	return &Echo{
		Base:     NewBase(Realtime),
		time:     control.NewFloat("Delay Time", 0.01, 2, 0.3),
		feedback: control.NewFloat("Feedback", 0, 0.99, 0.5),
		wet:      control.NewFloat("Echo Level", 0, 1, 0.5),
	}
}

func (e *Echo) Time() *control.Float     { return e.time }
func (e *Echo) Feedback() *control.Float { return e.feedback }
func (e *Echo) Level() *control.Float    { return e.wet }

func (e *Echo) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	delay := max(1, int(e.time.Value()*float32(sampleRate)))
	if len(e.lines) != len(buf) || len(e.lines[0]) != delay {
		e.lines = make([][]float32, len(buf))
		for ch := range e.lines {
			e.lines[ch] = make([]float32, delay)
		}
		e.write = 0
	}
	fb := e.feedback.Value()
	wet := e.wet.Value()
	frames := len(buf[0])
	for i := 0; i < frames; i++ {
		for ch := range buf {
			line := e.lines[ch]
			delayed := line[e.write]
			in := buf[ch][i]
			line[e.write] = in + delayed*fb
			buf[ch][i] = in + delayed*wet
		}
		e.write = (e.write + 1) % delay
	}
	return nil
}

// LowPass is a one-pole low-pass filter
type LowPass struct {
	Base
	cutoff *control.Float
	state  []float32
}

// NewLowPass creates a low-pass filter (cutoff 20..22000 Hz, default 1000)
func NewLowPass() *LowPass {
	return &LowPass{
		Base:   NewBase(Realtime),
		cutoff: control.NewFloat("Cutoff", 20, 22000, 1000),
	}
}

// Cutoff returns the cutoff frequency control
func (e *LowPass) Cutoff() *control.Float { return e.cutoff }

func (e *LowPass) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	if len(e.state) != len(buf) {
		e.state = make([]float32, len(buf))
	}
	fc := math.Min(float64(e.cutoff.Value()), float64(sampleRate)/2)
	alpha := float32(1 - math.Exp(-2*math.Pi*fc/float64(sampleRate)))
	for ch := range buf {
		y := e.state[ch]
		for i, x := range buf[ch] {
			y += alpha * (x - y)
			buf[ch][i] = y
		}
		e.state[ch] = y
	}
	return nil
}
