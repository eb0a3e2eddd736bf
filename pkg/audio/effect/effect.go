// ABOUTME: Effect contract, capability interfaces and shared base
// ABOUTME: Chain processing with dry/wet crossfade lives here too
package effect

import (
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
)

// Type tells whether an effect can run inside a live chain
type Type int

const (
	// Realtime effects process one buffer at a time
	Realtime Type = iota
	// Offline effects need the complete signal
	Offline
)

func (t Type) String() string {
	if t == Offline {
		return "offline"
	}
	return "realtime"
}

// Effect processes a buffer in place
type Effect interface {
	audio.Node
	Type() Type
	Enable() *control.Bool
	MixLevel() *control.Float
}

// VaryingSize is implemented by effects that consume a different number of
// frames than they produce
type VaryingSize interface {
	Effect
	// TargetLength returns the number of input frames needed to produce
	// outputLength frames. A negative result is an error.
	TargetLength(outputLength int) int
}

// Base holds the controls every effect shares. Embed it in effect types.
type Base struct {
	typ    Type
	enable *control.Bool
	mix    *control.Float
}

// NewBase creates enable (on) and mix-level (1.0) controls
func NewBase(t Type) Base {
	return Base{
		typ:    t,
		enable: control.NewBool("Enable", true),
		mix:    control.NewFloat("Mix Level", 0, 1, 1),
	}
}

// Type returns the effect type
func (b Base) Type() Type { return b.typ }

// Enable returns the enable control
func (b Base) Enable() *control.Bool { return b.enable }

// MixLevel returns the dry/wet control
func (b Base) MixLevel() *control.Float { return b.mix }

// Active reports whether e should process audio at all
func Active(e Effect) bool {
	return e.Enable().Enabled() && e.MixLevel().Value() > 0
}

// Process runs e over buf honouring its enable and mix-level controls.
// scratch holds the dry copy when a crossfade is needed; it is grown as
// required and returned for reuse.
func Process(e Effect, buf, scratch [][]float32, sampleRate int) ([][]float32, error) {
	if !e.Enable().Enabled() {
		return scratch, nil
	}
	mix := e.MixLevel().Value()
	if mix <= 0 {
		return scratch, nil
	}
	if mix >= 1 {
		return scratch, render(e, buf, sampleRate)
	}

	frames := audio.Frames(buf)
	if len(scratch) != len(buf) || audio.Frames(scratch) < frames {
		scratch = audio.NewBuffer(len(buf), frames)
	}
	dry := audio.Cut(scratch, frames)
	for ch := range buf {
		copy(dry[ch], buf[ch])
	}
	if err := render(e, buf, sampleRate); err != nil {
		// restore the dry signal so a failing effect drops out cleanly
		for ch := range buf {
			copy(buf[ch], dry[ch])
		}
		return scratch, err
	}
	audio.Crossfade(dry, buf, mix)
	return scratch, nil
}

// render calls e.Render and converts a panic into an error
func render(e Effect, buf [][]float32, sampleRate int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect %T panicked: %v", e, r)
		}
	}()
	return e.Render(buf, sampleRate)
}

// validate checks the buffer every effect receives
func validate(buf [][]float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return audio.CheckLength(buf)
}
