// ABOUTME: Simple stateless effects
// ABOUTME: Polarity invert, stereo width and whole-signal reverse
package effect

import (
	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
)

// Invert flips signal polarity
type Invert struct {
	Base
}

// NewInvert creates a polarity inverter
func NewInvert() *Invert {
	return &Invert{Base: NewBase(Realtime)}
}

func (e *Invert) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	audio.InvertPolarity(buf)
	return nil
}

// StereoWidth widens or narrows a stereo image
type StereoWidth struct {
	Base
	width *control.Float
}

// NewStereoWidth creates a stereo width effect (width -1..1, 0 is neutral)
func NewStereoWidth() *StereoWidth {
	return &StereoWidth{
		Base:  NewBase(Realtime),
		width: control.NewFloat("Stereo Width", -1, 1, 0),
	}
}

// Width returns the width control
func (e *StereoWidth) Width() *control.Float { return e.width }

func (e *StereoWidth) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	audio.StereoSeparate(buf, e.width.Value())
	return nil
}

// Reverse plays a signal backwards. It needs the whole signal, so it is an
// Offline effect.
type Reverse struct {
	Base
}

// NewReverse creates a reverse effect
func NewReverse() *Reverse {
	return &Reverse{Base: NewBase(Offline)}
}

func (e *Reverse) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	for ch := range buf {
		c := buf[ch]
		for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
			c[i], c[j] = c[j], c[i]
		}
	}
	return nil
}
