// ABOUTME: Bitcrusher effect
// ABOUTME: Reduces amplitude resolution and holds samples to lower the rate
package effect

import (
	"math"

	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
)

// bitcrusherBaseRate is the rate at which a reduction of 1:1 applies
const bitcrusherBaseRate = 22000

// Bitcrusher quantizes samples and reduces the effective sample rate
type Bitcrusher struct {
	Base
	bitDepth  *control.Float
	reduction *control.Float
}

// NewBitcrusher creates a bitcrusher (4 bits, 2000 Hz by default)
func NewBitcrusher() *Bitcrusher {
	return &Bitcrusher{
		Base:      NewBase(Realtime),
		bitDepth:  control.NewFloat("Bit Depth", 1, 16, 4),
		reduction: control.NewFloat("Sample Rate Reduction", 50, 22000, 2000),
	}
}

// BitDepth returns the bit depth control
func (e *Bitcrusher) BitDepth() *control.Float { return e.bitDepth }

// Reduction returns the target sample rate control
func (e *Bitcrusher) Reduction() *control.Float { return e.reduction }

func (e *Bitcrusher) Render(buf [][]float32, sampleRate int) error {
	if err := validate(buf, sampleRate); err != nil {
		return err
	}
	hold := float32(bitcrusherBaseRate) / e.reduction.Value()
	levels := float32(int(1)<<int(e.bitDepth.Value()) - 1)

	for ch := range buf {
		var held, counter float32
		for i, v := range buf[ch] {
			if counter <= 0 {
				held = float32(math.Round(float64(v*levels))) / levels
				counter += hold
			}
			buf[ch][i] = held
			counter--
		}
	}
	return nil
}
