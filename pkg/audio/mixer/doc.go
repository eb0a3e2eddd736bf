// ABOUTME: Mixer composite node with an effect chain
// ABOUTME: Also provides auxiliary sends and a thread/event render driver
// Package mixer sums any number of input nodes and runs the result through an
// ordered effect chain, then applies stereo separation, channel swap,
// polarity inversion, post-gain and pan.
//
// A mixer may hold at most one varying-size effect (see effect.VaryingSize).
// When that effect is active, inputs are rendered at the length it asks for;
// the signal is held at its last sample or trimmed around the effect so the
// rest of the chain always sees the caller's length.
//
// Inputs and effects can be added and removed while another goroutine is
// rendering: every render pass works on a snapshot of both lists.
//
// Example:
//
//	m := mixer.New()
//	if err := m.AddInput(tone); err != nil {
//	    return err
//	}
//	m.AddEffect(effect.NewSpeed(nil))
//	m.PostGain().Set(0.8)
//
//	buf := audio.NewBuffer(2, 1024)
//	err := m.Render(buf, 48000)
package mixer
