// ABOUTME: Mixer node: input summing, effect chain and output stage
// ABOUTME: Structural changes are copy-on-write so rendering never blocks
package mixer

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/effect"
)

// separationEpsilon is the squared separation below which the stage is skipped
const separationEpsilon = 1e-6

// graphMu serializes input changes across all mixers so two mixers cannot
// add each other concurrently and slip past the cycle check
var graphMu sync.Mutex

// Mixer is a composite node. The zero value is not usable; call New.
type Mixer struct {
	inputs  atomic.Pointer[[]audio.Node]
	effects atomic.Pointer[[]effect.Effect]

	effectsMu sync.Mutex

	preGain    *control.Float
	postGain   *control.Float
	pan        *control.Float
	separation *control.Float

	enableEffects   *control.Bool
	swapChannels    *control.Bool
	reversePolarity *control.Bool
}

// New creates an empty mixer with unity gains, centered pan and effects on
func New() *Mixer {
	m := &Mixer{
		preGain:         control.NewFloat("Pre-Gain", 0, 2, 1),
		postGain:        control.NewFloat("Post-Gain", 0, 2, 1),
		pan:             control.NewFloat("Pan", -1, 1, 0),
		separation:      control.NewFloat("Stereo Separation", -1, 1, 0),
		enableEffects:   control.NewBool("Enable Effects", true),
		swapChannels:    control.NewBool("Swap Channels", false),
		reversePolarity: control.NewBool("Reverse Polarity", false),
	}
	inputs := []audio.Node{}
	effects := []effect.Effect{}
	m.inputs.Store(&inputs)
	m.effects.Store(&effects)
	return m
}

func (m *Mixer) PreGain() *control.Float          { return m.preGain }
func (m *Mixer) PostGain() *control.Float         { return m.postGain }
func (m *Mixer) Pan() *control.Float              { return m.pan }
func (m *Mixer) StereoSeparation() *control.Float { return m.separation }
func (m *Mixer) EnableEffects() *control.Bool     { return m.enableEffects }
func (m *Mixer) SwapChannels() *control.Bool      { return m.swapChannels }
func (m *Mixer) ReversePolarity() *control.Bool   { return m.reversePolarity }

// Controls returns every float control in display order
func (m *Mixer) Controls() []*control.Float {
	return []*control.Float{m.preGain, m.postGain, m.pan, m.separation}
}

// AddInput appends node to the input list. Effects, the mixer itself and any
// node that already pulls from this mixer are rejected.
func (m *Mixer) AddInput(node audio.Node) error {
	if node == nil {
		return ErrNilNode
	}
	if _, ok := node.(effect.Effect); ok {
		return fmt.Errorf("%w: %T", ErrEffectAsInput, node)
	}
	if other, ok := node.(*Mixer); ok && other == m {
		return ErrSelfInput
	}

	graphMu.Lock()
	defer graphMu.Unlock()

	if reaches(node, m) {
		return fmt.Errorf("%w: %T already pulls from this mixer", ErrCycle, node)
	}
	current := *m.inputs.Load()
	next := append(slices.Clone(current), node)
	m.inputs.Store(&next)

	log.Debugf("Added input %T (%d inputs)", node, len(next))
	return nil
}

// RemoveInput removes the first occurrence of node. Inputs whose dynamic
// type is not comparable (such as audio.NodeFunc) cannot be removed
// individually; use ClearInputs.
func (m *Mixer) RemoveInput(node audio.Node) bool {
	if node == nil {
		return false
	}
	graphMu.Lock()
	defer graphMu.Unlock()

	current := *m.inputs.Load()
	idx := slices.IndexFunc(current, func(n audio.Node) bool { return audio.Same(n, node) })
	if idx < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(current), idx, idx+1)
	m.inputs.Store(&next)

	log.Debugf("Removed input %T (%d inputs)", node, len(next))
	return true
}

// ClearInputs detaches every input
func (m *Mixer) ClearInputs() {
	graphMu.Lock()
	empty := []audio.Node{}
	m.inputs.Store(&empty)
	graphMu.Unlock()
}

// Inputs returns a snapshot of the input list
func (m *Mixer) Inputs() []audio.Node {
	return slices.Clone(*m.inputs.Load())
}

// AddEffect appends e to the chain
func (m *Mixer) AddEffect(e effect.Effect) error {
	if e == nil {
		return ErrNilEffect
	}
	if e.Type() != effect.Realtime {
		return fmt.Errorf("%w: %T is %s", ErrIncompatibleEffect, e, e.Type())
	}

	m.effectsMu.Lock()
	defer m.effectsMu.Unlock()

	current := *m.effects.Load()
	if _, ok := e.(effect.VaryingSize); ok {
		for _, existing := range current {
			if _, vary := existing.(effect.VaryingSize); vary {
				return fmt.Errorf("%w: %T", ErrMultipleVaryingSize, existing)
			}
		}
	}
	next := append(slices.Clone(current), e)
	m.effects.Store(&next)

	log.Debugf("Added effect %T (%d effects)", e, len(next))
	return nil
}

// RemoveEffect removes e from the chain
func (m *Mixer) RemoveEffect(e effect.Effect) bool {
	if e == nil {
		return false
	}
	m.effectsMu.Lock()
	defer m.effectsMu.Unlock()

	current := *m.effects.Load()
	idx := slices.IndexFunc(current, func(x effect.Effect) bool { return audio.Same(x, e) })
	if idx < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(current), idx, idx+1)
	m.effects.Store(&next)
	return true
}

// Effects returns a snapshot of the effect chain
func (m *Mixer) Effects() []effect.Effect {
	return slices.Clone(*m.effects.Load())
}

// Close detaches all inputs and effects. Inputs are not closed; the mixer
// does not own them.
func (m *Mixer) Close() error {
	m.ClearInputs()

	m.effectsMu.Lock()
	empty := []effect.Effect{}
	m.effects.Store(&empty)
	m.effectsMu.Unlock()
	return nil
}

// Render mixes all inputs into buf
func (m *Mixer) Render(buf [][]float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: invalid sample rate %d", audio.ErrMixing, sampleRate)
	}
	if err := audio.CheckLength(buf); err != nil {
		return fmt.Errorf("%w: %w", audio.ErrMixing, err)
	}
	channels := len(buf)
	length := audio.Frames(buf)

	var chain []effect.Effect
	if m.enableEffects.Enabled() {
		chain = *m.effects.Load()
	}
	before, varying, after := splitChain(chain)

	inputLength := length
	if varying != nil && effect.Active(varying) {
		inputLength = varying.TargetLength(length)
		if inputLength < 0 {
			return fmt.Errorf("%w: %T requested %d input frames", audio.ErrMixing, varying, inputLength)
		}
	}

	var (
		mixed   [][]float32
		scratch [][]float32
	)
	if inputLength > 0 {
		mixed = m.mixInputs(channels, inputLength, sampleRate)
		audio.ApplyGain(mixed, m.preGain.Value())
		scratch = runChain(before, mixed, scratch, sampleRate)

		if varying != nil {
			if inputLength < length {
				mixed = audio.PadWithLast(mixed, length)
			}
			scratch = runChain([]effect.Effect{varying}, mixed, scratch, sampleRate)
			if inputLength > length {
				mixed = audio.Cut(mixed, length)
			}
		}
	} else {
		mixed = audio.NewBuffer(channels, length)
	}
	runChain(after, mixed, scratch, sampleRate)

	if sep := m.separation.Value(); sep*sep > separationEpsilon {
		audio.StereoSeparate(mixed, sep)
	}
	if m.swapChannels.Enabled() {
		audio.SwapChannels(mixed)
	}
	if m.reversePolarity.Enabled() {
		audio.InvertPolarity(mixed)
	}
	audio.ApplyGainPan(mixed, m.postGain.Value(), m.pan.Value())

	if err := audio.CopyInto(buf, mixed); err != nil {
		return fmt.Errorf("%w: %w", audio.ErrMixing, err)
	}
	return nil
}

// mixInputs renders every input at frames and sums the valid ones
func (m *Mixer) mixInputs(channels, frames, sampleRate int) [][]float32 {
	out := audio.NewBuffer(channels, frames)

	var tmp [][]float32
	for _, in := range *m.inputs.Load() {
		if tmp == nil {
			tmp = audio.NewBuffer(channels, frames)
		} else {
			audio.Zero(tmp)
		}
		if err := renderInput(in, tmp, sampleRate); err != nil {
			log.Warnf("Input %T failed to render, skipping: %v", in, err)
			tmp = nil
			continue
		}
		if err := audio.CheckShape(tmp, channels, frames); err != nil {
			log.Warnf("Input %T changed buffer shape, skipping: %v", in, err)
			tmp = nil
			continue
		}
		audio.MixInto(out, tmp)
	}
	return out
}

// renderInput calls in.Render and converts a panic into an error
func renderInput(in audio.Node, buf [][]float32, sampleRate int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("input %T panicked: %v", in, r)
		}
	}()
	return in.Render(buf, sampleRate)
}

// runChain applies effects in order. A failing effect is logged and its
// contribution dropped.
func runChain(chain []effect.Effect, buf, scratch [][]float32, sampleRate int) [][]float32 {
	for _, e := range chain {
		var err error
		scratch, err = effect.Process(e, buf, scratch, sampleRate)
		if err != nil {
			log.Warnf("Effect %T failed: %v", e, err)
		}
	}
	return scratch
}

// splitChain separates the chain around its varying-size effect, if any
func splitChain(chain []effect.Effect) (before []effect.Effect, varying effect.VaryingSize, after []effect.Effect) {
	for i, e := range chain {
		if v, ok := e.(effect.VaryingSize); ok {
			return chain[:i], v, chain[i+1:]
		}
	}
	return chain, nil, nil
}

// reaches reports whether target is node or is reachable through the inputs
// of composite nodes below node. Callers hold graphMu.
func reaches(node audio.Node, target *Mixer) bool {
	if mx, ok := node.(*Mixer); ok && mx == target {
		return true
	}
	comp, ok := node.(audio.Composite)
	if !ok {
		return false
	}
	for _, in := range comp.Inputs() {
		if reaches(in, target) {
			return true
		}
	}
	return false
}
