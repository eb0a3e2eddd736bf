// ABOUTME: Auxiliary send effect
// ABOUTME: Taps the chain signal and feeds it to another mixer with its own gain and pan
package mixer

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/effect"
)

// Sender is a pass-through effect that publishes the signal at its position
// in the chain. Its Bus node replays the latest block, scaled by the
// sender's gain and pan, into whichever mixer it is attached to.
type Sender struct {
	effect.Base

	gain *control.Float
	pan  *control.Float

	mu     sync.Mutex
	last   [][]float32
	bus    *senderBus
	target *Mixer

	// held across a whole retarget so the bus is attached to one mixer
	targetMu sync.Mutex
}

// NewSender creates a sender attached to target. target may be nil.
func NewSender(target *Mixer) (*Sender, error) {
	s := &Sender{
		Base: effect.NewBase(effect.Realtime),
		gain: control.NewFloat("Gain", 0, 2, 1),
		pan:  control.NewFloat("Pan", -1, 1, 0),
	}
	s.bus = &senderBus{sender: s}
	if err := s.SetTarget(target); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sender) Gain() *control.Float { return s.gain }
func (s *Sender) Pan() *control.Float  { return s.pan }

// Bus returns the node that replays the tapped signal
func (s *Sender) Bus() audio.Node {
	return s.bus
}

// Target returns the mixer the bus is attached to
func (s *Sender) Target() *Mixer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// SetTarget moves the bus to target, detaching it from the previous mixer
func (s *Sender) SetTarget(target *Mixer) error {
	s.targetMu.Lock()
	defer s.targetMu.Unlock()

	s.mu.Lock()
	prev := s.target
	s.mu.Unlock()

	if prev == target {
		return nil
	}
	if target != nil {
		if err := target.AddInput(s.bus); err != nil {
			return fmt.Errorf("failed to attach send bus: %w", err)
		}
	}
	if prev != nil {
		prev.RemoveInput(s.bus)
	}

	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
	return nil
}

// Render copies buf for the bus and leaves buf unchanged
func (s *Sender) Render(buf [][]float32, sampleRate int) error {
	if err := audio.CheckLength(buf); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if audio.CheckShape(s.last, len(buf), audio.Frames(buf)) != nil {
		s.last = audio.NewBuffer(len(buf), audio.Frames(buf))
	}
	for ch := range buf {
		copy(s.last[ch], buf[ch])
	}
	return nil
}

type senderBus struct {
	sender *Sender
}

func (b *senderBus) Render(buf [][]float32, sampleRate int) error {
	s := b.sender
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		audio.Zero(buf)
		return nil
	}
	if err := audio.CopyInto(buf, s.last); err != nil {
		return fmt.Errorf("send bus: %w", err)
	}
	audio.ApplyGainPan(buf, s.gain.Value(), s.pan.Value())
	return nil
}
