// ABOUTME: Bridges the terminal console to the audio graph
// ABOUTME: Applies key-driven control changes and publishes playback status
package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Resonate-Protocol/audiograph/internal/ui"
	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/device"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/effect"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/mixer"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/source"
	tea "github.com/charmbracelet/bubbletea"
)

type namedEffect struct {
	name   string
	effect effect.Effect
}

var effectConstructors = map[string]func() effect.Effect{
	"invert":     func() effect.Effect { return effect.NewInvert() },
	"width":      func() effect.Effect { return effect.NewStereoWidth() },
	"bitcrusher": func() effect.Effect { return effect.NewBitcrusher() },
	"compressor": func() effect.Effect { return effect.NewCompressor() },
	"highpass":   func() effect.Effect { return effect.NewBiquad(effect.HighPassFilter) },
	"delay":      func() effect.Effect { return effect.NewChannelDelay() },
	"echo":       func() effect.Effect { return effect.NewEcho() },
	"lowpass":    func() effect.Effect { return effect.NewLowPass() },
	"limiter":    func() effect.Effect { return effect.NewLimiter() },
	"saturator":  func() effect.Effect { return effect.NewSaturator() },
}

func effectNames() []string {
	names := make([]string, 0, len(effectConstructors))
	for n := range effectConstructors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// parseEffects builds the chain named by a comma-separated list
func parseEffects(list string) ([]namedEffect, error) {
	var chain []namedEffect
	for _, n := range strings.Split(list, ",") {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		newEffect, ok := effectConstructors[n]
		if !ok {
			return nil, fmt.Errorf("unknown effect %q (supported: %s)", n, strings.Join(effectNames(), ", "))
		}
		chain = append(chain, namedEffect{name: n, effect: newEffect()})
	}
	return chain, nil
}

// console applies control changes from the terminal to the graph. All
// methods run on one goroutine.
type console struct {
	backend backend.Backend
	output  *device.OutputLayer
	master  *mixer.Mixer
	source  audio.Node
	effects []namedEffect
	title   string
	tags    map[string]string

	// generator paused by detaching it from the master mixer
	paused bool
}

func (c *console) run(ctx context.Context, controls *ui.Controls, send func(tea.Msg)) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	send(c.status())
	for {
		select {
		case change := <-controls.Changes:
			c.apply(change)
			send(c.status())
		case <-ticker.C:
			send(c.status())
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *console) apply(change ui.ControlChange) {
	sound, _ := c.source.(*source.Sound)

	switch change.Kind {
	case ui.GainChange:
		c.master.PostGain().Set(change.Value)
	case ui.PanChange:
		c.master.Pan().Set(change.Value)
	case ui.SeparationChange:
		c.master.StereoSeparation().Set(change.Value)
	case ui.SpeedChange:
		if sound != nil {
			sound.Speed().Set(change.Value)
		}
	case ui.Seek:
		if sound != nil {
			frame := sound.FramePosition() + int(change.Value*float32(sound.Format().SampleRate))
			frame = max(0, min(frame, sound.Frames()))
			if err := sound.SetFramePosition(frame); err != nil {
				log.Warnf("Seek failed: %v", err)
			}
		}
	case ui.TogglePlayback:
		c.togglePlayback(sound)
	case ui.ToggleLoop:
		if sound != nil {
			sound.SetLoop(!sound.IsLooping())
		}
	case ui.ToggleEffects:
		c.master.EnableEffects().Toggle()
	case ui.ToggleEffect:
		if change.Index >= 0 && change.Index < len(c.effects) {
			e := c.effects[change.Index]
			log.Debugf("Effect %s enabled: %v", e.name, e.effect.Enable().Toggle())
		}
	case ui.SwapChannels:
		c.master.SwapChannels().Toggle()
	case ui.InvertPolarity:
		c.master.ReversePolarity().Toggle()
	}
}

func (c *console) togglePlayback(sound *source.Sound) {
	if sound != nil {
		if sound.IsPlaying() {
			sound.Stop()
		} else {
			sound.Start()
		}
		return
	}

	if c.paused {
		if err := c.master.AddInput(c.source); err != nil {
			log.Errorf("Failed to resume: %v", err)
			return
		}
	} else {
		c.master.RemoveInput(c.source)
	}
	c.paused = !c.paused
}

func (c *console) mixerState() ui.MixerState {
	state := ui.MixerState{
		Gain:           c.master.PostGain().Value(),
		Pan:            c.master.Pan().Value(),
		Separation:     c.master.StereoSeparation().Value(),
		Speed:          1,
		EffectsEnabled: c.master.EnableEffects().Enabled(),
		Swapped:        c.master.SwapChannels().Enabled(),
		Inverted:       c.master.ReversePolarity().Enabled(),
	}
	if sound, ok := c.source.(*source.Sound); ok {
		state.Speed = sound.Speed().Value()
	}
	for _, e := range c.effects {
		state.Effects = append(state.Effects, ui.EffectState{Name: e.name, Enabled: e.effect.Enable().Enabled()})
	}
	return state
}

func (c *console) status() ui.StatusMsg {
	state := c.mixerState()
	msg := ui.StatusMsg{
		Backend:      c.backend.Name(),
		Format:       c.output.Format().String(),
		SourceFormat: c.output.SourceFormat().String(),
		Title:        c.title,
		Artist:       c.tags["artist"],
		Mixer:        &state,
	}
	if port, err := c.output.Port(); err == nil && port != nil {
		msg.Port = port.Name
	}
	if sink, ok := c.backend.(*backend.Stream); ok {
		msg.Clients = sink.Clients()
	}

	var playing, looping bool
	switch n := c.source.(type) {
	case *source.Sound:
		pos := time.Duration(n.SecondsPosition() * float64(time.Second))
		msg.Position = &pos
		msg.Duration = n.Duration()
		playing, looping = n.IsPlaying(), n.IsLooping()
	default:
		playing = !c.paused
	}
	msg.Playing = &playing
	msg.Looping = &looping
	return msg
}
