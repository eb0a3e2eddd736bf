// ABOUTME: Tests for the console bridge and effect chain parsing
// ABOUTME: Drives control changes against a real mixer and sound
package main

import (
	"slices"
	"testing"

	"github.com/Resonate-Protocol/audiograph/internal/ui"
	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/device"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/effect"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/mixer"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/source"
)

func TestParseEffects(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    []string
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"single", "echo", []string{"echo"}, false},
		{"spaces and case", " Invert , lowpass ", []string{"invert", "lowpass"}, false},
		{"trailing comma", "limiter,", []string{"limiter"}, false},
		{"unknown", "echo,reverb", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := parseEffects(tt.list)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEffects failed: %v", err)
			}
			var names []string
			for _, e := range chain {
				names = append(names, e.name)
				if e.effect == nil {
					t.Errorf("%s has no effect", e.name)
				}
			}
			if !slices.Equal(names, tt.want) {
				t.Errorf("names = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestEffectsAreRealtime(t *testing.T) {
	m := mixer.New()
	for _, n := range effectNames() {
		e := effectConstructors[n]()
		if e.Type() != effect.Realtime {
			t.Errorf("%s is %s", n, e.Type())
		}
		if err := m.AddEffect(e); err != nil {
			t.Errorf("AddEffect(%s) failed: %v", n, err)
		}
	}
	if !slices.IsSorted(effectNames()) {
		t.Error("effect names not sorted")
	}
}

func newTestSound(t *testing.T) *source.Sound {
	t.Helper()
	res := &decode.Result{
		Samples: audio.NewBuffer(1, 48000),
		Format:  audio.Format{SampleRate: 48000, BitsPerSample: 16, Channels: 1, Encoding: audio.PCMSigned},
		Tags:    map[string]string{"title": "Silence", "artist": "Nobody"},
	}
	s, err := source.NewSound(res)
	if err != nil {
		t.Fatalf("NewSound failed: %v", err)
	}
	return s
}

func newTestConsole(t *testing.T, node audio.Node) *console {
	t.Helper()
	master := mixer.New()
	if err := master.AddInput(node); err != nil {
		t.Fatalf("AddInput failed: %v", err)
	}
	chain, err := parseEffects("echo,limiter")
	if err != nil {
		t.Fatalf("parseEffects failed: %v", err)
	}
	for _, e := range chain {
		if err := master.AddEffect(e.effect); err != nil {
			t.Fatalf("AddEffect failed: %v", err)
		}
	}
	b := backend.NewDummy()
	title, tags := describe(node)
	return &console{
		backend: b,
		output:  device.NewOutputLayer(b, device.OutputConfig{}),
		master:  master,
		source:  node,
		effects: chain,
		title:   title,
		tags:    tags,
	}
}

func TestConsoleMixerControls(t *testing.T) {
	c := newTestConsole(t, source.NewGenerator(source.Sine))

	c.apply(ui.ControlChange{Kind: ui.GainChange, Value: 1.5})
	c.apply(ui.ControlChange{Kind: ui.PanChange, Value: -0.5})
	c.apply(ui.ControlChange{Kind: ui.SeparationChange, Value: 0.25})
	c.apply(ui.ControlChange{Kind: ui.ToggleEffects})
	c.apply(ui.ControlChange{Kind: ui.SwapChannels})
	c.apply(ui.ControlChange{Kind: ui.InvertPolarity})
	c.apply(ui.ControlChange{Kind: ui.ToggleEffect, Index: 1})
	c.apply(ui.ControlChange{Kind: ui.ToggleEffect, Index: 7})

	state := c.mixerState()
	if state.Gain != 1.5 || state.Pan != -0.5 || state.Separation != 0.25 {
		t.Errorf("levels = %v/%v/%v", state.Gain, state.Pan, state.Separation)
	}
	if state.EffectsEnabled || !state.Swapped || !state.Inverted {
		t.Errorf("flags = %+v", state)
	}
	if len(state.Effects) != 2 || !state.Effects[0].Enabled || state.Effects[1].Enabled {
		t.Errorf("effects = %+v", state.Effects)
	}
	if state.Speed != 1 {
		t.Errorf("generator speed = %v", state.Speed)
	}
}

func TestConsoleGeneratorPause(t *testing.T) {
	gen := source.NewGenerator(source.Sine)
	c := newTestConsole(t, gen)

	c.apply(ui.ControlChange{Kind: ui.TogglePlayback})
	if len(c.master.Inputs()) != 0 {
		t.Error("expected generator detached")
	}
	if st := c.status(); *st.Playing {
		t.Error("expected paused status")
	}

	c.apply(ui.ControlChange{Kind: ui.TogglePlayback})
	if len(c.master.Inputs()) != 1 {
		t.Error("expected generator attached")
	}
	if st := c.status(); !*st.Playing {
		t.Error("expected playing status")
	}
}

func TestConsoleSound(t *testing.T) {
	s := newTestSound(t)
	c := newTestConsole(t, s)

	c.apply(ui.ControlChange{Kind: ui.TogglePlayback})
	if !s.IsPlaying() {
		t.Error("expected playing")
	}
	c.apply(ui.ControlChange{Kind: ui.ToggleLoop})
	if !s.IsLooping() {
		t.Error("expected looping")
	}
	c.apply(ui.ControlChange{Kind: ui.SpeedChange, Value: 2})
	if s.Speed().Value() != 2 {
		t.Errorf("speed = %v", s.Speed().Value())
	}

	c.apply(ui.ControlChange{Kind: ui.Seek, Value: 5})
	if s.FramePosition() != s.Frames() {
		t.Errorf("seek past end: position %d, want %d", s.FramePosition(), s.Frames())
	}
	c.apply(ui.ControlChange{Kind: ui.Seek, Value: -5})
	if s.FramePosition() != 0 {
		t.Errorf("seek before start: position %d", s.FramePosition())
	}

	st := c.status()
	if st.Title != "Silence" || st.Artist != "Nobody" {
		t.Errorf("title/artist = %q/%q", st.Title, st.Artist)
	}
	if st.Backend != "dummy" {
		t.Errorf("backend = %q", st.Backend)
	}
	if st.Duration.Seconds() != 1 || st.Position == nil || *st.Position != 0 {
		t.Errorf("duration %v position %v", st.Duration, st.Position)
	}
	if !*st.Playing || !*st.Looping {
		t.Error("expected playing and looping status")
	}
	if st.Mixer == nil || st.Mixer.Speed != 2 {
		t.Errorf("mixer state = %+v", st.Mixer)
	}

	c.apply(ui.ControlChange{Kind: ui.TogglePlayback})
	if s.IsPlaying() {
		t.Error("expected stopped")
	}
}

func TestDescribe(t *testing.T) {
	gen := source.NewGenerator(source.Square)
	gen.Frequency().Set(220)
	title, tags := describe(gen)
	if title != "square tone 220 Hz" {
		t.Errorf("title = %q", title)
	}
	if tags == nil {
		t.Error("expected non-nil tags")
	}
}
