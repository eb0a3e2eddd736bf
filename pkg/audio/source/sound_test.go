// ABOUTME: Tests for the Sound file player node
// ABOUTME: Covers playback, looping, end notification, seeking and offline effects
package source

import (
	"errors"
	"testing"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/effect"
)

// rampResult is a mono sound of 0.1, 0.2, ... 1.0
func rampResult(rate int) *decode.Result {
	samples := audio.NewBuffer(1, 10)
	for i := range samples[0] {
		samples[0][i] = float32(i+1) / 10
	}
	return &decode.Result{
		Samples: samples,
		Format:  audio.Format{SampleRate: rate, BitsPerSample: 16, Channels: 1, Encoding: audio.PCMSigned},
		Tags:    map[string]string{"title": "Ramp"},
	}
}

func newRampSound(t *testing.T) (*Sound, *[]SoundEvent) {
	t.Helper()
	s, err := NewSound(rampResult(48000))
	if err != nil {
		t.Fatalf("NewSound failed: %v", err)
	}
	events := &[]SoundEvent{}
	s.AddListener(func(ev SoundEvent) { *events = append(*events, ev) })
	return s, events
}

func expectFrames(t *testing.T, buf [][]float32, want []float32) {
	t.Helper()
	for ch := range buf {
		for i, w := range want {
			if !approx(buf[ch][i], w) {
				t.Fatalf("[%d][%d] = %v, want %v (got %v)", ch, i, buf[ch][i], w, buf[ch])
			}
		}
	}
}

func TestNewSound_Empty(t *testing.T) {
	if _, err := NewSound(nil); !errors.Is(err, decode.ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
	empty := &decode.Result{Samples: audio.NewBuffer(2, 0), Format: audio.FormatHigh}
	if _, err := NewSound(empty); !errors.Is(err, decode.ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func TestSound_Metadata(t *testing.T) {
	s, _ := newRampSound(t)
	if s.Frames() != 10 {
		t.Errorf("Frames = %d", s.Frames())
	}
	if s.Tags()["title"] != "Ramp" {
		t.Errorf("Tags = %v", s.Tags())
	}
	if s.Format().SampleRate != 48000 {
		t.Errorf("Format = %s", s.Format())
	}
	if d := s.Duration(); d.Microseconds() != 208 {
		t.Errorf("Duration = %v", d)
	}
}

func TestSound_StoppedRendersSilence(t *testing.T) {
	s, _ := newRampSound(t)
	buf := audio.NewBuffer(2, 4)
	buf[0][0] = 1
	if err := s.Render(buf, 48000); err != nil {
		t.Fatal(err)
	}
	expectFrames(t, buf, []float32{0, 0, 0, 0})
}

func TestSound_PlaysToEnd(t *testing.T) {
	s, events := newRampSound(t)
	s.Start()

	buf := audio.NewBuffer(2, 4)
	s.Render(buf, 48000)
	expectFrames(t, buf, []float32{0.1, 0.2, 0.3, 0.4})
	if s.FramePosition() != 4 {
		t.Errorf("FramePosition = %d, want 4", s.FramePosition())
	}

	buf = audio.NewBuffer(2, 8)
	s.Render(buf, 48000)
	expectFrames(t, buf, []float32{0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 0, 0})

	if s.IsPlaying() {
		t.Error("sound should stop at the end")
	}
	if s.FramePosition() != 0 {
		t.Errorf("position after end = %d, want 0", s.FramePosition())
	}
	want := []SoundEvent{SoundStarted, SoundEnded}
	if len(*events) != len(want) || (*events)[0] != want[0] || (*events)[1] != want[1] {
		t.Errorf("events = %v, want %v", *events, want)
	}
}

func TestSound_Loop(t *testing.T) {
	s, events := newRampSound(t)
	s.SetLoop(true)
	s.Start()

	buf := audio.NewBuffer(1, 12)
	s.Render(buf, 48000)
	expectFrames(t, buf, []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 0.1, 0.2})

	if !s.IsPlaying() || !s.IsLooping() {
		t.Error("looping sound should keep playing")
	}
	if s.FramePosition() != 2 {
		t.Errorf("FramePosition = %d, want 2", s.FramePosition())
	}
	if (*events)[len(*events)-1] != SoundLooped {
		t.Errorf("events = %v, want a loop event", *events)
	}
}

func TestSound_SampleRateCompensation(t *testing.T) {
	s, err := NewSound(rampResult(24000))
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	s.Render(audio.NewBuffer(2, 8), 48000)
	if s.FramePosition() != 4 {
		t.Errorf("24 kHz sound rendered at 48 kHz consumed %d frames, want 4", s.FramePosition())
	}
}

func TestSound_SpeedControl(t *testing.T) {
	s, _ := newRampSound(t)
	s.Speed().Set(2)
	s.Start()
	s.Render(audio.NewBuffer(2, 4), 48000)
	if s.FramePosition() != 8 {
		t.Errorf("double speed consumed %d frames, want 8", s.FramePosition())
	}
}

func TestSound_Seek(t *testing.T) {
	s, events := newRampSound(t)

	tests := []struct {
		frame   int
		wantErr bool
	}{
		{0, false},
		{10, false},
		{5, false},
		{-1, true},
		{11, true},
	}
	for _, tt := range tests {
		err := s.SetFramePosition(tt.frame)
		if tt.wantErr != errors.Is(err, ErrPosition) {
			t.Errorf("SetFramePosition(%d) = %v", tt.frame, err)
		}
	}
	if s.FramePosition() != 5 {
		t.Errorf("FramePosition = %d, want 5", s.FramePosition())
	}
	if len(*events) != 3 {
		t.Errorf("expected 3 seek events, got %v", *events)
	}

	if err := s.SetSecondsPosition(0); err != nil || s.SecondsPosition() != 0 {
		t.Errorf("SetSecondsPosition(0) = %v, position %v", err, s.SecondsPosition())
	}

	// starting at the end rewinds
	s.SetFramePosition(10)
	s.Start()
	if s.FramePosition() != 0 {
		t.Errorf("Start at end left position %d", s.FramePosition())
	}
}

func TestSound_RemoveListener(t *testing.T) {
	s, err := NewSound(rampResult(48000))
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	remove := s.AddListener(func(SoundEvent) { calls++ })
	s.Start()
	remove()
	s.Stop()
	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

func TestSound_Apply(t *testing.T) {
	s, _ := newRampSound(t)

	if err := s.Apply(effect.NewReverse()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	s.Start()
	buf := audio.NewBuffer(1, 3)
	s.Render(buf, 48000)
	expectFrames(t, buf, []float32{1.0, 0.9, 0.8})

	if err := s.Apply(effect.NewInvert()); !errors.Is(err, ErrPlaying) {
		t.Errorf("Apply while playing: expected ErrPlaying, got %v", err)
	}
	s.Stop()
	if err := s.Apply(effect.NewSpeed(nil)); !errors.Is(err, ErrVaryingEffect) {
		t.Errorf("expected ErrVaryingEffect, got %v", err)
	}
}

func TestSound_Close(t *testing.T) {
	s, _ := newRampSound(t)
	s.Start()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.IsPlaying() {
		t.Error("Close should stop playback")
	}
	if len(s.Mixer().Inputs()) != 0 {
		t.Error("Close should detach the inner mixer inputs")
	}
}
