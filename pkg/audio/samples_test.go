// ABOUTME: Tests for sample processing helpers
// ABOUTME: Pan law extremes, separation identity, swap and crossfade
package audio

import (
	"math"
	"testing"
)

func constBuffer(channels, frames int, v float32) [][]float32 {
	buf := NewBuffer(channels, frames)
	for ch := range buf {
		for i := range buf[ch] {
			buf[ch][i] = v
		}
	}
	return buf
}

func TestPanGains(t *testing.T) {
	tests := []struct {
		name  string
		pan   float32
		left  float32
		right float32
	}{
		{"center", 0, 1, 1},
		{"hard left", -1, 1, 0},
		{"hard right", 1, 0, 1},
		{"half left", -0.5, 1, 0.5},
		{"clamped", 3, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, r := PanGains(tt.pan)
			if l != tt.left || r != tt.right {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.left, tt.right, l, r)
			}
		})
	}
}

func TestApplyGainPanMono(t *testing.T) {
	buf := constBuffer(1, 4, 0.5)
	ApplyGainPan(buf, 2, -1)
	if buf[0][0] != 1 {
		t.Errorf("expected mono to get gain only, got %v", buf[0][0])
	}
}

func TestStereoSeparateZeroIsIdentity(t *testing.T) {
	buf := [][]float32{{0.1, -0.7, 0.3}, {0.9, 0.2, -0.4}}
	want := Clone(buf)
	StereoSeparate(buf, 0)
	for ch := range want {
		for i := range want[ch] {
			if buf[ch][i] != want[ch][i] {
				t.Errorf("ch %d index %d changed: %v -> %v", ch, i, want[ch][i], buf[ch][i])
			}
		}
	}
}

func TestStereoSeparateMinusOneIsMono(t *testing.T) {
	buf := [][]float32{{1, 0}, {0, 1}}
	StereoSeparate(buf, -1)
	for i := range buf[0] {
		if math.Abs(float64(buf[0][i]-buf[1][i])) > 1e-6 {
			t.Errorf("expected mono at %d, got %v and %v", i, buf[0][i], buf[1][i])
		}
	}
}

func TestSwapAndInvert(t *testing.T) {
	buf := [][]float32{{1}, {2}}
	SwapChannels(buf)
	if buf[0][0] != 2 || buf[1][0] != 1 {
		t.Errorf("unexpected swap result: %v", buf)
	}
	InvertPolarity(buf)
	if buf[0][0] != -2 {
		t.Errorf("unexpected invert result: %v", buf)
	}
}

func TestCrossfade(t *testing.T) {
	dry := constBuffer(1, 2, 0)
	wet := constBuffer(1, 2, 1)
	Crossfade(dry, wet, 0.25)
	if wet[0][0] != 0.25 {
		t.Errorf("expected 0.25, got %v", wet[0][0])
	}
}

func TestPeak(t *testing.T) {
	p := Peak([][]float32{{0.1, -0.8}, {0.3, 0.2}})
	if p[0] != 0.8 || p[1] != 0.3 {
		t.Errorf("unexpected peaks: %v", p)
	}
}
