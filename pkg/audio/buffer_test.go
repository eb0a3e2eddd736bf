// ABOUTME: Tests for channel-major buffer helpers
// ABOUTME: Covers shape checks, padding, cutting and interleaving
package audio

import (
	"errors"
	"testing"
)

func TestCheckLength(t *testing.T) {
	if err := CheckLength(nil); !errors.Is(err, ErrEmptyBuffer) {
		t.Errorf("expected ErrEmptyBuffer, got %v", err)
	}
	if err := CheckLength([][]float32{{1, 2}, {3}}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if err := CheckLength(NewBuffer(2, 4)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCopyIntoMismatch(t *testing.T) {
	err := CopyInto(NewBuffer(1, 4), NewBuffer(2, 4))
	if !errors.Is(err, ErrChannelsMismatch) {
		t.Errorf("expected ErrChannelsMismatch, got %v", err)
	}
	err = CopyInto(NewBuffer(2, 3), NewBuffer(2, 4))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestPadWithLast(t *testing.T) {
	buf := [][]float32{{1, 2, 3}, {-1, -2, -3}}
	out := PadWithLast(buf, 5)

	want := [][]float32{{1, 2, 3, 3, 3}, {-1, -2, -3, -3, -3}}
	for ch := range want {
		for i := range want[ch] {
			if out[ch][i] != want[ch][i] {
				t.Errorf("ch %d frame %d: expected %v, got %v", ch, i, want[ch][i], out[ch][i])
			}
		}
	}
}

func TestCut(t *testing.T) {
	buf := [][]float32{{1, 2, 3, 4}}
	out := Cut(buf, 2)
	if Frames(out) != 2 || out[0][1] != 2 {
		t.Errorf("unexpected cut result: %v", out)
	}
}

func TestInterleaveRoundTrip(t *testing.T) {
	buf := [][]float32{{1, 2}, {3, 4}}
	inter := Interleave(buf)
	want := []float32{1, 3, 2, 4}
	for i := range want {
		if inter[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, inter)
		}
	}
	back := Deinterleave(inter, 2)
	if back[0][1] != 2 || back[1][0] != 3 {
		t.Errorf("unexpected deinterleave result: %v", back)
	}
}
