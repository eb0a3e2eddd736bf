// ABOUTME: Tests for resampling methods and the multi-channel resampler
// ABOUTME: Covers identity, endpoints, constant signals and stream continuity
package resample

import (
	"errors"
	"math"
	"testing"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

var methods = []struct {
	name   string
	method Method
}{
	{"nearest", Nearest{}},
	{"linear", Linear{}},
	{"cubic", Cubic{}},
	{"lanczos", Lanczos{A: 3}},
}

func TestIdentityLength(t *testing.T) {
	in := []float32{0.1, -0.4, 0.9, 0.3, -1}
	for _, tt := range methods {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]float32, len(in))
			tt.method.Resample(in, out)
			for i := range in {
				if out[i] != in[i] {
					t.Errorf("index %d: expected %v, got %v", i, in[i], out[i])
				}
			}
		})
	}
}

func TestLinearMidpoint(t *testing.T) {
	out := make([]float32, 3)
	Linear{}.Resample([]float32{0, 10}, out)
	want := []float32{0, 5, 10}
	for i := range want {
		if !approx(out[i], want[i]) {
			t.Errorf("index %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestConstantSignalStaysConstant(t *testing.T) {
	in := make([]float32, 64)
	for i := range in {
		in[i] = 0.5
	}
	for _, tt := range methods {
		for _, n := range []int{17, 63, 65, 200} {
			out := make([]float32, n)
			tt.method.Resample(in, out)
			for i, v := range out {
				if !approx(v, 0.5) {
					t.Fatalf("%s len %d index %d: expected 0.5, got %v", tt.name, n, i, v)
				}
			}
		}
	}
}

func TestEndpointsPreserved(t *testing.T) {
	in := []float32{-1, 0.2, 0.4, 1}
	for _, tt := range []struct {
		name   string
		method Method
	}{{"nearest", Nearest{}}, {"linear", Linear{}}, {"cubic", Cubic{}}} {
		out := make([]float32, 9)
		tt.method.Resample(in, out)
		if !approx(out[0], -1) || !approx(out[8], 1) {
			t.Errorf("%s: expected endpoints -1 and 1, got %v and %v", tt.name, out[0], out[8])
		}
	}
}

func TestNearestDownsample(t *testing.T) {
	out := make([]float32, 3)
	Nearest{}.Resample([]float32{0, 1, 2, 3, 4}, out)
	want := []float32{0, 2, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestCatmullRomInterpolatesEndpoints(t *testing.T) {
	if v := CatmullRom(0, 1, 2, 3, 0); v != 1 {
		t.Errorf("expected 1 at t=0, got %v", v)
	}
	if v := CatmullRom(0, 1, 2, 3, 1); !approx(v, 2) {
		t.Errorf("expected 2 at t=1, got %v", v)
	}
	if v := CatmullRom(0, 1, 2, 3, 0.5); !approx(v, 1.5) {
		t.Errorf("expected 1.5 on a line, got %v", v)
	}
}

func TestResamplerChannelMismatch(t *testing.T) {
	r := New(Linear{})
	err := r.Resample(audio.NewBuffer(2, 4), audio.NewBuffer(1, 8))
	if !errors.Is(err, audio.ErrChannelsMismatch) {
		t.Errorf("expected ErrChannelsMismatch, got %v", err)
	}
	err = r.Resample([][]float32{{1, 2}, {1}}, audio.NewBuffer(2, 8))
	if !errors.Is(err, audio.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestResamplerIdentityCopies(t *testing.T) {
	in := [][]float32{{1, 2, 3}, {4, 5, 6}}
	out, err := New(Cubic{}).ResampleTo(in, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for ch := range in {
		for i := range in[ch] {
			if out[ch][i] != in[ch][i] {
				t.Errorf("ch %d index %d: expected %v, got %v", ch, i, in[ch][i], out[ch][i])
			}
		}
	}
	in[0][0] = 99
	if out[0][0] == 99 {
		t.Error("expected a copy, got shared storage")
	}
}

func TestResamplerSpeed(t *testing.T) {
	in := audio.NewBuffer(2, 100)
	out, err := New(nil).Speed(in, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if audio.Frames(out) != 50 {
		t.Errorf("expected 50 frames, got %d", audio.Frames(out))
	}
	if _, err := New(nil).Speed(in, 0); err == nil {
		t.Error("expected error for zero speed")
	}
}

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"nearest", "linear", "cubic", "lanczos"} {
		if _, err := ParseMethod(name); err != nil {
			t.Errorf("expected %q to parse: %v", name, err)
		}
	}
	if _, err := ParseMethod("sinc64"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestStreamRatioProducesExpectedLength(t *testing.T) {
	tests := []struct {
		name string
		in   int
		out  int
	}{
		{"upsample", 44100, 48000},
		{"downsample", 48000, 44100},
		{"same", 48000, 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStream(tt.in, tt.out, 2)
			total := 0
			chunk := audio.NewBuffer(2, 441)
			for i := 0; i < 100; i++ {
				out := s.Process(chunk)
				total += audio.Frames(out)
			}
			expected := int(float64(441*100) * float64(tt.out) / float64(tt.in))
			if total < expected-3 || total > expected+3 {
				t.Errorf("expected ~%d frames, got %d", expected, total)
			}
		})
	}
}

func TestStreamContinuousRamp(t *testing.T) {
	s := NewStream(1, 2, 1)
	var got []float32
	for c := 0; c < 3; c++ {
		chunk := [][]float32{{float32(c * 4), float32(c*4 + 1), float32(c*4 + 2), float32(c*4 + 3)}}
		out := s.Process(chunk)
		got = append(got, out[0]...)
	}
	for i := 1; i < len(got); i++ {
		if !approx(got[i]-got[i-1], 0.5) {
			t.Fatalf("expected steps of 0.5, got %v", got)
		}
	}
}
