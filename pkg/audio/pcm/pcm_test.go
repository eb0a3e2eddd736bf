// ABOUTME: Tests for PCM byte conversion
// ABOUTME: Byte layouts, clipping, byte order and G.711 companding
package pcm

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

func format(bits int, enc audio.Encoding, bigEndian bool) audio.Format {
	return audio.Format{SampleRate: 48000, BitsPerSample: bits, Channels: 2, Encoding: enc, BigEndian: bigEndian}
}

func TestEncodeLayouts(t *testing.T) {
	buf := [][]float32{{1}, {-1}}

	tests := []struct {
		name   string
		format audio.Format
		want   []byte
	}{
		{"s8", format(8, audio.PCMSigned, false), []byte{0x7F, 0x80}},
		{"u8", format(8, audio.PCMUnsigned, false), []byte{0xFF, 0x00}},
		{"s16le", format(16, audio.PCMSigned, false), []byte{0xFF, 0x7F, 0x00, 0x80}},
		{"s16be", format(16, audio.PCMSigned, true), []byte{0x7F, 0xFF, 0x80, 0x00}},
		{"s24le", format(24, audio.PCMSigned, false), []byte{0xFF, 0xFF, 0x7F, 0x00, 0x00, 0x80}},
		{"u16le", format(16, audio.PCMUnsigned, false), []byte{0xFF, 0xFF, 0x00, 0x00}},
		{"f32le", format(32, audio.PCMFloat, false), []byte{0x00, 0x00, 0x80, 0x3F, 0x00, 0x00, 0x80, 0xBF}},
		{"f32be", format(32, audio.PCMFloat, true), []byte{0x3F, 0x80, 0x00, 0x00, 0xBF, 0x80, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(buf, tt.format)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("expected % x, got % x", tt.want, got)
			}
		})
	}
}

func TestRoundTripPrecision(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -0.999, 0.001}
	buf := [][]float32{samples, samples}

	tests := []struct {
		name      string
		format    audio.Format
		tolerance float64
	}{
		{"s8", format(8, audio.PCMSigned, false), 1.0 / 128},
		{"u8", format(8, audio.PCMUnsigned, false), 1.0 / 128},
		{"s16le", format(16, audio.PCMSigned, false), 1.0 / 32768},
		{"s16be", format(16, audio.PCMSigned, true), 1.0 / 32768},
		{"s24be", format(24, audio.PCMSigned, true), 1.0 / 8388608},
		{"s32le", format(32, audio.PCMSigned, false), 1e-7},
		{"u24le", format(24, audio.PCMUnsigned, false), 1.0 / 8388608},
		{"f32le", format(32, audio.PCMFloat, false), 0},
		{"f64be", format(64, audio.PCMFloat, true), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(buf, tt.format)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(data) != len(samples)*tt.format.FrameSize() {
				t.Fatalf("expected %d bytes, got %d", len(samples)*tt.format.FrameSize(), len(data))
			}
			out, err := Decode(data, tt.format)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			for ch := range out {
				for i, v := range out[ch] {
					if diff := math.Abs(float64(v - samples[i])); diff > tt.tolerance {
						t.Errorf("channel %d sample %d: expected %v, got %v", ch, i, samples[i], v)
					}
				}
			}
		})
	}
}

func TestEncodeClips(t *testing.T) {
	f := format(16, audio.PCMSigned, false)
	data, err := Encode([][]float32{{2}, {-3}}, f)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, _ := Decode(data, f)
	if out[0][0] != 32767.0/32768 {
		t.Errorf("expected positive full scale, got %v", out[0][0])
	}
	if out[1][0] != -1 {
		t.Errorf("expected -1, got %v", out[1][0])
	}
}

func TestChannelMismatch(t *testing.T) {
	_, err := Encode([][]float32{{0}}, format(16, audio.PCMSigned, false))
	if !errors.Is(err, audio.ErrChannelsMismatch) {
		t.Errorf("expected ErrChannelsMismatch, got %v", err)
	}
	_, err = DecodeInto([][]float32{{0}}, []byte{0, 0, 0, 0}, format(16, audio.PCMSigned, false))
	if !errors.Is(err, audio.ErrChannelsMismatch) {
		t.Errorf("expected ErrChannelsMismatch, got %v", err)
	}
}

func TestUnsupportedFormats(t *testing.T) {
	tests := []audio.Format{
		format(12, audio.PCMSigned, false),
		format(16, audio.PCMFloat, false),
		format(16, audio.ULaw, false),
		format(40, audio.PCMSigned, false),
	}
	for _, f := range tests {
		if err := Check(f); !errors.Is(err, audio.ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", f, err)
		}
	}
}

func TestDecodeIgnoresPartialFrame(t *testing.T) {
	f := format(16, audio.PCMSigned, false)
	out, err := Decode([]byte{0, 0, 0, 0, 1, 2, 3}, f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if audio.Frames(out) != 1 {
		t.Errorf("expected 1 frame, got %d", audio.Frames(out))
	}
}

func TestDecodeIntoShortData(t *testing.T) {
	f := format(8, audio.PCMUnsigned, false)
	buf := audio.NewBuffer(2, 4)
	n, err := DecodeInto(buf, []byte{0xFF, 0x00}, f)
	if err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 frame, got %d", n)
	}
}

func TestULawKnownCodes(t *testing.T) {
	tests := []struct {
		linear int16
		code   byte
	}{
		{0, 0xFF},
		{32767, 0x80},
		{-32768, 0x00},
	}
	for _, tt := range tests {
		if got := LinearToULaw(tt.linear); got != tt.code {
			t.Errorf("LinearToULaw(%d): expected %#x, got %#x", tt.linear, tt.code, got)
		}
	}
	if got := ULawToLinear(0xFF); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := ULawToLinear(0x80); got != 32124 {
		t.Errorf("expected 32124, got %d", got)
	}
}

func TestALawKnownCodes(t *testing.T) {
	if got := LinearToALaw(0); got != 0xD5 {
		t.Errorf("expected 0xd5, got %#x", got)
	}
	if got := LinearToALaw(32767); got != 0xAA {
		t.Errorf("expected 0xaa, got %#x", got)
	}
	if got := ALawToLinear(0xD5); got != 8 {
		t.Errorf("expected 8, got %d", got)
	}
	if got := ALawToLinear(0xAA); got != 32256 {
		t.Errorf("expected 32256, got %d", got)
	}
}

func TestCompandingRoundTrip(t *testing.T) {
	for _, v := range []int16{-30000, -1000, -10, 0, 10, 1000, 30000} {
		u := ULawToLinear(LinearToULaw(v))
		a := ALawToLinear(LinearToALaw(v))
		// G.711 keeps roughly 4 significant bits plus segment
		tol := math.Max(16, math.Abs(float64(v))/16)
		if math.Abs(float64(u-v)) > tol {
			t.Errorf("mu-law %d: got %d", v, u)
		}
		if math.Abs(float64(a-v)) > tol {
			t.Errorf("A-law %d: got %d", v, a)
		}
	}
}

func TestG711Buffers(t *testing.T) {
	for _, enc := range []audio.Encoding{audio.ULaw, audio.ALaw} {
		f := format(8, enc, false)
		data, err := Encode([][]float32{{0.5}, {-0.5}}, f)
		if err != nil {
			t.Fatalf("%s: Encode failed: %v", enc, err)
		}
		out, err := Decode(data, f)
		if err != nil {
			t.Fatalf("%s: Decode failed: %v", enc, err)
		}
		if math.Abs(float64(out[0][0]-0.5)) > 0.02 || math.Abs(float64(out[1][0]+0.5)) > 0.02 {
			t.Errorf("%s: expected ±0.5, got %v %v", enc, out[0][0], out[1][0])
		}
	}
}
