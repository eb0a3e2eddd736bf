// ABOUTME: Tests for audio format definitions
// ABOUTME: Verifies validation, derived sizes and string rendering
package audio

import (
	"errors"
	"testing"
)

func TestFrameSizeAndByteRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		bits     int
		channels int
	}{
		{"telephone", 8000, 8, 1},
		{"cd", 44100, 16, 2},
		{"dvd", 48000, 24, 2},
		{"float surround", 96000, 32, 6},
		{"double mono", 192000, 64, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFormat(tt.rate, tt.bits, tt.channels, PCMSigned, false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			wantFrame := tt.channels * (tt.bits / 8)
			if f.FrameSize() != wantFrame {
				t.Errorf("expected frame size %d, got %d", wantFrame, f.FrameSize())
			}
			if f.ByteRate() != tt.rate*wantFrame {
				t.Errorf("expected byte rate %d, got %d", tt.rate*wantFrame, f.ByteRate())
			}
		})
	}
}

func TestNewFormatRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		f    Format
	}{
		{"zero rate", Format{0, 16, 2, PCMSigned, false}},
		{"negative bits", Format{44100, -8, 2, PCMSigned, false}},
		{"zero channels", Format{44100, 16, 0, PCMSigned, false}},
		{"no encoding", Format{44100, 16, 2, 0, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFormat(tt.f.SampleRate, tt.f.BitsPerSample, tt.f.Channels, tt.f.Encoding, tt.f.BigEndian)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("expected ErrInvalidFormat, got %v", err)
			}
		})
	}
}

func TestFormatEquality(t *testing.T) {
	a := FormatNormal
	b, err := NewFormat(44100, 16, 2, PCMSigned, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Error("expected equal formats")
	}
	if a == a.WithSampleRate(48000) {
		t.Error("expected formats with different rates to differ")
	}
}

func TestFormatString(t *testing.T) {
	got := FormatHigh.String()
	want := "48000 Hz, 16-bit, 2 channels, PCM_SIGNED, little-endian"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParseEncoding(t *testing.T) {
	for _, name := range []string{"signed", "unsigned", "float", "ulaw", "alaw"} {
		if _, err := ParseEncoding(name); err != nil {
			t.Errorf("expected %q to parse, got %v", name, err)
		}
	}
	if _, err := ParseEncoding("mp3"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
