// ABOUTME: Unit tests for Opus encoder
// ABOUTME: Tests frame buffering and packet output
package encode

import (
	"math"
	"testing"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
		wantErr    bool
	}{
		{"valid Opus 48kHz stereo", 48000, 2, false},
		{"valid Opus 48kHz mono", 48000, 1, false},
		{"invalid channel count", 48000, 6, true},
		{"invalid sample rate", 44100, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewOpus(tt.sampleRate, tt.channels)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewOpus() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpus() unexpected error = %v", err)
			}
			if encoder == nil {
				t.Fatalf("NewOpus() returned nil encoder")
			}
			encoder.Close()
		})
	}
}

func sineBuffer(channels, frames int) [][]float32 {
	buf := audio.NewBuffer(channels, frames)
	for ch := range buf {
		for i := range buf[ch] {
			buf[ch][i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
		}
	}
	return buf
}

func TestOpusEncoder_Encode(t *testing.T) {
	encoder, err := NewOpus(48000, 2)
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	// 20ms at 48kHz = 960 frames
	packets, err := encoder.Encode(sineBuffer(2, 960))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("Encode() returned %d packets, want 1", len(packets))
	}
	if len(packets[0]) == 0 || len(packets[0]) > maxPacketSize {
		t.Errorf("Encode() packet size %d out of range", len(packets[0]))
	}
}

func TestOpusEncoder_BuffersPartialFrames(t *testing.T) {
	encoder, err := NewOpus(48000, 2)
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	packets, err := encoder.Encode(sineBuffer(2, 500))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(packets) != 0 {
		t.Errorf("expected no packets for a partial frame, got %d", len(packets))
	}

	packets, err = encoder.Encode(sineBuffer(2, 1500))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(packets) != 2 {
		t.Errorf("expected 2 packets for 2000 frames, got %d", len(packets))
	}
}

func TestOpusEncoder_EncodeSilence(t *testing.T) {
	encoder, err := NewOpus(48000, 1)
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	packets, err := encoder.Encode(audio.NewBuffer(1, 960))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	// Even silence should produce a valid Opus packet
	if len(packets) != 1 || len(packets[0]) == 0 {
		t.Errorf("Encode() returned no packet for silence")
	}
}

func TestOpusEncoder_ChannelMismatch(t *testing.T) {
	encoder, _ := NewOpus(48000, 2)
	defer encoder.Close()
	if _, err := encoder.Encode(audio.NewBuffer(1, 960)); err == nil {
		t.Errorf("Encode() expected channel mismatch error")
	}
}
