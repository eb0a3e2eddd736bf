// ABOUTME: Tests for the WAV file recording backend
// ABOUTME: Reads recordings back with go-audio/wav
package backend

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/go-audio/wav"
)

func TestWAVFile_IsFormatSupported(t *testing.T) {
	w := NewWAVFile("unused.wav", false)
	port, _ := w.DefaultPort(audio.FlowOut, nil)

	tests := []struct {
		name    string
		format  audio.Format
		ok      bool
		closest audio.Format
	}{
		{"16-bit", audio.FormatHigh, true, audio.FormatHigh},
		{"8-bit unsigned", audio.FormatLow, true, audio.FormatLow},
		{
			"8-bit signed",
			audio.Format{SampleRate: 8000, BitsPerSample: 8, Channels: 1, Encoding: audio.PCMSigned},
			false,
			audio.Format{SampleRate: 8000, BitsPerSample: 8, Channels: 1, Encoding: audio.PCMUnsigned},
		},
		{
			"float",
			audio.FormatUltra,
			false,
			audio.Format{SampleRate: 48000, BitsPerSample: 32, Channels: 2, Encoding: audio.PCMSigned},
		},
		{
			"u-law",
			audio.Format{SampleRate: 8000, BitsPerSample: 8, Channels: 1, Encoding: audio.ULaw},
			false,
			audio.Format{SampleRate: 8000, BitsPerSample: 16, Channels: 1, Encoding: audio.PCMSigned},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, closest := w.IsFormatSupported(port, tt.format)
			if ok != tt.ok {
				t.Errorf("supported = %v, want %v", ok, tt.ok)
			}
			if closest == nil || *closest != tt.closest {
				t.Errorf("closest = %v, want %v", closest, tt.closest)
			}
		})
	}
}

func TestWAVFile_NoInput(t *testing.T) {
	if _, err := NewWAVFile("x.wav", false).NewInput(); !errors.Is(err, ErrNoInput) {
		t.Errorf("expected ErrNoInput, got %v", err)
	}
}

func TestWAVFile_Record(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w := NewWAVFile(path, false)
	o, _ := w.NewOutput()
	if err := o.Open(nil, audio.FormatHigh, 4096); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// frames (1000, -1000) and (32767, -32768)
	data := []byte{0xE8, 0x03, 0x18, 0xFC, 0xFF, 0x7F, 0x00, 0x80}
	if n, err := o.Write(data); err != nil || n != len(data) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if pos, _ := o.FramePosition(); pos != 2 {
		t.Errorf("FramePosition = %d, want 2", pos)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer failed: %v", err)
	}
	if dec.SampleRate != 48000 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("header = %d Hz, %d ch, %d bits", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{1000, -1000, 32767, -32768}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %v, want %v", buf.Data, want)
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestDecodeInts(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
		data   []byte
		want   []int
	}{
		{"8-bit", audio.FormatLowest, []byte{0x80, 0xFF, 0x00}, []int{128, 255, 0}},
		{"16-bit", audio.Format{SampleRate: 8000, BitsPerSample: 16, Channels: 1, Encoding: audio.PCMSigned}, []byte{0x01, 0x00, 0xFF, 0xFF}, []int{1, -1}},
		{"24-bit", audio.Format{SampleRate: 8000, BitsPerSample: 24, Channels: 1, Encoding: audio.PCMSigned}, []byte{0xFF, 0xFF, 0x7F, 0x00, 0x00, 0x80}, []int{8388607, -8388608}},
		{"32-bit", audio.Format{SampleRate: 8000, BitsPerSample: 32, Channels: 1, Encoding: audio.PCMSigned}, []byte{0xFE, 0xFF, 0xFF, 0xFF}, []int{-2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeInts(nil, tt.data, tt.format)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}
