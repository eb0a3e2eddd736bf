// ABOUTME: Tests for the decoder registry and file decoders
// ABOUTME: Builds WAV files with go-audio/wav and decodes them back
package decode

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes interleaved samples to a new file under t.TempDir
func writeWAV(t *testing.T, name string, sampleRate, bitDepth, channels int, data []int, md *wav.Metadata) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	enc.Metadata = md
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
	return path
}

func newTestRegistry() *Registry {
	reg := NewRegistry()
	RegisterBuiltins(reg)
	return reg
}

func TestRegistryLookup(t *testing.T) {
	reg := newTestRegistry()

	tests := []struct {
		ext  string
		want Decoder
	}{
		{".mp3", MP3{}},
		{"MP3", MP3{}},
		{".flac", FLAC{}},
		{".wav", WAV{}},
		{".WAV", WAV{}},
		{".aif", AIFF{}},
		{".aiff", AIFF{}},
		{"ogg", Vorbis{}},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			d, ok := reg.Lookup(tt.ext)
			if !ok {
				t.Fatalf("no decoder for %q", tt.ext)
			}
			if d != tt.want {
				t.Errorf("expected %T, got %T", tt.want, d)
			}
		})
	}

	if _, ok := reg.Lookup(".xyz"); ok {
		t.Error("expected no decoder for .xyz")
	}
}

func TestRegistryEmptyByDefault(t *testing.T) {
	reg := NewRegistry()
	if exts := reg.Extensions(); len(exts) != 0 {
		t.Errorf("expected empty registry, got %v", exts)
	}
}

func TestRegistryUnsupportedExtension(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.Decode(".xyz", bytes.NewReader(nil))
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("expected ErrUnsupportedExtension, got %v", err)
	}
	if !strings.Contains(err.Error(), ".wav") {
		t.Errorf("expected supported list in error, got %q", err)
	}
}

func TestRegistryExtensionsSorted(t *testing.T) {
	exts := newTestRegistry().Extensions()
	for i := 1; i < len(exts); i++ {
		if exts[i-1] >= exts[i] {
			t.Fatalf("extensions not sorted: %v", exts)
		}
	}
}

func TestWAVDecode16Bit(t *testing.T) {
	// two stereo frames: (0.5, -0.5), (0.25, 0)
	data := []int{16384, -16384, 8192, 0}
	path := writeWAV(t, "tone.wav", 44100, 16, 2, data, &wav.Metadata{Title: "Test Tone", Artist: "Nobody"})

	res, err := newTestRegistry().Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	want := audio.Format{SampleRate: 44100, BitsPerSample: 16, Channels: 2, Encoding: audio.PCMSigned}
	if res.Format != want {
		t.Errorf("expected format %v, got %v", want, res.Format)
	}
	if res.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", res.Frames())
	}

	expected := [][]float32{{0.5, 0.25}, {-0.5, 0}}
	for ch := range expected {
		for i, v := range expected[ch] {
			if math.Abs(float64(res.Samples[ch][i]-v)) > 1e-6 {
				t.Errorf("sample [%d][%d]: expected %v, got %v", ch, i, v, res.Samples[ch][i])
			}
		}
	}

	if res.Tags["title"] != "Test Tone" {
		t.Errorf("expected title tag, got %q", res.Tags["title"])
	}
	if res.Tags["artist"] != "Nobody" {
		t.Errorf("expected artist tag, got %q", res.Tags["artist"])
	}
}

func TestWAVDecode8BitUnsigned(t *testing.T) {
	data := []int{128, 192, 64}
	path := writeWAV(t, "quiet.wav", 8000, 8, 1, data, nil)

	res, err := newTestRegistry().Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if res.Format.Encoding != audio.PCMUnsigned {
		t.Errorf("expected unsigned encoding, got %v", res.Format.Encoding)
	}

	expected := []float32{0, 0.5, -0.5}
	for i, v := range expected {
		if res.Samples[0][i] != v {
			t.Errorf("sample %d: expected %v, got %v", i, v, res.Samples[0][i])
		}
	}
}

func TestOpenUsesFileNameAsTitle(t *testing.T) {
	path := writeWAV(t, "My Song.wav", 48000, 16, 1, []int{0, 100, 200, 300}, nil)

	res, err := newTestRegistry().Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if res.Tags["title"] != "My Song" {
		t.Errorf("expected title from file name, got %q", res.Tags["title"])
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := newTestRegistry().Open(filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestWAVRejectsGarbage(t *testing.T) {
	_, err := WAV{}.Decode(strings.NewReader("definitely not a riff file"))
	if !errors.Is(err, ErrNotWAV) {
		t.Errorf("expected ErrNotWAV, got %v", err)
	}
}

func TestResultDuration(t *testing.T) {
	res := &Result{
		Samples: audio.NewBuffer(2, 24000),
		Format:  audio.FormatHigh,
	}
	if got := res.Duration().Milliseconds(); got != 500 {
		t.Errorf("expected 500ms, got %dms", got)
	}

	empty := &Result{}
	if empty.Duration() != 0 {
		t.Errorf("expected zero duration without a sample rate")
	}
}

func TestDeinterleaveInts(t *testing.T) {
	tests := []struct {
		name     string
		data     []int
		channels int
		bits     int
		unsigned bool
		want     [][]float32
	}{
		{"16-bit stereo", []int{32767, -32768}, 2, 16, false, [][]float32{{32767.0 / 32768}, {-1}}},
		{"24-bit mono", []int{4194304, -4194304}, 1, 24, false, [][]float32{{0.5, -0.5}}},
		{"8-bit unsigned", []int{0, 255}, 1, 8, true, [][]float32{{-1, 127.0 / 128}}},
		{"partial frame dropped", []int{1, 2, 3}, 2, 16, false, [][]float32{{1.0 / 32768}, {2.0 / 32768}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deinterleaveInts(tt.data, tt.channels, tt.bits, tt.unsigned)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d channels, got %d", len(tt.want), len(got))
			}
			for ch := range tt.want {
				if len(got[ch]) != len(tt.want[ch]) {
					t.Fatalf("channel %d: expected %d frames, got %d", ch, len(tt.want[ch]), len(got[ch]))
				}
				for i, v := range tt.want[ch] {
					if got[ch][i] != v {
						t.Errorf("[%d][%d]: expected %v, got %v", ch, i, v, got[ch][i])
					}
				}
			}
		})
	}
}

func TestParseComments(t *testing.T) {
	tags := make(map[string]string)
	parseComments([]string{"TITLE=Song", "Artist=Band=Name", "garbage", "=empty"}, tags)

	if tags["title"] != "Song" {
		t.Errorf("expected title Song, got %q", tags["title"])
	}
	if tags["artist"] != "Band=Name" {
		t.Errorf("expected value with equals sign, got %q", tags["artist"])
	}
	if len(tags) != 2 {
		t.Errorf("expected 2 tags, got %v", tags)
	}
}
