// ABOUTME: MP3 file decoder
// ABOUTME: Decodes MP3 audio to float buffers via go-mp3
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/pcm"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 decodes MPEG-1/2 Layer III files
type MP3 struct{}

func (MP3) Extensions() []string { return []string{".mp3"} }

// Decode reads the whole MP3 stream. go-mp3 always produces 16-bit stereo.
func (MP3) Decode(r io.Reader) (*Result, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	format := audio.Format{
		SampleRate:    decoder.SampleRate(),
		BitsPerSample: 16,
		Channels:      2, // MP3 decoder outputs stereo
		Encoding:      audio.PCMSigned,
	}
	samples, err := pcm.Decode(data, format)
	if err != nil {
		return nil, err
	}
	if audio.Frames(samples) == 0 {
		return nil, ErrNoAudio
	}
	return &Result{Samples: samples, Format: format, Tags: map[string]string{}}, nil
}
