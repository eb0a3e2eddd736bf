// ABOUTME: Ogg Vorbis file decoder
// ABOUTME: Decodes Vorbis audio and comment tags via jfreymuth/oggvorbis
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

// Vorbis decodes Ogg Vorbis files
type Vorbis struct{}

func (Vorbis) Extensions() []string { return []string{".ogg", ".oga"} }

// Decode reads the whole stream. Read returns interleaved values, always a
// multiple of the channel count.
func (Vorbis) Decode(r io.Reader) (*Result, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}

	channels := dec.Channels()
	var interleaved []float32
	if length := dec.Length(); length > 0 {
		interleaved = make([]float32, 0, int(length)*channels)
	}
	chunk := make([]float32, 4096*channels)
	for {
		n, err := dec.Read(chunk)
		interleaved = append(interleaved, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("vorbis decode error: %w", err)
		}
	}

	format := audio.Format{
		SampleRate:    dec.SampleRate(),
		BitsPerSample: 32,
		Channels:      channels,
		Encoding:      audio.PCMFloat,
	}
	samples := audio.Deinterleave(interleaved, channels)
	if audio.Frames(samples) == 0 {
		return nil, ErrNoAudio
	}

	tags := make(map[string]string)
	parseComments(dec.CommentHeader().Comments, tags)
	return &Result{Samples: samples, Format: format, Tags: tags}, nil
}
