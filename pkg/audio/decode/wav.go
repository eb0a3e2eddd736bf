// ABOUTME: WAV file decoder
// ABOUTME: Decodes integer PCM RIFF/WAVE files via go-audio/wav
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/go-audio/wav"
)

var ErrNotWAV = errors.New("not a valid WAV file")

// wavFormatPCM is the WAVE_FORMAT_PCM format tag
const wavFormatPCM = 1

// WAV decodes RIFF/WAVE files with integer PCM data
type WAV struct{}

func (WAV) Extensions() []string { return []string{".wav", ".wave"} }

// Decode reads any INFO metadata and the PCM chunk
func (WAV) Decode(r io.Reader) (*Result, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV format tag %d", audio.ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	// metadata may follow the PCM chunk, so scan the whole file first
	dec.ReadMetadata()
	if err := dec.Rewind(); err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	format := audio.Format{
		SampleRate:    int(dec.SampleRate),
		BitsPerSample: bitDepth,
		Channels:      channels,
		Encoding:      audio.PCMSigned,
	}
	// 8-bit WAV is unsigned
	if bitDepth == 8 {
		format.Encoding = audio.PCMUnsigned
	}

	samples := deinterleaveInts(buf.Data, channels, bitDepth, bitDepth == 8)
	if audio.Frames(samples) == 0 {
		return nil, ErrNoAudio
	}

	tags := make(map[string]string)
	if md := dec.Metadata; md != nil {
		setTag(tags, "title", md.Title)
		setTag(tags, "artist", md.Artist)
		setTag(tags, "album", md.Product)
		setTag(tags, "genre", md.Genre)
		setTag(tags, "comment", md.Comments)
	}

	return &Result{Samples: samples, Format: format, Tags: tags}, nil
}

func setTag(tags map[string]string, key, value string) {
	if value != "" {
		tags[key] = value
	}
}
