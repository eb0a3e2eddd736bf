// ABOUTME: AIFF file decoder
// ABOUTME: Decodes AIFF/AIFC PCM via go-audio/aiff
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

var ErrNotAIFF = errors.New("not a valid AIFF file")

// aiffChunkSamples is the read granularity in samples
const aiffChunkSamples = 4096

// AIFF decodes Audio Interchange File Format files
type AIFF struct{}

func (AIFF) Extensions() []string { return []string{".aiff", ".aif", ".aifc"} }

// Decode reads every PCM sample
func (AIFF) Decode(r io.Reader) (*Result, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAIFF
	}
	dec.ReadInfo()

	goFormat := dec.Format()
	if goFormat == nil || goFormat.NumChannels < 1 {
		return nil, fmt.Errorf("%w: missing AIFF common chunk", audio.ErrUnsupportedFormat)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit AIFF", audio.ErrUnsupportedFormat, bitDepth)
	}

	intBuf := &goaudio.IntBuffer{
		Data:   make([]int, aiffChunkSamples*goFormat.NumChannels),
		Format: goFormat,
	}
	var data []int
	for {
		n, err := dec.PCMBuffer(intBuf)
		if n > 0 {
			data = append(data, intBuf.Data[:n]...)
		}
		if n == 0 || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode AIFF: %w", err)
		}
	}

	format := audio.Format{
		SampleRate:    goFormat.SampleRate,
		BitsPerSample: bitDepth,
		Channels:      goFormat.NumChannels,
		Encoding:      audio.PCMSigned,
		BigEndian:     true,
	}
	samples := deinterleaveInts(data, format.Channels, bitDepth, false)
	if audio.Frames(samples) == 0 {
		return nil, ErrNoAudio
	}
	return &Result{Samples: samples, Format: format, Tags: map[string]string{}}, nil
}
