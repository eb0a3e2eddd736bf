// ABOUTME: PCM audio encoder
// ABOUTME: Converts float buffers to interleaved bytes in the stream format
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/pcm"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	format audio.Format
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if err := pcm.Check(format); err != nil {
		return nil, fmt.Errorf("unsupported PCM format: %w", err)
	}
	return &PCMEncoder{format: format}, nil
}

// Format returns the output byte format
func (e *PCMEncoder) Format() audio.Format {
	return e.format
}

// Encode converts buf to one packet of PCM bytes
func (e *PCMEncoder) Encode(buf [][]float32) ([][]byte, error) {
	data, err := pcm.Encode(buf, e.format)
	if err != nil {
		return nil, fmt.Errorf("pcm encode error: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return [][]byte{data}, nil
}

// Codec returns "pcm"
func (e *PCMEncoder) Codec() string {
	return "pcm"
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
