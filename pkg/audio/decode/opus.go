// ABOUTME: Opus packet decoder
// ABOUTME: Decodes Opus packets to float buffers via hraban/opus
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrames is the longest Opus frame (120ms at 48kHz)
const maxOpusFrames = 5760

// OpusDecoder decodes Opus packets
type OpusDecoder struct {
	decoder  *opus.Decoder
	channels int
	pcm      []float32
}

// NewOpus creates an Opus packet decoder
func NewOpus(sampleRate, channels int) (PacketDecoder, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count for opus: %d", channels)
	}
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:  dec,
		channels: channels,
		pcm:      make([]float32, maxOpusFrames*channels),
	}, nil
}

// Decode decodes one packet
func (d *OpusDecoder) Decode(data []byte) ([][]float32, error) {
	n, err := d.decoder.DecodeFloat32(data, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode error: %w", err)
	}
	return audio.Deinterleave(d.pcm[:n*d.channels], d.channels), nil
}

// Close releases resources
func (d *OpusDecoder) Close() error {
	return nil
}
