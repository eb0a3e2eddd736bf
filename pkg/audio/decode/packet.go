// ABOUTME: Streaming packet decoders for network audio
// ABOUTME: Turns PCM or Opus packets into float buffers
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/pcm"
)

// PacketDecoder decodes one packet at a time
type PacketDecoder interface {
	// Decode returns the channel-major samples carried by data
	Decode(data []byte) ([][]float32, error)
	Close() error
}

// NewPacket creates a packet decoder for codec ("pcm" or "opus")
func NewPacket(codec string, format audio.Format) (PacketDecoder, error) {
	switch codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format.SampleRate, format.Channels)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}

// PCMDecoder decodes raw interleaved PCM packets
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a PCM packet decoder for format
func NewPCM(format audio.Format) (PacketDecoder, error) {
	if err := pcm.Check(format); err != nil {
		return nil, fmt.Errorf("unsupported PCM format: %w", err)
	}
	return &PCMDecoder{format: format}, nil
}

// Decode converts data; a trailing partial frame is dropped
func (d *PCMDecoder) Decode(data []byte) ([][]float32, error) {
	return pcm.Decode(data, d.format)
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
