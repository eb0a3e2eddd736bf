// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders plus a codec lookup
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

// Encoder encodes channel-major float buffers
type Encoder interface {
	// Encode consumes buf and returns any completed packets
	Encode(buf [][]float32) ([][]byte, error)

	// Codec returns the wire codec name
	Codec() string

	// Close releases encoder resources
	Close() error
}

// New creates an encoder for codec ("pcm" or "opus") at format
func New(codec string, format audio.Format) (Encoder, error) {
	switch codec {
	case "pcm":
		return NewPCM(format)
	case "opus":
		return NewOpus(format.SampleRate, format.Channels)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}
