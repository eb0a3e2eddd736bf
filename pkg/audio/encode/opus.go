// ABOUTME: Opus audio encoder
// ABOUTME: Buffers float samples into 20ms frames and encodes Opus packets
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxPacketSize is the largest Opus packet we expect to produce
const maxPacketSize = 4000

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int

	pending []float32 // interleaved samples waiting for a full frame
	packet  []byte
}

// NewOpus creates a new Opus encoder
func NewOpus(sampleRate, channels int) (Encoder, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count for opus: %d", channels)
	}
	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  sampleRate / 50, // 20ms frame
		packet:     make([]byte, maxPacketSize),
	}, nil
}

// FrameSize returns the frames per packet
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Encode appends buf to the pending samples and encodes every full frame
func (e *OpusEncoder) Encode(buf [][]float32) ([][]byte, error) {
	if len(buf) != e.channels {
		return nil, fmt.Errorf("%w: got %d, expected %d", audio.ErrChannelsMismatch, len(buf), e.channels)
	}
	if err := audio.CheckLength(buf); err != nil {
		return nil, err
	}
	e.pending = append(e.pending, audio.Interleave(buf)...)

	var packets [][]byte
	need := e.frameSize * e.channels
	for len(e.pending) >= need {
		n, err := e.encoder.EncodeFloat32(e.pending[:need], e.packet)
		if err != nil {
			return packets, fmt.Errorf("opus encode error: %w", err)
		}
		packets = append(packets, append([]byte(nil), e.packet[:n]...))
		e.pending = e.pending[need:]
	}
	if len(e.pending) == 0 {
		e.pending = nil
	}
	return packets, nil
}

// Codec returns "opus"
func (e *OpusEncoder) Codec() string {
	return "opus"
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	e.pending = nil
	return nil
}
