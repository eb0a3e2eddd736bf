// ABOUTME: Binary audio chunk framing
// ABOUTME: [type:1][timestamp µs, big-endian:8][payload:N]
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// AudioChunkType tags binary messages carrying encoded audio
	AudioChunkType byte = 1

	// ChunkHeaderSize is the type byte plus the timestamp
	ChunkHeaderSize = 9
)

var (
	ErrShortChunk   = errors.New("binary message too short")
	ErrUnknownChunk = errors.New("unknown binary message type")
)

// EncodeChunk frames payload with its presentation timestamp
func EncodeChunk(timestamp int64, payload []byte) []byte {
	chunk := make([]byte, ChunkHeaderSize+len(payload))
	chunk[0] = AudioChunkType
	binary.BigEndian.PutUint64(chunk[1:ChunkHeaderSize], uint64(timestamp))
	copy(chunk[ChunkHeaderSize:], payload)
	return chunk
}

// DecodeChunk splits a binary message. The payload aliases data.
func DecodeChunk(data []byte) (int64, []byte, error) {
	if len(data) < ChunkHeaderSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrShortChunk, len(data))
	}
	if data[0] != AudioChunkType {
		return 0, nil, fmt.Errorf("%w: %d", ErrUnknownChunk, data[0])
	}
	timestamp := int64(binary.BigEndian.Uint64(data[1:ChunkHeaderSize]))
	return timestamp, data[ChunkHeaderSize:], nil
}
