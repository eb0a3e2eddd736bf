// ABOUTME: Network stream message type definitions
// ABOUTME: JSON control messages exchanged between stream sinks and listeners
package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// Version is the protocol version carried in hello messages
	Version = 1

	// Path is the WebSocket endpoint of a stream sink
	Path = "/audiograph"
)

// Message types
const (
	TypeClientHello    = "client/hello"
	TypeServerHello    = "server/hello"
	TypeServerError    = "server/error"
	TypeClientTime     = "client/time"
	TypeServerTime     = "server/time"
	TypeStreamStart    = "stream/start"
	TypeStreamEnd      = "stream/end"
	TypeStreamMetadata = "stream/metadata"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload converts msg.Payload, decoded generically, into v
func DecodePayload(msg Message, v interface{}) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", msg.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", msg.Type, err)
	}
	return nil
}

// ClientHello is sent by listeners to initiate the handshake
type ClientHello struct {
	ClientID string   `json:"client_id"`
	Name     string   `json:"name"`
	Version  int      `json:"version"`
	Codecs   []string `json:"codecs,omitempty"` // Decodable codecs, informational
}

// ServerHello is the sink's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerError reports why a connection is being refused
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StreamStart announces the format of the chunks that follow
type StreamStart struct {
	StreamID   string `json:"stream_id"`
	Codec      string `json:"codec"` // "pcm" or "opus"
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// StreamEnd marks the end of a stream; later chunks belong to a new one
type StreamEnd struct {
	StreamID string `json:"stream_id"`
}

// StreamMetadata contains track information
type StreamMetadata struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in microseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	ServerReceived    int64 `json:"server_received"`    // Server receive timestamp
	ServerTransmitted int64 `json:"server_transmitted"` // Server send timestamp
}
