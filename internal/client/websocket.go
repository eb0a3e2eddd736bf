// ABOUTME: WebSocket client for audiograph network streams
// ABOUTME: Handles connection, handshake, and message routing
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrRefused      = errors.New("connection refused by server")
)

// Config holds client configuration. Zero fields take defaults.
type Config struct {
	// ServerAddr is host:port of the stream sink
	ServerAddr string

	// ClientID defaults to a random UUID
	ClientID string

	// Name defaults to the host name
	Name string

	// Codecs lists decodable codecs (default pcm and opus)
	Codecs []string

	// HandshakeTimeout bounds the wait for server/hello (default 5s)
	HandshakeTimeout time.Duration
}

// AudioChunk is a timestamped encoded frame
type AudioChunk struct {
	Timestamp int64  // Microseconds, server clock
	Data      []byte // Encoded audio
}

// TimeResponse is a server/time reply with the local receive time
type TimeResponse struct {
	protocol.ServerTime
	ClientReceived int64 // Unix µs
}

// Client receives one network stream
type Client struct {
	config Config
	conn   *websocket.Conn
	server protocol.ServerHello

	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	err       error

	// Message channels
	AudioChunks  chan AudioChunk
	TimeSyncResp chan TimeResponse
	StreamStart  chan protocol.StreamStart
	StreamEnd    chan protocol.StreamEnd
	Metadata     chan protocol.StreamMetadata

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates an unconnected client
func NewClient(config Config) *Client {
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Name == "" {
		config.Name, _ = os.Hostname()
		if config.Name == "" {
			config.Name = "audiograph listener"
		}
	}
	if len(config.Codecs) == 0 {
		config.Codecs = []string{"pcm", "opus"}
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:       config,
		AudioChunks:  make(chan AudioChunk, 100),
		TimeSyncResp: make(chan TimeResponse, 10),
		StreamStart:  make(chan protocol.StreamStart, 4),
		StreamEnd:    make(chan protocol.StreamEnd, 4),
		Metadata:     make(chan protocol.StreamMetadata, 10),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// ClientID returns the identifier sent in client/hello
func (c *Client) ClientID() string {
	return c.config.ClientID
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// Connect dials the sink, performs the handshake and starts the reader
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: protocol.Path}
	log.Infof("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
		Codecs:   c.config.Codecs,
	}
	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	var msg protocol.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var serr protocol.ServerError
		if err := protocol.DecodePayload(msg, &serr); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s (%s)", ErrRefused, serr.Message, serr.Error)
	default:
		return fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, msg.Type)
	}

	var server protocol.ServerHello
	if err := protocol.DecodePayload(msg, &server); err != nil {
		return err
	}
	if server.Version != protocol.Version {
		log.Warnf("Server speaks protocol version %d, client %d", server.Version, protocol.Version)
	}

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	log.Infof("Handshake complete with %s (%s)", server.Name, server.ServerID)
	return nil
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages until the connection
// fails or the client is closed
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Errorf("Read error: %v", err)
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleBinaryMessage handles audio chunks
func (c *Client) handleBinaryMessage(data []byte) {
	timestamp, payload, err := protocol.DecodeChunk(data)
	if err != nil {
		log.Warnf("Invalid binary message: %v", err)
		return
	}

	chunk := AudioChunk{Timestamp: timestamp, Data: payload}
	select {
	case c.AudioChunks <- chunk:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	received := time.Now().UnixMicro()

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warnf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeServerTime:
		var resp TimeResponse
		if err := protocol.DecodePayload(msg, &resp.ServerTime); err != nil {
			log.Warnf("%v", err)
			return
		}
		resp.ClientReceived = received
		deliver(c.ctx, c.TimeSyncResp, resp)

	case protocol.TypeStreamStart:
		var start protocol.StreamStart
		if err := protocol.DecodePayload(msg, &start); err != nil {
			log.Warnf("%v", err)
			return
		}
		log.Infof("Stream %s started: %s %d Hz, %d ch", start.StreamID, start.Codec, start.SampleRate, start.Channels)
		deliver(c.ctx, c.StreamStart, start)

	case protocol.TypeStreamEnd:
		var end protocol.StreamEnd
		if err := protocol.DecodePayload(msg, &end); err != nil {
			log.Warnf("%v", err)
			return
		}
		log.Infof("Stream %s ended", end.StreamID)
		deliver(c.ctx, c.StreamEnd, end)

	case protocol.TypeStreamMetadata:
		var meta protocol.StreamMetadata
		if err := protocol.DecodePayload(msg, &meta); err != nil {
			log.Warnf("%v", err)
			return
		}
		deliver(c.ctx, c.Metadata, meta)

	case protocol.TypeServerError:
		var serr protocol.ServerError
		protocol.DecodePayload(msg, &serr)
		log.Errorf("Server error: %s (%s)", serr.Message, serr.Error)

	default:
		log.Debugf("Unknown message type: %s", msg.Type)
	}
}

func deliver[T any](ctx context.Context, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}

// SendTimeSync sends a client/time message stamped t1 (Unix µs)
func (c *Client) SendTimeSync(t1 int64) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypeClientTime,
		Payload: protocol.ClientTime{ClientTransmitted: t1},
	})
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err returns the read error that ended the connection, if any
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	c.cancel()

	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	log.Infof("Connection closed")
	return c.conn.Close()
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
