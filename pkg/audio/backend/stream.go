// ABOUTME: Network stream backend broadcasting to WebSocket listeners
// ABOUTME: Re-encodes written PCM as PCM or Opus chunks with stream-clock timestamps
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/internal/protocol"
	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/encode"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/pcm"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrDuplicateClient = errors.New("client ID already connected")

// StreamConfig holds network stream settings. Zero fields take defaults.
type StreamConfig struct {
	// Addr is the listen address (default ":8927")
	Addr string

	// Listener, when set, is used instead of listening on Addr
	Listener net.Listener

	// Name is announced in server/hello (default "audiograph")
	Name string

	// Codec is "pcm" (default) or "opus"
	Codec string

	// SendQueue is the per-listener message queue length (default 128)
	SendQueue int

	// Unpaced disables real-time pacing of Write
	Unpaced bool
}

// Stream is an output-only backend that serves one WebSocket endpoint and
// broadcasts everything written to its port to every connected listener
type Stream struct {
	cfg      StreamConfig
	serverID string
	port     *audio.Port
	upgrader websocket.Upgrader

	clockStart time.Time

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	clients    map[string]*streamClient
	start      *protocol.StreamStart
	metadata   *protocol.StreamMetadata
	shutdown   bool
	wg         sync.WaitGroup
}

type streamClient struct {
	id       string
	name     string
	conn     *websocket.Conn
	sendChan chan interface{}
}

// NewStream creates a stream sink; Init starts listening
func NewStream(cfg StreamConfig) *Stream {
	if cfg.Addr == "" {
		cfg.Addr = ":8927"
	}
	if cfg.Name == "" {
		cfg.Name = "audiograph"
	}
	if cfg.Codec == "" {
		cfg.Codec = "pcm"
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 128
	}
	serverID := uuid.NewString()
	return &Stream{
		cfg:      cfg,
		serverID: serverID,
		port: &audio.Port{
			Link:        "stream:" + serverID,
			Flow:        audio.FlowOut,
			Active:      true,
			MixFormat:   audio.FormatHigh,
			Name:        "Network Stream",
			Vendor:      "audiograph",
			Version:     fmt.Sprint(protocol.Version),
			Description: cfg.Codec + " over WebSocket",
		},
		upgrader: websocket.Upgrader{
			// listeners are expected on a trusted local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clockStart: time.Now(),
		clients:    make(map[string]*streamClient),
	}
}

func (s *Stream) Name() string { return "stream" }

// Init starts the HTTP server
func (s *Stream) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return nil
	}
	if s.cfg.Codec != "pcm" && s.cfg.Codec != "opus" {
		return fmt.Errorf("unsupported codec: %s", s.cfg.Codec)
	}

	ln := s.cfg.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(protocol.Path, s.handleWebSocket)
	s.httpServer = &http.Server{Handler: mux}
	s.listener = ln
	s.shutdown = false

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("Stream server error: %v", err)
		}
	}()

	log.Infof("Stream sink %q listening on %s%s (%s)", s.cfg.Name, ln.Addr(), protocol.Path, s.cfg.Codec)
	return nil
}

// Addr returns the bound listen address, or nil before Init
func (s *Stream) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server and disconnects every listener
func (s *Stream) Shutdown() error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.shutdown = true
	clients := make([]*streamClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	for _, c := range clients {
		c.conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// Clients returns the names of connected listeners
func (s *Stream) Clients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.clients))
	for _, c := range s.clients {
		names = append(names, c.name)
	}
	slices.Sort(names)
	return names
}

func (s *Stream) Ports() ([]*audio.Port, error) {
	return []*audio.Port{s.port}, nil
}

func (s *Stream) DefaultPort(flow audio.Flow, format *audio.Format) (*audio.Port, error) {
	return defaultPort(s, flow, format)
}

// IsFormatSupported accepts signed little-endian 16 or 24-bit PCM. Opus
// streams are fixed at 48 kHz, 16-bit, one or two channels.
func (s *Stream) IsFormatSupported(port *audio.Port, f audio.Format) (bool, *audio.Format) {
	if port == nil || port.Flow != audio.FlowOut {
		return false, nil
	}
	closest := audio.Format{
		SampleRate:    f.SampleRate,
		BitsPerSample: 16,
		Channels:      f.Channels,
		Encoding:      audio.PCMSigned,
	}
	if closest.SampleRate <= 0 {
		closest.SampleRate = port.MixFormat.SampleRate
	}
	if closest.Channels <= 0 {
		closest.Channels = port.MixFormat.Channels
	}
	if s.cfg.Codec == "opus" {
		closest.SampleRate = 48000
		closest.Channels = min(closest.Channels, 2)
	} else if f.BitsPerSample == 24 {
		closest.BitsPerSample = 24
	}
	return closest == f, &closest
}

func (s *Stream) NewOutput() (Output, error) {
	return &streamOutput{backend: s}, nil
}

func (s *Stream) NewInput() (Input, error) {
	return nil, ErrNoInput
}

// SetMetadata sends track information to current and future listeners
func (s *Stream) SetMetadata(md protocol.StreamMetadata) {
	s.mu.Lock()
	s.metadata = &md
	s.mu.Unlock()
	s.broadcast(protocol.Message{Type: protocol.TypeStreamMetadata, Payload: md})
}

func (s *Stream) clockMicros() int64 {
	return time.Since(s.clockStart).Microseconds()
}

func (s *Stream) setStart(start *protocol.StreamStart) {
	s.mu.Lock()
	s.start = start
	s.mu.Unlock()
}

// broadcast queues msg for every listener, dropping it for listeners
// whose queue is full
func (s *Stream) broadcast(msg interface{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.sendChan <- msg:
		default:
			log.Warnf("Listener %s send queue full, dropping message", c.name)
		}
	}
}

func (s *Stream) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	log.Debugf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

func (s *Stream) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Warnf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != protocol.TypeClientHello {
		log.Warnf("Expected %s, got %q", protocol.TypeClientHello, msg.Type)
		return
	}
	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg, &hello); err != nil {
		log.Warnf("Invalid client hello: %v", err)
		return
	}
	if hello.ClientID == "" || hello.Name == "" {
		log.Warnf("Client hello missing ID or name")
		return
	}

	client := &streamClient{
		id:       hello.ClientID,
		name:     hello.Name,
		conn:     conn,
		sendChan: make(chan interface{}, s.cfg.SendQueue),
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	if _, exists := s.clients[client.id]; exists {
		s.mu.Unlock()
		log.Warnf("Client ID %s already connected, rejecting duplicate", client.id)
		conn.WriteJSON(protocol.Message{
			Type:    protocol.TypeServerError,
			Payload: protocol.ServerError{Error: "duplicate_client_id", Message: ErrDuplicateClient.Error()},
		})
		return
	}

	// greeting and current stream state are queued before the client
	// becomes visible to broadcast, so they arrive first
	client.sendChan <- protocol.Message{
		Type:    protocol.TypeServerHello,
		Payload: protocol.ServerHello{ServerID: s.serverID, Name: s.cfg.Name, Version: protocol.Version},
	}
	if s.start != nil {
		client.sendChan <- protocol.Message{Type: protocol.TypeStreamStart, Payload: *s.start}
	}
	if s.metadata != nil {
		client.sendChan <- protocol.Message{Type: protocol.TypeStreamMetadata, Payload: *s.metadata}
	}
	s.clients[client.id] = client
	s.wg.Add(1)
	s.mu.Unlock()

	log.Infof("Listener connected: %s (ID: %s)", client.name, client.id)

	writerDone := make(chan struct{})
	go func() {
		defer s.wg.Done()
		defer close(writerDone)
		s.clientWriter(client)
	}()

	defer func() {
		s.mu.Lock()
		delete(s.clients, client.id)
		close(client.sendChan)
		s.mu.Unlock()
		<-writerDone
		log.Infof("Listener disconnected: %s", client.name)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("WebSocket error: %v", err)
			}
			return
		}
		s.handleClientMessage(client, data)
	}
}

func (s *Stream) handleClientMessage(client *streamClient, data []byte) {
	recv := s.clockMicros()

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debugf("Error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeClientTime:
		var ct protocol.ClientTime
		if err := protocol.DecodePayload(msg, &ct); err != nil {
			log.Debugf("%v", err)
			return
		}
		reply := protocol.Message{
			Type: protocol.TypeServerTime,
			Payload: protocol.ServerTime{
				ClientTransmitted: ct.ClientTransmitted,
				ServerReceived:    recv,
				ServerTransmitted: s.clockMicros(),
			},
		}
		s.mu.RLock()
		select {
		case client.sendChan <- reply:
		default:
		}
		s.mu.RUnlock()
	default:
		log.Debugf("Unknown message type from %s: %s", client.name, msg.Type)
	}
}

// clientWriter sends queued messages and keepalive pings
func (s *Stream) clientWriter(client *streamClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			var err error
			switch v := msg.(type) {
			case []byte:
				err = client.conn.WriteMessage(websocket.BinaryMessage, v)
			default:
				err = client.conn.WriteJSON(v)
			}
			if err != nil {
				log.Debugf("Error writing to %s: %v", client.name, err)
				client.conn.Close()
				// keep draining so broadcasters never block on this client
				for range client.sendChan {
				}
				return
			}

		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				client.conn.Close()
				for range client.sendChan {
				}
				return
			}
		}
	}
}

type streamOutput struct {
	lineState
	backend *Stream

	encMu     sync.Mutex
	encoder   encode.Encoder
	step      int // frames per packet, 0 for one packet per write
	streamID  string
	baseTime  int64 // stream clock at Open, µs
	baseWall  time.Time
	sent      int64 // frames covered by sent packets
	written   int64 // frames accepted by Write
	bufferDur time.Duration
}

func (o *streamOutput) Open(port *audio.Port, f audio.Format, bufferBytes int) error {
	port, err := resolvePort(o.backend, port, audio.FlowOut)
	if err != nil {
		return err
	}
	if ok, closest := o.backend.IsFormatSupported(port, f); !ok {
		return unsupported(f, closest)
	}
	enc, err := encode.New(o.backend.cfg.Codec, f)
	if err != nil {
		return err
	}
	if err := o.setOpen(port, f, bufferBytes); err != nil {
		enc.Close()
		return err
	}
	size, _ := o.BufferSize()

	o.encMu.Lock()
	o.encoder = enc
	o.step = 0
	if fs, ok := enc.(interface{ FrameSize() int }); ok {
		o.step = fs.FrameSize()
	}
	o.streamID = uuid.NewString()
	o.baseTime = o.backend.clockMicros()
	o.baseWall = time.Now()
	o.sent, o.written = 0, 0
	o.bufferDur = bytesDuration(size, f)
	start := &protocol.StreamStart{
		StreamID:   o.streamID,
		Codec:      enc.Codec(),
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		BitDepth:   f.BitsPerSample,
	}
	o.encMu.Unlock()

	o.backend.setStart(start)
	o.backend.broadcast(protocol.Message{Type: protocol.TypeStreamStart, Payload: *start})
	log.Infof("Stream %s started: %s, %s", o.streamID, enc.Codec(), f)
	return nil
}

// Close ends the stream for every listener
func (o *streamOutput) Close() error {
	if err := o.setClosed(); err != nil {
		return err
	}
	o.encMu.Lock()
	id := o.streamID
	err := o.encoder.Close()
	o.encoder = nil
	o.encMu.Unlock()

	o.backend.setStart(nil)
	o.backend.broadcast(protocol.Message{Type: protocol.TypeStreamEnd, Payload: protocol.StreamEnd{StreamID: id}})
	return err
}

func (o *streamOutput) Start() error { return o.setStarted(true) }
func (o *streamOutput) Stop() error  { return o.setStarted(false) }

func (o *streamOutput) Flush() error {
	_, err := o.check()
	return err
}

func (o *streamOutput) Drain() error {
	_, err := o.check()
	return err
}

func (o *streamOutput) Available() (int, error) {
	return o.BufferSize()
}

// Write encodes p and broadcasts the resulting chunks. Paced streams stay
// at most one buffer ahead of real time.
func (o *streamOutput) Write(p []byte) (int, error) {
	f, err := o.checkData(p)
	if err != nil {
		return 0, err
	}
	buf, err := pcm.Decode(p, f)
	if err != nil {
		return 0, err
	}
	frames := audio.Frames(buf)

	o.encMu.Lock()
	if o.encoder == nil {
		o.encMu.Unlock()
		return 0, ErrNotOpen
	}
	packets, err := o.encoder.Encode(buf)
	for _, packet := range packets {
		ts := o.baseTime + framesToMicros(o.sent, f.SampleRate)
		o.backend.broadcast(protocol.EncodeChunk(ts, packet))
		if o.step > 0 {
			o.sent += int64(o.step)
		} else {
			o.sent += int64(frames)
		}
	}
	o.written += int64(frames)
	due := o.baseWall.Add(time.Duration(framesToMicros(o.written, f.SampleRate))*time.Microsecond - o.bufferDur)
	o.encMu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("stream encode failed: %w", err)
	}
	o.advance(len(p), f)
	if !o.backend.cfg.Unpaced {
		if wait := time.Until(due); wait > 0 {
			time.Sleep(wait)
		}
	}
	return len(p), nil
}
