// ABOUTME: Network stream listener orchestration
// ABOUTME: Coordinates connection, clock sync, scheduling and local playback
package app

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/internal/client"
	"github.com/Resonate-Protocol/audiograph/internal/discovery"
	"github.com/Resonate-Protocol/audiograph/internal/player"
	"github.com/Resonate-Protocol/audiograph/internal/protocol"
	"github.com/Resonate-Protocol/audiograph/internal/sync"
	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/dataline"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/device"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/mixer"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/resample"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/source"
	"golang.org/x/sync/errgroup"
)

var ErrDisconnected = errors.New("disconnected from stream sink")

// Config holds listener configuration. Zero fields take defaults.
type Config struct {
	// ServerAddr is host:port of the sink; empty browses mDNS
	ServerAddr string

	// Name is sent in client/hello
	Name string

	// Backend plays the stream; it must already be initialized
	Backend backend.Backend

	// Port selects the output port (nil for the default)
	Port *audio.Port

	// Format is the render format (default FormatHigh)
	Format audio.Format

	// BufferFrames is the device buffer and render block (default 1024)
	BufferFrames int

	// Delay is the jitter buffer added to every timestamp (default 150ms)
	Delay time.Duration

	// SyncInterval is the clock sync period (default 1s)
	SyncInterval time.Duration

	// DiscoveryTimeout bounds the mDNS search (default 10s)
	DiscoveryTimeout time.Duration

	// Method resamples between the render and device rates
	Method resample.Method

	// OnStatus, when set, is called about twice a second
	OnStatus func(Status)
}

// Status is a snapshot for display
type Status struct {
	Server    string
	Stream    *protocol.StreamStart
	Metadata  protocol.StreamMetadata
	Scheduler player.Stats
	RTT       int64
	Quality   sync.Quality
	Underruns int64
}

// Listener plays one network stream through a local backend
type Listener struct {
	cfg    Config
	clock  *sync.ClockSync
	mixer  *mixer.Mixer
	output *device.OutputLayer

	mu      stdsync.Mutex
	server  string
	current *activeStream
	meta    protocol.StreamMetadata
}

// activeStream is the decode and playback chain of one stream/start
type activeStream struct {
	start     protocol.StreamStart
	decoder   decode.PacketDecoder
	line      *dataline.DataLine
	scheduler *player.Scheduler
	node      *source.Stream
	cancel    context.CancelFunc
}

// New creates a listener. The backend is not shut down by the listener.
func New(cfg Config) (*Listener, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("listener requires a backend")
	}
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.FormatHigh
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = 1024
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 150 * time.Millisecond
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = time.Second
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = 10 * time.Second
	}

	return &Listener{
		cfg:    cfg,
		clock:  sync.NewClockSync(),
		mixer:  mixer.New(),
		output: device.NewOutputLayer(cfg.Backend, device.OutputConfig{Method: cfg.Method}),
	}, nil
}

// Mixer returns the mixer the stream plays through, for volume and effects
func (l *Listener) Mixer() *mixer.Mixer {
	return l.mixer
}

// Output returns the output layer
func (l *Listener) Output() *device.OutputLayer {
	return l.output
}

// Status returns the current state
func (l *Listener) Status() Status {
	rtt, quality := l.clock.Stats()

	l.mu.Lock()
	defer l.mu.Unlock()
	st := Status{Server: l.server, Metadata: l.meta, RTT: rtt, Quality: quality}
	if l.current != nil {
		start := l.current.start
		st.Stream = &start
		st.Scheduler = l.current.scheduler.Stats()
		st.Underruns = l.current.node.Underruns()
	}
	return st
}

// Run connects and plays until ctx is done or the connection ends. A
// cancelled ctx is not an error.
func (l *Listener) Run(ctx context.Context) error {
	addr, err := l.resolve(ctx)
	if err != nil {
		return err
	}

	c := client.NewClient(client.Config{ServerAddr: addr, Name: l.cfg.Name})
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer c.Close()

	l.mu.Lock()
	l.server = c.Server().Name
	l.mu.Unlock()
	log.Infof("Connected to %s at %s", c.Server().Name, addr)

	if err := l.output.Open(l.cfg.Port, l.cfg.Format, l.cfg.BufferFrames); err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	defer l.output.Close()
	l.output.SetRoot(l.mixer)
	if err := l.output.Start(); err != nil {
		return fmt.Errorf("failed to start output: %w", err)
	}
	defer l.stopStream()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.clockSyncLoop(gctx, c) })
	g.Go(func() error { return l.handleMessages(gctx, g, c) })
	g.Go(func() error { return l.handleAudioChunks(gctx, c) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-c.Done():
			if err := c.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrDisconnected, err)
			}
			return ErrDisconnected
		case <-l.output.Done():
			if err := l.output.Err(); err != nil {
				return err
			}
			return nil
		}
	})
	if l.cfg.OnStatus != nil {
		g.Go(func() error { return l.statusLoop(gctx) })
	}

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// resolve returns the configured address or the first sink found by mDNS
func (l *Listener) resolve(ctx context.Context) (string, error) {
	if l.cfg.ServerAddr != "" {
		return l.cfg.ServerAddr, nil
	}
	log.Infof("Browsing for stream sinks...")
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()

	dctx, cancel := context.WithTimeout(ctx, l.cfg.DiscoveryTimeout)
	defer cancel()
	server, err := disc.First(dctx)
	if err != nil {
		return "", err
	}
	log.Infof("Discovered %s at %s", server.Name, server.Addr())
	return server.Addr(), nil
}

// clockSyncLoop measures the sink clock once per SyncInterval
func (l *Listener) clockSyncLoop(ctx context.Context, c *client.Client) error {
	ticker := time.NewTicker(l.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		if err := c.SendTimeSync(sync.ClientMicros()); err != nil {
			log.Debugf("Time sync send failed: %v", err)
		} else {
			select {
			case resp := <-c.TimeSyncResp:
				l.clock.ProcessSyncResponse(resp.ClientTransmitted, resp.ServerReceived,
					resp.ServerTransmitted, resp.ClientReceived)
			case <-time.After(2 * time.Second):
				log.Warnf("Time sync timeout")
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-ticker.C:
			if q := l.clock.CheckQuality(); q == sync.QualityLost {
				log.Debugf("Clock sync quality lost")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// handleMessages follows stream/start, stream/end and metadata
func (l *Listener) handleMessages(ctx context.Context, g *errgroup.Group, c *client.Client) error {
	for {
		select {
		case start := <-c.StreamStart:
			if err := l.startStream(ctx, g, start); err != nil {
				log.Errorf("Cannot play stream %s: %v", start.StreamID, err)
			}
		case end := <-c.StreamEnd:
			l.mu.Lock()
			match := l.current != nil && l.current.start.StreamID == end.StreamID
			l.mu.Unlock()
			if match {
				l.stopStream()
			}
		case meta := <-c.Metadata:
			log.Infof("Metadata: %s - %s (%s)", meta.Artist, meta.Title, meta.Album)
			l.mu.Lock()
			l.meta = meta
			l.mu.Unlock()
		case <-ctx.Done():
			return nil
		}
	}
}

// streamFormat describes the samples carried by a stream's chunks
func streamFormat(start protocol.StreamStart) audio.Format {
	bits := start.BitDepth
	if bits == 0 {
		bits = 16
	}
	return audio.Format{
		SampleRate:    start.SampleRate,
		BitsPerSample: bits,
		Channels:      start.Channels,
		Encoding:      audio.PCMSigned,
	}
}

// startStream replaces the active stream with a chain for start
func (l *Listener) startStream(ctx context.Context, g *errgroup.Group, start protocol.StreamStart) error {
	format := streamFormat(start)
	if err := format.Validate(); err != nil {
		return err
	}
	dec, err := decode.NewPacket(start.Codec, format)
	if err != nil {
		return err
	}

	l.stopStream()

	// about a second of decoded chunks
	line := dataline.New(format, 64)
	sched := player.NewScheduler(l.clock, line, player.SchedulerConfig{Delay: l.cfg.Delay})
	node := source.NewStream(line)
	sctx, cancel := context.WithCancel(ctx)

	s := &activeStream{
		start:     start,
		decoder:   dec,
		line:      line,
		scheduler: sched,
		node:      node,
		cancel:    cancel,
	}
	if err := l.mixer.AddInput(node); err != nil {
		cancel()
		line.Close()
		dec.Close()
		return err
	}

	l.mu.Lock()
	l.current = s
	l.mu.Unlock()

	g.Go(func() error {
		sched.Run(sctx)
		return nil
	})
	log.Infof("Playing stream %s (%s %s)", start.StreamID, start.Codec, format)
	return nil
}

// stopStream tears down the active stream, if any
func (l *Listener) stopStream() {
	l.mu.Lock()
	s := l.current
	l.current = nil
	l.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	l.mixer.RemoveInput(s.node)
	s.line.Close()
	s.decoder.Close()

	st := s.scheduler.Stats()
	log.Infof("Stream %s stopped: %d received, %d played, %d dropped, %d underruns",
		s.start.StreamID, st.Received, st.Played, st.Dropped, s.node.Underruns())
}

// handleAudioChunks decodes and schedules audio
func (l *Listener) handleAudioChunks(ctx context.Context, c *client.Client) error {
	for {
		select {
		case chunk := <-c.AudioChunks:
			l.mu.Lock()
			s := l.current
			l.mu.Unlock()
			if s == nil {
				continue
			}

			samples, err := s.decoder.Decode(chunk.Data)
			if err != nil {
				log.Warnf("Decode error: %v", err)
				continue
			}
			if audio.Frames(samples) == 0 {
				continue
			}
			s.scheduler.Schedule(chunk.Timestamp, samples)

		case <-ctx.Done():
			return nil
		}
	}
}

func (l *Listener) statusLoop(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cfg.OnStatus(l.Status())
		case <-ctx.Done():
			return nil
		}
	}
}
