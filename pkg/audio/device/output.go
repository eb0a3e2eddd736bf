// ABOUTME: OutputLayer drives a root node into a backend output
// ABOUTME: One goroutine renders, resamples, converts to bytes and writes
package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/pcm"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/resample"
)

// OutputConfig holds OutputLayer settings. Zero fields take defaults.
type OutputConfig struct {
	// Method converts between source and device rates (default Linear)
	Method resample.Method

	// StopTimeout bounds the wait for the process goroutine (default 2s)
	StopTimeout time.Duration
}

type rootNode struct {
	node audio.Node
}

// OutputLayer plays a root node through one backend output
type OutputLayer struct {
	backend   backend.Backend
	cfg       OutputConfig
	resampler *resample.Resampler

	root atomic.Pointer[rootNode]

	mu           sync.Mutex
	out          backend.Output
	source       audio.Format
	format       audio.Format
	renderFrames int
	factor       float64
	stop         chan struct{}
	done         chan struct{}

	errMu sync.Mutex
	err   error
}

// NewOutputLayer creates a closed layer on an initialized backend. The
// backend stays owned by the caller.
func NewOutputLayer(b backend.Backend, cfg OutputConfig) *OutputLayer {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	return &OutputLayer{
		backend:   b,
		cfg:       cfg,
		resampler: resample.New(cfg.Method),
		factor:    1,
	}
}

// Open negotiates a device format for port (nil selects the default output)
// and opens the backend with room for bufferFrames device frames. format is
// the source format the graph renders in.
func (l *OutputLayer) Open(port *audio.Port, format audio.Format, bufferFrames int) error {
	if bufferFrames <= 0 {
		return ErrInvalidBufferFrames
	}
	if err := format.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out != nil {
		return backend.ErrAlreadyOpen
	}

	port, err := choosePort(l.backend, port, audio.FlowOut)
	if err != nil {
		return err
	}
	negotiated, err := Negotiate(l.backend, port, format)
	if err != nil {
		log.Errorf("Failed to open output: %v", err)
		return err
	}

	out, err := l.backend.NewOutput()
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := out.Open(port, negotiated, bufferFrames*negotiated.FrameSize()); err != nil {
		return fmt.Errorf("failed to open %s: %w", port.Name, err)
	}

	l.factor = 1
	if negotiated.SampleRate != format.SampleRate {
		l.factor = float64(format.SampleRate) / float64(negotiated.SampleRate)
	}
	if negotiated != format {
		log.Infof("Audio format conversion: %s -> %s, resampling factor %.4f", format, negotiated, l.factor)
	}

	l.out = out
	l.source = format
	l.format = negotiated
	l.renderFrames = bufferFrames
	l.setErr(nil)

	log.Debugf("Opened %s with %s, %d frames", port.Name, negotiated, bufferFrames)
	return nil
}

// IsOpen reports whether the backend output is open
func (l *OutputLayer) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out != nil && l.out.IsOpen()
}

// SetRoot replaces the node rendered by the process loop. nil silences
// the output.
func (l *OutputLayer) SetRoot(node audio.Node) {
	if node == nil {
		l.root.Store(nil)
		return
	}
	l.root.Store(&rootNode{node: node})
}

// Root returns the current root node
func (l *OutputLayer) Root() audio.Node {
	if r := l.root.Load(); r != nil {
		return r.node
	}
	return nil
}

// Start starts the backend and the process goroutine. Starting a running
// layer is a no-op.
func (l *OutputLayer) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return backend.ErrNotOpen
	}
	if l.running() {
		return nil
	}
	if err := l.out.Start(); err != nil {
		return fmt.Errorf("failed to start output: %w", err)
	}

	l.setErr(nil)
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	p := &processor{
		layer:     l,
		out:       l.out,
		source:    l.source,
		format:    l.format,
		frames:    l.renderFrames,
		factor:    l.factor,
		resampler: l.resampler,
	}
	go p.run(l.stop, l.done)

	log.Debugf("Output layer started")
	return nil
}

func (l *OutputLayer) running() bool {
	if l.done == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// IsRunning reports whether the process goroutine is alive
func (l *OutputLayer) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running()
}

// Done is closed when the process goroutine exits. It is nil before the
// first Start.
func (l *OutputLayer) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Err returns the fault that terminated the process goroutine, if any
func (l *OutputLayer) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

func (l *OutputLayer) setErr(err error) {
	l.errMu.Lock()
	l.err = err
	l.errMu.Unlock()
}

// Stop ends the process goroutine, waiting up to StopTimeout, then stops the
// backend. Stopping a stopped layer is a no-op.
func (l *OutputLayer) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopLocked()
}

func (l *OutputLayer) stopLocked() error {
	if l.stop == nil {
		return nil
	}
	close(l.stop)
	l.stop = nil

	var err error
	select {
	case <-l.done:
	case <-time.After(l.cfg.StopTimeout):
		log.Warnf("Output goroutine did not stop within %v", l.cfg.StopTimeout)
		err = ErrStopTimeout
	}
	if l.out != nil {
		if serr := l.out.Stop(); serr != nil && !errors.Is(serr, backend.ErrNotOpen) {
			return serr
		}
	}
	log.Debugf("Output layer stopped")
	return err
}

// Close stops the layer and closes the backend output. The backend itself
// is not shut down.
func (l *OutputLayer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.stopLocked()
	if l.out != nil {
		if cerr := l.out.Close(); cerr != nil && !errors.Is(cerr, backend.ErrNotOpen) && err == nil {
			err = cerr
		}
		l.out = nil
		log.Debugf("Output layer closed")
	}
	return err
}

func (l *OutputLayer) output() (backend.Output, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return nil, backend.ErrNotOpen
	}
	return l.out, nil
}

func (l *OutputLayer) Flush() error {
	out, err := l.output()
	if err != nil {
		return err
	}
	return out.Flush()
}

func (l *OutputLayer) Drain() error {
	out, err := l.output()
	if err != nil {
		return err
	}
	return out.Drain()
}

func (l *OutputLayer) Available() (int, error) {
	out, err := l.output()
	if err != nil {
		return 0, err
	}
	return out.Available()
}

// BufferSize is the backend buffer in bytes
func (l *OutputLayer) BufferSize() (int, error) {
	out, err := l.output()
	if err != nil {
		return 0, err
	}
	return out.BufferSize()
}

func (l *OutputLayer) FramePosition() (int64, error) {
	out, err := l.output()
	if err != nil {
		return 0, err
	}
	return out.FramePosition()
}

func (l *OutputLayer) MicrosecondPosition() (int64, error) {
	out, err := l.output()
	if err != nil {
		return 0, err
	}
	return out.MicrosecondPosition()
}

func (l *OutputLayer) MicrosecondLatency() (int64, error) {
	out, err := l.output()
	if err != nil {
		return 0, err
	}
	return out.MicrosecondLatency()
}

func (l *OutputLayer) Port() (*audio.Port, error) {
	out, err := l.output()
	if err != nil {
		return nil, err
	}
	return out.Port()
}

// Format returns the negotiated device format
func (l *OutputLayer) Format() audio.Format {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.format
}

// SourceFormat returns the format the graph renders in
func (l *OutputLayer) SourceFormat() audio.Format {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}

// RenderFrames returns the number of source frames rendered per cycle
func (l *OutputLayer) RenderFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderFrames
}

// ResamplingFactor returns source rate / device rate
func (l *OutputLayer) ResamplingFactor() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.factor
}

// processor holds what the process goroutine needs so it never touches the
// layer's locked state
type processor struct {
	layer     *OutputLayer
	out       backend.Output
	source    audio.Format
	format    audio.Format
	frames    int
	factor    float64
	resampler *resample.Resampler
}

func (p *processor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	channels := p.format.Channels
	rendered := audio.NewBuffer(channels, p.frames)
	resampled := rendered
	outFrames := p.frames
	if p.factor != 1 {
		outFrames = int(float64(p.frames) / p.factor)
		resampled = audio.NewBuffer(channels, outFrames)
	}
	raw := make([]byte, outFrames*p.format.FrameSize())
	period := time.Duration(p.frames) * time.Second / time.Duration(p.source.SampleRate)

	wait := func() bool {
		t := time.NewTimer(period)
		defer t.Stop()
		select {
		case <-stop:
			return false
		case <-t.C:
			return true
		}
	}

	log.Debugf("Render buffer %d frames (%v), device buffer %d frames", p.frames, period, outFrames)

	for {
		select {
		case <-stop:
			return
		default:
		}

		root := p.layer.Root()
		if root == nil {
			if !wait() {
				return
			}
			continue
		}

		err := root.Render(rendered, p.source.SampleRate)
		if err == nil {
			err = audio.CheckShape(rendered, channels, p.frames)
		}
		if err != nil {
			if errors.Is(err, audio.ErrLengthMismatch) || errors.Is(err, audio.ErrChannelsMismatch) {
				log.Errorf("Length mismatch in output goroutine: %v", err)
				p.layer.setErr(fmt.Errorf("output render fault: %w", err))
				return
			}
			log.Errorf("Render failed: %v", err)
			if !wait() {
				return
			}
			continue
		}

		if p.factor != 1 {
			if err := p.resampler.Resample(rendered, resampled); err != nil {
				log.Errorf("Resample failed: %v", err)
				if !wait() {
					return
				}
				continue
			}
		}
		if _, err := pcm.EncodeInto(raw, resampled, p.format); err != nil {
			log.Errorf("Sample conversion failed: %v", err)
			if !wait() {
				return
			}
			continue
		}

		if _, err := p.out.Write(raw); err != nil {
			if errors.Is(err, backend.ErrNotOpen) {
				log.Infof("Output line is closed")
				return
			}
			log.Errorf("Write failed: %v", err)
			if !wait() {
				return
			}
		}
	}
}
