// ABOUTME: Render driver that pushes mixer output into a DataLine
// ABOUTME: Thread mode owns a render goroutine; event mode renders on trigger sends
package mixer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/dataline"
)

// Mode selects how a Driver schedules rendering
type Mode int

const (
	// ModeThread renders continuously on a dedicated goroutine
	ModeThread Mode = iota
	// ModeEvent renders synchronously whenever a buffer is sent on the
	// trigger line
	ModeEvent
)

func (m Mode) String() string {
	if m == ModeEvent {
		return "event"
	}
	return "thread"
}

// DriverConfig holds Driver settings. Zero fields take defaults.
type DriverConfig struct {
	Mode Mode

	// Frames per rendered block (default 1024)
	Frames int

	// Trigger is the line whose sends drive rendering in event mode
	Trigger *dataline.DataLine

	// IdleInterval is how long the thread mode sleeps when the mixer has
	// no inputs or a render fails (default 5ms)
	IdleInterval time.Duration

	// StopTimeout bounds the wait for the render goroutine to exit
	// (default 2s)
	StopTimeout time.Duration
}

// Driver renders a mixer into an output DataLine
type Driver struct {
	mixer *Mixer
	out   *dataline.DataLine
	cfg   DriverConfig

	mu       sync.Mutex
	running  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
	listener *dataline.ListenerFuncs
}

// NewDriver creates a stopped driver. Channel count and sample rate come
// from the output line's format.
func NewDriver(m *Mixer, out *dataline.DataLine, cfg DriverConfig) (*Driver, error) {
	if m == nil || out == nil {
		return nil, ErrNilNode
	}
	if cfg.Mode == ModeEvent && cfg.Trigger == nil {
		return nil, fmt.Errorf("event mode requires a trigger line")
	}
	if cfg.Trigger == out {
		return nil, fmt.Errorf("trigger and output must be different lines")
	}
	if err := out.Format().Validate(); err != nil {
		return nil, err
	}
	if cfg.Frames <= 0 {
		cfg.Frames = 1024
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 5 * time.Millisecond
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	return &Driver{mixer: m, out: out, cfg: cfg}, nil
}

// Mode returns the scheduling mode
func (d *Driver) Mode() Mode {
	return d.cfg.Mode
}

// IsRunning reports whether the driver has been started and not stopped
func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start begins rendering. Starting a running driver is a no-op.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDriverClosed
	}
	if d.running {
		return nil
	}

	switch d.cfg.Mode {
	case ModeEvent:
		d.listener = &dataline.ListenerFuncs{Send: d.onTrigger}
		d.cfg.Trigger.AddListener(d.listener)
	default:
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		d.done = make(chan struct{})
		go d.loop(ctx, d.done)
	}
	d.running = true

	log.Infof("Mixer driver started (%s mode, %d frames)", d.cfg.Mode, d.cfg.Frames)
	return nil
}

// Stop halts rendering and waits up to StopTimeout for the render goroutine
func (d *Driver) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false

	if d.listener != nil {
		d.cfg.Trigger.RemoveListener(d.listener)
		d.listener = nil
	}
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		log.Debugf("Mixer driver stopped")
		return nil
	case <-time.After(d.cfg.StopTimeout):
		log.Warnf("Mixer driver did not stop within %v", d.cfg.StopTimeout)
		return ErrStopTimeout
	}
}

// Close stops the driver permanently. The mixer and lines are not closed.
func (d *Driver) Close() error {
	err := d.Stop()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return err
}

func (d *Driver) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	format := d.out.Format()
	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d.cfg.IdleInterval):
			return true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if len(*d.mixer.inputs.Load()) == 0 {
			if !wait() {
				return
			}
			continue
		}

		buf := audio.NewBuffer(format.Channels, d.cfg.Frames)
		if err := d.mixer.Render(buf, format.SampleRate); err != nil {
			log.Errorf("Render failed: %v", err)
			if !wait() {
				return
			}
			continue
		}
		if !d.out.Send(ctx, buf) {
			if !d.out.IsOpen() {
				log.Debugf("Output line closed, render loop exiting")
				return
			}
		}
	}
}

func (d *Driver) onTrigger(dataline.Event) {
	format := d.out.Format()
	buf := audio.NewBuffer(format.Channels, d.cfg.Frames)
	if err := d.mixer.Render(buf, format.SampleRate); err != nil {
		log.Errorf("Render failed: %v", err)
		return
	}
	d.out.ForceSend(buf)
}
