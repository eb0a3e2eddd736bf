// ABOUTME: InputLine exposes a backend capture line as a graph node
// ABOUTME: Decodes raw bytes, maps channels and resamples to the caller's request
package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/dataline"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/pcm"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/resample"
)

// InputConfig holds InputLine settings
type InputConfig struct {
	// Method converts between device and render rates (default Linear)
	Method resample.Method
}

// InputLine reads from one backend input. It is an audio.Node: each Render
// captures enough device frames to fill the request at the render rate.
type InputLine struct {
	backend   backend.Backend
	resampler *resample.Resampler

	mu           sync.Mutex
	in           backend.Input
	format       audio.Format
	bufferFrames int
	raw          []byte
	captured     [][]float32
}

// NewInputLine creates a closed line on an initialized backend
func NewInputLine(b backend.Backend, cfg InputConfig) *InputLine {
	return &InputLine{backend: b, resampler: resample.New(cfg.Method)}
}

// Open negotiates a capture format for port (nil selects the default input)
func (l *InputLine) Open(port *audio.Port, format audio.Format, bufferFrames int) error {
	if bufferFrames <= 0 {
		return ErrInvalidBufferFrames
	}
	if err := format.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.in != nil {
		return backend.ErrAlreadyOpen
	}

	port, err := choosePort(l.backend, port, audio.FlowIn)
	if err != nil {
		return err
	}
	negotiated, err := Negotiate(l.backend, port, format)
	if err != nil {
		return err
	}
	in, err := l.backend.NewInput()
	if err != nil {
		return fmt.Errorf("failed to create input: %w", err)
	}
	if err := in.Open(port, negotiated, bufferFrames*negotiated.FrameSize()); err != nil {
		return fmt.Errorf("failed to open %s: %w", port.Name, err)
	}

	l.in = in
	l.format = negotiated
	l.bufferFrames = bufferFrames
	log.Debugf("Opened capture on %s with %s", port.Name, negotiated)
	return nil
}

// Format returns the negotiated capture format
func (l *InputLine) Format() audio.Format {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.format
}

func (l *InputLine) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in != nil && l.in.IsOpen()
}

func (l *InputLine) input() (backend.Input, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.in == nil {
		return nil, backend.ErrNotOpen
	}
	return l.in, nil
}

func (l *InputLine) Start() error {
	in, err := l.input()
	if err != nil {
		return err
	}
	return in.Start()
}

func (l *InputLine) Stop() error {
	in, err := l.input()
	if err != nil {
		return err
	}
	return in.Stop()
}

// Close closes the backend input and wakes a blocked Read. Idempotent.
func (l *InputLine) Close() error {
	l.mu.Lock()
	in := l.in
	l.in = nil
	l.mu.Unlock()
	if in == nil {
		return nil
	}
	if err := in.Close(); err != nil && !errors.Is(err, backend.ErrNotOpen) {
		return err
	}
	return nil
}

// Read captures len(buf[0]) frames at the device format. buf must have the
// device channel count.
func (l *InputLine) Read(buf [][]float32) (int, error) {
	if err := audio.CheckLength(buf); err != nil {
		return 0, err
	}
	in, err := l.input()
	if err != nil {
		return 0, err
	}
	f := l.Format()
	if len(buf) != f.Channels {
		return 0, fmt.Errorf("%w: buffer has %d channels, device %d", audio.ErrChannelsMismatch, len(buf), f.Channels)
	}

	raw := make([]byte, audio.Frames(buf)*f.FrameSize())
	n, err := in.Read(raw)
	frames, derr := pcm.DecodeInto(buf, raw[:n], f)
	if err != nil {
		return frames, err
	}
	return frames, derr
}

// Render captures audio for buf at sampleRate. Missing channels repeat the
// last device channel and extra device channels are dropped.
func (l *InputLine) Render(buf [][]float32, sampleRate int) error {
	if err := audio.CheckLength(buf); err != nil {
		return err
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", audio.ErrInvalidFormat, sampleRate)
	}
	f := l.Format()
	frames := audio.Frames(buf)
	need := frames
	if f.SampleRate != sampleRate {
		need = max(1, int(math.Ceil(float64(frames)*float64(f.SampleRate)/float64(sampleRate))))
	}

	l.mu.Lock()
	if audio.CheckShape(l.captured, f.Channels, need) != nil {
		l.captured = audio.NewBuffer(f.Channels, need)
	}
	captured := l.captured
	l.mu.Unlock()

	n, err := l.Read(captured)
	if err != nil {
		audio.Zero(buf)
		return err
	}
	if n < need {
		for ch := range captured {
			clear(captured[ch][n:])
		}
	}

	mapped := make([][]float32, len(buf))
	for ch := range mapped {
		mapped[ch] = captured[min(ch, len(captured)-1)]
	}
	return l.resampler.Resample(mapped, buf)
}

// Pump captures one device buffer at a time and sends it to line, converted
// to the line's format, until ctx is done, line closes or the input closes.
// Closing the InputLine unblocks a pending capture.
func (l *InputLine) Pump(ctx context.Context, line *dataline.DataLine) error {
	l.mu.Lock()
	f, frames := l.format, l.bufferFrames
	l.mu.Unlock()
	if frames == 0 {
		return backend.ErrNotOpen
	}
	target := line.Format()
	if target.SampleRate != f.SampleRate {
		frames = max(1, frames*target.SampleRate/f.SampleRate)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf := audio.NewBuffer(target.Channels, frames)
		if err := l.Render(buf, target.SampleRate); err != nil {
			if errors.Is(err, backend.ErrNotOpen) {
				log.Debugf("Capture line closed, pump exiting")
				return nil
			}
			return fmt.Errorf("capture failed: %w", err)
		}
		if !line.Send(ctx, buf) {
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		}
	}
}
