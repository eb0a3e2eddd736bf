// ABOUTME: Oto-based playback backend
// ABOUTME: Streams 16-bit or float32 PCM through a pipe-fed oto player
package backend

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/ebitengine/oto/v3"
	"github.com/google/uuid"
)

// oto allows a single context per process
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// Oto plays audio through ebitengine/oto. The first opened line fixes the
// sample rate and channel count for the rest of the process.
type Oto struct {
	port *audio.Port
}

// NewOto creates an Oto backend
func NewOto() *Oto {
	return &Oto{
		port: &audio.Port{
			Link:        "oto:" + uuid.NewString(),
			Flow:        audio.FlowOut,
			Active:      true,
			MixFormat:   audio.FormatHigh,
			Name:        "Default Output",
			Vendor:      "oto",
			Version:     "3",
			Description: "System default playback device",
		},
	}
}

func (o *Oto) Name() string { return "oto" }
func (o *Oto) Init() error  { return nil }

// Shutdown suspends the shared context; it cannot be destroyed
func (o *Oto) Shutdown() error {
	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		return otoCtx.Suspend()
	}
	return nil
}

func (o *Oto) Ports() ([]*audio.Port, error) {
	return []*audio.Port{o.port}, nil
}

func (o *Oto) DefaultPort(flow audio.Flow, format *audio.Format) (*audio.Port, error) {
	return defaultPort(o, flow, format)
}

// IsFormatSupported accepts little-endian signed 16-bit or 32-bit float
// with one or two channels
func (o *Oto) IsFormatSupported(port *audio.Port, f audio.Format) (bool, *audio.Format) {
	if port == nil || port.Flow != audio.FlowOut {
		return false, nil
	}
	closest := audio.Format{
		SampleRate:    f.SampleRate,
		BitsPerSample: 16,
		Channels:      min(max(f.Channels, 1), 2),
		Encoding:      audio.PCMSigned,
	}
	if f.Encoding == audio.PCMFloat {
		closest.BitsPerSample = 32
		closest.Encoding = audio.PCMFloat
	}
	if closest.SampleRate <= 0 {
		closest.SampleRate = port.MixFormat.SampleRate
	}

	otoMu.Lock()
	if otoCtx != nil {
		closest.SampleRate = otoFormat.SampleRate
		closest.Channels = otoFormat.Channels
		closest.BitsPerSample = otoFormat.BitsPerSample
		closest.Encoding = otoFormat.Encoding
	}
	otoMu.Unlock()

	return closest == f, &closest
}

func (o *Oto) NewOutput() (Output, error) {
	return &otoOutput{backend: o}, nil
}

func (o *Oto) NewInput() (Input, error) {
	return nil, ErrNoInput
}

// otoContext returns the process context, creating it for f on first use
func otoContext(f audio.Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat != f {
			return nil, fmt.Errorf("%w: oto context already running at %s", audio.ErrUnsupportedFormat, otoFormat)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	sampleFormat := oto.FormatSignedInt16LE
	if f.Encoding == audio.PCMFloat {
		sampleFormat = oto.FormatFloat32LE
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       sampleFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoFormat = f
	return ctx, nil
}

type otoOutput struct {
	lineState
	backend *Oto

	playerMu   sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
}

func (o *otoOutput) Open(port *audio.Port, f audio.Format, bufferBytes int) error {
	port, err := resolvePort(o.backend, port, audio.FlowOut)
	if err != nil {
		return err
	}
	if ok, closest := o.backend.IsFormatSupported(port, f); !ok {
		return unsupported(f, closest)
	}
	ctx, err := otoContext(f)
	if err != nil {
		return err
	}
	if err := o.setOpen(port, f, bufferBytes); err != nil {
		return err
	}

	o.playerMu.Lock()
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.SetBufferSize(bufferBytes)
	o.playerMu.Unlock()

	log.Infof("Oto output opened: %s", f)
	return nil
}

func (o *otoOutput) Close() error {
	if err := o.setClosed(); err != nil {
		return err
	}
	o.playerMu.Lock()
	defer o.playerMu.Unlock()
	// closing the reader first releases a blocked Write
	o.pipeReader.Close()
	err := o.player.Close()
	o.pipeWriter.Close()
	o.player = nil
	return err
}

func (o *otoOutput) Start() error {
	if err := o.setStarted(true); err != nil {
		return err
	}
	return o.withPlayer(func(p *oto.Player) { p.Play() })
}

func (o *otoOutput) Stop() error {
	if err := o.setStarted(false); err != nil {
		return err
	}
	return o.withPlayer(func(p *oto.Player) { p.Pause() })
}

func (o *otoOutput) Flush() error {
	if _, err := o.check(); err != nil {
		return err
	}
	return o.withPlayer(func(p *oto.Player) { p.Reset() })
}

// Drain polls until the player has consumed its buffer
func (o *otoOutput) Drain() error {
	f, err := o.check()
	if err != nil {
		return err
	}
	for {
		n, err := o.buffered()
		if err != nil || n == 0 || !o.isStarted() {
			return err
		}
		time.Sleep(max(bytesDuration(n, f)/4, time.Millisecond))
	}
}

func (o *otoOutput) withPlayer(fn func(p *oto.Player)) error {
	o.playerMu.Lock()
	defer o.playerMu.Unlock()
	if o.player == nil {
		return ErrNotOpen
	}
	fn(o.player)
	return nil
}

func (o *otoOutput) buffered() (int, error) {
	o.playerMu.Lock()
	defer o.playerMu.Unlock()
	if o.player == nil {
		return 0, ErrNotOpen
	}
	return o.player.BufferedSize(), nil
}

func (o *otoOutput) Available() (int, error) {
	size, err := o.BufferSize()
	if err != nil {
		return 0, err
	}
	n, err := o.buffered()
	if err != nil {
		return 0, err
	}
	return max(size-n, 0), nil
}

// FramePosition excludes frames still waiting in the player buffer
func (o *otoOutput) FramePosition() (int64, error) {
	f, err := o.check()
	if err != nil {
		return 0, err
	}
	n, _ := o.buffered()
	return max(o.frames.Load()-int64(n/f.FrameSize()), 0), nil
}

func (o *otoOutput) MicrosecondPosition() (int64, error) {
	f, err := o.check()
	if err != nil {
		return 0, err
	}
	frames, err := o.FramePosition()
	if err != nil {
		return 0, err
	}
	return framesToMicros(frames, f.SampleRate), nil
}

// Write blocks until the player has taken p from the pipe
func (o *otoOutput) Write(p []byte) (int, error) {
	f, err := o.checkData(p)
	if err != nil {
		return 0, err
	}
	o.playerMu.Lock()
	w := o.pipeWriter
	o.playerMu.Unlock()

	n, err := w.Write(p)
	o.advance(n, f)
	if err != nil {
		if !o.IsOpen() {
			return n, ErrNotOpen
		}
		return n, fmt.Errorf("pipe write failed: %w", err)
	}
	return n, nil
}
