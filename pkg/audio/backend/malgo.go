// ABOUTME: Malgo-based playback and capture backend
// ABOUTME: Uses miniaudio via malgo with a byte ring buffer between callback and caller
package backend

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo drives playback and capture devices through miniaudio
type Malgo struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
	ids map[string]malgo.DeviceID
}

// NewMalgo creates an uninitialized malgo backend
func NewMalgo() *Malgo {
	return &Malgo{ids: make(map[string]malgo.DeviceID)}
}

func (m *Malgo) Name() string { return "malgo" }

// Init creates the miniaudio context
func (m *Malgo) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Tracef("miniaudio: %s", message)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.ctx = ctx
	return nil
}

// Shutdown releases the miniaudio context
func (m *Malgo) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil
	}
	if err := m.ctx.Uninit(); err != nil {
		log.Warnf("malgo context uninit error: %v", err)
	}
	m.ctx.Free()
	m.ctx = nil
	return nil
}

// Ports lists playback then capture devices, each with its default first
func (m *Malgo) Ports() ([]*audio.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil, ErrNotInitialized
	}

	var ports []*audio.Port
	for _, kind := range []malgo.DeviceType{malgo.Playback, malgo.Capture} {
		infos, err := m.ctx.Devices(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate devices: %w", err)
		}
		flow := audio.FlowOut
		prefix := "malgo:out:"
		if kind == malgo.Capture {
			flow = audio.FlowIn
			prefix = "malgo:in:"
		}

		var group []*audio.Port
		for i := range infos {
			info := &infos[i]
			link := prefix + info.ID.String()
			m.ids[link] = info.ID

			port := &audio.Port{
				Link:      link,
				Flow:      flow,
				Active:    true,
				MixFormat: nativeFormat(info),
				Name:      info.Name(),
				Vendor:    "miniaudio",
				Version:   "0.11",
			}
			if info.IsDefault != 0 {
				port.Description = "Default device"
				group = append([]*audio.Port{port}, group...)
			} else {
				group = append(group, port)
			}
		}
		ports = append(ports, group...)
	}
	return ports, nil
}

// nativeFormat converts the first native data format of a device
func nativeFormat(info *malgo.DeviceInfo) audio.Format {
	f := audio.FormatHigh
	if len(info.Formats) == 0 {
		return f
	}
	native := info.Formats[0]
	if native.SampleRate > 0 {
		f.SampleRate = int(native.SampleRate)
	}
	if native.Channels > 0 {
		f.Channels = int(native.Channels)
	}
	switch native.Format {
	case malgo.FormatU8:
		f.BitsPerSample, f.Encoding = 8, audio.PCMUnsigned
	case malgo.FormatS24:
		f.BitsPerSample = 24
	case malgo.FormatS32:
		f.BitsPerSample = 32
	case malgo.FormatF32:
		f.BitsPerSample, f.Encoding = 32, audio.PCMFloat
	}
	return f
}

func (m *Malgo) DefaultPort(flow audio.Flow, format *audio.Format) (*audio.Port, error) {
	return defaultPort(m, flow, format)
}

// IsFormatSupported accepts little-endian U8, S16, S24, S32 and F32.
// miniaudio converts rate and channel count itself.
func (m *Malgo) IsFormatSupported(port *audio.Port, f audio.Format) (bool, *audio.Format) {
	if port == nil {
		return false, nil
	}
	closest := audio.Format{
		SampleRate:    f.SampleRate,
		BitsPerSample: roundBits(max(f.BitsPerSample, 8)),
		Channels:      f.Channels,
		Encoding:      f.Encoding,
	}
	if closest.SampleRate <= 0 {
		closest.SampleRate = port.MixFormat.SampleRate
	}
	if closest.Channels <= 0 {
		closest.Channels = port.MixFormat.Channels
	}
	switch closest.Encoding {
	case audio.PCMFloat:
		closest.BitsPerSample = 32
	case audio.PCMUnsigned:
		if closest.BitsPerSample != 8 {
			closest.Encoding = audio.PCMSigned
		}
	case audio.PCMSigned:
		if closest.BitsPerSample == 8 || closest.BitsPerSample > 32 {
			closest.BitsPerSample = 16
		}
	default:
		closest.BitsPerSample = 16
		closest.Encoding = audio.PCMSigned
	}
	return closest == f, &closest
}

func (m *Malgo) NewOutput() (Output, error) {
	return &malgoOutput{malgoLine: &malgoLine{backend: m, flow: audio.FlowOut}}, nil
}

func (m *Malgo) NewInput() (Input, error) {
	return &malgoInput{malgoLine: &malgoLine{backend: m, flow: audio.FlowIn}}, nil
}

func malgoFormat(f audio.Format) malgo.FormatType {
	switch {
	case f.Encoding == audio.PCMFloat:
		return malgo.FormatF32
	case f.BitsPerSample == 8:
		return malgo.FormatU8
	case f.BitsPerSample == 24:
		return malgo.FormatS24
	case f.BitsPerSample == 32:
		return malgo.FormatS32
	default:
		return malgo.FormatS16
	}
}

type malgoLine struct {
	lineState
	backend *Malgo
	flow    audio.Flow

	devMu  sync.Mutex
	device *malgo.Device
	ring   *ringBuffer
}

func (l *malgoLine) Open(port *audio.Port, f audio.Format, bufferBytes int) error {
	port, err := resolvePort(l.backend, port, l.flow)
	if err != nil {
		return err
	}
	if ok, closest := l.backend.IsFormatSupported(port, f); !ok {
		return unsupported(f, closest)
	}
	if err := l.setOpen(port, f, bufferBytes); err != nil {
		return err
	}
	size, _ := l.BufferSize()
	ring := newRingBuffer(size)

	kind := malgo.Playback
	if l.flow == audio.FlowIn {
		kind = malgo.Capture
	}
	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.SampleRate = uint32(f.SampleRate)
	cfg.Alsa.NoMMap = 1
	sub := &cfg.Playback
	if kind == malgo.Capture {
		sub = &cfg.Capture
	}
	sub.Format = malgoFormat(f)
	sub.Channels = uint32(f.Channels)

	l.backend.mu.Lock()
	id, known := l.backend.ids[port.Link]
	ctx := l.backend.ctx
	l.backend.mu.Unlock()
	if ctx == nil {
		l.setClosed()
		return ErrNotInitialized
	}
	if known {
		sub.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, input []byte, frameCount uint32) {
			if kind == malgo.Playback {
				n := ring.pop(output)
				silence(output[n:], f)
				l.advance(n, f)
				return
			}
			if n := ring.push(input); n < len(input) {
				log.Tracef("Capture overflow, dropped %d bytes", len(input)-n)
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		l.setClosed()
		return fmt.Errorf("failed to initialize %s device: %w", l.flow, err)
	}

	l.devMu.Lock()
	l.device = device
	l.ring = ring
	l.devMu.Unlock()

	log.Infof("Malgo %s line opened on %q: %s", l.flow, port.Name, f)
	return nil
}

func (l *malgoLine) Close() error {
	if err := l.setClosed(); err != nil {
		return err
	}
	l.devMu.Lock()
	defer l.devMu.Unlock()
	l.ring.close()
	if err := l.device.Stop(); err != nil {
		log.Warnf("device stop error: %v", err)
	}
	l.device.Uninit()
	l.device = nil
	return nil
}

func (l *malgoLine) Start() error {
	if err := l.setStarted(true); err != nil {
		return err
	}
	l.devMu.Lock()
	defer l.devMu.Unlock()
	if l.device == nil {
		return ErrNotOpen
	}
	if err := l.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

func (l *malgoLine) Stop() error {
	if err := l.setStarted(false); err != nil {
		return err
	}
	l.devMu.Lock()
	defer l.devMu.Unlock()
	if l.device == nil {
		return ErrNotOpen
	}
	return l.device.Stop()
}

func (l *malgoLine) buffer() (*ringBuffer, error) {
	if _, err := l.check(); err != nil {
		return nil, err
	}
	l.devMu.Lock()
	defer l.devMu.Unlock()
	if l.ring == nil {
		return nil, ErrNotOpen
	}
	return l.ring, nil
}

func (l *malgoLine) Flush() error {
	rb, err := l.buffer()
	if err != nil {
		return err
	}
	rb.reset()
	return nil
}

// Drain waits for queued playback; capture lines have nothing to drain
func (l *malgoLine) Drain() error {
	rb, err := l.buffer()
	if err != nil {
		return err
	}
	if l.flow == audio.FlowOut && l.isStarted() {
		rb.waitEmpty()
	}
	return nil
}

// Available is free space for outputs and captured bytes for inputs
func (l *malgoLine) Available() (int, error) {
	rb, err := l.buffer()
	if err != nil {
		return 0, err
	}
	if l.flow == audio.FlowIn {
		return rb.len(), nil
	}
	return rb.free(), nil
}

type malgoOutput struct {
	*malgoLine
}

// Write blocks until p fits in the ring buffer
func (o *malgoOutput) Write(p []byte) (int, error) {
	if _, err := o.checkData(p); err != nil {
		return 0, err
	}
	rb, err := o.buffer()
	if err != nil {
		return 0, err
	}
	return rb.writeAll(p)
}

type malgoInput struct {
	*malgoLine
}

// Read blocks until p is filled with captured bytes
func (i *malgoInput) Read(p []byte) (int, error) {
	f, err := i.checkData(p)
	if err != nil {
		return 0, err
	}
	rb, err := i.buffer()
	if err != nil {
		return 0, err
	}
	n, err := rb.readFull(p)
	i.advance(n, f)
	return n, err
}
