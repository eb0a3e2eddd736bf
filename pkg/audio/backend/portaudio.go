//go:build portaudio

// ABOUTME: PortAudio playback and capture backend
// ABOUTME: Blocking 16-bit streams on PortAudio devices
package backend

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio uses the PortAudio library in blocking mode
type PortAudio struct {
	mu          sync.Mutex
	initialized bool
	devices     map[string]*portaudio.DeviceInfo
}

// NewPortAudio creates an uninitialized PortAudio backend
func NewPortAudio() *PortAudio {
	return &PortAudio{devices: make(map[string]*portaudio.DeviceInfo)}
}

func (p *PortAudio) Name() string { return "portaudio" }

func (p *PortAudio) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	p.initialized = true
	return nil
}

func (p *PortAudio) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}

// Ports lists one port per device direction, defaults first
func (p *PortAudio) Ports() ([]*audio.Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	defOut, _ := portaudio.DefaultOutputDevice()
	defIn, _ := portaudio.DefaultInputDevice()

	var outs, ins []*audio.Port
	for _, dev := range devices {
		if dev.MaxOutputChannels > 0 {
			port := p.port(dev, audio.FlowOut, min(dev.MaxOutputChannels, 2))
			if dev == defOut {
				outs = append([]*audio.Port{port}, outs...)
			} else {
				outs = append(outs, port)
			}
		}
		if dev.MaxInputChannels > 0 {
			port := p.port(dev, audio.FlowIn, min(dev.MaxInputChannels, 2))
			if dev == defIn {
				ins = append([]*audio.Port{port}, ins...)
			} else {
				ins = append(ins, port)
			}
		}
	}
	return append(outs, ins...), nil
}

func (p *PortAudio) port(dev *portaudio.DeviceInfo, flow audio.Flow, channels int) *audio.Port {
	link := "portaudio:" + flow.String() + ":" + strconv.Itoa(dev.Index)
	p.devices[link] = dev
	hostAPI := ""
	if dev.HostApi != nil {
		hostAPI = dev.HostApi.Name
	}
	return &audio.Port{
		Link:   link,
		Flow:   flow,
		Active: true,
		MixFormat: audio.Format{
			SampleRate:    int(dev.DefaultSampleRate),
			BitsPerSample: 16,
			Channels:      channels,
			Encoding:      audio.PCMSigned,
		},
		Name:        dev.Name,
		Vendor:      hostAPI,
		Version:     portaudio.VersionText(),
		Description: "PortAudio device",
	}
}

func (p *PortAudio) DefaultPort(flow audio.Flow, format *audio.Format) (*audio.Port, error) {
	return defaultPort(p, flow, format)
}

// IsFormatSupported accepts little-endian signed 16-bit only
func (p *PortAudio) IsFormatSupported(port *audio.Port, f audio.Format) (bool, *audio.Format) {
	if port == nil {
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
	if closest.Channels <= 0 || closest.Channels > port.MixFormat.Channels {
		closest.Channels = port.MixFormat.Channels
	}
	return closest == f, &closest
}

func (p *PortAudio) NewOutput() (Output, error) {
	return &portAudioOutput{portAudioLine: &portAudioLine{backend: p, flow: audio.FlowOut}}, nil
}

func (p *PortAudio) NewInput() (Input, error) {
	return &portAudioInput{portAudioLine: &portAudioLine{backend: p, flow: audio.FlowIn}}, nil
}

type portAudioLine struct {
	lineState
	backend *PortAudio
	flow    audio.Flow

	streamMu sync.Mutex
	stream   *portaudio.Stream
	samples  []int16
}

func (l *portAudioLine) Open(port *audio.Port, f audio.Format, bufferBytes int) error {
	port, err := resolvePort(l.backend, port, l.flow)
	if err != nil {
		return err
	}
	if ok, closest := l.backend.IsFormatSupported(port, f); !ok {
		return unsupported(f, closest)
	}
	l.backend.mu.Lock()
	dev := l.backend.devices[port.Link]
	l.backend.mu.Unlock()
	if dev == nil {
		return audio.ErrPortNotFound
	}
	if err := l.setOpen(port, f, bufferBytes); err != nil {
		return err
	}
	size, _ := l.BufferSize()
	frames := size / f.FrameSize()

	var params portaudio.StreamParameters
	if l.flow == audio.FlowOut {
		params = portaudio.HighLatencyParameters(nil, dev)
		params.Output.Channels = f.Channels
	} else {
		params = portaudio.HighLatencyParameters(dev, nil)
		params.Input.Channels = f.Channels
	}
	params.SampleRate = float64(f.SampleRate)
	params.FramesPerBuffer = frames

	samples := make([]int16, frames*f.Channels)
	stream, err := portaudio.OpenStream(params, samples)
	if err != nil {
		l.setClosed()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	l.streamMu.Lock()
	l.stream = stream
	l.samples = samples
	l.streamMu.Unlock()

	log.Infof("PortAudio %s line opened on %q: %s", l.flow, port.Name, f)
	return nil
}

func (l *portAudioLine) Close() error {
	if err := l.setClosed(); err != nil {
		return err
	}
	l.streamMu.Lock()
	defer l.streamMu.Unlock()
	err := l.stream.Close()
	l.stream = nil
	return err
}

func (l *portAudioLine) Start() error {
	if err := l.setStarted(true); err != nil {
		return err
	}
	l.streamMu.Lock()
	defer l.streamMu.Unlock()
	return l.stream.Start()
}

func (l *portAudioLine) Stop() error {
	if err := l.setStarted(false); err != nil {
		return err
	}
	l.streamMu.Lock()
	defer l.streamMu.Unlock()
	return l.stream.Stop()
}

// Flush aborts the stream, discarding queued samples, and restarts it
func (l *portAudioLine) Flush() error {
	if _, err := l.check(); err != nil {
		return err
	}
	l.streamMu.Lock()
	defer l.streamMu.Unlock()
	if !l.isStarted() {
		return nil
	}
	if err := l.stream.Abort(); err != nil {
		return err
	}
	return l.stream.Start()
}

// Drain stops the stream after queued samples play, then restarts it
func (l *portAudioLine) Drain() error {
	if _, err := l.check(); err != nil {
		return err
	}
	l.streamMu.Lock()
	defer l.streamMu.Unlock()
	if !l.isStarted() {
		return nil
	}
	if err := l.stream.Stop(); err != nil {
		return err
	}
	return l.stream.Start()
}

func (l *portAudioLine) Available() (int, error) {
	f, err := l.check()
	if err != nil {
		return 0, err
	}
	l.streamMu.Lock()
	defer l.streamMu.Unlock()
	var frames int
	if l.flow == audio.FlowOut {
		frames, err = l.stream.AvailableToWrite()
	} else {
		frames, err = l.stream.AvailableToRead()
	}
	return frames * f.FrameSize(), err
}

// MicrosecondLatency reports the stream latency measured by PortAudio
func (l *portAudioLine) MicrosecondLatency() (int64, error) {
	if _, err := l.check(); err != nil {
		return 0, err
	}
	l.streamMu.Lock()
	defer l.streamMu.Unlock()
	info := l.stream.Info()
	if l.flow == audio.FlowOut {
		return info.OutputLatency.Microseconds(), nil
	}
	return info.InputLatency.Microseconds(), nil
}

type portAudioOutput struct {
	*portAudioLine
}

// Write converts p to int16 and writes it one stream buffer at a time
func (o *portAudioOutput) Write(p []byte) (int, error) {
	f, err := o.checkData(p)
	if err != nil {
		return 0, err
	}
	o.streamMu.Lock()
	defer o.streamMu.Unlock()
	if o.stream == nil {
		return 0, ErrNotOpen
	}

	chunk := len(o.samples) * 2
	done := 0
	for done < len(p) {
		n := min(chunk, len(p)-done)
		for i := range o.samples {
			o.samples[i] = 0
		}
		for i := 0; i < n/2; i++ {
			o.samples[i] = int16(binary.LittleEndian.Uint16(p[done+2*i:]))
		}
		if err := o.stream.Write(); err != nil {
			return done, fmt.Errorf("portaudio write failed: %w", err)
		}
		o.advance(n, f)
		done += n
	}
	return done, nil
}

type portAudioInput struct {
	*portAudioLine
}

// Read fills p one stream buffer at a time
func (i *portAudioInput) Read(p []byte) (int, error) {
	f, err := i.checkData(p)
	if err != nil {
		return 0, err
	}
	i.streamMu.Lock()
	defer i.streamMu.Unlock()
	if i.stream == nil {
		return 0, ErrNotOpen
	}

	chunk := len(i.samples) * 2
	done := 0
	for done < len(p) {
		if err := i.stream.Read(); err != nil {
			return done, fmt.Errorf("portaudio read failed: %w", err)
		}
		n := min(chunk, len(p)-done)
		for k := 0; k < n/2; k++ {
			binary.LittleEndian.PutUint16(p[done+2*k:], uint16(i.samples[k]))
		}
		i.advance(n, f)
		done += n
	}
	return done, nil
}
