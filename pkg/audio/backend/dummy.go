// ABOUTME: Hardware-free backend paced in real time
// ABOUTME: Accepts normalized integer/float PCM and discards or taps written data
package backend

import (
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/google/uuid"
)

// Dummy is a backend with one output and one input port that produces
// silence and swallows output at the rate real hardware would
type Dummy struct {
	// Unpaced disables real-time sleeping in Write, Read and Drain
	Unpaced bool

	// Monitor, when set, receives a copy of every buffer written to an
	// output created by this backend
	Monitor func(p []byte)

	out *audio.Port
	in  *audio.Port
}

// NewDummy creates a dummy backend with fresh port links
func NewDummy() *Dummy {
	return &Dummy{
		out: &audio.Port{
			Link:        "dummy:" + uuid.NewString(),
			Flow:        audio.FlowOut,
			Active:      true,
			MixFormat:   audio.FormatNormal,
			Name:        "Dummy Output Port",
			Vendor:      "Dummy Backend",
			Version:     "1.0",
			Description: "Output",
		},
		in: &audio.Port{
			Link:        "dummy:" + uuid.NewString(),
			Flow:        audio.FlowIn,
			Active:      true,
			MixFormat:   audio.FormatNormal,
			Name:        "Dummy Input Port",
			Vendor:      "Dummy Backend",
			Version:     "1.0",
			Description: "Input",
		},
	}
}

func (d *Dummy) Name() string    { return "dummy" }
func (d *Dummy) Init() error     { return nil }
func (d *Dummy) Shutdown() error { return nil }

func (d *Dummy) Ports() ([]*audio.Port, error) {
	return []*audio.Port{d.out, d.in}, nil
}

func (d *Dummy) DefaultPort(flow audio.Flow, format *audio.Format) (*audio.Port, error) {
	return defaultPort(d, flow, format)
}

// IsFormatSupported normalizes f: whole-byte widths, unsigned only at 8
// bits, 32 or 64-bit floats, little-endian. f is supported when it was already normalized.
func (d *Dummy) IsFormatSupported(port *audio.Port, f audio.Format) (bool, *audio.Format) {
	if port == nil {
		return false, nil
	}
	def := audio.FormatNormal
	closest := audio.Format{
		SampleRate:    f.SampleRate,
		BitsPerSample: f.BitsPerSample,
		Channels:      f.Channels,
		Encoding:      f.Encoding,
	}
	if closest.SampleRate <= 0 {
		closest.SampleRate = def.SampleRate
	}
	if closest.Channels <= 0 {
		closest.Channels = def.Channels
	}
	if closest.BitsPerSample <= 0 {
		closest.BitsPerSample = def.BitsPerSample
	}
	closest.BitsPerSample = roundBits(closest.BitsPerSample)
	if closest.Encoding == 0 || (closest.Encoding == audio.PCMUnsigned && closest.BitsPerSample != 8) {
		closest.Encoding = def.Encoding
	}
	if closest.Encoding == audio.PCMFloat && closest.BitsPerSample != 64 {
		closest.BitsPerSample = 32
	}
	return closest == f, &closest
}

func (d *Dummy) NewOutput() (Output, error) {
	return &dummyOutput{dummyLine: newDummyLine(d, audio.FlowOut)}, nil
}

func (d *Dummy) NewInput() (Input, error) {
	return &dummyInput{dummyLine: newDummyLine(d, audio.FlowIn)}, nil
}

type dummyLine struct {
	lineState
	backend *Dummy
	flow    audio.Flow

	wakeMu    sync.Mutex
	interrupt chan struct{}
}

func newDummyLine(d *Dummy, flow audio.Flow) *dummyLine {
	return &dummyLine{backend: d, flow: flow, interrupt: make(chan struct{})}
}

func (l *dummyLine) Open(port *audio.Port, f audio.Format, bufferBytes int) error {
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
	log.Debugf("Dummy %s line opened: %s", l.flow, f)
	return nil
}

func (l *dummyLine) Close() error {
	if err := l.setClosed(); err != nil {
		return err
	}
	l.wake()
	return nil
}

func (l *dummyLine) Start() error { return l.setStarted(true) }
func (l *dummyLine) Stop() error  { return l.setStarted(false) }

// Flush interrupts a blocked Write or Read
func (l *dummyLine) Flush() error {
	if _, err := l.check(); err != nil {
		return err
	}
	l.wake()
	return nil
}

// Drain waits for the remainder of the current buffer period
func (l *dummyLine) Drain() error {
	f, err := l.check()
	if err != nil {
		return err
	}
	n, _ := l.Available()
	l.sleep(bytesDuration(n, f))
	l.advance(n, f)
	return nil
}

// Available is the space left in the current buffer period
func (l *dummyLine) Available() (int, error) {
	size, err := l.BufferSize()
	if err != nil {
		return 0, err
	}
	f, _ := l.check()
	used := int(l.frames.Load()*int64(f.FrameSize())) % size
	return size - used, nil
}

func (l *dummyLine) wake() {
	l.wakeMu.Lock()
	close(l.interrupt)
	l.interrupt = make(chan struct{})
	l.wakeMu.Unlock()
}

// sleep waits for d unless the line is flushed or closed first. It reports
// whether the full duration elapsed.
func (l *dummyLine) sleep(d time.Duration) bool {
	if l.backend.Unpaced || d <= 0 {
		return true
	}
	l.wakeMu.Lock()
	interrupt := l.interrupt
	l.wakeMu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-interrupt:
		return false
	}
}

// transfer paces n bytes one buffer period at a time
func (l *dummyLine) transfer(n int, f audio.Format) (int, error) {
	done := 0
	for done < n {
		avail, err := l.Available()
		if err != nil {
			return done, err
		}
		chunk := min(avail, n-done)
		l.advance(chunk, f)
		done += chunk
		if !l.sleep(bytesDuration(chunk, f)) {
			break
		}
	}
	return done, nil
}

type dummyOutput struct {
	*dummyLine
}

func (o *dummyOutput) Write(p []byte) (int, error) {
	f, err := o.checkData(p)
	if err != nil {
		return 0, err
	}
	if mon := o.backend.Monitor; mon != nil {
		mon(append([]byte(nil), p...))
	}
	return o.transfer(len(p), f)
}

type dummyInput struct {
	*dummyLine
}

// Read fills p with silence
func (i *dummyInput) Read(p []byte) (int, error) {
	f, err := i.checkData(p)
	if err != nil {
		return 0, err
	}
	silence(p, f)
	return i.transfer(len(p), f)
}

// silence fills p with the zero level of format f
func silence(p []byte, f audio.Format) {
	var zero byte
	switch f.Encoding {
	case audio.ULaw:
		zero = 0xFF
	case audio.ALaw:
		zero = 0xD5
	}
	for i := range p {
		p[i] = zero
	}
	if f.Encoding == audio.PCMUnsigned {
		// midpoint: high bit of the most significant byte
		width := f.BytesPerSample()
		msb := width - 1
		if f.BigEndian {
			msb = 0
		}
		for i := msb; i < len(p); i += width {
			p[i] = 0x80
		}
	}
}
