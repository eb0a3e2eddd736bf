// ABOUTME: Backend that records playback to a WAV file
// ABOUTME: Encodes integer PCM with go-audio/wav, optionally paced in real time
package backend

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// WAVFile is an output-only backend whose single port writes to a file
type WAVFile struct {
	path  string
	paced bool
	port  *audio.Port
	title string
}

// NewWAVFile creates a backend recording to path. When paced is true,
// Write sleeps for the duration of the audio like a real device.
func NewWAVFile(path string, paced bool) *WAVFile {
	return &WAVFile{
		path:  path,
		paced: paced,
		port: &audio.Port{
			Link:        "wav:" + uuid.NewString(),
			Flow:        audio.FlowOut,
			Active:      true,
			MixFormat:   audio.FormatNormal,
			Name:        "WAV File",
			Vendor:      "go-audio",
			Version:     "1.1",
			Description: path,
		},
	}
}

// SetTitle stores a title in the INFO chunk of files opened afterwards
func (w *WAVFile) SetTitle(title string) {
	w.title = title
}

func (w *WAVFile) Name() string    { return "wav" }
func (w *WAVFile) Init() error     { return nil }
func (w *WAVFile) Shutdown() error { return nil }

func (w *WAVFile) Ports() ([]*audio.Port, error) {
	return []*audio.Port{w.port}, nil
}

func (w *WAVFile) DefaultPort(flow audio.Flow, format *audio.Format) (*audio.Port, error) {
	return defaultPort(w, flow, format)
}

// IsFormatSupported accepts WAVE_FORMAT_PCM layouts: unsigned 8-bit and
// signed 16, 24 or 32-bit, little-endian
func (w *WAVFile) IsFormatSupported(port *audio.Port, f audio.Format) (bool, *audio.Format) {
	if port == nil || port.Flow != audio.FlowOut {
		return false, nil
	}
	closest := audio.Format{
		SampleRate:    f.SampleRate,
		BitsPerSample: roundBits(max(f.BitsPerSample, 8)),
		Channels:      f.Channels,
		Encoding:      audio.PCMSigned,
	}
	if closest.SampleRate <= 0 {
		closest.SampleRate = port.MixFormat.SampleRate
	}
	if closest.Channels <= 0 {
		closest.Channels = port.MixFormat.Channels
	}
	switch {
	case f.Encoding == audio.ULaw || f.Encoding == audio.ALaw:
		closest.BitsPerSample = 16
	case f.Encoding == audio.PCMFloat || closest.BitsPerSample > 32:
		closest.BitsPerSample = 32
	case closest.BitsPerSample == 8:
		closest.Encoding = audio.PCMUnsigned
	}
	return closest == f, &closest
}

func (w *WAVFile) NewOutput() (Output, error) {
	return &wavOutput{backend: w}, nil
}

func (w *WAVFile) NewInput() (Input, error) {
	return nil, ErrNoInput
}

type wavOutput struct {
	lineState
	backend *WAVFile

	encMu   sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer
}

func (o *wavOutput) Open(port *audio.Port, f audio.Format, bufferBytes int) error {
	port, err := resolvePort(o.backend, port, audio.FlowOut)
	if err != nil {
		return err
	}
	if ok, closest := o.backend.IsFormatSupported(port, f); !ok {
		return unsupported(f, closest)
	}
	if err := o.setOpen(port, f, bufferBytes); err != nil {
		return err
	}

	file, err := os.Create(o.backend.path)
	if err != nil {
		o.setClosed()
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	enc := wav.NewEncoder(file, f.SampleRate, f.BitsPerSample, f.Channels, 1)
	if o.backend.title != "" {
		enc.Metadata = &wav.Metadata{Title: o.backend.title, Software: "audiograph"}
	}

	o.encMu.Lock()
	o.file = file
	o.encoder = enc
	o.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		SourceBitDepth: f.BitsPerSample,
	}
	o.encMu.Unlock()

	log.Infof("Recording to %s (%s)", o.backend.path, f)
	return nil
}

// Close finalizes the RIFF headers and closes the file
func (o *wavOutput) Close() error {
	if err := o.setClosed(); err != nil {
		return err
	}
	o.encMu.Lock()
	defer o.encMu.Unlock()
	encErr := o.encoder.Close()
	fileErr := o.file.Close()
	o.encoder, o.file = nil, nil
	if encErr != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", encErr)
	}
	return fileErr
}

func (o *wavOutput) Start() error { return o.setStarted(true) }
func (o *wavOutput) Stop() error  { return o.setStarted(false) }

func (o *wavOutput) Flush() error {
	_, err := o.check()
	return err
}

func (o *wavOutput) Drain() error {
	_, err := o.check()
	return err
}

// Available is always a full buffer; writes go straight to disk
func (o *wavOutput) Available() (int, error) {
	return o.BufferSize()
}

// Write encodes p and appends it to the file
func (o *wavOutput) Write(p []byte) (int, error) {
	f, err := o.checkData(p)
	if err != nil {
		return 0, err
	}
	o.encMu.Lock()
	if o.encoder == nil {
		o.encMu.Unlock()
		return 0, ErrNotOpen
	}
	o.buf.Data = decodeInts(o.buf.Data[:0], p, f)
	err = o.encoder.Write(o.buf)
	o.encMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to write WAV data: %w", err)
	}

	o.advance(len(p), f)
	if o.backend.paced {
		time.Sleep(bytesDuration(len(p), f))
	}
	return len(p), nil
}

// decodeInts appends the integer value of every sample in p. 8-bit
// samples keep their unsigned value, which is what the encoder writes.
func decodeInts(dst []int, p []byte, f audio.Format) []int {
	width := f.BytesPerSample()
	for i := 0; i+width <= len(p); i += width {
		b := p[i : i+width]
		switch width {
		case 1:
			dst = append(dst, int(b[0]))
		case 2:
			dst = append(dst, int(int16(binary.LittleEndian.Uint16(b))))
		case 3:
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			dst = append(dst, int(v<<8>>8))
		default:
			dst = append(dst, int(int32(binary.LittleEndian.Uint32(b))))
		}
	}
	return dst
}
