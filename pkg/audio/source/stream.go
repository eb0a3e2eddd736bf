// ABOUTME: Stream node fed by a DataLine
// ABOUTME: Carries partial buffers between renders and zero-fills underruns
package source

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/dataline"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/resample"
)

// Stream renders buffers received from a DataLine. Buffers may have any
// length; leftovers are kept for the next render. When the line's sample
// rate differs from the render rate, buffers pass through a continuous
// linear resampler.
type Stream struct {
	line *dataline.DataLine

	// Timeout bounds the wait for each buffer. Zero waits for the play time
	// of the frames still missing.
	Timeout time.Duration

	mu        sync.Mutex
	pending   [][]float32
	pos       int
	converter *resample.Stream
	convRate  int

	underruns atomic.Int64
}

// NewStream creates a stream reading from line
func NewStream(line *dataline.DataLine) *Stream {
	return &Stream{line: line}
}

// Line returns the source DataLine
func (s *Stream) Line() *dataline.DataLine { return s.line }

// Underruns returns how many renders ran out of data
func (s *Stream) Underruns() int64 { return s.underruns.Load() }

// Reset drops buffered leftovers and resampler state
func (s *Stream) Reset() {
	s.mu.Lock()
	s.pending, s.pos = nil, 0
	if s.converter != nil {
		s.converter.Reset()
	}
	s.mu.Unlock()
}

func (s *Stream) Render(buf [][]float32, sampleRate int) error {
	if err := audio.CheckLength(buf); err != nil {
		return err
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", audio.ErrInvalidFormat, sampleRate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frames := audio.Frames(buf)
	filled := 0
	for filled < frames {
		if s.pos >= audio.Frames(s.pending) {
			next, ok := s.receive(frames-filled, sampleRate)
			if !ok {
				s.underruns.Add(1)
				log.Tracef("Stream underrun, %d of %d frames missing", frames-filled, frames)
				break
			}
			s.pending, s.pos = next, 0
			continue
		}
		n := min(frames-filled, audio.Frames(s.pending)-s.pos)
		for ch := range buf {
			src := s.pending[min(ch, len(s.pending)-1)]
			copy(buf[ch][filled:filled+n], src[s.pos:s.pos+n])
		}
		s.pos += n
		filled += n
	}
	for ch := range buf {
		clear(buf[ch][filled:])
	}
	return nil
}

// receive waits for the next non-empty buffer, converted to sampleRate
func (s *Stream) receive(missing, sampleRate int) ([][]float32, bool) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = time.Duration(missing) * time.Second / time.Duration(sampleRate)
	}
	for {
		buf, ok := s.line.ReceiveTimeout(timeout)
		if !ok {
			return nil, false
		}
		if len(buf) == 0 || audio.Frames(buf) == 0 || audio.CheckLength(buf) != nil {
			continue
		}
		buf = s.convert(buf, sampleRate)
		if audio.Frames(buf) > 0 {
			return buf, true
		}
	}
}

func (s *Stream) convert(buf [][]float32, sampleRate int) [][]float32 {
	lineRate := s.line.Format().SampleRate
	if lineRate == sampleRate {
		return buf
	}
	if s.converter == nil || s.convRate != sampleRate || s.converter.Channels() != len(buf) {
		s.converter = resample.NewStream(lineRate, sampleRate, len(buf))
		s.convRate = sampleRate
	}
	return s.converter.Process(buf)
}
