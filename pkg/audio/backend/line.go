// ABOUTME: Shared open/position bookkeeping for backend lines
// ABOUTME: Every implementation embeds lineState for the Line accessors
package backend

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

// lineState tracks what a line was opened with and how many frames moved
// through it. Implementations call open/close and advance; the accessor
// methods satisfy the matching parts of Line.
type lineState struct {
	mu         sync.RWMutex
	open       bool
	started    bool
	port       *audio.Port
	format     audio.Format
	bufferSize int

	frames atomic.Int64
}

func (s *lineState) setOpen(port *audio.Port, f audio.Format, bufferBytes int) error {
	if bufferBytes <= 0 {
		return ErrInvalidBufSize
	}
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return ErrAlreadyOpen
	}
	// round the buffer down to whole frames, keeping at least one
	frameSize := f.FrameSize()
	if bufferBytes < frameSize {
		bufferBytes = frameSize
	}
	bufferBytes -= bufferBytes % frameSize

	s.open = true
	s.started = false
	s.port = port
	s.format = f
	s.bufferSize = bufferBytes
	s.frames.Store(0)
	return nil
}

func (s *lineState) setClosed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.open = false
	s.started = false
	s.port = nil
	return nil
}

func (s *lineState) setStarted(started bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	s.started = started
	return nil
}

func (s *lineState) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open && s.started
}

// check returns the open format or ErrNotOpen
func (s *lineState) check() (audio.Format, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return audio.Format{}, ErrNotOpen
	}
	return s.format, nil
}

// checkData validates a write or read of p against the open format
func (s *lineState) checkData(p []byte) (audio.Format, error) {
	f, err := s.check()
	if err != nil {
		return f, err
	}
	if len(p)%f.FrameSize() != 0 {
		return f, fmt.Errorf("%w: %d bytes, frame size %d", ErrPartialFrame, len(p), f.FrameSize())
	}
	return f, nil
}

func (s *lineState) advance(bytes int, f audio.Format) {
	s.frames.Add(int64(bytes / f.FrameSize()))
}

func (s *lineState) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

func (s *lineState) BufferSize() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return 0, ErrNotOpen
	}
	return s.bufferSize, nil
}

func (s *lineState) FramePosition() (int64, error) {
	if _, err := s.check(); err != nil {
		return 0, err
	}
	return s.frames.Load(), nil
}

func (s *lineState) MicrosecondPosition() (int64, error) {
	f, err := s.check()
	if err != nil {
		return 0, err
	}
	return framesToMicros(s.frames.Load(), f.SampleRate), nil
}

// MicrosecondLatency is the playback time of one full buffer
func (s *lineState) MicrosecondLatency() (int64, error) {
	size, err := s.BufferSize()
	if err != nil {
		return 0, err
	}
	f, _ := s.check()
	return framesToMicros(int64(size/f.FrameSize()), f.SampleRate), nil
}

func (s *lineState) Port() (*audio.Port, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, ErrNotOpen
	}
	return s.port, nil
}

func framesToMicros(frames int64, sampleRate int) int64 {
	return frames * 1_000_000 / int64(sampleRate)
}

// bytesDuration returns the real-time length of n bytes in format f
func bytesDuration(n int, f audio.Format) time.Duration {
	frames := int64(n / f.FrameSize())
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}
