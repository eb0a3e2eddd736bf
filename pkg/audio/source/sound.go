// ABOUTME: Sound plays a decoded file as a graph node
// ABOUTME: Inner mixer with a speed effect; loop and end notifications
package source

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/control"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/decode"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/effect"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/mixer"
)

var (
	ErrPosition      = errors.New("position out of range")
	ErrPlaying       = errors.New("sound is playing")
	ErrVaryingEffect = errors.New("varying-size effects cannot be applied offline")
)

// SoundEvent identifies a playback notification
type SoundEvent int

const (
	SoundStarted SoundEvent = iota
	SoundStopped
	SoundLooped
	SoundEnded
	SoundSeeked
)

func (e SoundEvent) String() string {
	switch e {
	case SoundStarted:
		return "started"
	case SoundStopped:
		return "stopped"
	case SoundLooped:
		return "looped"
	case SoundEnded:
		return "ended"
	case SoundSeeked:
		return "seeked"
	}
	return fmt.Sprintf("SoundEvent(%d)", int(e))
}

// SoundListener receives playback notifications. Looped and Ended are
// delivered on the render goroutine and must not block.
type SoundListener func(ev SoundEvent)

type soundListener struct {
	fn SoundListener
}

// Sound plays decoded samples. Rendering goes through an inner mixer whose
// Speed effect applies the speed control, compensated for the difference
// between the file's sample rate and the render rate.
type Sound struct {
	inner   *mixer.Mixer
	speedFx *effect.Speed
	speed   *control.Float

	mu        sync.Mutex
	samples   [][]float32
	format    audio.Format
	tags      map[string]string
	position  int
	playing   bool
	loop      bool
	listeners []*soundListener
}

// NewSound creates a stopped sound positioned at the start of res
func NewSound(res *decode.Result) (*Sound, error) {
	if res == nil || len(res.Samples) == 0 || audio.Frames(res.Samples) == 0 {
		return nil, decode.ErrNoAudio
	}
	if err := audio.CheckLength(res.Samples); err != nil {
		return nil, err
	}
	if res.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", audio.ErrInvalidFormat, res.Format.SampleRate)
	}

	s := &Sound{
		inner:   mixer.New(),
		speedFx: effect.NewSpeed(nil),
		speed:   control.NewFloat("Speed", 0.001, 50, 1),
		samples: res.Samples,
		format:  res.Format,
		tags:    res.Tags,
	}
	if err := s.inner.AddInput(audio.NodeFunc(s.play)); err != nil {
		return nil, err
	}
	if err := s.inner.AddEffect(s.speedFx); err != nil {
		return nil, err
	}
	return s, nil
}

// Mixer returns the inner mixer for adding per-sound effects
func (s *Sound) Mixer() *mixer.Mixer { return s.inner }

func (s *Sound) Speed() *control.Float { return s.speed }
func (s *Sound) Gain() *control.Float  { return s.inner.PostGain() }
func (s *Sound) Pan() *control.Float   { return s.inner.Pan() }

// Format returns the format of the decoded source
func (s *Sound) Format() audio.Format { return s.format }

// Tags returns the source metadata
func (s *Sound) Tags() map[string]string { return s.tags }

// Frames returns the sound length in frames
func (s *Sound) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.Frames(s.samples)
}

// Duration returns the sound length at its own sample rate
func (s *Sound) Duration() time.Duration {
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.format.SampleRate)
}

// AddListener registers fn and returns a function that removes it
func (s *Sound) AddListener(fn SoundListener) (remove func()) {
	l := &soundListener{fn: fn}
	s.mu.Lock()
	s.listeners = append(slices.Clone(s.listeners), l)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(slices.Clone(s.listeners), func(x *soundListener) bool { return x == l })
	}
}

func dispatch(listeners []*soundListener, events ...SoundEvent) {
	for _, ev := range events {
		for _, l := range listeners {
			l.fn(ev)
		}
	}
}

// Start resumes playback, rewinding first if the sound had ended
func (s *Sound) Start() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	if s.position >= audio.Frames(s.samples) {
		s.position = 0
	}
	s.playing = true
	listeners := s.listeners
	s.mu.Unlock()

	log.Tracef("Playback started")
	dispatch(listeners, SoundStarted)
}

// Stop pauses playback at the current position
func (s *Sound) Stop() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	listeners := s.listeners
	s.mu.Unlock()

	log.Tracef("Playback stopped")
	dispatch(listeners, SoundStopped)
}

// Reset rewinds to the first frame without changing the playing state
func (s *Sound) Reset() {
	s.mu.Lock()
	s.position = 0
	s.mu.Unlock()
}

func (s *Sound) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Sound) SetLoop(loop bool) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

func (s *Sound) IsLooping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

func (s *Sound) FramePosition() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// SetFramePosition seeks to frame, which may equal the length
func (s *Sound) SetFramePosition(frame int) error {
	s.mu.Lock()
	total := audio.Frames(s.samples)
	if frame < 0 || frame > total {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d]", ErrPosition, frame, total)
	}
	s.position = frame
	listeners := s.listeners
	s.mu.Unlock()

	dispatch(listeners, SoundSeeked)
	return nil
}

// SecondsPosition returns the position in seconds of source audio
func (s *Sound) SecondsPosition() float64 {
	return float64(s.FramePosition()) / float64(s.format.SampleRate)
}

func (s *Sound) SetSecondsPosition(seconds float64) error {
	return s.SetFramePosition(int(seconds * float64(s.format.SampleRate)))
}

// Apply runs an effect over the whole sound. Offline effects such as
// Reverse are meant for this; the sound must be stopped.
func (s *Sound) Apply(e effect.Effect) error {
	if e == nil {
		return mixer.ErrNilNode
	}
	if _, ok := e.(effect.VaryingSize); ok {
		return ErrVaryingEffect
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return ErrPlaying
	}

	work := audio.Clone(s.samples)
	if _, err := effect.Process(e, work, nil, s.format.SampleRate); err != nil {
		return fmt.Errorf("failed to apply %T: %w", e, err)
	}
	s.samples = work
	return nil
}

// Render plays the sound into buf at sampleRate
func (s *Sound) Render(buf [][]float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", audio.ErrInvalidFormat, sampleRate)
	}
	s.speedFx.Speed().Set(s.speed.Value() * float32(s.format.SampleRate) / float32(sampleRate))
	return s.inner.Render(buf, sampleRate)
}

// Close stops playback and detaches the inner mixer
func (s *Sound) Close() error {
	s.Stop()
	return s.inner.Close()
}

// play is the inner mixer's input. It copies source frames at the current
// position, wrapping when looping. Channels beyond the source repeat its
// last channel.
func (s *Sound) play(buf [][]float32, sampleRate int) error {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		audio.Zero(buf)
		return nil
	}

	var events []SoundEvent
	total := audio.Frames(s.samples)
	frames := audio.Frames(buf)
	filled := 0
	for filled < frames {
		if s.position >= total {
			if s.loop {
				s.position = 0
				events = append(events, SoundLooped)
				continue
			}
			s.playing = false
			s.position = 0
			events = append(events, SoundEnded)
			break
		}
		n := min(frames-filled, total-s.position)
		for ch := range buf {
			src := s.samples[min(ch, len(s.samples)-1)]
			copy(buf[ch][filled:filled+n], src[s.position:s.position+n])
		}
		s.position += n
		filled += n
	}
	for ch := range buf {
		clear(buf[ch][filled:])
	}
	listeners := s.listeners
	s.mu.Unlock()

	dispatch(listeners, events...)
	return nil
}
