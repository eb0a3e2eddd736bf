//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Reports the backend as unavailable unless built with -tags portaudio
package backend

import (
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

var errNoPortAudio = fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrUnavailable)

// PortAudio backend (stub)
type PortAudio struct{}

// NewPortAudio creates the stub backend
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

func (p *PortAudio) Name() string                  { return "portaudio" }
func (p *PortAudio) Init() error                   { return errNoPortAudio }
func (p *PortAudio) Shutdown() error               { return nil }
func (p *PortAudio) Ports() ([]*audio.Port, error) { return nil, errNoPortAudio }

func (p *PortAudio) DefaultPort(audio.Flow, *audio.Format) (*audio.Port, error) {
	return nil, errNoPortAudio
}

func (p *PortAudio) IsFormatSupported(*audio.Port, audio.Format) (bool, *audio.Format) {
	return false, nil
}

func (p *PortAudio) NewOutput() (Output, error) { return nil, errNoPortAudio }
func (p *PortAudio) NewInput() (Input, error)   { return nil, errNoPortAudio }
