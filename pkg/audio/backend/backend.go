// ABOUTME: Backend, Output and Input contracts
// ABOUTME: Lines move interleaved bytes in the format negotiated at Open
package backend

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

var (
	ErrNotOpen        = errors.New("audio line is not open")
	ErrAlreadyOpen    = errors.New("audio line is already open")
	ErrWrongFlow      = errors.New("port has the wrong flow")
	ErrNoInput        = errors.New("backend does not support capture")
	ErrUnknownBackend = errors.New("unknown audio backend")
	ErrUnavailable    = errors.New("audio backend not available")
	ErrInvalidBufSize = errors.New("buffer size must be a positive number of bytes")
	ErrPartialFrame   = errors.New("data is not a whole number of frames")
	ErrNotInitialized = errors.New("audio backend is not initialized")
)

// Backend is an audio system that exposes ports
type Backend interface {
	// Name returns the registry name
	Name() string

	// Init acquires system resources; Shutdown releases them
	Init() error
	Shutdown() error

	// Ports lists every port of the backend
	Ports() ([]*audio.Port, error)

	// DefaultPort returns the preferred port for flow. When format is not
	// nil, only ports that accept it are considered.
	DefaultPort(flow audio.Flow, format *audio.Format) (*audio.Port, error)

	// IsFormatSupported reports whether port accepts f exactly. The second
	// result is the closest format the port does accept, or nil.
	IsFormatSupported(port *audio.Port, f audio.Format) (bool, *audio.Format)

	NewOutput() (Output, error)
	NewInput() (Input, error)
}

// Line is the lifecycle shared by outputs and inputs
type Line interface {
	// Open binds the line to port with format f and an internal buffer of
	// bufferBytes. A nil port selects the default port.
	Open(port *audio.Port, f audio.Format, bufferBytes int) error
	IsOpen() bool
	Close() error

	Start() error
	Stop() error

	// Flush discards buffered data; Drain blocks until it has played
	Flush() error
	Drain() error

	// Available returns how many bytes can be written or read without
	// blocking
	Available() (int, error)
	BufferSize() (int, error)

	FramePosition() (int64, error)
	MicrosecondPosition() (int64, error)
	MicrosecondLatency() (int64, error)

	Port() (*audio.Port, error)
}

// Output plays bytes
type Output interface {
	Line

	// Write blocks until p has been accepted by the device
	Write(p []byte) (int, error)
}

// Input captures bytes
type Input interface {
	Line

	// Read blocks until p has been filled
	Read(p []byte) (int, error)
}

// defaultPort returns the first port with the given flow that accepts
// format, or audio.ErrPortNotFound
func defaultPort(b Backend, flow audio.Flow, format *audio.Format) (*audio.Port, error) {
	ports, err := b.Ports()
	if err != nil {
		return nil, err
	}
	for _, p := range ports {
		if p.Flow != flow {
			continue
		}
		if format != nil {
			if ok, _ := b.IsFormatSupported(p, *format); !ok {
				continue
			}
		}
		return p, nil
	}
	return nil, audio.ErrPortNotFound
}

// resolvePort validates port for flow, falling back to the backend default
func resolvePort(b Backend, port *audio.Port, flow audio.Flow) (*audio.Port, error) {
	if port == nil {
		return b.DefaultPort(flow, nil)
	}
	if port.Flow != flow {
		return nil, ErrWrongFlow
	}
	return port, nil
}

// roundBits rounds a sample width up to whole bytes
func roundBits(bits int) int {
	return bits + (8-bits%8)%8
}

func unsupported(f audio.Format, closest *audio.Format) error {
	if closest != nil {
		return fmt.Errorf("%w: %s (closest: %s)", audio.ErrUnsupportedFormat, f, *closest)
	}
	return fmt.Errorf("%w: %s", audio.ErrUnsupportedFormat, f)
}
