// ABOUTME: Port selection and format negotiation shared by output and input
// ABOUTME: Requested format, then closest, then the port mix format and its closest
package device

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/backend"
)

var (
	ErrInvalidBufferFrames = errors.New("buffer size must be at least one frame")
	ErrStopTimeout         = errors.New("processing goroutine did not stop in time")
)

// choosePort returns port, or the backend default for flow when port is nil
func choosePort(b backend.Backend, port *audio.Port, flow audio.Flow) (*audio.Port, error) {
	if port != nil {
		return port, nil
	}
	p, err := b.DefaultPort(flow, nil)
	if err != nil {
		return nil, fmt.Errorf("no default %s port: %w", flow, err)
	}
	if p == nil {
		return nil, fmt.Errorf("no default %s port: %w", flow, audio.ErrPortNotFound)
	}
	log.Debugf("Using default %s port: %s", flow, p.Name)
	return p, nil
}

// Negotiate picks the format a backend will open port with. It tries
// requested, then the closest format the backend reports for it, then the
// port's mix format and its closest, and fails with audio.ErrUnsupportedFormat.
func Negotiate(b backend.Backend, port *audio.Port, requested audio.Format) (audio.Format, error) {
	if f, ok := tryFormat(b, port, requested); ok {
		return f, nil
	}
	log.Debugf("Format %s not supported on %s, trying mix format %s", requested, port.Name, port.MixFormat)
	if f, ok := tryFormat(b, port, port.MixFormat); ok {
		return f, nil
	}
	return audio.Format{}, fmt.Errorf("%w: source %s, port mix format %s", audio.ErrUnsupportedFormat, requested, port.MixFormat)
}

func tryFormat(b backend.Backend, port *audio.Port, f audio.Format) (audio.Format, bool) {
	ok, closest := b.IsFormatSupported(port, f)
	if ok {
		return f, true
	}
	if closest != nil && closest.Validate() == nil {
		log.Debugf("Using closest supported format: %s", *closest)
		return *closest, true
	}
	return audio.Format{}, false
}
