// ABOUTME: Shared error values for the audio graph
// ABOUTME: Sentinel errors matched with errors.Is across packages
package audio

import "errors"

var (
	ErrInvalidFormat     = errors.New("invalid audio format")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrPortNotFound      = errors.New("audio port not found")
	ErrLengthMismatch    = errors.New("channel length mismatch")
	ErrChannelsMismatch  = errors.New("channel count mismatch")
	ErrEmptyBuffer       = errors.New("empty buffer")
	ErrMixing            = errors.New("mixing failed")
)
