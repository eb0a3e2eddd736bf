// ABOUTME: Audio format definitions
// ABOUTME: Describes raw sample layout and derives frame size and byte rate
package audio

import "fmt"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Encoding identifies how samples are stored as bytes
type Encoding int

const (
	PCMSigned Encoding = iota + 1
	PCMUnsigned
	PCMFloat
	ULaw
	ALaw
)

func (e Encoding) String() string {
	switch e {
	case PCMSigned:
		return "PCM_SIGNED"
	case PCMUnsigned:
		return "PCM_UNSIGNED"
	case PCMFloat:
		return "PCM_FLOAT"
	case ULaw:
		return "ULAW"
	case ALaw:
		return "ALAW"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding converts a name such as "signed" or "PCM_FLOAT" to an Encoding
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "signed", "PCM_SIGNED", "s":
		return PCMSigned, nil
	case "unsigned", "PCM_UNSIGNED", "u":
		return PCMUnsigned, nil
	case "float", "PCM_FLOAT", "f":
		return PCMFloat, nil
	case "ulaw", "ULAW", "mulaw":
		return ULaw, nil
	case "alaw", "ALAW":
		return ALaw, nil
	}
	return 0, fmt.Errorf("unknown encoding %q", s)
}

// Format describes a raw audio stream. Formats are comparable values.
type Format struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
	Encoding      Encoding
	BigEndian     bool
}

// Common presets
var (
	FormatLowest = Format{SampleRate: 8000, BitsPerSample: 8, Channels: 1, Encoding: PCMUnsigned}
	FormatLow    = Format{SampleRate: 22050, BitsPerSample: 8, Channels: 1, Encoding: PCMUnsigned}
	FormatNormal = Format{SampleRate: 44100, BitsPerSample: 16, Channels: 2, Encoding: PCMSigned}
	FormatHigh   = Format{SampleRate: 48000, BitsPerSample: 16, Channels: 2, Encoding: PCMSigned}
	FormatUltra  = Format{SampleRate: 48000, BitsPerSample: 32, Channels: 2, Encoding: PCMFloat}
)

// NewFormat creates a validated format
func NewFormat(sampleRate, bitsPerSample, channels int, encoding Encoding, bigEndian bool) (Format, error) {
	f := Format{
		SampleRate:    sampleRate,
		BitsPerSample: bitsPerSample,
		Channels:      channels,
		Encoding:      encoding,
		BigEndian:     bigEndian,
	}
	if err := f.Validate(); err != nil {
		return Format{}, err
	}
	return f, nil
}

// Validate reports whether every base field is usable
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	case f.BitsPerSample <= 0:
		return fmt.Errorf("%w: bits per sample %d", ErrInvalidFormat, f.BitsPerSample)
	case f.Channels <= 0:
		return fmt.Errorf("%w: channels %d", ErrInvalidFormat, f.Channels)
	case f.Encoding < PCMSigned || f.Encoding > ALaw:
		return fmt.Errorf("%w: encoding %v", ErrInvalidFormat, f.Encoding)
	}
	return nil
}

// BytesPerSample returns the storage size of one sample
func (f Format) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// FrameSize returns the size in bytes of one frame (one sample per channel)
func (f Format) FrameSize() int {
	return f.Channels * f.BytesPerSample()
}

// ByteRate returns the number of bytes per second of audio
func (f Format) ByteRate() int {
	return f.SampleRate * f.FrameSize()
}

// WithSampleRate returns a copy of f at a different rate
func (f Format) WithSampleRate(rate int) Format {
	f.SampleRate = rate
	return f
}

func (f Format) String() string {
	endian := "little-endian"
	if f.BigEndian {
		endian = "big-endian"
	}
	return fmt.Sprintf("%d Hz, %d-bit, %d channels, %s, %s",
		f.SampleRate, f.BitsPerSample, f.Channels, f.Encoding, endian)
}
