// ABOUTME: Float buffer to interleaved byte conversion and back
// ABOUTME: Handles every encoding, sample width and byte order of audio.Format
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

// Check reports whether f can be converted by this package
func Check(f audio.Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	bits := f.BitsPerSample
	switch f.Encoding {
	case audio.PCMSigned, audio.PCMUnsigned:
		if bits%8 != 0 || bits > 32 {
			return fmt.Errorf("%w: %d-bit integer PCM", audio.ErrUnsupportedFormat, bits)
		}
	case audio.PCMFloat:
		if bits != 32 && bits != 64 {
			return fmt.Errorf("%w: %d-bit float PCM", audio.ErrUnsupportedFormat, bits)
		}
	case audio.ULaw, audio.ALaw:
		if bits != 8 {
			return fmt.Errorf("%w: %d-bit %s", audio.ErrUnsupportedFormat, bits, f.Encoding)
		}
	default:
		return fmt.Errorf("%w: encoding %s", audio.ErrUnsupportedFormat, f.Encoding)
	}
	return nil
}

// Encode converts buf to interleaved bytes in format f
func Encode(buf [][]float32, f audio.Format) ([]byte, error) {
	out := make([]byte, audio.Frames(buf)*f.FrameSize())
	if _, err := EncodeInto(out, buf, f); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeInto writes buf into dst and returns the number of bytes written.
// dst must hold at least frames × FrameSize bytes.
func EncodeInto(dst []byte, buf [][]float32, f audio.Format) (int, error) {
	if err := Check(f); err != nil {
		return 0, err
	}
	if err := audio.CheckLength(buf); err != nil {
		return 0, err
	}
	if len(buf) != f.Channels {
		return 0, fmt.Errorf("%w: buffer has %d channels, format has %d", audio.ErrChannelsMismatch, len(buf), f.Channels)
	}
	frames := audio.Frames(buf)
	size := frames * f.FrameSize()
	if len(dst) < size {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", audio.ErrLengthMismatch, size, len(dst))
	}

	put := encoder(f)
	width := f.BytesPerSample()
	pos := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < f.Channels; ch++ {
			put(dst[pos:pos+width], buf[ch][i])
			pos += width
		}
	}
	return size, nil
}

// Decode converts interleaved bytes in format f to a channel-major buffer.
// A trailing partial frame is ignored.
func Decode(data []byte, f audio.Format) ([][]float32, error) {
	if err := Check(f); err != nil {
		return nil, err
	}
	buf := audio.NewBuffer(f.Channels, len(data)/f.FrameSize())
	if _, err := DecodeInto(buf, data, f); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeInto fills buf from data and returns the number of frames decoded,
// which is the smaller of the buffer length and the whole frames in data
func DecodeInto(buf [][]float32, data []byte, f audio.Format) (int, error) {
	if err := Check(f); err != nil {
		return 0, err
	}
	if err := audio.CheckLength(buf); err != nil {
		return 0, err
	}
	if len(buf) != f.Channels {
		return 0, fmt.Errorf("%w: buffer has %d channels, format has %d", audio.ErrChannelsMismatch, len(buf), f.Channels)
	}

	frames := min(audio.Frames(buf), len(data)/f.FrameSize())
	get := decoder(f)
	width := f.BytesPerSample()
	pos := 0
	for i := 0; i < frames; i++ {
		for ch := 0; ch < f.Channels; ch++ {
			buf[ch][i] = get(data[pos : pos+width])
			pos += width
		}
	}
	return frames, nil
}

func clip(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// toInt scales v to a signed integer of the given width
func toInt(v float32, bits int) int64 {
	scale := float64(int64(1) << (bits - 1))
	n := int64(math.Round(float64(clip(v)) * scale))
	maxVal := int64(scale) - 1
	if n > maxVal {
		n = maxVal
	}
	return n
}

func fromInt(n int64, bits int) float32 {
	return float32(float64(n) / float64(int64(1)<<(bits-1)))
}

func putUint(b []byte, v uint64, bigEndian bool) {
	n := len(b)
	for i := 0; i < n; i++ {
		shift := uint(8 * i)
		if bigEndian {
			b[n-1-i] = byte(v >> shift)
		} else {
			b[i] = byte(v >> shift)
		}
	}
}

func getUint(b []byte, bigEndian bool) uint64 {
	var v uint64
	n := len(b)
	for i := 0; i < n; i++ {
		shift := uint(8 * i)
		if bigEndian {
			v |= uint64(b[n-1-i]) << shift
		} else {
			v |= uint64(b[i]) << shift
		}
	}
	return v
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func encoder(f audio.Format) func([]byte, float32) {
	bits := f.BitsPerSample
	be := f.BigEndian
	order := byteOrder(be)

	switch f.Encoding {
	case audio.PCMSigned:
		if bits == 16 {
			return func(b []byte, v float32) { order.PutUint16(b, uint16(int16(toInt(v, 16)))) }
		}
		return func(b []byte, v float32) { putUint(b, uint64(toInt(v, bits)), be) }
	case audio.PCMUnsigned:
		offset := int64(1) << (bits - 1)
		return func(b []byte, v float32) { putUint(b, uint64(toInt(v, bits)+offset), be) }
	case audio.PCMFloat:
		if bits == 64 {
			return func(b []byte, v float32) { order.PutUint64(b, math.Float64bits(float64(v))) }
		}
		return func(b []byte, v float32) { order.PutUint32(b, math.Float32bits(v)) }
	case audio.ULaw:
		return func(b []byte, v float32) { b[0] = LinearToULaw(int16(toInt(v, 16))) }
	default:
		return func(b []byte, v float32) { b[0] = LinearToALaw(int16(toInt(v, 16))) }
	}
}

func decoder(f audio.Format) func([]byte) float32 {
	bits := f.BitsPerSample
	be := f.BigEndian
	order := byteOrder(be)

	switch f.Encoding {
	case audio.PCMSigned:
		if bits == 16 {
			return func(b []byte) float32 { return float32(int16(order.Uint16(b))) / 32768 }
		}
		shift := 64 - bits
		return func(b []byte) float32 {
			// sign-extend from the sample width
			n := int64(getUint(b, be)<<shift) >> shift
			return fromInt(n, bits)
		}
	case audio.PCMUnsigned:
		offset := int64(1) << (bits - 1)
		return func(b []byte) float32 { return fromInt(int64(getUint(b, be))-offset, bits) }
	case audio.PCMFloat:
		if bits == 64 {
			return func(b []byte) float32 { return float32(math.Float64frombits(order.Uint64(b))) }
		}
		return func(b []byte) float32 { return math.Float32frombits(order.Uint32(b)) }
	case audio.ULaw:
		return func(b []byte) float32 { return float32(ULawToLinear(b[0])) / 32768 }
	default:
		return func(b []byte) float32 { return float32(ALawToLinear(b[0])) / 32768 }
	}
}
