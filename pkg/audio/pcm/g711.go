// ABOUTME: G.711 mu-law and A-law companding
// ABOUTME: 16-bit linear samples to and from 8-bit codes
package pcm

const (
	ulawBias = 0x84
	ulawClip = 32635
)

var alawSegmentEnd = [8]int{0x1F, 0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF}

// LinearToULaw compresses a 16-bit sample to a mu-law code
func LinearToULaw(s int16) byte {
	sample := int(s)
	sign := 0
	if sample < 0 {
		sample = -sample
		sign = 0x80
	}
	if sample > ulawClip {
		sample = ulawClip
	}
	sample += ulawBias

	exponent := 7
	for mask := 0x4000; sample&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (sample >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}

// ULawToLinear expands a mu-law code to a 16-bit sample
func ULawToLinear(u byte) int16 {
	u = ^u
	exponent := int(u>>4) & 0x07
	mantissa := int(u & 0x0F)
	sample := (mantissa<<3 + ulawBias) << exponent
	sample -= ulawBias
	if u&0x80 != 0 {
		return int16(-sample)
	}
	return int16(sample)
}

// LinearToALaw compresses a 16-bit sample to an A-law code
func LinearToALaw(s int16) byte {
	sample := int(s) >> 3
	mask := 0xD5
	if sample < 0 {
		mask = 0x55
		sample = -sample - 1
	}

	segment := len(alawSegmentEnd)
	for i, end := range alawSegmentEnd {
		if sample <= end {
			segment = i
			break
		}
	}
	if segment >= len(alawSegmentEnd) {
		return byte(0x7F ^ mask)
	}

	code := segment << 4
	if segment < 2 {
		code |= (sample >> 1) & 0x0F
	} else {
		code |= (sample >> segment) & 0x0F
	}
	return byte(code ^ mask)
}

// ALawToLinear expands an A-law code to a 16-bit sample
func ALawToLinear(a byte) int16 {
	a ^= 0x55
	t := int(a&0x0F) << 4
	segment := int(a&0x70) >> 4
	switch segment {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= segment - 1
	}
	if a&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}
