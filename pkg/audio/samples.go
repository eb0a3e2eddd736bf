// ABOUTME: Sample-level processing helpers shared by mixers and effects
// ABOUTME: Gain, pan, stereo separation, channel swap, polarity and crossfade
package audio

// ApplyGain multiplies every sample by gain
func ApplyGain(buf [][]float32, gain float32) {
	if gain == 1 {
		return
	}
	for ch := range buf {
		for i := range buf[ch] {
			buf[ch][i] *= gain
		}
	}
}

// PanGains returns the left and right gain factors for a balance pan in
// [-1, 1]. Zero is unity on both sides; -1 silences the right side and +1
// silences the left side.
func PanGains(pan float32) (left, right float32) {
	if pan > 1 {
		pan = 1
	} else if pan < -1 {
		pan = -1
	}
	left, right = 1, 1
	if pan > 0 {
		left = 1 - pan
	} else if pan < 0 {
		right = 1 + pan
	}
	return left, right
}

// ApplyGainPan applies gain and balance pan in place. Mono buffers receive
// gain only. With more than two channels, even channels are treated as left
// and odd channels as right.
func ApplyGainPan(buf [][]float32, gain, pan float32) {
	if len(buf) < 2 {
		ApplyGain(buf, gain)
		return
	}
	l, r := PanGains(pan)
	l *= gain
	r *= gain
	for ch := range buf {
		g := l
		if ch%2 == 1 {
			g = r
		}
		if g == 1 {
			continue
		}
		for i := range buf[ch] {
			buf[ch][i] *= g
		}
	}
}

// StereoSeparate widens (separation > 0) or narrows (separation < 0) a
// stereo image in place. Zero leaves the signal unchanged and -1 collapses
// it to mono. Buffers that are not stereo are left untouched.
func StereoSeparate(buf [][]float32, separation float32) {
	if len(buf) != 2 || separation == 0 {
		return
	}
	if separation > 1 {
		separation = 1
	} else if separation < -1 {
		separation = -1
	}
	width := 1 + separation
	left, right := buf[0], buf[1]
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		mid := (left[i] + right[i]) * 0.5
		side := (left[i] - right[i]) * 0.5 * width
		left[i] = mid + side
		right[i] = mid - side
	}
}

// SwapChannels reverses the channel order in place
func SwapChannels(buf [][]float32) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}

// InvertPolarity negates every sample in place
func InvertPolarity(buf [][]float32) {
	for ch := range buf {
		for i := range buf[ch] {
			buf[ch][i] = -buf[ch][i]
		}
	}
}

// Crossfade writes dry + (wet-dry)*mix into wet
func Crossfade(dry, wet [][]float32, mix float32) {
	for ch := range wet {
		if ch >= len(dry) {
			break
		}
		d, w := dry[ch], wet[ch]
		n := min(len(d), len(w))
		for i := 0; i < n; i++ {
			w[i] = d[i] + (w[i]-d[i])*mix
		}
	}
}

// MixInto adds src into dst sample by sample
func MixInto(dst, src [][]float32) {
	for ch := range dst {
		if ch >= len(src) {
			break
		}
		d, s := dst[ch], src[ch]
		n := min(len(d), len(s))
		for i := 0; i < n; i++ {
			d[i] += s[i]
		}
	}
}

// Peak returns the largest absolute sample value per channel
func Peak(buf [][]float32) []float32 {
	peaks := make([]float32, len(buf))
	for ch := range buf {
		var p float32
		for _, v := range buf[ch] {
			if v < 0 {
				v = -v
			}
			if v > p {
				p = v
			}
		}
		peaks[ch] = p
	}
	return peaks
}
