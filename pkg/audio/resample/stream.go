// ABOUTME: Stateful linear resampler for continuous streams
// ABOUTME: Keeps fractional position and last frame between chunks
package resample

// Stream performs linear interpolation between sample rates across chunk
// boundaries. Input and output are channel-major.
type Stream struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	lastFrame  []float32 // one sample per channel, carried from the previous chunk
	primed     bool
}

// NewStream creates a new stream resampler
func NewStream(inputRate, outputRate, channels int) *Stream {
	return &Stream{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]float32, channels),
	}
}

// Ratio returns input rate / output rate
func (s *Stream) Ratio() float64 {
	return s.ratio
}

// Channels returns the channel count the stream was created for
func (s *Stream) Channels() int {
	return s.channels
}

// Process converts one chunk and returns the produced channel-major frames
func (s *Stream) Process(input [][]float32) [][]float32 {
	if len(input) != s.channels || len(input[0]) == 0 {
		return nil
	}
	frames := len(input[0])

	// ext[0] is the previous chunk's last frame, ext[k+1] is input[k]
	at := func(ch, idx int) float32 {
		if idx == 0 {
			return s.lastFrame[ch]
		}
		return input[ch][idx-1]
	}
	if !s.primed {
		s.position = 1
		s.primed = true
	}

	estimate := int(float64(frames)/s.ratio) + 2
	out := make([][]float32, s.channels)
	for ch := range out {
		out[ch] = make([]float32, 0, estimate)
	}

	for {
		idx := int(s.position)
		if idx+1 > frames {
			break
		}
		frac := float32(s.position - float64(idx))
		for ch := 0; ch < s.channels; ch++ {
			a := at(ch, idx)
			b := at(ch, idx+1)
			out[ch] = append(out[ch], a+(b-a)*frac)
		}
		s.position += s.ratio
	}

	// Rebase so that ext[0] becomes this chunk's last frame
	s.position -= float64(frames)
	for ch := 0; ch < s.channels; ch++ {
		s.lastFrame[ch] = input[ch][frames-1]
	}

	return out
}

// Reset clears carried state
func (s *Stream) Reset() {
	s.position = 0
	s.primed = false
	clear(s.lastFrame)
}

// OutputFramesFor estimates how many frames a chunk of inputFrames yields
func (s *Stream) OutputFramesFor(inputFrames int) int {
	return int(float64(inputFrames) / s.ratio)
}

// InputFramesFor estimates how many input frames produce outputFrames
func (s *Stream) InputFramesFor(outputFrames int) int {
	return int(float64(outputFrames) * s.ratio)
}
