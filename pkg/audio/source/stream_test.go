// ABOUTME: Tests for the DataLine-fed Stream node
// ABOUTME: Covers carry-over, underruns, channel mapping and rate conversion
package source

import (
	"testing"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/dataline"
)

func TestStream_CarryOverAndUnderrun(t *testing.T) {
	line := dataline.New(audio.FormatHigh, 4)
	defer line.Close()
	s := NewStream(line)
	s.Timeout = 10 * time.Millisecond

	line.ForceSend([][]float32{{1, 2, 3}, {-1, -2, -3}})

	buf := audio.NewBuffer(2, 2)
	if err := s.Render(buf, 48000); err != nil {
		t.Fatal(err)
	}
	if buf[0][0] != 1 || buf[0][1] != 2 || buf[1][1] != -2 {
		t.Errorf("first render = %v", buf)
	}

	s.Render(buf, 48000)
	if buf[0][0] != 3 || buf[1][0] != -3 || buf[0][1] != 0 || buf[1][1] != 0 {
		t.Errorf("second render = %v, want leftover then silence", buf)
	}
	if s.Underruns() != 1 {
		t.Errorf("Underruns = %d, want 1", s.Underruns())
	}
}

func TestStream_SpansBuffers(t *testing.T) {
	line := dataline.New(audio.FormatHigh, 4)
	defer line.Close()
	s := NewStream(line)
	s.Timeout = 100 * time.Millisecond

	line.ForceSend([][]float32{{1}, {1}})
	line.ForceSend([][]float32{{2, 3}, {2, 3}})

	buf := audio.NewBuffer(2, 3)
	s.Render(buf, 48000)
	for i, want := range []float32{1, 2, 3} {
		if buf[0][i] != want || buf[1][i] != want {
			t.Fatalf("render = %v", buf)
		}
	}
	if s.Underruns() != 0 {
		t.Errorf("Underruns = %d, want 0", s.Underruns())
	}
}

func TestStream_MonoToStereo(t *testing.T) {
	line := dataline.New(audio.Format{SampleRate: 48000, BitsPerSample: 16, Channels: 1, Encoding: audio.PCMSigned}, 2)
	defer line.Close()
	s := NewStream(line)
	s.Timeout = 100 * time.Millisecond

	line.ForceSend([][]float32{{0.5, 0.25}})
	buf := audio.NewBuffer(2, 2)
	s.Render(buf, 48000)
	if buf[1][0] != 0.5 || buf[1][1] != 0.25 {
		t.Errorf("right channel = %v, want copy of mono", buf[1])
	}
}

func TestStream_ResamplesLineRate(t *testing.T) {
	line := dataline.New(audio.Format{SampleRate: 24000, BitsPerSample: 16, Channels: 2, Encoding: audio.PCMSigned}, 2)
	defer line.Close()
	s := NewStream(line)
	s.Timeout = 10 * time.Millisecond

	in := audio.NewBuffer(2, 8)
	for ch := range in {
		for i := range in[ch] {
			in[ch][i] = 0.5
		}
	}
	line.ForceSend(in)

	buf := audio.NewBuffer(2, 8)
	s.Render(buf, 48000)
	for ch := range buf {
		for i, v := range buf[ch] {
			if !approx(v, 0.5) {
				t.Fatalf("[%d][%d] = %v, want 0.5", ch, i, v)
			}
		}
	}
}

func TestStream_ClosedLine(t *testing.T) {
	line := dataline.New(audio.FormatHigh, 1)
	line.Close()
	s := NewStream(line)

	buf := audio.NewBuffer(2, 4)
	buf[0][0] = 1
	if err := s.Render(buf, 48000); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf[0][0] != 0 {
		t.Error("closed line should render silence")
	}
}
