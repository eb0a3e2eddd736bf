// ABOUTME: FLAC file decoder
// ABOUTME: Decodes FLAC frames and Vorbis comments via mewkiz/flac
package decode

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"
)

// FLAC decodes Free Lossless Audio Codec files
type FLAC struct{}

func (FLAC) Extensions() []string { return []string{".flac"} }

// Decode parses metadata blocks and every audio frame
func (FLAC) Decode(r io.Reader) (*Result, error) {
	stream, err := flac.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	format := audio.Format{
		SampleRate:    int(info.SampleRate),
		BitsPerSample: bitDepth,
		Channels:      channels,
		Encoding:      audio.PCMSigned,
	}

	tags := make(map[string]string)
	for _, block := range stream.Blocks {
		if comment, ok := block.Body.(*meta.VorbisComment); ok {
			for _, tag := range comment.Tags {
				tags[strings.ToLower(tag[0])] = tag[1]
			}
		}
	}

	samples := make([][]float32, channels)
	if info.NSamples > 0 {
		for ch := range samples {
			samples[ch] = make([]float32, 0, info.NSamples)
		}
	}
	scale := float32(int64(1) << (bitDepth - 1))

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("flac frame error: %w", err)
		}
		n := int(frame.BlockSize)
		for ch := 0; ch < channels; ch++ {
			for _, s := range frame.Subframes[ch].Samples[:n] {
				samples[ch] = append(samples[ch], float32(s)/scale)
			}
		}
	}

	if audio.Frames(samples) == 0 {
		return nil, ErrNoAudio
	}
	log.Debugf("Decoded FLAC: %s, %d frames", format, audio.Frames(samples))
	return &Result{Samples: samples, Format: format, Tags: tags}, nil
}
