// ABOUTME: Audio fundamentals package providing core graph types and utilities
// ABOUTME: Defines Format, Port, the Node contract and channel-major buffer helpers
// Package audio provides the fundamental types shared by the rendering graph.
//
// This package defines core types used throughout the audiograph library:
//   - Format: Describes a raw stream format (rate, bits, channels, encoding, byte order)
//   - Port: Describes one directional endpoint of a backend
//   - Node: The pull-based render contract implemented by sources and mixers
//
// Audio travels through the graph as channel-major float buffers,
// buf[channel][frame], with every channel the same length.
//
// Example:
//
//	format, err := audio.NewFormat(48000, 16, 2, audio.PCMSigned, false)
//	if err != nil {
//	    return err
//	}
//
//	buf := audio.NewBuffer(format.Channels, 1024)
//	err = node.Render(buf, format.SampleRate)
package audio
