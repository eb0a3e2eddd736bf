// ABOUTME: Audio encoder package for the network stream sink
// ABOUTME: Provides the Encoder interface with PCM and Opus implementations
// Package encode turns rendered float buffers into wire payloads.
//
// Supports: raw PCM (any format the pcm package handles) and Opus.
//
// An encoder may buffer input: Opus only emits whole 20ms packets, so a call
// can return zero, one or several packets.
//
// Example:
//
//	enc, err := encode.New("opus", audio.FormatHigh)
//	packets, err := enc.Encode(buf)
package encode
