// ABOUTME: Audio decoder package for files and network packets
// ABOUTME: Whole-file decoders behind an explicit registry plus PCM/Opus packet decoders
// Package decode turns encoded audio into channel-major float buffers.
//
// File decoders: MP3, FLAC, WAV, AIFF, Ogg Vorbis. They decode a whole
// stream into a Result and are looked up by file extension through a
// Registry that the caller builds:
//
//	reg := decode.NewRegistry()
//	decode.RegisterBuiltins(reg)
//	res, err := reg.Open("track.flac")
//
// Packet decoders: PCM and Opus. They decode one network chunk at a time:
//
//	dec, err := decode.NewPacket("opus", audio.FormatHigh)
//	buf, err := dec.Decode(packet)
package decode
