// ABOUTME: Conversion between float sample buffers and raw PCM bytes
// ABOUTME: Covers signed, unsigned, float, mu-law and A-law encodings
// Package pcm converts channel-major float buffers to and from the
// interleaved byte layout described by an audio.Format.
//
// Integer encodings use a full-scale factor of 2^(bits-1): a float sample of
// 1.0 encodes to the largest positive integer and -1.0 to the most negative.
// Values outside [-1, 1] are clipped. Float encodings accept 32 or 64 bits
// and are written unclipped. Mu-law and A-law are 8-bit G.711.
package pcm
