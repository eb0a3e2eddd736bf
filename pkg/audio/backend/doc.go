// ABOUTME: Audio backend package for device playback and capture
// ABOUTME: Byte-oriented Backend/Output/Input contracts with several implementations
// Package backend defines the device contract the audio graph writes to.
//
// A Backend enumerates ports, negotiates formats and creates Output and
// Input lines that move raw bytes. Implementations:
//
//   - Dummy: no hardware, paced in real time (tests, headless hosts)
//   - Oto: playback through ebitengine/oto
//   - Malgo: playback and capture through miniaudio
//   - PortAudio: blocking playback (build with -tags portaudio)
//   - WAVFile: records everything written to a WAV file
//   - Stream: broadcasts to WebSocket listeners as PCM or Opus
//
// Backends are looked up through a Registry built by the application:
//
//	reg := backend.NewRegistry()
//	backend.RegisterBuiltins(reg)
//	b, err := reg.Open("malgo")
package backend
