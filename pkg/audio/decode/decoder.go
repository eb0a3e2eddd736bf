// ABOUTME: Decoder interfaces, decode results and the extension registry
// ABOUTME: The registry is built by the caller; nothing is registered globally
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrNoAudio              = errors.New("stream contains no audio")
)

// Result is a fully decoded stream
type Result struct {
	// Samples is channel-major, normalized to [-1, 1]
	Samples [][]float32
	// Format describes the source encoding
	Format audio.Format
	// Tags holds lowercase metadata keys such as "title" and "artist"
	Tags map[string]string
}

// Frames returns the number of frames per channel
func (r *Result) Frames() int {
	return audio.Frames(r.Samples)
}

// Duration returns the playback length at the source sample rate
func (r *Result) Duration() time.Duration {
	if r.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.Format.SampleRate)
}

// Decoder decodes a complete file
type Decoder interface {
	// Decode reads r to the end and returns the decoded audio
	Decode(r io.Reader) (*Result, error)

	// Extensions returns the lowercase file extensions handled, with dot
	Extensions() []string
}

// Registry maps file extensions to decoders
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Decoder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Decoder)}
}

// RegisterBuiltins adds every decoder in this package to r
func RegisterBuiltins(r *Registry) {
	r.Register(MP3{})
	r.Register(FLAC{})
	r.Register(WAV{})
	r.Register(AIFF{})
	r.Register(Vorbis{})
}

// Register adds d for each of its extensions, replacing earlier entries
func (r *Registry) Register(d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range d.Extensions() {
		r.byExt[normalizeExt(ext)] = d
	}
}

// Lookup returns the decoder for ext
func (r *Registry) Lookup(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byExt[normalizeExt(ext)]
	return d, ok
}

// Extensions returns the registered extensions in sorted order
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Decode decodes rd with the decoder registered for ext
func (r *Registry) Decode(ext string, rd io.Reader) (*Result, error) {
	d, ok := r.Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedExtension, ext, strings.Join(r.Extensions(), ", "))
	}
	res, err := d.Decode(rd)
	if err != nil {
		return nil, err
	}
	if res.Tags == nil {
		res.Tags = make(map[string]string)
	}
	return res, nil
}

// Open decodes the file at path, choosing the decoder by extension. The
// file name becomes the title when the file carries none.
func (r *Registry) Open(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	res, err := r.Decode(filepath.Ext(path), f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	if res.Tags["title"] == "" {
		name := filepath.Base(path)
		res.Tags["title"] = strings.TrimSuffix(name, filepath.Ext(name))
	}

	log.Infof("Loaded %s (%s, %v)", filepath.Base(path), res.Format, res.Duration().Round(time.Millisecond))
	return res, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// readSeeker returns r as an io.ReadSeeker, buffering it in memory if needed
func readSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	return bytes.NewReader(data), nil
}

// deinterleaveInts converts interleaved integer samples of the given bit
// depth to a float buffer
func deinterleaveInts(data []int, channels, bitDepth int, unsigned bool) [][]float32 {
	frames := len(data) / channels
	buf := audio.NewBuffer(channels, frames)
	scale := float32(int64(1) << (bitDepth - 1))
	offset := 0
	if unsigned {
		offset = 1 << (bitDepth - 1)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf[ch][i] = float32(data[i*channels+ch]-offset) / scale
		}
	}
	return buf
}

// parseComments converts KEY=value comments to lowercase tags
func parseComments(comments []string, tags map[string]string) {
	for _, c := range comments {
		key, value, ok := strings.Cut(c, "=")
		if !ok || key == "" {
			continue
		}
		tags[strings.ToLower(key)] = value
	}
}
