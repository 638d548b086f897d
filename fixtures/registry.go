// Package fixtures loads recorded audio material as a mixer.Source, for
// tests and demo hosts that want more realistic input than a synthetic
// sine wave. Grounded on ik5-audpbx's audio.Registry/Decoder/Source shape.
package fixtures

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Clip is decoded stereo audio: interleaved float32 samples at SampleRate.
type Clip struct {
	SampleRate int
	Frames     []float32
}

// Decoder turns an encoded stream into a Clip. A ReadSeeker (rather than a
// plain Reader) because the WAV decoder needs to seek chunk headers.
type Decoder interface {
	Decode(r io.ReadSeeker) (Clip, error)
}

// Registry dispatches to a Decoder by file extension.
type Registry struct {
	mu       sync.Mutex
	decoders map[string]Decoder
}

// NewRegistry returns an empty registry; callers register the decoders
// they want (WAVDecoder, MP3Decoder, OggDecoder, or a custom one).
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register binds a decoder to a file extension, e.g. ".wav".
func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[strings.ToLower(ext)] = d
}

// Decode opens path and decodes it using the decoder registered for its
// extension.
func (r *Registry) Decode(path string) (Clip, error) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.Lock()
	d, ok := r.decoders[ext]
	r.mu.Unlock()
	if !ok {
		return Clip{}, fmt.Errorf("fixtures: no decoder registered for extension %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("fixtures: opening %s: %w", path, err)
	}
	defer f.Close()

	clip, err := d.Decode(f)
	if err != nil {
		return Clip{}, fmt.Errorf("fixtures: decoding %s: %w", path, err)
	}
	return clip, nil
}

// NewDefaultRegistry returns a Registry with WAV, MP3, and Ogg Vorbis
// decoders already registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".wav", WAVDecoder{})
	r.Register(".mp3", MP3Decoder{})
	r.Register(".ogg", OggDecoder{})
	return r
}
