package sinks

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink captures a bus's rendered output to a 16-bit stereo WAV file. It
// is the concrete form of the "null sink that captures samples" spec.md
// §8's end-to-end scenarios call for, and doubles as an offline capture
// tool for a running mixer.
type WAVSink struct {
	rate int

	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	lastErr error
}

// NewWAVSink creates path (truncating it if it exists) and returns a sink
// that writes 16-bit stereo PCM at rate until Close is called.
func NewWAVSink(path string, rate int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sinks: creating %s: %w", path, err)
	}
	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	return &WAVSink{
		rate: rate,
		file: f,
		enc:  enc,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (w *WAVSink) SampleRate() int { return w.rate }

// WriteFrames encodes interleaved stereo float32 frames to 16-bit PCM and
// appends them to the WAV file. A write failure is recorded, not panicked
// or logged from here — this always runs off a Bus's own render goroutine,
// never a caller's, so there is no one to synchronously report it to;
// callers should check Err after Close.
func (w *WAVSink) WriteFrames(frames []float32) {
	data := make([]int, len(frames))
	for i, f := range frames {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		data[i] = int(f * 32767)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Data = data
	if err := w.enc.Write(w.buf); err != nil && w.lastErr == nil {
		w.lastErr = fmt.Errorf("sinks: writing wav frames: %w", err)
	}
}

// Err returns the first write error encountered, if any.
func (w *WAVSink) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Close finalizes the WAV header and closes the underlying file.
func (w *WAVSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("sinks: closing wav encoder: %w", err)
	}
	return w.file.Close()
}
