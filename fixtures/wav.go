package fixtures

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// WAVDecoder decodes PCM WAV files via github.com/go-audio/wav, normalizing
// every sample to [-1, 1] float32 regardless of the source bit depth.
type WAVDecoder struct{}

func (WAVDecoder) Decode(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("fixtures: not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("fixtures: reading PCM buffer: %w", err)
	}

	maxVal := float64(int(1) << (uint(buf.SourceBitDepth) - 1))
	frames := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		frames[i] = float32(float64(v) / maxVal)
	}

	if buf.Format.NumChannels == 1 {
		frames = duplicateMono(frames)
	}

	return Clip{SampleRate: buf.Format.SampleRate, Frames: frames}, nil
}

func duplicateMono(mono []float32) []float32 {
	stereo := make([]float32, len(mono)*2)
	for i, v := range mono {
		stereo[i*2] = v
		stereo[i*2+1] = v
	}
	return stereo
}
