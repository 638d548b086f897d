package fixtures

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// OggDecoder decodes Ogg Vorbis via github.com/jfreymuth/oggvorbis, which
// yields interleaved float32 samples directly.
type OggDecoder struct{}

func (OggDecoder) Decode(r io.ReadSeeker) (Clip, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return Clip{}, fmt.Errorf("fixtures: opening ogg stream: %w", err)
	}

	var frames []float32
	buf := make([]float32, 4096)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			frames = append(frames, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("fixtures: decoding ogg stream: %w", err)
		}
	}

	if dec.Channels() == 1 {
		frames = duplicateMono(frames)
	}

	return Clip{SampleRate: dec.SampleRate(), Frames: frames}, nil
}
