package fixtures

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1/2 Layer III via github.com/hajimehoshi/go-mp3,
// which always yields signed 16-bit little-endian stereo PCM.
type MP3Decoder struct{}

func (MP3Decoder) Decode(r io.ReadSeeker) (Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return Clip{}, fmt.Errorf("fixtures: opening mp3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return Clip{}, fmt.Errorf("fixtures: decoding mp3 stream: %w", err)
	}

	n := len(raw) / 2
	frames := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		frames[i] = float32(v) / 32768
	}

	return Clip{SampleRate: dec.SampleRate(), Frames: frames}, nil
}
