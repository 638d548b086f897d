package fixtures

import "sync"

// LoopingSource replays a decoded Clip forever, standing in for a virtual
// endpoint's input side when a test or demo wants recorded material
// instead of a synthetic signal.
type LoopingSource struct {
	rate   int
	frames []float32

	mu  sync.Mutex
	pos int
}

// NewLoopingSource wraps clip for repeated playback.
func NewLoopingSource(clip Clip) *LoopingSource {
	return &LoopingSource{rate: clip.SampleRate, frames: clip.Frames}
}

func (s *LoopingSource) SampleRate() int { return s.rate }

func (s *LoopingSource) ReadFrames(dst []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.frames)
	if total == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return 0
	}

	for i := range dst {
		dst[i] = s.frames[s.pos]
		s.pos++
		if s.pos >= total {
			s.pos = 0
		}
	}
	return len(dst) / 2
}
