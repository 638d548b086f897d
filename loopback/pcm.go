package loopback

import (
	"encoding/binary"
	"math"
)

// EncodeFrames packs interleaved stereo float32 frames into the wire byte
// format every endpoint speaks (32-bit float, packed, little-endian in this
// implementation — "native-endian" per spec.md §3, and every producer and
// consumer in this module agrees on little-endian).
func EncodeFrames(dst []byte, frames []float32) {
	for i, f := range frames {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

// DecodeFrames unpacks wire bytes into interleaved stereo float32 samples.
func DecodeFrames(dst []float32, src []byte) {
	n := len(src) / 4
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

// ReadFrames is a float32 convenience wrapper over OnReadClientInput: it
// reads up to len(dst)/Channels interleaved stereo frames from the
// endpoint's input side (i.e. whatever was most recently written to its
// output side) and returns the number of real frames delivered, the
// remainder zero-filled by the underlying ring read.
func (e *Endpoint) ReadFrames(dst []float32) int {
	byteLen := len(dst) * 4
	if cap(e.readScratch) < byteLen {
		e.readScratch = make([]byte, byteLen)
	} else {
		e.readScratch = e.readScratch[:byteLen]
	}
	n := e.OnReadClientInput(e.readScratch)
	DecodeFrames(dst, e.readScratch)
	return n / BytesPerFrame
}

// WriteFrames is a float32 convenience wrapper over OnWriteMixedOutput: it
// encodes interleaved stereo frames into wire bytes and forwards them into
// the loopback ring, exactly as an application writing PCM to this device
// would.
func (e *Endpoint) WriteFrames(frames []float32) {
	scratch := make([]byte, len(frames)*4)
	EncodeFrames(scratch, frames)
	e.OnWriteMixedOutput(scratch)
}
