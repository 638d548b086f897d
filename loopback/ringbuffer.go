// Package loopback implements the virtual-device loopback layer: a
// lock-free single-producer/single-consumer ring buffer, the virtual
// endpoint built from a pair of streams sharing one ring, and the plugin
// host that materializes a fixed set of endpoints for the OS to publish.
package loopback

import "sync/atomic"

// BytesPerFrame is the frame size for the 32-bit float, packed,
// native-endian stereo format every virtual endpoint uses.
const BytesPerFrame = 4 * 2 // 4 bytes/sample * 2 channels

// DefaultRingSeconds is the reference driver's loopback buffer size; spec
// only requires "at least 2 seconds at the maximum supported rate".
const DefaultRingSeconds = 5

// RingBuffer is a fixed-capacity byte ring safe for exactly one writer
// goroutine and one reader goroutine running concurrently. It never
// blocks, never allocates after construction, and never panics.
//
// used = writePos - readPos, computed under unsigned wraparound. If used
// ever exceeds capacity (a prior bug, or an out-of-order publish) the
// reader treats available data as zero rather than trusting the delta;
// the next full write/read cycle re-establishes the invariant.
type RingBuffer struct {
	buf      []byte
	capacity uint64

	writePos atomic.Uint64
	readPos  atomic.Uint64

	underruns atomic.Uint64
}

// NewRingBuffer allocates a ring sized to hold at least the given number
// of frames at BytesPerFrame bytes each.
func NewRingBuffer(frames int) *RingBuffer {
	if frames <= 0 {
		frames = 1
	}
	size := uint64(frames) * BytesPerFrame
	return &RingBuffer{
		buf:      make([]byte, size),
		capacity: size,
	}
}

// NewRingBufferForRate sizes a ring for at least DefaultRingSeconds seconds
// at the given sample rate.
func NewRingBufferForRate(sampleRate int) *RingBuffer {
	return NewRingBuffer(sampleRate * DefaultRingSeconds)
}

// Capacity returns the ring's fixed byte capacity.
func (r *RingBuffer) Capacity() int { return int(r.capacity) }

// Underruns returns the monotonically non-decreasing count of reads that
// returned zero real bytes while the caller asked for more than zero.
func (r *RingBuffer) Underruns() uint64 { return r.underruns.Load() }

// Write copies up to len(src) bytes into the ring. Bytes that don't fit
// because the ring is full are silently dropped — the caller (the real-time
// output callback) must never block, and it is the reader's job to keep up.
// Write is called from exactly one goroutine.
func (r *RingBuffer) Write(src []byte) {
	if len(src) == 0 {
		return
	}
	wp := r.writePos.Load()
	rp := r.readPos.Load()

	used := wp - rp // unsigned wraparound arithmetic
	if used > r.capacity {
		used = 0
	}
	space := r.capacity - used

	toWrite := uint64(len(src))
	if toWrite > space {
		toWrite = space
	}
	if toWrite == 0 {
		return
	}

	writeIdx := wp % r.capacity
	first := r.capacity - writeIdx
	if first > toWrite {
		first = toWrite
	}
	copy(r.buf[writeIdx:writeIdx+first], src[:first])
	if toWrite > first {
		copy(r.buf[0:toWrite-first], src[first:toWrite])
	}

	r.writePos.Store(wp + toWrite)
}

// Read fills dst with up to len(dst) real bytes from the ring, zero-filling
// any remainder as silence, and returns the number of real bytes delivered.
// If the ring had zero real bytes available while len(dst) > 0, the
// underrun counter increments. Read is called from exactly one goroutine
// (which may differ from the writer's goroutine).
func (r *RingBuffer) Read(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	wp := r.writePos.Load()
	rp := r.readPos.Load()

	available := wp - rp
	if available > r.capacity {
		available = 0
	}

	toRead := uint64(len(dst))
	if toRead > available {
		toRead = available
	}

	if toRead > 0 {
		readIdx := rp % r.capacity
		first := r.capacity - readIdx
		if first > toRead {
			first = toRead
		}
		copy(dst[:first], r.buf[readIdx:readIdx+first])
		if toRead > first {
			copy(dst[first:toRead], r.buf[0:toRead-first])
		}
		r.readPos.Store(rp + toRead)
	}

	if toRead < uint64(len(dst)) {
		for i := toRead; i < uint64(len(dst)); i++ {
			dst[i] = 0
		}
		if toRead == 0 {
			r.underruns.Add(1)
		}
	}

	return int(toRead)
}

// Clear zeros positions and the underlying buffer so a new IO session never
// replays stale audio. Only safe to call while neither the writer nor the
// reader is concurrently active (IO start/stop).
func (r *RingBuffer) Clear() {
	r.writePos.Store(0)
	r.readPos.Store(0)
	r.underruns.Store(0)
	for i := range r.buf {
		r.buf[i] = 0
	}
}
