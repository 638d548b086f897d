package mixer

import (
	"math"
	"sync/atomic"
)

// AtomicFloat32 gives a real-time render thread lock-free access to a
// float32 that a control thread mutates, matching spec.md §5's rule that
// the only shared-state operations a real-time thread may perform are
// atomic loads and stores.
type AtomicFloat32 struct {
	bits atomic.Uint32
}

// NewAtomicFloat32 constructs an AtomicFloat32 holding v.
func NewAtomicFloat32(v float32) *AtomicFloat32 {
	a := &AtomicFloat32{}
	a.Store(v)
	return a
}

func (a *AtomicFloat32) Store(v float32) { a.bits.Store(math.Float32bits(v)) }
func (a *AtomicFloat32) Load() float32   { return math.Float32frombits(a.bits.Load()) }
