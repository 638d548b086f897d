package loopback

import (
	"fmt"
	"sync"
)

// SupportedSampleRates is the discrete set of rates every virtual endpoint
// advertises, 48kHz preferred, matching the reference driver.
var SupportedSampleRates = []int{48000, 44100}

// Channels is fixed at stereo for every virtual endpoint (spec.md §3).
const Channels = 2

// Endpoint is one OS-visible virtual audio device: a paired output stream
// (apps write here) and input stream (readers, including the mixer, read
// here) connected only by a shared RingBuffer. It is the Go analogue of the
// reference driver's PCPanelDevice + LoopbackIOHandler + LoopbackControlHandler.
type Endpoint struct {
	uid  string
	name string

	mu         sync.Mutex
	sampleRate int
	running    bool

	ring *RingBuffer

	// readScratch backs ReadFrames. Reused across calls: only the one Feed
	// goroutine reading this endpoint ever calls ReadFrames, the same
	// single-reader contract the ring itself relies on, so no lock is needed.
	readScratch []byte
}

// NewEndpoint creates a virtual endpoint. The endpoint is not running (no
// IO) until Start is called.
func NewEndpoint(uid, name string, initialSampleRate int) *Endpoint {
	if initialSampleRate <= 0 {
		initialSampleRate = SupportedSampleRates[0]
	}
	return &Endpoint{
		uid:        uid,
		name:       name,
		sampleRate: initialSampleRate,
		ring:       NewRingBufferForRate(initialSampleRate),
	}
}

// UID returns the endpoint's stable identity.
func (e *Endpoint) UID() string { return e.uid }

// Name returns the endpoint's human-readable name.
func (e *Endpoint) Name() string { return e.name }

// SampleRate returns the endpoint's current nominal sample rate.
func (e *Endpoint) SampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRate
}

// SupportedSampleRates returns the rates this endpoint can be set to.
func (e *Endpoint) SupportedSampleRates() []int { return SupportedSampleRates }

// SetNominalSampleRate updates the endpoint's rate. It fails and leaves the
// prior rate in place if the requested rate is not supported. On success
// every stream's physical format is considered updated in lock-step (there
// is exactly one format here, shared by both streams).
func (e *Endpoint) SetNominalSampleRate(rate int) error {
	supported := false
	for _, r := range SupportedSampleRates {
		if r == rate {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("loopback: unsupported sample rate %d for endpoint %s", rate, e.uid)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampleRate = rate
	// Re-size the ring for the new rate; a running session's ring is
	// re-cleared by the next Start/Stop cycle, matching the reference's
	// "buffer zeroing is the only cancellation-equivalent" contract.
	e.ring = NewRingBufferForRate(rate)
	return nil
}

// Start transitions the endpoint into IO-running state: the ring is zeroed
// so no session ever replays stale audio.
func (e *Endpoint) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	e.ring.Clear()
}

// Stop transitions the endpoint out of IO-running state, zeroing the ring
// again for the same reason.
func (e *Endpoint) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.ring.Clear()
}

// IsRunning reports whether the endpoint currently has IO running.
func (e *Endpoint) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Ring returns the endpoint's shared loopback ring. Both the output-write
// callback and the input-read callback below, and any external reader
// (a Mixer Input Channel), use this directly.
func (e *Endpoint) Ring() *RingBuffer { return e.ring }

// OnWriteMixedOutput is the output stream's post-mix write callback: the OS
// hands us whatever the client application wrote, and we forward it into
// the loopback ring. Called from a real-time thread; must not block,
// allocate, or log.
func (e *Endpoint) OnWriteMixedOutput(bytes []byte) {
	e.ring.Write(bytes)
}

// OnReadClientInput is the input stream's client-read callback: whoever is
// reading from this device's input (a microphone consumer, or the mixer's
// Input Channel) gets whatever was most recently written to the output
// side. Called from a real-time thread; must not block, allocate, or log.
func (e *Endpoint) OnReadClientInput(dst []byte) int {
	return e.ring.Read(dst)
}
