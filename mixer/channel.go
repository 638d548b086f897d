package mixer

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pcpanel/mixer/dsp"
	"github.com/pcpanel/mixer/loopback"
)

// ActivityThreshold is the linear amplitude spec.md §4.E calls "−60 dBFS
// (≈ 0.001)": any sample above this magnitude counts as activity.
const ActivityThreshold = 0.001

// ActivityHoldDuration is how long activity() stays true after the last
// above-threshold sample (spec.md §4.I, §8).
const ActivityHoldDuration = 500 * time.Millisecond

// ChannelRingSeconds sizes a channel's own ring, distinct from the
// plugin-side loopback ring it reads from (spec.md §3, §9).
const ChannelRingSeconds = 10

// renderQuantum is the callback cadence this pure-Go engine drives itself
// with, standing in for the OS audio server's IOProc callback (there is no
// real hardware clock to be driven by).
const renderQuantum = 10 * time.Millisecond

// processStart anchors last_activity_ns to a single monotonic origin for
// the process lifetime, so plain int64 comparisons are safe across goroutines.
var processStart = time.Now()

func monotonicNanos() int64 { return int64(time.Since(processStart)) }

// Channel is one Mixer Input Channel (spec.md §4.E): it receives chunks
// deposited by a Feed (the single reader of a source, since the same
// virtual endpoint can back a channel instance in more than one bus),
// meters what it's given, and buffers it in its own ring for a Bus's
// render loop to pull from at the bus's rate.
type Channel struct {
	id   string
	name string

	gain    AtomicFloat32 // effective gain, mute already folded in by the caller
	enabled atomic.Bool

	mu        sync.Mutex
	running   bool
	inputRate int
	ring      *loopback.RingBuffer
	converter *dsp.Resampler

	// carryIn holds decoded-but-unconsumed input frames left over from the
	// previous ReadOutput call. converter.Process rarely consumes an exact
	// integer number of the frames it's handed (its phase accumulator lands
	// wherever the ratio puts it), so anything popped off the ring but not
	// consumed this call is carried here instead of being read past and lost.
	carryIn  []float32
	carryLen int

	depositScratch []byte // owned by whichever Feed goroutine deposits into this channel
	scratchBytes   []byte
	scratchIn      []float32

	peak           AtomicFloat32
	rms            AtomicFloat32
	lastActivityNs atomic.Int64
}

// NewChannel builds a channel fed at inputRate. It starts disabled at
// unity gain; a Routing Manager sets the real values before enabling it.
func NewChannel(id, name string, inputRate int) *Channel {
	c := &Channel{id: id, name: name, inputRate: inputRate}
	c.gain.Store(1)
	c.lastActivityNs.Store(math.MinInt64 / 2)
	return c
}

func (c *Channel) ID() string   { return c.id }
func (c *Channel) Name() string { return c.name }

func (c *Channel) SetGain(v float32) { c.gain.Store(v) }
func (c *Channel) Gain() float32     { return c.gain.Load() }

func (c *Channel) SetEnabled(b bool) { c.enabled.Store(b) }
func (c *Channel) Enabled() bool     { return c.enabled.Load() }

func (c *Channel) Peak() float32 { return c.peak.Load() }
func (c *Channel) RMS() float32  { return c.rms.Load() }

// Underruns is the running count of ring reads made by ReadOutput that
// found the ring empty; a read that returns some real data short of what
// was requested is not counted. 0 while the channel isn't running.
func (c *Channel) Underruns() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ring == nil {
		return 0
	}
	return c.ring.Underruns()
}

// Active reports whether this channel has seen an above-threshold sample
// within the last ActivityHoldDuration.
func (c *Channel) Active() bool {
	return monotonicNanos()-c.lastActivityNs.Load() < int64(ActivityHoldDuration)
}

// Start prepares the channel to receive deposits from its Feed: it sizes a
// ring for at least ChannelRingSeconds at the channel's input rate and
// installs a Converter if sinkRate differs from that rate.
func (c *Channel) Start(sinkRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if c.inputRate <= 0 {
		return fmt.Errorf("mixer: channel %s has invalid input rate %d", c.id, c.inputRate)
	}
	c.ring = loopback.NewRingBuffer(c.inputRate * ChannelRingSeconds)
	if c.inputRate != sinkRate {
		c.converter = dsp.NewResampler(c.inputRate, sinkRate)
	} else {
		c.converter = nil
	}
	c.running = true
	return nil
}

// Stop releases the channel's ring and converter. Deposits arriving after
// Stop are dropped (deposit checks for a nil ring).
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.ring = nil
	c.converter = nil
	c.carryLen = 0
}

// deposit is the real-time-thread-A analogue of spec.md §4.E: a Feed calls
// this once per cadence with the chunk it just read from the shared
// source, and this channel meters it and buffers it in its own ring.
// Called from exactly one goroutine per Feed, so depositScratch needs no
// locking of its own.
func (c *Channel) deposit(frames []float32, n int) {
	c.meter(frames, n)

	c.mu.Lock()
	ring := c.ring
	c.mu.Unlock()
	if ring == nil {
		return
	}

	need := len(frames) * loopback.BytesPerFrame / 2
	if cap(c.depositScratch) < need {
		c.depositScratch = make([]byte, need)
	} else {
		c.depositScratch = c.depositScratch[:need]
	}
	loopback.EncodeFrames(c.depositScratch, frames)
	ring.Write(c.depositScratch)
}

// meter computes peak/RMS across the n real frames delivered (the rest of
// frames is silence from a short read) and stamps activity, matching
// spec.md §4.E exactly.
func (c *Channel) meter(frames []float32, n int) {
	if n <= 0 {
		c.peak.Store(0)
		c.rms.Store(0)
		return
	}
	samples := frames[:n*2]
	var peak float32
	var sumSquares float64
	above := false
	for _, s := range samples {
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
		if abs > ActivityThreshold {
			above = true
		}
		sumSquares += float64(s) * float64(s)
	}
	rms := float32(math.Sqrt(sumSquares / float64(len(samples))))

	c.peak.Store(peak)
	c.rms.Store(rms)
	if above {
		c.lastActivityNs.Store(monotonicNanos())
	}
}

// ReadOutput is the real-time-thread-B side (spec.md §4.E): it fills out
// (interleaved stereo, len(out) == outFrames*2) with resampled audio from
// this channel's ring, or silence if the channel is disabled or not
// running. Scratch buffers are grown lazily and reused, keeping this off
// the allocator's hot path after the first few calls at a given chunk size.
// Called from exactly one goroutine (a Bus's render loop), so — like
// deposit — it only holds c.mu long enough to snapshot the ring and
// converter, doing the actual read/decode/resample work outside the lock.
func (c *Channel) ReadOutput(out []float32, outFrames int) {
	c.mu.Lock()
	ring := c.ring
	converter := c.converter
	enabled := c.enabled.Load()
	c.mu.Unlock()

	if !enabled || ring == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}

	if converter == nil || converter.IsIdentity() {
		nBytes := outFrames * loopback.BytesPerFrame
		c.growScratchBytes(nBytes)
		buf := c.scratchBytes[:nBytes]
		ring.Read(buf)
		loopback.DecodeFrames(out, buf)
		return
	}

	needIn := int(math.Ceil(float64(outFrames)*converter.Ratio())) + 2
	newFrames := needIn - c.carryLen
	if newFrames < 0 {
		newFrames = 0
	}
	totalFrames := c.carryLen + newFrames

	// Grow scratchIn to hold carry + freshly-read frames, then reassert the
	// carry: growScratchIn may hand back a differently-backed slice.
	c.growScratchIn(totalFrames * 2)
	copy(c.scratchIn, c.carryIn[:c.carryLen*2])

	if newFrames > 0 {
		c.growScratchBytes(newFrames * loopback.BytesPerFrame)
		inBytes := c.scratchBytes[:newFrames*loopback.BytesPerFrame]
		ring.Read(inBytes)
		loopback.DecodeFrames(c.scratchIn[c.carryLen*2:totalFrames*2], inBytes)
	}

	consumed := converter.Process(c.scratchIn[:totalFrames*2], totalFrames, out, outFrames)

	leftover := totalFrames - consumed
	if cap(c.carryIn) < leftover*2 {
		c.carryIn = make([]float32, leftover*2)
	} else {
		c.carryIn = c.carryIn[:leftover*2]
	}
	copy(c.carryIn, c.scratchIn[consumed*2:totalFrames*2])
	c.carryLen = leftover
}

func (c *Channel) growScratchBytes(n int) {
	if cap(c.scratchBytes) < n {
		c.scratchBytes = make([]byte, n)
	} else {
		c.scratchBytes = c.scratchBytes[:n]
	}
}

func (c *Channel) growScratchIn(n int) {
	if cap(c.scratchIn) < n {
		c.scratchIn = make([]float32, n)
	} else {
		c.scratchIn = c.scratchIn[:n]
	}
}
