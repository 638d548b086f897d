// Package dsp holds the sample-rate converter and the bus output limiter,
// the only signal processing this mixer performs beyond gain and summing.
package dsp

// Resampler linearly interpolates a stereo, interleaved float32 stream from
// one nominal rate to another with a fractional phase accumulator. It is
// not drift-compensating: it depends only on the two nominal rates handed
// to it at construction, never on measured clocks.
type Resampler struct {
	ratio float64 // in_rate / out_rate
	phase float64

	// last records the final input frame consumed by the previous call.
	// frameAt only falls back to it for a negative index, which the
	// non-negative phase never produces; continuity across calls comes from
	// the caller handing the unconsumed input frames back in.
	last     [2]float32
	hasLast  bool
	identity bool
}

// NewResampler builds a converter from inRate to outRate. When the rates
// are equal the converter degrades to a byte-for-byte copy.
func NewResampler(inRate, outRate int) *Resampler {
	r := &Resampler{}
	if inRate <= 0 || outRate <= 0 || inRate == outRate {
		r.identity = true
		r.ratio = 1
		return r
	}
	r.ratio = float64(inRate) / float64(outRate)
	return r
}

// Reset clears interpolation state, e.g. after a Bus stop/start cycle.
func (r *Resampler) Reset() {
	r.phase = 0
	r.hasLast = false
	r.last = [2]float32{}
}

// Ratio returns in_rate/out_rate.
func (r *Resampler) Ratio() float64 { return r.ratio }

// IsIdentity reports whether this converter is a no-op copy (equal rates).
func (r *Resampler) IsIdentity() bool { return r.identity }

// Process consumes interleaved stereo frames from in and produces exactly
// outFrames interleaved stereo frames into out (len(out) must be
// outFrames*2). It returns the number of input frames it consumed.
//
// For each output frame at phase p: i = floor(p), f = p - i,
// sample = in[i] + (in[i+1]-in[i])*f, then p += ratio. i+1 is clamped to
// the last valid input frame. After consuming k input frames the phase is
// decremented by k and never allowed to go negative.
func (r *Resampler) Process(in []float32, inFrames int, out []float32, outFrames int) (consumed int) {
	if outFrames <= 0 {
		return 0
	}
	if len(out) < outFrames*2 {
		panic("dsp: out slice too small for outFrames")
	}

	if r.identity {
		n := inFrames
		if n > outFrames {
			n = outFrames
		}
		copy(out[:n*2], in[:n*2])
		for i := n * 2; i < outFrames*2; i++ {
			out[i] = 0
		}
		return n
	}

	if inFrames <= 0 {
		for i := 0; i < outFrames*2; i++ {
			out[i] = 0
		}
		return 0
	}

	frameAt := func(idx int) [2]float32 {
		if idx < 0 {
			if r.hasLast {
				return r.last
			}
			return [2]float32{in[0], in[1]}
		}
		if idx >= inFrames {
			idx = inFrames - 1
		}
		return [2]float32{in[idx*2], in[idx*2+1]}
	}

	for o := 0; o < outFrames; o++ {
		i := int(r.phase)
		f := float32(r.phase - float64(i))

		a := frameAt(i)
		b := frameAt(i + 1)

		out[o*2] = a[0] + (b[0]-a[0])*f
		out[o*2+1] = a[1] + (b[1]-a[1])*f

		r.phase += r.ratio
	}

	consumedFrames := int(r.phase)
	if consumedFrames > inFrames {
		consumedFrames = inFrames
	}
	if consumedFrames > 0 {
		r.last = frameAt(consumedFrames - 1)
		r.hasLast = true
		r.phase -= float64(consumedFrames)
		if r.phase < 0 {
			r.phase = 0
		}
	}

	return consumedFrames
}
