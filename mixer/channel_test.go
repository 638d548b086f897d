package mixer

import (
	"testing"
	"time"

	"github.com/pcpanel/mixer/loopback"
)

func TestChannelDefaultsToUnityGainAndDisabled(t *testing.T) {
	ch := NewChannel("k1", "Knob 1", 48000)
	if ch.Gain() != 1 {
		t.Fatalf("expected default gain 1, got %v", ch.Gain())
	}
	if ch.Enabled() {
		t.Fatal("expected new channel to start disabled")
	}
	if ch.Active() {
		t.Fatal("expected new channel to report no activity")
	}
}

func TestChannelStartStopIsIdempotentAndReleasesRing(t *testing.T) {
	ch := NewChannel("k1", "Knob 1", 48000)
	if err := ch.Start(48000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ch.Start(48000); err != nil {
		t.Fatalf("second Start should be a no-op, got error: %v", err)
	}
	ch.Stop()
	ch.Stop() // idempotent
	if ch.ring != nil {
		t.Fatal("expected ring to be released after Stop")
	}
}

func TestChannelMeterComputesPeakRMSAndActivity(t *testing.T) {
	ch := NewChannel("k1", "Knob 1", 48000)
	frames := []float32{1.0, -1.0, 0.5, -0.5}
	ch.meter(frames, 2)

	if ch.Peak() != 1.0 {
		t.Fatalf("expected peak 1.0, got %v", ch.Peak())
	}
	if !ch.Active() {
		t.Fatal("expected activity after an above-threshold sample")
	}
}

func TestChannelMeterBelowThresholdReportsNoActivity(t *testing.T) {
	ch := NewChannel("k1", "Knob 1", 48000)
	frames := []float32{0.0002, -0.0002}
	ch.meter(frames, 1)
	if ch.Active() {
		t.Fatal("expected no activity below the -60dBFS threshold")
	}
}

func TestChannelReadOutputIsSilenceWhenDisabled(t *testing.T) {
	ch := NewChannel("k1", "Knob 1", 48000)
	if err := ch.Start(48000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ch.Stop()

	out := make([]float32, 20)
	ch.ReadOutput(out, 10)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("index %d: expected silence while disabled, got %v", i, v)
		}
	}
}

func TestChannelReadOutputAtEqualRatesIsPassthrough(t *testing.T) {
	ch := NewChannel("k1", "Knob 1", 48000)
	if err := ch.Start(48000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ch.Stop()
	ch.SetEnabled(true)

	frames := []float32{0.25, -0.25, 0.5, -0.5}
	bytes := make([]byte, len(frames)*4)
	loopback.EncodeFrames(bytes, frames)
	ch.ring.Write(bytes)

	out := make([]float32, 4)
	ch.ReadOutput(out, 2)
	for i := range frames {
		if out[i] != frames[i] {
			t.Fatalf("index %d: got %v want %v", i, out[i], frames[i])
		}
	}
}

func TestChannelReadOutputResamplesWhenRatesDiffer(t *testing.T) {
	ch := NewChannel("k1", "Knob 1", 24000)
	if err := ch.Start(48000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ch.Stop()
	ch.SetEnabled(true)

	if ch.converter == nil {
		t.Fatal("expected a converter to be installed for 24000 -> 48000")
	}

	frames := []float32{0.0, 0.0, 1.0, 1.0, 0.0, 0.0, -1.0, -1.0}
	bytes := make([]byte, len(frames)*4)
	loopback.EncodeFrames(bytes, frames)
	ch.ring.Write(bytes)

	out := make([]float32, 16)
	ch.ReadOutput(out, 8)
	if out[0] != frames[0] || out[1] != frames[1] {
		t.Fatalf("expected first output frame to equal first input frame, got (%v,%v)", out[0], out[1])
	}
}

// TestChannelReadOutputStreamingResampleDropsNoInputFrames exercises the
// pattern Bus.renderLoop actually uses: many small ReadOutput calls back
// to back at a fixed quantum, not one big call. A resampler that discards
// whatever it read but didn't consume this call runs the input ring dry
// before all of it is used, since the same frames are pulled out of the
// ring on every call regardless of what the previous call left behind.
func TestChannelReadOutputStreamingResampleDropsNoInputFrames(t *testing.T) {
	const inRate = 24000
	const outRate = 48000
	const quantumOut = 480 // 10ms at 48kHz
	const cycles = 100     // 1 second of output

	ch := NewChannel("k1", "Knob 1", inRate)
	if err := ch.Start(outRate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ch.Stop()
	ch.SetEnabled(true)

	inFrames := cycles * quantumOut / (outRate / inRate) // exactly 1 second at inRate
	frames := make([]float32, inFrames*2)
	for i := 0; i < inFrames; i++ {
		v := float32(i) / float32(inFrames)
		frames[i*2] = v
		frames[i*2+1] = v
	}
	bytes := make([]byte, len(frames)*4)
	loopback.EncodeFrames(bytes, frames)
	ch.ring.Write(bytes)

	out := make([]float32, quantumOut*2)
	for c := 0; c < cycles; c++ {
		ch.ReadOutput(out, quantumOut)
	}

	if u := ch.Underruns(); u != 0 {
		t.Fatalf("expected no underruns across %d streaming calls, got %d — input frames were read past what the resampler consumed", cycles, u)
	}
}

func TestFeedFansOutToChannelsInDifferentBuses(t *testing.T) {
	src := newSineSource(48000, 440, 0.5)
	feed := NewFeed(src)

	a := NewChannel("k1", "Knob 1", src.SampleRate())
	b := NewChannel("k1", "Knob 1", src.SampleRate())
	for _, ch := range []*Channel{a, b} {
		if err := ch.Start(48000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ch.SetEnabled(true)
		defer ch.Stop()
	}

	feed.Subscribe(a)
	feed.Subscribe(b)
	feed.Start()
	defer feed.Stop()

	time.Sleep(150 * time.Millisecond)

	if !a.Active() {
		t.Fatal("expected channel a to see activity from the shared feed")
	}
	if !b.Active() {
		t.Fatal("expected channel b to see activity from the shared feed")
	}
}
