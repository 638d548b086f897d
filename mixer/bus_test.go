package mixer

import (
	"math"
	"testing"
	"time"
)

func peakAmplitude(frames []float32) float32 {
	var peak float32
	for _, f := range frames {
		abs := f
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
	}
	return peak
}

// feedingChannel builds a Channel fed by its own Feed over a sine source,
// standing in for a Routing Manager wiring a channel to its virtual
// endpoint's feed.
func feedingChannel(t *testing.T, id, name string, freqHz float64, amplitude float32) *Channel {
	t.Helper()
	src := newSineSource(48000, freqHz, amplitude)
	ch := NewChannel(id, name, src.SampleRate())
	feed := NewFeed(src)
	feed.Subscribe(ch)
	feed.Start()
	t.Cleanup(feed.Stop)
	return ch
}

func TestBusStateMachineTransitions(t *testing.T) {
	b := NewBus("personal", "Personal", nil)
	if b.State() != StateCreated {
		t.Fatalf("expected Created, got %s", b.State())
	}
	if err := b.SetSink(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateConfigured {
		t.Fatalf("expected Configured, got %s", b.State())
	}

	sink := newCaptureSink(48000)
	if err := b.Start(sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateRunning {
		t.Fatalf("expected Running, got %s", b.State())
	}

	if err := b.SetSink(nil); err == nil {
		t.Fatal("expected an error changing sink while running")
	}

	b.Stop()
	if b.State() != StateStopped {
		t.Fatalf("expected Stopped, got %s", b.State())
	}

	if err := b.SetSink(nil); err != nil {
		t.Fatalf("unexpected error re-configuring from stopped: %v", err)
	}
	if b.State() != StateConfigured {
		t.Fatalf("expected Configured after re-sink, got %s", b.State())
	}
}

func TestBusSingleChannelPassthrough(t *testing.T) {
	b := NewBus("personal", "Personal", nil)
	ch := feedingChannel(t, "k1", "Knob 1", 440, 0.5) // -6 dBFS
	if err := b.AddChannel(ch, true, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch.SetGain(1.0)
	b.SetMasterVolume(1.0)

	if err := b.SetSink(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sink := newCaptureSink(48000)
	if err := b.Start(sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Stop()

	time.Sleep(150 * time.Millisecond)

	if sink.writeCount() == 0 {
		t.Fatal("expected the sink to have received at least one render cycle")
	}
	frames := sink.snapshot()
	peak := peakAmplitude(frames)
	if math.Abs(float64(peak)-0.5) > 0.01 {
		t.Fatalf("expected peak amplitude ~0.5 (-6dBFS), got %v", peak)
	}
	if !ch.Active() {
		t.Fatal("expected the channel to report activity throughout")
	}
}

func TestBusTwoChannelSum(t *testing.T) {
	b := NewBus("personal", "Personal", nil)
	amp := float32(0.25) // -12 dBFS
	ch1 := feedingChannel(t, "k1", "Knob 1", 440, amp)
	ch2 := feedingChannel(t, "k2", "Knob 2", 880, amp)
	if err := b.AddChannel(ch1, true, nil); err != nil {
		t.Fatal(err)
	}
	if err := b.AddChannel(ch2, true, nil); err != nil {
		t.Fatal(err)
	}

	if err := b.SetSink(nil); err != nil {
		t.Fatal(err)
	}
	sink := newCaptureSink(48000)
	if err := b.Start(sink); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	time.Sleep(150 * time.Millisecond)

	frames := sink.snapshot()
	peak := peakAmplitude(frames)
	// Two in-phase-varying sines each at 0.25 sum to at most 0.5, never
	// clipping (soft clip only engages above 1.0).
	if peak <= 0 || peak > 0.5+0.01 {
		t.Fatalf("expected summed peak in (0, 0.5], got %v", peak)
	}
}

func TestBusMutePropagationDropsPeakBelowNoiseFloor(t *testing.T) {
	b := NewBus("personal", "Personal", nil)
	ch := feedingChannel(t, "k1", "Knob 1", 1000, 1.0)
	if err := b.AddChannel(ch, true, nil); err != nil {
		t.Fatal(err)
	}

	if err := b.SetSink(nil); err != nil {
		t.Fatal(err)
	}
	sink := newCaptureSink(48000)
	if err := b.Start(sink); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	time.Sleep(60 * time.Millisecond)

	// Simulate the Routing Manager's mute broadcast: effective gain -> 0.
	ch.SetGain(0)
	sink.mu.Lock()
	sink.frames = sink.frames[:0]
	sink.mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	frames := sink.snapshot()
	if len(frames) == 0 {
		t.Fatal("expected at least one render cycle after mute")
	}
	peak := peakAmplitude(frames)
	if peak > 0.0001 {
		t.Fatalf("expected near-silence after mute, got peak %v", peak)
	}
}

func TestBusCannotAddChannelWhileRunning(t *testing.T) {
	b := NewBus("personal", "Personal", nil)
	if err := b.SetSink(nil); err != nil {
		t.Fatal(err)
	}
	sink := newCaptureSink(48000)
	if err := b.Start(sink); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	ch := feedingChannel(t, "k1", "Knob 1", 440, 0.5)
	if err := b.AddChannel(ch, true, nil); err == nil {
		t.Fatal("expected an error adding a channel to a running bus")
	}
}

func TestMeterActivityAndLevels(t *testing.T) {
	b := NewBus("personal", "Personal", nil)
	ch := feedingChannel(t, "k1", "Knob 1", 440, 0.5)
	if err := b.AddChannel(ch, true, nil); err != nil {
		t.Fatal(err)
	}
	if err := b.SetSink(nil); err != nil {
		t.Fatal(err)
	}
	sink := newCaptureSink(48000)
	if err := b.Start(sink); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	time.Sleep(60 * time.Millisecond)

	m := NewMeter(b)
	active, found := m.Activity("k1")
	if !found || !active {
		t.Fatalf("expected k1 to be found and active, found=%v active=%v", found, active)
	}
	levels := m.Levels()
	lvl, ok := levels["k1"]
	if !ok {
		t.Fatal("expected a level entry for k1")
	}
	if lvl.Peak <= 0 {
		t.Fatalf("expected a nonzero peak, got %v", lvl.Peak)
	}
}
