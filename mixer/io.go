// Package mixer implements the user-space mixing engine: Feeds that pull
// from a source and fan it out to the Input Channels subscribed to it,
// channels that meter and resample what they're given, and Buses that sum
// enabled channels and push the result to one sink.
package mixer

// Source is anything a Mixer Input Channel pulls raw audio from — normally
// a *loopback.Endpoint's input side, but any type with this shape (a
// synthetic sine generator, a decoded fixture) works, keeping this package
// free of any dependency on the loopback wire format.
type Source interface {
	SampleRate() int
	// ReadFrames fills dst (interleaved stereo float32) with up to
	// len(dst)/2 frames and returns the number of real frames delivered.
	ReadFrames(dst []float32) int
}

// Sink is anything a Mixer Bus renders its summed output to.
type Sink interface {
	SampleRate() int
	// WriteFrames delivers interleaved stereo float32 frames.
	WriteFrames(frames []float32)
}
