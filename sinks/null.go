// Package sinks provides mixer.Sink implementations for the real output
// devices spec.md places outside the core's scope. Anything backed by an
// actual OS audio binding is an external collaborator (spec.md §1); these
// types give the Routing Manager something concrete to write to until a
// host wires in a real one, and give tests an inspectable destination.
package sinks

// NullSink discards every frame it is handed. It stands in for a real
// output device this pure-Go module has no native binding for.
type NullSink struct {
	id   string
	rate int
}

// NewNullSink builds a sink identified by id (an opaque device id, purely
// for diagnostics) rendering at rate.
func NewNullSink(id string, rate int) *NullSink {
	return &NullSink{id: id, rate: rate}
}

func (n *NullSink) ID() string      { return n.id }
func (n *NullSink) SampleRate() int { return n.rate }
func (n *NullSink) WriteFrames(frames []float32) {}
