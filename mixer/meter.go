package mixer

// Level is a snapshot of one channel's metering state (spec.md §4.I).
type Level struct {
	Peak float32
	RMS  float32
}

// Meter is the pure read side over one Bus's channels: peak/RMS levels and
// recent-activity, safe to call from any non-real-time thread (it only
// reads atomics).
type Meter struct {
	bus *Bus
}

// NewMeter wraps bus's channels for external polling.
func NewMeter(bus *Bus) *Meter {
	return &Meter{bus: bus}
}

// Activity reports whether channelID has seen an above-threshold sample
// within the last ActivityHoldDuration. The second return is false if no
// such channel is a member of the wrapped bus.
func (m *Meter) Activity(channelID string) (active bool, found bool) {
	ch, ok := m.bus.channelByID(channelID)
	if !ok {
		return false, false
	}
	return ch.Active(), true
}

// Levels returns the current peak/RMS for every channel in the wrapped bus.
func (m *Meter) Levels() map[string]Level {
	channels := m.bus.Channels()
	out := make(map[string]Level, len(channels))
	for _, ch := range channels {
		out[ch.ID()] = Level{Peak: ch.Peak(), RMS: ch.RMS()}
	}
	return out
}
