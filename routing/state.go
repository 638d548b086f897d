package routing

import "github.com/pcpanel/mixer/mixer"

// ChannelState is one channel's row in get_state() (spec.md §6).
type ChannelState struct {
	ID            string
	Label         string
	HardwareIndex int
	Volume        float32
	Muted         bool
	Active        bool
}

// BusState is one bus's row in get_state() (spec.md §6).
type BusState struct {
	ID         string
	Name       string
	SinkID     *string
	Membership []string
	Running    bool
}

// State is the full snapshot get_state() returns.
type State struct {
	Channels []ChannelState
	Buses    []BusState
	Outputs  []string
}

// GetState implements get_state(): channels, buses, and available outputs.
// Activity is read from whichever bus a channel is a member of first (in
// config order), matching spec.md §4.I's "primary bus" meter without
// hardcoding which bus id counts as primary.
func (m *Manager) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := State{}

	for _, cc := range m.cfg.InputChannels {
		active := false
		for _, bc := range m.cfg.MixBuses {
			bus, ok := m.buses[bc.ID]
			if !ok || bus.State() != mixer.StateRunning {
				continue
			}
			if a, found := mixer.NewMeter(bus).Activity(cc.ID); found {
				active = a
				break
			}
		}
		state.Channels = append(state.Channels, ChannelState{
			ID:            cc.ID,
			Label:         cc.ChannelName,
			HardwareIndex: cc.HardwareIndex,
			Volume:        cc.Volume,
			Muted:         cc.Muted,
			Active:        active,
		})
	}

	for _, bc := range m.cfg.MixBuses {
		bus, ok := m.buses[bc.ID]
		running := ok && bus.State() == mixer.StateRunning
		membership := make([]string, 0, len(bc.Channels))
		for _, mem := range bc.Channels {
			if mem.Enabled {
				membership = append(membership, mem.ChannelID)
			}
		}
		state.Buses = append(state.Buses, BusState{
			ID:         bc.ID,
			Name:       bc.Name,
			SinkID:     bc.OutputDeviceID,
			Membership: membership,
			Running:    running,
		})
	}

	if outputs, err := m.directory.List(); err == nil {
		for _, dev := range outputs.Outputs() {
			state.Outputs = append(state.Outputs, dev.ID)
		}
	}

	return state
}
