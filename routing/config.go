// Package routing implements the Routing Manager (spec.md §4.G): it owns
// the persisted configuration, wires Mixer Input Channels to Mixer Buses,
// dispatches hardware events, and exposes the control surface of §6.
package routing

import (
	"fmt"
	"strconv"
)

// MappingAction is the action a hardware index is bound to (spec.md §3).
type MappingAction string

const (
	ActionVolume     MappingAction = "volume"
	ActionMuteToggle MappingAction = "mute-toggle"
)

// ChannelConfig is one persisted input channel (spec.md §6 "inputChannels[]").
type ChannelConfig struct {
	ID            string `json:"id"`
	DeviceName    string `json:"deviceName"`
	ChannelName   string `json:"channelName"`
	HardwareIndex int    `json:"hardwareIndex"`
	Volume        float32 `json:"volume"`
	Muted         bool   `json:"muted"`
}

// BusChannelMembership is one channel's membership record within a bus
// (spec.md §6 "mixBuses[].channels[]").
type BusChannelMembership struct {
	ChannelID    string   `json:"channelId"`
	Enabled      bool     `json:"enabled"`
	GainOverride *float32 `json:"gainOverride,omitempty"`
}

// BusConfig is one persisted bus (spec.md §6 "mixBuses[]").
type BusConfig struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	OutputDeviceID *string                 `json:"outputDeviceId"`
	Channels       []BusChannelMembership  `json:"channels"`
}

// HardwareMapping binds one hardware index to an action on a channel
// (spec.md §3, §6 "hardwareMapping").
type HardwareMapping struct {
	Type     MappingAction `json:"type"`
	TargetID string        `json:"targetId"`
}

// Config is the whole persisted routing configuration (spec.md §6
// "Persisted config file").
type Config struct {
	InputChannels   []ChannelConfig            `json:"inputChannels"`
	MixBuses        []BusConfig                `json:"mixBuses"`
	HardwareMapping map[string]HardwareMapping `json:"hardwareMapping"`
}

// PersonalBusID and VoiceChatBusID are the two buses spec.md §6 "Defaults"
// requires: personal enables all nine input channels; voicechat starts
// empty.
const (
	PersonalBusID  = "personal"
	VoiceChatBusID = "voicechat"
)

// DefaultChannelCount is the number of hardware-mapped input channels
// spec.md §6 "Defaults" requires (hardware indices 0–8).
const DefaultChannelCount = 9

// DefaultConfig builds the configuration spec.md §6 "Defaults" describes:
// nine input channels with hardware indices 0–8, a personal bus enabling
// all nine with a null (OS-default) sink, an empty voicechat bus with a
// null sink, and every hardware index mapped to volume on its channel.
func DefaultConfig() *Config {
	cfg := &Config{
		HardwareMapping: make(map[string]HardwareMapping, DefaultChannelCount),
	}

	personal := BusConfig{ID: PersonalBusID, Name: "Personal"}
	voicechat := BusConfig{ID: VoiceChatBusID, Name: "Voice Chat"}

	for i := 0; i < DefaultChannelCount; i++ {
		id := fmt.Sprintf("ch%d", i+1)
		deviceName := defaultDeviceNameForIndex(i)
		cfg.InputChannels = append(cfg.InputChannels, ChannelConfig{
			ID:            id,
			DeviceName:    deviceName,
			ChannelName:   deviceName,
			HardwareIndex: i,
			Volume:        1.0,
			Muted:         false,
		})
		personal.Channels = append(personal.Channels, BusChannelMembership{ChannelID: id, Enabled: true})
		cfg.HardwareMapping[strconv.Itoa(i)] = HardwareMapping{Type: ActionVolume, TargetID: id}
	}

	cfg.MixBuses = []BusConfig{personal, voicechat}
	return cfg
}

func defaultDeviceNameForIndex(i int) string {
	// Matches loopback.DeviceNames ordering: K1..K5 then S1..S4.
	names := []string{
		"PCPanel K1", "PCPanel K2", "PCPanel K3", "PCPanel K4", "PCPanel K5",
		"PCPanel S1", "PCPanel S2", "PCPanel S3", "PCPanel S4",
	}
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("PCPanel Ch%d", i+1)
	}
	return names[i]
}

// Validate checks the invariants spec.md §3 requires of a Routing
// Configuration: channel ids are unique, and every mapping's target
// resolves to an existing channel.
func (c *Config) Validate() error {
	ids := make(map[string]bool, len(c.InputChannels))
	for _, ch := range c.InputChannels {
		if ids[ch.ID] {
			return fmt.Errorf("routing: duplicate channel id %q", ch.ID)
		}
		ids[ch.ID] = true
	}
	for idx, mapping := range c.HardwareMapping {
		if !ids[mapping.TargetID] {
			return fmt.Errorf("routing: hardware mapping %s targets unknown channel %q", idx, mapping.TargetID)
		}
	}
	for _, bus := range c.MixBuses {
		for _, mem := range bus.Channels {
			if !ids[mem.ChannelID] {
				return fmt.Errorf("routing: bus %s references unknown channel %q", bus.ID, mem.ChannelID)
			}
		}
	}
	return nil
}

func (c *Config) channelByID(id string) *ChannelConfig {
	for i := range c.InputChannels {
		if c.InputChannels[i].ID == id {
			return &c.InputChannels[i]
		}
	}
	return nil
}

func (c *Config) busByID(id string) *BusConfig {
	for i := range c.MixBuses {
		if c.MixBuses[i].ID == id {
			return &c.MixBuses[i]
		}
	}
	return nil
}

func effectiveGain(cc *ChannelConfig) float32 {
	if cc.Muted {
		return 0
	}
	return cc.Volume
}
