package routing

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pcpanel/mixer/devices"
	"github.com/pcpanel/mixer/loopback"
	"github.com/pcpanel/mixer/mixer"
	"github.com/pcpanel/mixer/sinks"
)

// ChannelLabelMaxCodePoints is spec.md §6's set_channel_label limit.
const ChannelLabelMaxCodePoints = 32

// Manager owns the persisted Config, wires Mixer Input Channels to Mixer
// Buses through a Plugin Host's virtual endpoints, dispatches hardware
// events, and exposes the control surface of spec.md §6.
type Manager struct {
	id uuid.UUID

	mu  sync.Mutex
	cfg *Config

	configPath string
	saver      *debouncedSaver

	host      *loopback.Host
	directory devices.Directory

	errorHandler mixer.ErrorHandler
	queue        *mutationQueue

	buses            map[string]*mixer.Bus
	channelInstances map[string]map[string]*mixer.Channel // channelID -> busID -> instance
	feeds            map[string]*mixer.Feed               // endpoint UID -> the one reader of that endpoint
	customSinks      map[string]mixer.Sink                // deviceID -> sink, for hosts/tests wiring real sinks in
}

// NewManager builds a Manager over cfg, backed by host's virtual endpoints
// and directory's device queries. If errorHandler is nil, a
// mixer.DefaultErrorHandler is used.
func NewManager(cfg *Config, configPath string, host *loopback.Host, directory devices.Directory, errorHandler mixer.ErrorHandler) *Manager {
	if errorHandler == nil {
		errorHandler = &mixer.DefaultErrorHandler{}
	}
	m := &Manager{
		id:               uuid.New(),
		cfg:              cfg,
		configPath:       configPath,
		host:             host,
		directory:        directory,
		errorHandler:     errorHandler,
		queue:            newMutationQueue(64),
		buses:            make(map[string]*mixer.Bus),
		channelInstances: make(map[string]map[string]*mixer.Channel),
		feeds:            make(map[string]*mixer.Feed),
		customSinks:      make(map[string]mixer.Sink),
	}
	m.saver = newDebouncedSaver(DefaultSaveDebounce, m.saveNow)
	return m
}

// ID is the Manager's own instance identity (spec.md §9 "one per app
// instance"), matching the teacher's Engine.id pattern.
func (m *Manager) ID() uuid.UUID { return m.id }

// RegisterSink lets a host (or a test) bind a concrete mixer.Sink to a
// device id, so resolveSink has something better than sinks.NullSink to
// hand a bus. Device enumeration and native audio binding are external
// collaborators (spec.md §1); this is the seam a host uses to supply one.
func (m *Manager) RegisterSink(deviceID string, sink mixer.Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customSinks[deviceID] = sink
}

// Initialize implements spec.md §4.G "On initialize": build the two buses,
// populate membership, apply gain/mute/enabled, and start every bus that
// has at least one enabled member.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.cfg.MixBuses {
		bc := &m.cfg.MixBuses[i]
		bus := mixer.NewBus(bc.ID, bc.Name, m.errorHandler)
		m.buses[bc.ID] = bus

		for _, mem := range bc.Channels {
			cc := m.cfg.channelByID(mem.ChannelID)
			if cc == nil {
				m.errorHandler.HandleError(fmt.Errorf("routing: bus %s: membership references unknown channel %q", bc.ID, mem.ChannelID))
				continue
			}
			if err := m.attachChannelLocked(bus, cc, mem.Enabled, mem.GainOverride); err != nil {
				m.errorHandler.HandleError(err)
			}
		}

		if err := bus.SetSink(bc.OutputDeviceID); err != nil {
			m.errorHandler.HandleError(err)
			continue
		}

		if !bus.HasEnabledMembers() {
			// spec.md §4.G: if a bus has no enabled members at initialize,
			// don't start it, but keep its config; SetChannelInMix brings
			// it up later (see the Open Question resolution in DESIGN.md).
			continue
		}
		if err := m.ensureBusStartedLocked(bus, bc); err != nil {
			m.errorHandler.HandleError(err)
		}
	}

	m.queue.Start()
	return nil
}

// Shutdown stops every bus and feed, closes the op queue (mutations still
// waiting in it are not run), and flushes any pending save.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	buses := make([]*mixer.Bus, 0, len(m.buses))
	for _, b := range m.buses {
		buses = append(buses, b)
	}
	feeds := make([]*mixer.Feed, 0, len(m.feeds))
	for _, f := range m.feeds {
		feeds = append(feeds, f)
	}
	m.mu.Unlock()

	for _, b := range buses {
		b.Stop()
	}
	for _, f := range feeds {
		f.Stop()
	}
	m.queue.Close()
	m.saver.Flush()
}

// attachChannelLocked builds a mixer.Channel over cc's backing virtual
// endpoint and adds it as a member of bus. The endpoint may already back a
// channel instance in another bus, so reading it is delegated to a shared
// Feed rather than done directly by the new Channel (spec.md §9: the same
// physical input can be routed into more than one bus at once, but a
// virtual endpoint's ring has exactly one reader). Caller holds m.mu.
func (m *Manager) attachChannelLocked(bus *mixer.Bus, cc *ChannelConfig, enabled bool, gainOverride *float32) error {
	endpoint, ok := m.host.ByName(cc.DeviceName)
	if !ok {
		return fmt.Errorf("routing: channel %s: no virtual endpoint named %q", cc.ID, cc.DeviceName)
	}
	feed := m.feedForLocked(endpoint)

	ch := mixer.NewChannel(cc.ID, cc.ChannelName, endpoint.SampleRate())
	ch.SetGain(effectiveGain(cc))
	if err := bus.AddChannel(ch, enabled, gainOverride); err != nil {
		return err
	}
	feed.Subscribe(ch)
	feed.Start()

	if m.channelInstances[cc.ID] == nil {
		m.channelInstances[cc.ID] = make(map[string]*mixer.Channel)
	}
	m.channelInstances[cc.ID][bus.ID()] = ch
	return nil
}

// feedForLocked returns the shared Feed for endpoint, creating it the
// first time any channel needs to read from it. Caller holds m.mu.
func (m *Manager) feedForLocked(endpoint *loopback.Endpoint) *mixer.Feed {
	if f, ok := m.feeds[endpoint.UID()]; ok {
		return f
	}
	f := mixer.NewFeed(endpoint)
	m.feeds[endpoint.UID()] = f
	return f
}

// resolveSink turns a bus id and an optional device id into a concrete
// mixer.Sink: the Voice Chat bus always renders to the Voice Chat virtual
// endpoint (so its input side reaches apps as a microphone, spec.md §1);
// anything else uses a caller-registered sink if one was wired in via
// RegisterSink, or a discarding sinks.NullSink for a real, online device
// with no sink wired yet. A device id that resolves to neither is an
// error — device-not-found, per spec.md §7 — rather than a silent NullSink.
func (m *Manager) resolveSink(busID string, deviceID *string) (mixer.Sink, error) {
	if busID == VoiceChatBusID {
		return m.host.VoiceChat(), nil
	}

	id := ""
	explicit := deviceID != nil
	if explicit {
		id = *deviceID
	} else {
		dev, err := m.directory.DefaultOutput()
		if err != nil {
			return nil, fmt.Errorf("routing: resolving default output for bus %s: %w", busID, err)
		}
		id = dev.ID
	}

	if sink, ok := m.customSinks[id]; ok {
		return sink, nil
	}

	// A caller-registered custom sink stands in for a device the directory
	// doesn't know about (tests, and hosts that inject a synthetic sink), so
	// only an id that matches neither a custom sink nor a known device is a
	// genuine device-not-found — spec.md §7 wants that to fail resolution,
	// not silently discard audio into a NullSink.
	devs, err := m.directory.List()
	if err != nil {
		return nil, fmt.Errorf("routing: listing devices for bus %s: %w", busID, err)
	}
	dev, ok := devs.ByID(id)
	if !ok {
		return nil, fmt.Errorf("routing: bus %s: device %s not found", busID, id)
	}
	if !dev.IsOnline {
		return nil, fmt.Errorf("routing: bus %s: device %s is offline", busID, id)
	}

	return sinks.NewNullSink(id, loopback.SupportedSampleRates[0]), nil
}

// ensureBusStartedLocked moves bus from Configured/Stopped to Running,
// resolving its sink. A resolution or start failure is handled per
// spec.md §7 "Device-not-found at start": logged once, bus stays Stopped,
// the rest of the system runs.
func (m *Manager) ensureBusStartedLocked(bus *mixer.Bus, bc *BusConfig) error {
	if bus.State() == mixer.StateRunning {
		return nil
	}
	if bus.State() != mixer.StateConfigured {
		if err := bus.SetSink(bc.OutputDeviceID); err != nil {
			return err
		}
	}
	sink, err := m.resolveSink(bc.ID, bc.OutputDeviceID)
	if err != nil {
		m.errorHandler.HandleError(fmt.Errorf("routing: bus %s: %w", bc.ID, err))
		return nil
	}
	if err := bus.Start(sink); err != nil {
		return fmt.Errorf("routing: bus %s: %w", bc.ID, err)
	}
	return nil
}

// dispatch serializes fn through the mutation queue and blocks until it
// has run, giving control-surface callers the synchronous ok/err spec.md
// §5 requires while still executing every topology mutation from one
// goroutine.
func (m *Manager) dispatch(fn func() error) error {
	return m.queue.Dispatch(fn)
}

func (m *Manager) scheduleSaveLocked() {
	m.saver.Schedule()
}

func (m *Manager) saveNow() {
	m.mu.Lock()
	cfg := m.cfg
	path := m.configPath
	m.mu.Unlock()

	if path == "" {
		return
	}
	if err := SaveConfig(path, cfg); err != nil {
		// spec.md §7: persistence failure logs and does not abort; the
		// in-memory config remains authoritative until the next attempt.
		m.errorHandler.HandleError(fmt.Errorf("routing: saving config: %w", err))
	}
}

// SetChannelLabel implements set_channel_label(id, text).
func (m *Manager) SetChannelLabel(id, text string) error {
	if utf8.RuneCountInString(text) > ChannelLabelMaxCodePoints {
		return fmt.Errorf("routing: label exceeds %d code points", ChannelLabelMaxCodePoints)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := m.cfg.channelByID(id)
	if cc == nil {
		return fmt.Errorf("routing: unknown channel %q", id)
	}
	cc.ChannelName = text
	m.scheduleSaveLocked()
	return nil
}

// SetChannelVolume implements set_channel_volume(id, v).
func (m *Manager) SetChannelVolume(id string, v float32) error {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := m.cfg.channelByID(id)
	if cc == nil {
		return fmt.Errorf("routing: unknown channel %q", id)
	}
	cc.Volume = v
	m.broadcastGainLocked(id, effectiveGain(cc))
	m.scheduleSaveLocked()
	return nil
}

// SetChannelMuted implements set_channel_muted(id, b).
func (m *Manager) SetChannelMuted(id string, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := m.cfg.channelByID(id)
	if cc == nil {
		return fmt.Errorf("routing: unknown channel %q", id)
	}
	cc.Muted = muted
	m.broadcastGainLocked(id, effectiveGain(cc))
	m.scheduleSaveLocked()
	return nil
}

func (m *Manager) broadcastGainLocked(channelID string, gain float32) {
	for _, ch := range m.channelInstances[channelID] {
		ch.SetGain(gain)
	}
}

// SetChannelInMix implements set_channel_in_mix(bus, id, b), including the
// Open Question resolution: a bus with zero enabled members is stopped,
// not deleted, and a bus that doesn't exist yet or has zero members is
// started (or created) the moment a channel is enabled in it.
func (m *Manager) SetChannelInMix(busID, channelID string, enabled bool) error {
	return m.dispatch(func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.setChannelInMixLocked(busID, channelID, enabled)
	})
}

func (m *Manager) setChannelInMixLocked(busID, channelID string, enabled bool) error {
	cc := m.cfg.channelByID(channelID)
	if cc == nil {
		return fmt.Errorf("routing: unknown channel %q", channelID)
	}
	bc := m.cfg.busByID(busID)
	if bc == nil {
		return fmt.Errorf("routing: unknown bus %q", busID)
	}

	bus, hasBus := m.buses[busID]
	if !hasBus {
		bus = mixer.NewBus(bc.ID, bc.Name, m.errorHandler)
		m.buses[busID] = bus
	}

	wasRunning := bus.State() == mixer.StateRunning
	if wasRunning {
		bus.Stop()
	}

	_, hasMember := m.channelInstances[channelID][busID]
	if !hasMember {
		if enabled {
			if err := m.attachChannelLocked(bus, cc, true, nil); err != nil {
				return err
			}
			m.upsertMembershipLocked(bc, channelID, true, nil)
		}
	} else {
		if err := bus.SetChannelEnabled(channelID, enabled); err != nil {
			return err
		}
		m.upsertMembershipLocked(bc, channelID, enabled, nil)
	}

	if bus.HasEnabledMembers() {
		if err := m.ensureBusStartedLocked(bus, bc); err != nil {
			return err
		}
	}
	// Zero enabled members: bus already Stopped above (or was never
	// running), config retained — matches the Open Question resolution.

	m.scheduleSaveLocked()
	return nil
}

func (m *Manager) upsertMembershipLocked(bc *BusConfig, channelID string, enabled bool, gainOverride *float32) {
	for i := range bc.Channels {
		if bc.Channels[i].ChannelID == channelID {
			bc.Channels[i].Enabled = enabled
			bc.Channels[i].GainOverride = gainOverride
			return
		}
	}
	bc.Channels = append(bc.Channels, BusChannelMembership{ChannelID: channelID, Enabled: enabled, GainOverride: gainOverride})
}

// SetBusSink implements set_bus_sink(bus, device_id?): the "atomic switch
// output" operation of spec.md §4.F/§4.G.
func (m *Manager) SetBusSink(busID string, deviceID *string) error {
	return m.dispatch(func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.setBusSinkLocked(busID, deviceID)
	})
}

func (m *Manager) setBusSinkLocked(busID string, deviceID *string) error {
	bus, ok := m.buses[busID]
	if !ok {
		return fmt.Errorf("routing: unknown bus %q", busID)
	}
	bc := m.cfg.busByID(busID)
	if bc == nil {
		return fmt.Errorf("routing: unknown bus %q", busID)
	}

	wasRunning := bus.State() == mixer.StateRunning
	if wasRunning {
		bus.Stop()
	}

	bc.OutputDeviceID = deviceID
	if err := bus.SetSink(deviceID); err != nil {
		return err
	}
	m.scheduleSaveLocked()

	if !wasRunning {
		return nil
	}

	sink, err := m.resolveSink(busID, deviceID)
	if err != nil {
		return fmt.Errorf("routing: bus %s: resolving sink: %w", busID, err)
	}
	if err := bus.Start(sink); err != nil {
		return fmt.Errorf("routing: bus %s: restarting after sink switch: %w", busID, err)
	}
	return nil
}

// OnHardwareEvent implements on_hardware_event(idx, value) (spec.md §4.G):
// value is 0-255 for a volume mapping, and any nonzero value counts as
// "pressed" for a mute-toggle mapping.
func (m *Manager) OnHardwareEvent(index int, value int) {
	_ = m.dispatch(func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.applyHardwareEventLocked(index, value)
	})
}

func (m *Manager) applyHardwareEventLocked(index int, value int) error {
	mapping, ok := m.cfg.HardwareMapping[fmt.Sprintf("%d", index)]
	if !ok {
		m.errorHandler.HandleError(fmt.Errorf("routing: no mapping for hardware index %d", index))
		return nil
	}
	cc := m.cfg.channelByID(mapping.TargetID)
	if cc == nil {
		m.errorHandler.HandleError(fmt.Errorf("routing: hardware index %d maps to unknown channel %q", index, mapping.TargetID))
		return nil
	}

	switch mapping.Type {
	case ActionVolume:
		v := float32(value) / 255
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		cc.Volume = v
	case ActionMuteToggle:
		if value != 0 { // "pressed"
			cc.Muted = !cc.Muted
		} else {
			return nil
		}
	default:
		m.errorHandler.HandleError(fmt.Errorf("routing: unknown mapping action %q for index %d", mapping.Type, index))
		return nil
	}

	m.broadcastGainLocked(cc.ID, effectiveGain(cc))
	m.scheduleSaveLocked()
	return nil
}

// ListOutputs implements list_outputs().
func (m *Manager) ListOutputs() (devices.Devices, error) {
	all, err := m.directory.List()
	if err != nil {
		return nil, fmt.Errorf("routing: listing outputs: %w", err)
	}
	return all.Outputs(), nil
}
