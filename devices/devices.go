// Package devices is the Device Directory (spec.md §4.H): a query-only
// view of the OS's audio devices. The core only consumes it — enumeration,
// hotplug, and any native backend are external collaborators. This package
// therefore ships the query surface plus an in-memory Directory so the rest
// of the module (and its tests) never depend on a concrete OS binding.
package devices

// Device is the common identity shared by every audio device: a stable id,
// a human-readable name, and whether it is currently reachable.
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsOnline bool   `json:"isOnline"`

	HasOutputStream bool `json:"hasOutputStream"`
	HasInputStream  bool `json:"hasInputStream"`
}

// CanOutput reports whether apps can render audio to this device.
func (d Device) CanOutput() bool { return d.HasOutputStream }

// CanInput reports whether apps can capture audio from this device.
func (d Device) CanInput() bool { return d.HasInputStream }

// Devices is a filterable slice of Device.
type Devices []Device

// Outputs returns only devices that can play audio.
func (d Devices) Outputs() Devices {
	var out Devices
	for _, dev := range d {
		if dev.CanOutput() {
			out = append(out, dev)
		}
	}
	return out
}

// Inputs returns only devices that can capture audio.
func (d Devices) Inputs() Devices {
	var out Devices
	for _, dev := range d {
		if dev.CanInput() {
			out = append(out, dev)
		}
	}
	return out
}

// Online returns only devices currently reachable.
func (d Devices) Online() Devices {
	var out Devices
	for _, dev := range d {
		if dev.IsOnline {
			out = append(out, dev)
		}
	}
	return out
}

// ByID returns the device with the given id, if present.
func (d Devices) ByID(id string) (Device, bool) {
	for _, dev := range d {
		if dev.ID == id {
			return dev, true
		}
	}
	return Device{}, false
}

// Directory is the query-only capability spec.md §4.H requires: list all
// devices, resolve the current default output, and look up by exact name.
// The core never caches a Directory's results across calls; a caller that
// wants a snapshot takes one explicitly.
type Directory interface {
	List() (Devices, error)
	DefaultOutput() (Device, error)
	ByName(name string) (Device, bool, error)
}

// StaticDirectory is an in-memory Directory backed by a fixed device list,
// with one device optionally marked as the default output. It is the
// directory a host without a native enumeration backend wires in, and is
// what every test in this module uses.
type StaticDirectory struct {
	devices       Devices
	defaultOutput string // device ID, empty means "no default configured"
}

// NewStaticDirectory builds a directory from a fixed device list. If
// defaultOutputID is non-empty it must match one of the given devices'
// IDs; DefaultOutput will fail otherwise.
func NewStaticDirectory(devices Devices, defaultOutputID string) *StaticDirectory {
	return &StaticDirectory{devices: devices, defaultOutput: defaultOutputID}
}

// List returns every device known to this directory.
func (s *StaticDirectory) List() (Devices, error) {
	out := make(Devices, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

// DefaultOutput resolves the configured default output device.
func (s *StaticDirectory) DefaultOutput() (Device, error) {
	if s.defaultOutput == "" {
		return Device{}, errNoDefaultOutput
	}
	if dev, ok := s.devices.ByID(s.defaultOutput); ok {
		return dev, nil
	}
	return Device{}, errNoDefaultOutput
}

// ByName looks up a device by exact name match.
func (s *StaticDirectory) ByName(name string) (Device, bool, error) {
	for _, dev := range s.devices {
		if dev.Name == name {
			return dev, true, nil
		}
	}
	return Device{}, false, nil
}

// SetDefaultOutput updates which device ID DefaultOutput resolves to.
// Exercised by tests and by hosts that learn the OS default at startup.
func (s *StaticDirectory) SetDefaultOutput(id string) {
	s.defaultOutput = id
}
