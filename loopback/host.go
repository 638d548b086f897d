package loopback

import (
	"fmt"
	"sync"
)

// PluginTypeUUID is the well-known type identifier the OS presents to the
// plugin entry point. Mirrors CoreAudio's kAudioServerPlugInTypeUUID role:
// any other UUID is treated as a negative probe, not an error.
const PluginTypeUUID = "com.pcpanel.audioserverplugin"

// DeviceNames is the reference driver's channel naming: five knobs, four
// sliders. A hardware profile with a different control layout can override
// these via HostConfig.DeviceNames.
var DeviceNames = []string{
	"PCPanel K1", "PCPanel K2", "PCPanel K3", "PCPanel K4", "PCPanel K5",
	"PCPanel S1", "PCPanel S2", "PCPanel S3", "PCPanel S4",
}

// VoiceChatName is the name of the tenth, bidirectional endpoint whose
// input side is surfaced to applications as a microphone.
const VoiceChatName = "PCPanel Voice Chat"

// HostConfig configures endpoint construction at plugin load.
type HostConfig struct {
	DeviceNames       []string // defaults to DeviceNames
	VoiceChatName     string   // defaults to VoiceChatName
	InitialSampleRate int      // defaults to 48000
	UIDPrefix         string   // defaults to "com.pcpanel.audio.device."
}

// Host owns every Virtual Endpoint for the plugin's lifetime. It is
// constructed exactly once per load; the entry point returns the same
// reference on every subsequent call, matching spec.md §4.C/§5.
type Host struct {
	mu        sync.Mutex
	endpoints []*Endpoint
	voiceChat *Endpoint
	byUID     map[string]*Endpoint
}

var (
	globalHostMu sync.Mutex
	globalHost   *Host
)

// Entry is the plugin boundary entry function (spec.md §6): it verifies the
// type UUID and returns the process-wide Host, constructing it once. A
// mismatched UUID is a normal negative probe, not an error: it returns nil.
func Entry(typeUUID string) *Host {
	if typeUUID != PluginTypeUUID {
		return nil
	}

	globalHostMu.Lock()
	defer globalHostMu.Unlock()

	if globalHost != nil {
		return globalHost
	}

	globalHost = NewHost(HostConfig{})
	return globalHost
}

// NewHost constructs N one-way endpoints plus the bidirectional Voice Chat
// endpoint. Exported directly (in addition to Entry) so callers that are not
// modeling the OS plugin boundary can build a Host without a UUID dance.
func NewHost(cfg HostConfig) *Host {
	names := cfg.DeviceNames
	if len(names) == 0 {
		names = DeviceNames
	}
	vcName := cfg.VoiceChatName
	if vcName == "" {
		vcName = VoiceChatName
	}
	rate := cfg.InitialSampleRate
	if rate <= 0 {
		rate = SupportedSampleRates[0]
	}
	prefix := cfg.UIDPrefix
	if prefix == "" {
		prefix = "com.pcpanel.audio.device."
	}

	h := &Host{
		byUID: make(map[string]*Endpoint, len(names)+1),
	}

	for i, name := range names {
		uid := fmt.Sprintf("%s%d", prefix, i+1)
		ep := NewEndpoint(uid, name, rate)
		h.endpoints = append(h.endpoints, ep)
		h.byUID[uid] = ep
	}

	vc := NewEndpoint("com.pcpanel.audio.voicechat", vcName, rate)
	h.voiceChat = vc
	h.byUID[vc.uid] = vc

	return h
}

// Endpoints returns the N one-way endpoints, in creation order.
func (h *Host) Endpoints() []*Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Endpoint, len(h.endpoints))
	copy(out, h.endpoints)
	return out
}

// VoiceChat returns the bidirectional Voice Chat endpoint.
func (h *Host) VoiceChat() *Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.voiceChat
}

// ByUID looks up any endpoint owned by this host, including Voice Chat.
func (h *Host) ByUID(uid string) (*Endpoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, ok := h.byUID[uid]
	return ep, ok
}

// ByName looks up an endpoint by its human-readable name.
func (h *Host) ByName(name string) (*Endpoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ep := range h.endpoints {
		if ep.name == name {
			return ep, true
		}
	}
	if h.voiceChat != nil && h.voiceChat.name == name {
		return h.voiceChat, true
	}
	return nil, false
}

// resetGlobalHostForTests clears the process-wide singleton so tests can
// exercise Entry's idempotency from a known state. Not part of the public
// surface used by real callers.
func resetGlobalHostForTests() {
	globalHostMu.Lock()
	defer globalHostMu.Unlock()
	globalHost = nil
}
