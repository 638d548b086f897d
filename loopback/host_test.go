package loopback

import "testing"

func TestEntryRejectsWrongTypeUUID(t *testing.T) {
	resetGlobalHostForTests()
	defer resetGlobalHostForTests()

	if h := Entry("not-the-right-uuid"); h != nil {
		t.Fatalf("expected nil for a mismatched type UUID, got %v", h)
	}
}

func TestEntryIsIdempotent(t *testing.T) {
	resetGlobalHostForTests()
	defer resetGlobalHostForTests()

	h1 := Entry(PluginTypeUUID)
	h2 := Entry(PluginTypeUUID)
	if h1 == nil || h2 == nil {
		t.Fatal("expected a non-nil host")
	}
	if h1 != h2 {
		t.Fatal("expected the same host reference on repeated entry calls")
	}
}

func TestNewHostCreatesNinePlusVoiceChat(t *testing.T) {
	h := NewHost(HostConfig{})
	eps := h.Endpoints()
	if len(eps) != 9 {
		t.Fatalf("expected 9 one-way endpoints, got %d", len(eps))
	}
	vc := h.VoiceChat()
	if vc == nil || vc.Name() != VoiceChatName {
		t.Fatalf("expected a Voice Chat endpoint named %q, got %v", VoiceChatName, vc)
	}
	for i, name := range DeviceNames {
		if eps[i].Name() != name {
			t.Fatalf("endpoint %d: got name %q want %q", i, eps[i].Name(), name)
		}
	}
}

func TestHostByUIDAndByName(t *testing.T) {
	h := NewHost(HostConfig{})
	first := h.Endpoints()[0]

	if ep, ok := h.ByUID(first.UID()); !ok || ep != first {
		t.Fatalf("ByUID(%s) did not return the expected endpoint", first.UID())
	}
	if ep, ok := h.ByName(first.Name()); !ok || ep != first {
		t.Fatalf("ByName(%s) did not return the expected endpoint", first.Name())
	}
	if _, ok := h.ByUID("does-not-exist"); ok {
		t.Fatal("expected ByUID to report not-found for an unknown uid")
	}
}
