package devices

import "testing"

func testDevices() Devices {
	return Devices{
		{ID: "spk", Name: "Built-in Speakers", IsOnline: true, HasOutputStream: true},
		{ID: "mic", Name: "Built-in Microphone", IsOnline: true, HasInputStream: true},
		{ID: "usb", Name: "USB Interface", IsOnline: false, HasOutputStream: true, HasInputStream: true},
	}
}

func TestDirectoryFilters(t *testing.T) {
	d := testDevices()
	if len(d.Outputs()) != 2 {
		t.Fatalf("expected 2 output-capable devices, got %d", len(d.Outputs()))
	}
	if len(d.Inputs()) != 2 {
		t.Fatalf("expected 2 input-capable devices, got %d", len(d.Inputs()))
	}
	if len(d.Online()) != 2 {
		t.Fatalf("expected 2 online devices, got %d", len(d.Online()))
	}
}

func TestStaticDirectoryDefaultOutput(t *testing.T) {
	dir := NewStaticDirectory(testDevices(), "spk")
	dev, err := dir.DefaultOutput()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.ID != "spk" {
		t.Fatalf("expected spk, got %s", dev.ID)
	}
}

func TestStaticDirectoryNoDefaultOutputConfigured(t *testing.T) {
	dir := NewStaticDirectory(testDevices(), "")
	if _, err := dir.DefaultOutput(); err == nil {
		t.Fatal("expected an error when no default output is configured")
	}
}

func TestStaticDirectoryByName(t *testing.T) {
	dir := NewStaticDirectory(testDevices(), "")
	dev, ok, err := dir.ByName("USB Interface")
	if err != nil || !ok {
		t.Fatalf("expected to find USB Interface, ok=%v err=%v", ok, err)
	}
	if dev.ID != "usb" {
		t.Fatalf("expected usb, got %s", dev.ID)
	}

	_, ok, err = dir.ByName("nonexistent")
	if err != nil || ok {
		t.Fatalf("expected not-found for a nonexistent name, ok=%v err=%v", ok, err)
	}
}
