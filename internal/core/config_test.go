package core

import "testing"

func TestConfig_BroadcastAddress(t *testing.T) {
	cfg := &Config{ExternalHost: "192.168.1.5"}

	host, port := cfg.BroadcastAddress(14219)
	if host != "192.168.1.5" {
		t.Errorf("BroadcastAddress() host = %s, want 192.168.1.5", host)
	}
	if port != 14219 {
		t.Errorf("BroadcastAddress() port = %d, want 14219", port)
	}
}

func TestConfig_MenuMessageFor(t *testing.T) {
	cfg := &Config{
		ExternalHost: "192.168.1.5",
		MenuMessage:  "Pocket Relay - {v}\nPlayers online: {n}\n{ip}",
	}

	msg := cfg.MenuMessageFor("1.0.0", 42)
	expected := "Pocket Relay - 1.0.0\nPlayers online: 42\n192.168.1.5"
	if msg != expected {
		t.Errorf("MenuMessageFor() = %q, want %q", msg, expected)
	}
}
