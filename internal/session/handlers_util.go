package session

import "github.com/dcrodman/pocketrelay/internal/blaze"

func handlePing(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("STIM"), Value: blaze.VarInt(0)},
	}}, 0
}

// handlePreAuth caches the client's reported network addresses and replies
// with the menu message and server configuration clients expect before
// authenticating.
func handlePreAuth(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	internalVal, _ := body.Get(blaze.PackTag("IADR"))
	externalVal, _ := body.Get(blaze.PackTag("EADR"))
	internal, _ := internalVal.(blaze.Str)
	external, _ := externalVal.(blaze.Str)

	s.SetNetworkInfo(NetworkInfo{
		InternalAddr: string(internal),
		ExternalAddr: string(external),
	})

	playerCount := m.LiveSessionCount()

	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("ASRC"), Value: blaze.Str(m.Config.ExternalHost)},
		{Tag: blaze.PackTag("MOTD"), Value: blaze.Str(m.Config.MenuMessageFor("Pocket Relay", playerCount))},
	}}, 0
}

func handlePostAuth(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(s.PlayerID())},
	}}, 0
}

// handleGetTelemetryServer acknowledges the request without pointing the
// client at a real telemetry collector; telemetry has no server-side
// behavior in this deployment.
func handleGetTelemetryServer(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	return blaze.Object{}, 0
}

func handleUserSettingsSave(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	return blaze.Object{}, 0
}

// LiveSessionCount returns the number of currently connected sessions.
func (m *Manager) LiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
