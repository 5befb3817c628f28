package session

import "github.com/dcrodman/pocketrelay/internal/blaze"

// handleUpdateUserSession registers or clears the caller's subscription to
// another session's presence updates. Subscribing immediately sends a
// NotifyUserSessionsSetSession snapshot of the target's current session info
// if it's live; later changes to the target's info are not pushed. The
// subscriber receives NotifyUserSessionsSessionDetails when the target
// disconnects.
func handleUpdateUserSession(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	targetVal, _ := body.Get(blaze.PackTag("PID0"))
	target, _ := targetVal.(blaze.VarInt)
	subscribeVal, _ := body.Get(blaze.PackTag("SUBS"))
	subscribe, _ := subscribeVal.(blaze.VarInt)

	targetID := uint32(target)

	if subscribe != 0 {
		s.Subscribe(targetID)
		if m.IsLive(targetID) {
			m.notify(s.ID, blaze.ComponentUserSessions, blaze.NotifyUserSessionsSetSession, sessionInfoBody(m, targetID))
		}
	} else {
		s.Unsubscribe(targetID)
	}

	return blaze.Object{}, 0
}

func sessionInfoBody(m *Manager, sessionID uint32) blaze.Object {
	m.mu.RLock()
	target, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return blaze.Object{Fields: []blaze.Field{
			{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(sessionID)},
		}}
	}

	info := target.NetworkInfo()
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(sessionID)},
		{Tag: blaze.PackTag("IADR"), Value: blaze.Str(info.InternalAddr)},
		{Tag: blaze.PackTag("EADR"), Value: blaze.Str(info.ExternalAddr)},
	}}
}
