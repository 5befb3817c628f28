package session

import "github.com/dcrodman/pocketrelay/internal/blaze"

// handleSendMessage relays a chat message to every other member of the
// sender's current game.
func handleSendMessage(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	gameID, inGame := s.GameID()
	if !inGame {
		return blaze.Object{}, blaze.ErrInvalidSession
	}

	g := m.Lobby.Game(gameID)
	if g == nil {
		return blaze.Object{}, blaze.ErrGameNotFound
	}

	textVal, _ := body.Get(blaze.PackTag("BODY"))
	text, _ := textVal.(blaze.Str)

	notifyBody := blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("FROM"), Value: blaze.VarInt(s.ID)},
		{Tag: blaze.PackTag("BODY"), Value: text},
	}}

	for _, member := range g.Members() {
		if member == s.ID {
			continue
		}
		m.notify(member, blaze.ComponentMessaging, blaze.CmdMessagingSendMessage, notifyBody)
	}

	return blaze.Object{}, 0
}
