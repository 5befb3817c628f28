package session

import "github.com/dcrodman/pocketrelay/internal/blaze"

// handleGetLeaderboard returns an empty ranking. Pocket Relay tracks no
// real competitive ladder; this exists so clients that poll the
// leaderboard screen on login don't treat a missing response as an error.
func handleGetLeaderboard(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("LDLS"), Value: blaze.List{ElemType: blaze.TypeGroup}},
	}}, 0
}
