package session

import (
	"github.com/dcrodman/pocketrelay/internal/blaze"
	"github.com/dcrodman/pocketrelay/internal/lobby"
	"github.com/dcrodman/pocketrelay/internal/matchmaking"
)

func handleCreateGame(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	attrs := attributesFromBody(body)
	settingsVal, _ := body.Get(blaze.PackTag("GSET"))
	settings, _ := settingsVal.(blaze.VarInt)

	g := m.Lobby.CreateGame(s.ID, attrs, uint32(settings))
	s.SetGameID(g.ID)

	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
	}}, 0
}

func handleJoinGame(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	gameIDVal, _ := body.Get(blaze.PackTag("GID0"))
	gameID, _ := gameIDVal.(blaze.VarInt)

	slot, err := m.Lobby.JoinGame(uint32(gameID), s.ID)
	if err != nil {
		return blaze.Object{}, gameErrorCode(err)
	}
	s.SetGameID(uint32(gameID))

	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(gameID)},
		{Tag: blaze.PackTag("SLOT"), Value: blaze.VarInt(slot)},
	}}, 0
}

func handleRemovePlayer(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	gameIDVal, _ := body.Get(blaze.PackTag("GID0"))
	slotVal, _ := body.Get(blaze.PackTag("SLOT"))
	reasonVal, _ := body.Get(blaze.PackTag("REAS"))
	gameID, _ := gameIDVal.(blaze.VarInt)
	slot, _ := slotVal.(blaze.VarInt)
	reason, _ := reasonVal.(blaze.VarInt)

	if err := m.Lobby.RemovePlayer(uint32(gameID), int(slot), uint32(reason)); err != nil {
		return blaze.Object{}, gameErrorCode(err)
	}
	return blaze.Object{}, 0
}

func handleUpdateAttributes(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	gameIDVal, _ := body.Get(blaze.PackTag("GID0"))
	gameID, _ := gameIDVal.(blaze.VarInt)
	diff := attributesFromBody(body)

	if err := m.Lobby.UpdateAttributes(uint32(gameID), diff); err != nil {
		return blaze.Object{}, gameErrorCode(err)
	}
	return blaze.Object{}, 0
}

func handleSetState(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	gameIDVal, _ := body.Get(blaze.PackTag("GID0"))
	stateVal, _ := body.Get(blaze.PackTag("GSTA"))
	gameID, _ := gameIDVal.(blaze.VarInt)
	state, _ := stateVal.(blaze.VarInt)

	if err := m.Lobby.UpdateState(uint32(gameID), lobby.State(state)); err != nil {
		return blaze.Object{}, gameErrorCode(err)
	}
	return blaze.Object{}, 0
}

func handleSetSettings(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	gameIDVal, _ := body.Get(blaze.PackTag("GID0"))
	settingsVal, _ := body.Get(blaze.PackTag("GSET"))
	gameID, _ := gameIDVal.(blaze.VarInt)
	settings, _ := settingsVal.(blaze.VarInt)

	if err := m.Lobby.SetSettings(uint32(gameID), uint32(settings)); err != nil {
		return blaze.Object{}, gameErrorCode(err)
	}
	return blaze.Object{}, 0
}

func handleListGames(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	games := m.Lobby.ListGames(func(g *lobby.Game) bool { return g.FreeSlotCount() > 0 }, 0, 50)

	list := blaze.List{ElemType: blaze.TypeGroup}
	for _, g := range games {
		list.Elems = append(list.Elems, blaze.Object{Fields: []blaze.Field{
			{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
			{Tag: blaze.PackTag("HOST"), Value: blaze.VarInt(g.HostSessionID())},
			{Tag: blaze.PackTag("GSET"), Value: blaze.VarInt(g.Settings)},
		}})
	}

	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GLST"), Value: list},
	}}, 0
}

func handleStartMatchmaking(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	rules := rulesFromBody(body)
	ticket := m.Matchmaking.CreateTicket(s.ID, rules)

	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("TID0"), Value: blaze.VarInt(ticket.ID)},
	}}, 0
}

func handleCancelMatchmaking(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	ticketVal, _ := body.Get(blaze.PackTag("TID0"))
	ticketID, _ := ticketVal.(blaze.VarInt)

	m.Matchmaking.CancelTicket(uint32(ticketID))
	return blaze.Object{}, 0
}

func attributesFromBody(body blaze.Object) map[string]string {
	attrVal, ok := body.Get(blaze.PackTag("ATTR"))
	if !ok {
		return nil
	}
	attrMap, ok := attrVal.(blaze.Map)
	if !ok {
		return nil
	}

	out := make(map[string]string, len(attrMap.Keys))
	for i, k := range attrMap.Keys {
		key, ok := k.(blaze.Str)
		if !ok || i >= len(attrMap.Values) {
			continue
		}
		val, _ := attrMap.Values[i].(blaze.Str)
		out[string(key)] = string(val)
	}
	return out
}

// rulesFromBody decodes a matchmaking request's criteria list into
// pre-compiled Rules. Every rule is an equality match on an attribute key;
// the other matchmaking operators are never produced from a request.
func rulesFromBody(body blaze.Object) []matchmaking.Rule {
	critVal, ok := body.Get(blaze.PackTag("CRIT"))
	if !ok {
		return nil
	}
	critMap, ok := critVal.(blaze.Map)
	if !ok {
		return nil
	}

	var rules []matchmaking.Rule
	for i, k := range critMap.Keys {
		key, ok := k.(blaze.Str)
		if !ok || i >= len(critMap.Values) {
			continue
		}
		val, _ := critMap.Values[i].(blaze.Str)
		rules = append(rules, matchmaking.Rule{Key: string(key), Op: matchmaking.OpEqual, Value: string(val)})
	}
	return rules
}

func gameErrorCode(err error) uint16 {
	switch err {
	case lobby.ErrGameNotFound:
		return blaze.ErrGameNotFound
	case lobby.ErrSlotFull:
		return blaze.ErrSlotFull
	case lobby.ErrSessionNotFound:
		return blaze.ErrInvalidSession
	default:
		return blaze.ErrSystem
	}
}
