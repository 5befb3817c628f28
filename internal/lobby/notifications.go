package lobby

import "github.com/dcrodman/pocketrelay/internal/blaze"

func gameSetupBody(g *Game) blaze.Object {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
		{Tag: blaze.PackTag("HOST"), Value: blaze.VarInt(g.HostSessionID())},
		{Tag: blaze.PackTag("ATTR"), Value: attributesValue(g)},
		{Tag: blaze.PackTag("GSET"), Value: blaze.VarInt(g.Settings)},
	}}
}

func playerJoiningBody(g *Game, slot int, session uint32) blaze.Object {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
		{Tag: blaze.PackTag("SLOT"), Value: blaze.VarInt(slot)},
		{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(session)},
	}}
}

func playerRemovedBody(g *Game, session uint32) blaze.Object {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
		{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(session)},
	}}
}

func hostMigrationBody(g *Game) blaze.Object {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
		{Tag: blaze.PackTag("HOST"), Value: blaze.VarInt(g.HostSessionID())},
	}}
}

func attributesBody(g *Game) blaze.Object {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
		{Tag: blaze.PackTag("ATTR"), Value: attributesValue(g)},
	}}
}

func stateBody(g *Game) blaze.Object {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
		{Tag: blaze.PackTag("GSTA"), Value: blaze.VarInt(g.State)},
	}}
}

func settingsBody(g *Game) blaze.Object {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("GID0"), Value: blaze.VarInt(g.ID)},
		{Tag: blaze.PackTag("GSET"), Value: blaze.VarInt(g.Settings)},
	}}
}

func attributesValue(g *Game) blaze.Map {
	m := blaze.Map{KeyType: blaze.TypeString, ValueType: blaze.TypeString}
	for k, v := range g.Attributes {
		m.Keys = append(m.Keys, blaze.Str(k))
		m.Values = append(m.Values, blaze.Str(v))
	}
	return m
}
