package session

import (
	"context"

	"github.com/dcrodman/pocketrelay/internal/blaze"
	"github.com/dcrodman/pocketrelay/internal/core"
	"github.com/dcrodman/pocketrelay/internal/core/auth"
)

func handleLogin(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	emailVal, _ := body.Get(blaze.PackTag("MAIL"))
	passVal, _ := body.Get(blaze.PackTag("PASS"))
	email, _ := emailVal.(blaze.Str)
	password, _ := passVal.(blaze.Str)

	account, err := auth.VerifyAccount(string(email), string(password))
	if err != nil {
		m.Logger.Infof("session %d: login failed: %s", s.ID, core.Humanize(err.Error()))
		return blaze.Object{}, authErrorCode(err)
	}

	s.setAccount(account)
	token := m.issueToken(s.ID)

	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(account.ID)},
		{Tag: blaze.PackTag("SKEY"), Value: blaze.Str(token)},
	}}, 0
}

func handleCreateAccount(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	emailVal, _ := body.Get(blaze.PackTag("MAIL"))
	passVal, _ := body.Get(blaze.PackTag("PASS"))
	email, _ := emailVal.(blaze.Str)
	password, _ := passVal.(blaze.Str)

	if email == "" || password == "" {
		return blaze.Object{}, blaze.ErrInvalidInformation
	}

	account, err := auth.CreateAccount(string(email), string(password), string(email))
	if err != nil {
		return blaze.Object{}, blaze.ErrEmailAlreadyInUse
	}

	s.setAccount(account)
	token := m.issueToken(s.ID)

	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(account.ID)},
		{Tag: blaze.PackTag("SKEY"), Value: blaze.Str(token)},
	}}, 0
}

// handleLoginOriginSSO resolves an Origin SSO token against the configured
// upstream retriever. If the retriever is disabled, origin_fetch is off, or
// the upstream is unreachable, the login fails rather than granting access,
// since there is no local equivalent of Origin's identity assertion.
func handleLoginOriginSSO(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	if m.Retriever == nil || !m.Config.Retriever.OriginFetch {
		return blaze.Object{}, blaze.ErrAuthenticationRequired
	}

	tokenVal, _ := body.Get(blaze.PackTag("AUTH"))
	token, _ := tokenVal.(blaze.Str)

	playerID, err := m.Retriever.ResolveOriginToken(context.Background(), s.ID, string(token))
	if err != nil {
		return blaze.Object{}, blaze.ErrAuthenticationRequired
	}

	email := playerID
	if m.Config.Retriever.OriginFetchData {
		if upstream, err := m.Retriever.FetchPlayerData(context.Background(), s.ID, playerID); err == nil && upstream.Email != "" {
			email = upstream.Email
		}
	}

	account, err := auth.ResolveOriginAccount(email)
	if err != nil {
		return blaze.Object{}, authErrorCode(err)
	}

	s.setAccount(account)
	issued := m.issueToken(s.ID)

	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("PID0"), Value: blaze.VarInt(account.ID)},
		{Tag: blaze.PackTag("SKEY"), Value: blaze.Str(issued)},
	}}, 0
}

func handleListEntitlements(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16) {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("NLST"), Value: blaze.List{ElemType: blaze.TypeGroup}},
	}}, 0
}

func authErrorCode(err error) uint16 {
	switch err {
	case auth.ErrInvalidCredentials:
		return blaze.ErrWrongPassword
	case auth.ErrAccountBanned:
		return blaze.ErrBannedAccount
	default:
		return blaze.ErrSystem
	}
}
