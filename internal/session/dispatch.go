package session

import (
	"context"
	"time"

	"github.com/dcrodman/pocketrelay/internal/blaze"
)

// handlerFunc handles one request-type packet and returns the response body
// to send back, along with a Blaze error code (0 on success).
type handlerFunc func(m *Manager, s *Session, pkt blaze.Packet, body blaze.Object) (blaze.Object, uint16)

type componentCommand struct {
	component, command uint16
}

var handlers = map[componentCommand]handlerFunc{
	{blaze.ComponentAuthentication, blaze.CmdAuthLogin}:            handleLogin,
	{blaze.ComponentAuthentication, blaze.CmdAuthCreateAccount}:     handleCreateAccount,
	{blaze.ComponentAuthentication, blaze.CmdAuthLoginOriginSSO}:    handleLoginOriginSSO,
	{blaze.ComponentAuthentication, blaze.CmdAuthListEntitlements}:  handleListEntitlements,
	{blaze.ComponentUtil, blaze.CmdUtilPing}:                        handlePing,
	{blaze.ComponentUtil, blaze.CmdUtilPreAuth}:                     handlePreAuth,
	{blaze.ComponentUtil, blaze.CmdUtilPostAuth}:                    handlePostAuth,
	{blaze.ComponentUtil, blaze.CmdUtilGetTelemetryServer}:          handleGetTelemetryServer,
	{blaze.ComponentUtil, blaze.CmdUtilUserSettingsSave}:            handleUserSettingsSave,
	{blaze.ComponentGameManager, blaze.CmdGameManagerCreateGame}:        handleCreateGame,
	{blaze.ComponentGameManager, blaze.CmdGameManagerJoinGame}:          handleJoinGame,
	{blaze.ComponentGameManager, blaze.CmdGameManagerRemovePlayer}:      handleRemovePlayer,
	{blaze.ComponentGameManager, blaze.CmdGameManagerUpdateAttributes}:  handleUpdateAttributes,
	{blaze.ComponentGameManager, blaze.CmdGameManagerSetState}:          handleSetState,
	{blaze.ComponentGameManager, blaze.CmdGameManagerSetSettings}:       handleSetSettings,
	{blaze.ComponentGameManager, blaze.CmdGameManagerListGames}:         handleListGames,
	{blaze.ComponentGameManager, blaze.CmdGameManagerStartMatchmaking}:  handleStartMatchmaking,
	{blaze.ComponentGameManager, blaze.CmdGameManagerCancelMatchmaking}: handleCancelMatchmaking,
	{blaze.ComponentStats, blaze.CmdStatsGetLeaderboard}:            handleGetLeaderboard,
	{blaze.ComponentMessaging, blaze.CmdMessagingSendMessage}:       handleSendMessage,
	{blaze.ComponentUserSessions, blaze.CmdUserSessionsLookupUser}: handleUpdateUserSession,
}

// serve runs the read-dispatch-reply loop for one session until the
// connection closes, ctx is canceled, or the session goes idle past
// IdleTimeout. It also drains the outbound queue concurrently so
// notifications interleave with replies.
func (m *Manager) serve(ctx context.Context, s *Session) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.drainOutbound(s)
	}()
	defer func() {
		s.terminate()
		<-done
	}()

	go m.idleWatch(ctx, s)

	reader := &blaze.Reader{}
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		default:
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			return
		}
		s.touch()

		packets, err := reader.Feed(buf[:n])
		if err != nil {
			m.Logger.Warnf("session %d: malformed packet: %v", s.ID, err)
			return
		}
		for _, pkt := range packets {
			m.dispatch(s, pkt)
		}
	}
}

func (m *Manager) drainOutbound(s *Session) {
	for {
		select {
		case <-s.closed:
			return
		case frame := <-s.outbound:
			if _, err := s.conn.Write(frame); err != nil {
				s.terminate()
				return
			}
		}
	}
}

func (m *Manager) idleWatch(ctx context.Context, s *Session) {
	ticker := time.NewTicker(IdleTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.terminate()
			return
		case <-s.closed:
			return
		case <-ticker.C:
			if s.idleFor() > IdleTimeout {
				m.Logger.Debugf("session %d: idle timeout", s.ID)
				s.terminate()
				return
			}
		}
	}
}

// dispatch decodes and handles one packet, replying with either a response
// or an ERR_COMMAND_NOT_FOUND error for any (component, command) pair
// without a registered handler. Unknown pairs never drop the connection.
func (m *Manager) dispatch(s *Session, pkt blaze.Packet) {
	body, err := blaze.Decode(pkt.Body)
	if err != nil {
		m.Logger.Warnf("session %d: malformed body for component=%#x command=%#x: %v",
			s.ID, pkt.Header.ComponentID, pkt.Header.CommandID, err)
		return
	}

	if pkt.Header.Type == blaze.MessageTypeNotify {
		return
	}

	h, ok := handlers[componentCommand{pkt.Header.ComponentID, pkt.Header.CommandID}]
	if !ok {
		m.reply(s, pkt, blaze.Object{}, blaze.ErrCommandNotFound)
		return
	}

	respBody, errCode := h(m, s, pkt, body)
	m.reply(s, pkt, respBody, errCode)
}

func (m *Manager) reply(s *Session, req blaze.Packet, body blaze.Object, errCode uint16) {
	msgType := blaze.MessageTypeResponse
	if errCode != 0 {
		msgType = blaze.MessageTypeError
	}

	frame := blaze.EncodePacket(blaze.Header{
		ComponentID: req.Header.ComponentID,
		CommandID:   req.Header.CommandID,
		ErrorCode:   errCode,
		Type:        msgType,
		MessageID:   req.Header.MessageID,
	}, blaze.Encode(body))

	s.enqueue(frame)
}
