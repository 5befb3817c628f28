// Package retriever implements the optional outbound client that
// re-implements the Blaze protocol to query the real game servers, used
// for Origin SSO verification and one-shot player-data import.
package retriever

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/pocketrelay/internal/blaze"
	"github.com/dcrodman/pocketrelay/internal/tls3"
)

// OriginUnavailable is returned whenever the upstream can't be reached or
// fails; callers treat it as a normal login failure rather than a fatal
// error.
var OriginUnavailable = errors.New("retriever: upstream origin servers unavailable")

const requestTimeout = 10 * time.Second

// PlayerData is the subset of upstream-resolved player data Pocket Relay
// imports on first Origin login.
type PlayerData struct {
	PlayerID   string
	Email      string
	GalaxyWar  map[string]int
}

// Retriever queries the configured upstream host over hand-rolled SSLv3,
// caching results per session for the lifetime of that session.
type Retriever struct {
	Host   string
	Logger *logrus.Logger

	sessionCache *cache.Cache
}

func New(host string, logger *logrus.Logger) *Retriever {
	return &Retriever{
		Host:         host,
		Logger:       logger,
		sessionCache: cache.New(cache.NoExpiration, 0),
	}
}

// ResolveOriginToken authenticates an Origin SSO token against the
// upstream servers and returns the resolved player id. Results are cached
// under sessionID so repeated calls from the same session don't re-dial.
func (r *Retriever) ResolveOriginToken(ctx context.Context, sessionID uint32, token string) (string, error) {
	cacheKey := cacheKeyFor(sessionID, "origin")
	if cached, ok := r.sessionCache.Get(cacheKey); ok {
		return cached.(string), nil
	}

	playerID, err := r.dialAndResolve(ctx, token)
	if err != nil {
		r.Logger.Warnf("retriever: origin resolution failed: %v", err)
		return "", OriginUnavailable
	}

	r.sessionCache.Set(cacheKey, playerID, cache.DefaultExpiration)
	return playerID, nil
}

// FetchPlayerData imports a player's persistent data from the upstream,
// caching it for the session's lifetime.
func (r *Retriever) FetchPlayerData(ctx context.Context, sessionID uint32, playerID string) (*PlayerData, error) {
	cacheKey := cacheKeyFor(sessionID, "data")
	if cached, ok := r.sessionCache.Get(cacheKey); ok {
		return cached.(*PlayerData), nil
	}

	data, err := r.dialAndFetch(ctx, playerID)
	if err != nil {
		r.Logger.Warnf("retriever: player data fetch failed: %v", err)
		return nil, OriginUnavailable
	}

	r.sessionCache.Set(cacheKey, data, cache.DefaultExpiration)
	return data, nil
}

// ForgetSession drops any cached results for sessionID, called on
// disconnect.
func (r *Retriever) ForgetSession(sessionID uint32) {
	r.sessionCache.Delete(cacheKeyFor(sessionID, "origin"))
	r.sessionCache.Delete(cacheKeyFor(sessionID, "data"))
}

func cacheKeyFor(sessionID uint32, kind string) string {
	return kind + ":" + itoa(sessionID)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// dialAndResolve resolves r.Host through its redirector, dials the address
// it returns, then sends an AUTHENTICATION.loginOriginSSO request.
func (r *Retriever) dialAndResolve(ctx context.Context, token string) (string, error) {
	conn, err := r.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	reqBody := blaze.Encode(blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("AUTH"), Value: blaze.Str(token)},
	}})
	frame := blaze.EncodePacket(blaze.Header{
		ComponentID: blaze.ComponentAuthentication,
		CommandID:   blaze.CmdAuthLoginOriginSSO,
		Type:        blaze.MessageTypeRequest,
		MessageID:   1,
	}, reqBody)

	resp, err := roundTrip(conn, frame)
	if err != nil {
		return "", err
	}

	obj, err := blaze.Decode(resp.Body)
	if err != nil {
		return "", err
	}
	v, ok := obj.Get(blaze.PackTag("PID0"))
	if !ok {
		return "", errors.New("retriever: upstream response missing PID0")
	}
	return string(v.(blaze.Str)), nil
}

func (r *Retriever) dialAndFetch(ctx context.Context, playerID string) (*PlayerData, error) {
	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	reqBody := blaze.Encode(blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("PID0"), Value: blaze.Str(playerID)},
	}})
	frame := blaze.EncodePacket(blaze.Header{
		ComponentID: blaze.ComponentUtil,
		CommandID:   blaze.CmdUtilPostAuth,
		Type:        blaze.MessageTypeRequest,
		MessageID:   1,
	}, reqBody)

	resp, err := roundTrip(conn, frame)
	if err != nil {
		return nil, err
	}

	obj, err := blaze.Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	email, _ := obj.Get(blaze.PackTag("MAIL"))
	emailStr, _ := email.(blaze.Str)

	return &PlayerData{PlayerID: playerID, Email: string(emailStr)}, nil
}

// dial resolves the real session server address by querying r.Host's
// redirector, then opens the SSLv3 connection that call site actually wants
// against that resolved address.
func (r *Retriever) dial(ctx context.Context) (*tls3.Conn, error) {
	addr, err := r.resolveServerInstance(ctx)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: requestTimeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return tls3.Client(raw, &tls3.ClientConfig{Logger: r.Logger})
}

// resolveServerInstance dials r.Host's redirector, issues a
// Redirector.GetServerInstance request, and returns the host:port it points
// to for the real session server.
func (r *Retriever) resolveServerInstance(ctx context.Context) (string, error) {
	d := net.Dialer{Timeout: requestTimeout}
	raw, err := d.DialContext(ctx, "tcp", r.Host)
	if err != nil {
		return "", err
	}
	conn, err := tls3.Client(raw, &tls3.ClientConfig{Logger: r.Logger})
	if err != nil {
		return "", err
	}
	defer conn.Close()

	frame := blaze.EncodePacket(blaze.Header{
		ComponentID: blaze.ComponentRedirector,
		CommandID:   blaze.CmdRedirectorGetServerInstance,
		Type:        blaze.MessageTypeRequest,
		MessageID:   1,
	}, blaze.Encode(blaze.Object{}))

	resp, err := roundTrip(conn, frame)
	if err != nil {
		return "", err
	}

	obj, err := blaze.Decode(resp.Body)
	if err != nil {
		return "", err
	}
	hostVal, ok := obj.Get(blaze.PackTag("HOST"))
	if !ok {
		return "", errors.New("retriever: redirector response missing HOST")
	}
	portVal, ok := obj.Get(blaze.PackTag("PORT"))
	if !ok {
		return "", errors.New("retriever: redirector response missing PORT")
	}
	host, _ := hostVal.(blaze.Str)
	port, _ := portVal.(blaze.VarInt)

	return net.JoinHostPort(string(host), itoa(uint32(port))), nil
}

func roundTrip(conn *tls3.Conn, frame []byte) (blaze.Packet, error) {
	if _, err := conn.Write(frame); err != nil {
		return blaze.Packet{}, err
	}

	reader := &blaze.Reader{}
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return blaze.Packet{}, err
		}
		packets, err := reader.Feed(buf[:n])
		if err != nil {
			return blaze.Packet{}, err
		}
		if len(packets) > 0 {
			return packets[0], nil
		}
	}
}
