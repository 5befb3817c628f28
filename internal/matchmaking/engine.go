package matchmaking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/pocketrelay/internal/blaze"
	"github.com/dcrodman/pocketrelay/internal/lobby"
)

const (
	DefaultTickInterval = 10 * time.Second
	DefaultTicketTTL    = 15 * time.Minute
)

// Notify delivers a notify-type packet to one session, same contract as
// lobby.Notify.
type Notify func(sessionID uint32, componentID, commandID uint16, body blaze.Object)

// Engine re-evaluates open tickets against candidate games on a periodic
// tick and whenever the Lobby Manager reports a relevant mutation.
type Engine struct {
	Lobby        *lobby.Manager
	Notify       Notify
	Logger       *logrus.Logger
	TickInterval time.Duration
	TicketTTL    time.Duration

	mu      sync.Mutex
	tickets map[uint32]*Ticket
	nextID  uint32
}

func NewEngine(lm *lobby.Manager, notify Notify, logger *logrus.Logger) *Engine {
	e := &Engine{
		Lobby:        lm,
		Notify:       notify,
		Logger:       logger,
		TickInterval: DefaultTickInterval,
		TicketTTL:    DefaultTicketTTL,
		tickets:      make(map[uint32]*Ticket),
	}
	lm.OnMutated = func(gameID uint32) {
		e.evaluate()
	}
	return e
}

// Run blocks, re-evaluating tickets on every tick until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.expireStale()
			e.evaluate()
		}
	}
}

// CreateTicket registers a new matchmaking request and immediately attempts
// to match it against existing games.
func (e *Engine) CreateTicket(sessionID uint32, rules []Rule) *Ticket {
	e.mu.Lock()
	e.nextID++
	t := &Ticket{ID: e.nextID, SessionID: sessionID, Rules: rules, CreatedAt: time.Now()}
	e.tickets[t.ID] = t
	e.mu.Unlock()

	e.evaluate()
	return t
}

// CancelTicket removes a ticket explicitly, e.g. on player cancel or
// disconnect.
func (e *Engine) CancelTicket(ticketID uint32) {
	e.mu.Lock()
	delete(e.tickets, ticketID)
	e.mu.Unlock()
}

// CancelSession removes every ticket owned by sessionID, used on
// disconnect cleanup.
func (e *Engine) CancelSession(sessionID uint32) {
	e.mu.Lock()
	for id, t := range e.tickets {
		if t.SessionID == sessionID {
			delete(e.tickets, id)
		}
	}
	e.mu.Unlock()
}

func (e *Engine) expireStale() {
	now := time.Now()
	var expired []*Ticket

	e.mu.Lock()
	for id, t := range e.tickets {
		if now.Sub(t.CreatedAt) > e.TicketTTL {
			expired = append(expired, t)
			delete(e.tickets, id)
		}
	}
	e.mu.Unlock()

	for _, t := range expired {
		e.Notify(t.SessionID, blaze.ComponentGameManager, blaze.NotifyGameManagerMatchmakingFailed, matchmakingFailedBody(t))
	}
}

// evaluate re-checks every open ticket, oldest first, against every open
// game with a free slot, joining the first match found.
func (e *Engine) evaluate() {
	e.mu.Lock()
	ordered := make([]*Ticket, 0, len(e.tickets))
	for _, t := range e.tickets {
		ordered = append(ordered, t)
	}
	e.mu.Unlock()

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })

	for _, t := range ordered {
		game := e.findMatch(t)
		if game == nil {
			continue
		}
		if _, err := e.Lobby.JoinGame(game.ID, t.SessionID); err != nil {
			continue
		}
		e.mu.Lock()
		delete(e.tickets, t.ID)
		e.mu.Unlock()
	}
}

func (e *Engine) findMatch(t *Ticket) *lobby.Game {
	candidates := e.Lobby.ListGames(func(g *lobby.Game) bool {
		return g.FreeSlotCount() > 0 && t.Matches(g.Attributes)
	}, 0, 1)
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

func matchmakingFailedBody(t *Ticket) blaze.Object {
	return blaze.Object{Fields: []blaze.Field{
		{Tag: blaze.PackTag("TID0"), Value: blaze.VarInt(t.ID)},
	}}
}
