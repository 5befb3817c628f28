package lobby

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/pocketrelay/internal/blaze"
)

// SessionLookup lets the Manager check that a session id still refers to a
// live connection without taking a hard dependency on the session package.
type SessionLookup interface {
	IsLive(sessionID uint32) bool
}

// Notify delivers a notify-type packet to one session's outbound queue. The
// Manager never writes to a session directly; it only ever calls Notify,
// matching the "collect recipients under lock, release, then enqueue"
// pattern from the design notes.
type Notify func(sessionID uint32, componentID, commandID uint16, body blaze.Object)

// Subscribe registers subscriber as wanting presence updates about target.
// Unsubscribe reverses it. The Manager calls these to implicitly subscribe
// every pair of members of a game to each other on join and tear the
// subscription down on leave, without taking a hard dependency on the
// session package.
type Subscribe func(subscriber, target uint32)
type Unsubscribe func(subscriber, target uint32)

// Manager owns the live set of Games and serializes every mutation to a
// single game under that game's own lock, so members observe notifications
// in the order mutations were applied.
type Manager struct {
	Sessions    SessionLookup
	Notify      Notify
	Subscribe   Subscribe
	Unsubscribe Unsubscribe
	Logger      *logrus.Logger

	// OnMutated is called after any mutation that could open matchmaking
	// opportunities (create, attribute update, player removal). It's wired
	// up by the Matchmaking Engine to trigger an immediate re-evaluation
	// rather than waiting for the next tick.
	OnMutated func(gameID uint32)

	mu      sync.Mutex
	games   map[uint32]*Game
	nextID  uint32
}

func NewManager() *Manager {
	return &Manager{games: make(map[uint32]*Game)}
}

func (m *Manager) nextGameID() uint32 {
	return atomic.AddUint32(&m.nextID, 1)
}

// CreateGame creates a new game with host in slot 0.
func (m *Manager) CreateGame(host uint32, attributes map[string]string, settings uint32) *Game {
	g := &Game{
		ID:         m.nextGameID(),
		Attributes: cloneAttrs(attributes),
		Settings:   settings,
		State:      StateInitializing,
	}
	g.Slots[0] = host

	m.mu.Lock()
	m.games[g.ID] = g
	m.mu.Unlock()

	m.notifyMembers(g, func(member uint32) {
		m.Notify(member, blaze.ComponentGameManager, blaze.NotifyGameManagerGameSetup, gameSetupBody(g))
	})
	m.mutated(g.ID)

	return g
}

// JoinGame assigns session the lowest free slot in gameID.
func (m *Manager) JoinGame(gameID uint32, session uint32) (int, error) {
	g, err := m.lockGame(gameID)
	if err != nil {
		return 0, err
	}
	defer g.mu.Unlock()

	slot := -1
	for i, s := range g.Slots {
		if s == 0 {
			slot = i
			break
		}
	}
	if slot == -1 {
		return 0, ErrSlotFull
	}

	existing := g.Members()
	g.Slots[slot] = session

	m.subscribeEachOther(session, existing)

	members := g.Members()
	m.broadcast(members, func(member uint32) {
		m.Notify(member, blaze.ComponentGameManager, blaze.NotifyGameManagerPlayerJoining, playerJoiningBody(g, slot, session))
	})
	m.mutated(gameID)

	return slot, nil
}

// LeaveGame removes session from whatever game it's in. If it was the host
// and other players remain, host migration is initiated.
func (m *Manager) LeaveGame(gameID uint32, session uint32) error {
	g, err := m.lockGame(gameID)
	if err != nil {
		return err
	}

	slot := g.SlotOf(session)
	if slot == -1 {
		g.mu.Unlock()
		return ErrSessionNotFound
	}

	wasHost := slot == 0
	g.Slots[slot] = 0

	remaining := g.Members()
	if len(remaining) == 0 {
		g.mu.Unlock()
		m.destroyGame(gameID)
		return nil
	}

	m.unsubscribeEachOther(session, remaining)

	m.broadcast(remaining, func(member uint32) {
		m.Notify(member, blaze.ComponentGameManager, blaze.NotifyGameManagerPlayerRemoved, playerRemovedBody(g, session))
	})

	if wasHost {
		m.migrateHost(g)
	}

	g.mu.Unlock()
	m.mutated(gameID)
	return nil
}

// migrateHost promotes the lowest-indexed remaining player to slot 0. Per
// the fix recorded for the host-migration drop bug, every remaining peer is
// preserved rather than removed, and the new host is sent playerJoining for
// each of them.
func (m *Manager) migrateHost(g *Game) {
	g.State = StateMigrating

	remaining := g.Members()
	m.broadcast(remaining, func(member uint32) {
		m.Notify(member, blaze.ComponentGameManager, blaze.NotifyGameManagerHostMigrationStart, hostMigrationBody(g))
	})

	// Compact remaining members down starting at slot 0 so the lowest
	// surviving session becomes host, preserving every other peer.
	var compacted [MaxSlots]uint32
	copy(compacted[:], remaining)
	g.Slots = compacted

	g.State = StatePreGame

	newHost := g.Slots[0]
	for _, member := range g.Members() {
		if member == newHost {
			continue
		}
		m.Notify(newHost, blaze.ComponentGameManager, blaze.NotifyGameManagerPlayerJoining,
			playerJoiningBody(g, g.SlotOf(member), member))
	}

	m.broadcast(g.Members(), func(member uint32) {
		m.Notify(member, blaze.ComponentGameManager, blaze.NotifyGameManagerHostMigrationFinished, hostMigrationBody(g))
	})
}

// UpdateAttributes merges diff into the game's attribute map.
func (m *Manager) UpdateAttributes(gameID uint32, diff map[string]string) error {
	g, err := m.lockGame(gameID)
	if err != nil {
		return err
	}
	defer g.mu.Unlock()

	for k, v := range diff {
		g.Attributes[k] = v
	}

	m.broadcast(g.Members(), func(member uint32) {
		m.Notify(member, blaze.ComponentGameManager, blaze.NotifyGameManagerAttributesChange, attributesBody(g))
	})
	m.mutated(gameID)
	return nil
}

// UpdateState transitions the game to newState.
func (m *Manager) UpdateState(gameID uint32, newState State) error {
	g, err := m.lockGame(gameID)
	if err != nil {
		return err
	}
	defer g.mu.Unlock()

	g.State = newState
	m.broadcast(g.Members(), func(member uint32) {
		m.Notify(member, blaze.ComponentGameManager, blaze.NotifyGameManagerStateChange, stateBody(g))
	})
	return nil
}

// SetSettings overwrites the game's settings bitfield.
func (m *Manager) SetSettings(gameID uint32, bits uint32) error {
	g, err := m.lockGame(gameID)
	if err != nil {
		return err
	}
	defer g.mu.Unlock()

	g.Settings = bits
	m.broadcast(g.Members(), func(member uint32) {
		m.Notify(member, blaze.ComponentGameManager, blaze.NotifyGameManagerSettingsChange, settingsBody(g))
	})
	return nil
}

// RemovePlayer forcibly removes the session in slot from gameID, e.g. for a
// kick. Semantics mirror LeaveGame.
func (m *Manager) RemovePlayer(gameID uint32, slot int, reason uint32) error {
	g, err := m.lockGame(gameID)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= MaxSlots || g.Slots[slot] == 0 {
		g.mu.Unlock()
		return ErrSessionNotFound
	}
	session := g.Slots[slot]
	g.mu.Unlock()

	return m.LeaveGame(gameID, session)
}

// ListGames returns up to count games starting at offset that satisfy
// filter (nil matches everything), ordered by game id.
func (m *Manager) ListGames(filter func(*Game) bool, offset, count int) []*Game {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Game
	for _, g := range m.games {
		if filter == nil || filter(g) {
			matched = append(matched, g)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if offset >= len(matched) {
		return nil
	}
	end := offset + count
	if end > len(matched) || count <= 0 {
		end = len(matched)
	}
	return matched[offset:end]
}

// Game returns the game with the given id, or nil.
func (m *Manager) Game(gameID uint32) *Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[gameID]
}

func (m *Manager) lockGame(gameID uint32) (*Game, error) {
	m.mu.Lock()
	g, ok := m.games[gameID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrGameNotFound
	}
	g.mu.Lock()
	return g, nil
}

func (m *Manager) destroyGame(gameID uint32) {
	m.mu.Lock()
	delete(m.games, gameID)
	m.mu.Unlock()
}

func (m *Manager) mutated(gameID uint32) {
	if m.OnMutated != nil {
		m.OnMutated(gameID)
	}
}

// notifyMembers collects recipients while the game's own lock is held by the
// caller, matching the fan-out pattern: gather ids, release, enqueue.
func (m *Manager) notifyMembers(g *Game, send func(uint32)) {
	m.broadcast(g.Members(), send)
}

func (m *Manager) broadcast(recipients []uint32, send func(uint32)) {
	live := recipients[:0:0]
	for _, r := range recipients {
		if m.Sessions == nil || m.Sessions.IsLive(r) {
			live = append(live, r)
		}
	}
	for _, r := range live {
		send(r)
	}
}

// subscribeEachOther implicitly subscribes session to every member already
// in the game and vice versa, per the "subscribed to every other member of
// any game it joins" invariant.
func (m *Manager) subscribeEachOther(session uint32, members []uint32) {
	if m.Subscribe == nil {
		return
	}
	for _, member := range members {
		m.Subscribe(session, member)
		m.Subscribe(member, session)
	}
}

// unsubscribeEachOther reverses subscribeEachOther when session leaves a
// game, for every member that remains.
func (m *Manager) unsubscribeEachOther(session uint32, members []uint32) {
	if m.Unsubscribe == nil {
		return
	}
	for _, member := range members {
		m.Unsubscribe(session, member)
		m.Unsubscribe(member, session)
	}
}

func cloneAttrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
