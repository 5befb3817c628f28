// Package lobby implements game creation, membership, attribute updates,
// and host migration. Games own only a list of session ids; there is no
// back-pointer from a session to its game beyond the id a caller already
// holds, matching the "no intrusive linked structures" ownership rule.
package lobby

import (
	"errors"
	"sync"
	"time"
)

// MaxSlots is the number of player slots a game has, fixed per spec §4.6.
const MaxSlots = 4

// State is a Game's lifecycle state.
type State int

const (
	StateInitializing State = iota
	StatePreGame
	StateInGame
	StatePostGame
	StateMigrating
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrSlotFull        = errors.New("no free slot in game")
	ErrSessionNotFound = errors.New("session is not a member of this game")
	ErrNotHost         = errors.New("session is not the host of this game")
)

// Game is an in-progress or lobbying match. Slots[0] is always the host
// when non-empty.
type Game struct {
	ID         uint32
	Slots      [MaxSlots]uint32 // 0 means the slot is empty
	Attributes map[string]string
	Settings   uint32
	State      State
	CreatedAt  time.Time

	mu sync.Mutex
}

// SlotOf returns the slot index occupied by sessionID, or -1 if absent.
func (g *Game) SlotOf(sessionID uint32) int {
	for i, s := range g.Slots {
		if s == sessionID {
			return i
		}
	}
	return -1
}

// Members returns every occupied slot's session id, in slot order.
func (g *Game) Members() []uint32 {
	var out []uint32
	for _, s := range g.Slots {
		if s != 0 {
			out = append(out, s)
		}
	}
	return out
}

// FreeSlotCount returns how many slots currently have no occupant.
func (g *Game) FreeSlotCount() int {
	n := 0
	for _, s := range g.Slots {
		if s == 0 {
			n++
		}
	}
	return n
}

// HostSessionID returns the session id in slot 0, or 0 if the game has no host.
func (g *Game) HostSessionID() uint32 {
	return g.Slots[0]
}
