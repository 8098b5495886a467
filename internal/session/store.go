// Package session tracks per-game bookkeeping between arbiter callbacks.
//
// Each game id owns one record guarded by its own mutex, so callbacks for the
// same game are applied one at a time while different games never contend.
// A lookup for an unknown or already ended game creates a fresh record rather
// than failing.
package session

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Counters are the per-turn allowances tracked for a game.
type Counters struct {
	Turn    int `json:"turn"`
	Actions int `json:"actions"`
	Buys    int `json:"buys"`
	Coins   int `json:"coins"`
}

// TurnStart returns the allowances every turn begins with.
func TurnStart(turn int) Counters {
	return Counters{Turn: turn, Actions: 1, Buys: 1, Coins: 0}
}

// Game is the record kept for one game id.
type Game struct {
	ID         string
	Counters   Counters
	Credential string
	// CoinsSeeded is set once the coin counter has been primed from the hand
	// during the current turn.
	CoinsSeeded bool
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// ResetTurn restores the turn-start allowances without touching the turn number.
func (g *Game) ResetTurn() {
	g.Counters = TurnStart(g.Counters.Turn)
	g.CoinsSeeded = false
}

type entry struct {
	mu   sync.Mutex
	game Game
}

// Store owns every live game record.
type Store struct {
	mu    sync.Mutex
	games map[string]*entry
	clock quartz.Clock
}

// NewStore creates an empty store. A nil clock uses the wall clock.
func NewStore(clock quartz.Clock) *Store {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Store{
		games: make(map[string]*entry),
		clock: clock,
	}
}

func (s *Store) fresh(id string) *entry {
	now := s.clock.Now()
	return &entry{game: Game{
		ID:        id,
		Counters:  TurnStart(0),
		StartedAt: now,
		UpdatedAt: now,
	}}
}

// lookup returns the entry for id, creating it when absent.
func (s *Store) lookup(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.games[id]
	if !ok {
		e = s.fresh(id)
		s.games[id] = e
	}
	return e
}

// StartGame replaces any existing record for id with a fresh one.
func (s *Store) StartGame(id string) Game {
	e := s.fresh(id)

	s.mu.Lock()
	s.games[id] = e
	s.mu.Unlock()

	return e.game
}

// StartTurn advances the turn number and resets the allowances.
func (s *Store) StartTurn(id string) Game {
	var out Game
	_ = s.Update(id, func(g *Game) error {
		g.Counters = TurnStart(g.Counters.Turn + 1)
		g.CoinsSeeded = false
		out = *g
		return nil
	})
	return out
}

// Update runs fn against the record for id while holding that record's lock.
// UpdatedAt is refreshed whether or not fn fails.
func (s *Store) Update(id string, fn func(g *Game) error) error {
	e := s.lookup(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	err := fn(&e.game)
	e.game.UpdatedAt = s.clock.Now()
	return err
}

// Snapshot returns a copy of the record for id, creating it when absent.
func (s *Store) Snapshot(id string) Game {
	e := s.lookup(id)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game
}

// EndGame removes the record for id and returns its final state.
func (s *Store) EndGame(id string) (Game, bool) {
	s.mu.Lock()
	e, ok := s.games[id]
	if ok {
		delete(s.games, id)
	}
	s.mu.Unlock()

	if !ok {
		return Game{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game, true
}

// Len returns the number of live games.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}
