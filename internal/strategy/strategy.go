// Package strategy turns a hand, the supply and the game's counters into a
// single /play decision.
//
// Two strategies are provided: Heuristic, an ordered rule list evaluated
// locally, and LLM, which asks a chat-completion model and applies the
// answer's effects to the counters. Both mutate the session.Game they are
// given; callers are expected to hold the game's lock while deciding.
package strategy

import (
	"context"
	"strings"

	"github.com/lox/dominionbot/internal/protocol"
	"github.com/lox/dominionbot/internal/session"
)

// Kind is the type of decision sent back to the arbiter.
type Kind int

const (
	EndTurn Kind = iota
	Action
	Buy
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Action:
		return protocol.PrefixAction
	case Buy:
		return protocol.PrefixBuy
	default:
		return protocol.DecisionEndTurn
	}
}

// Decision is one answer to /play.
type Decision struct {
	Kind Kind
	Card string
}

// String renders the decision in arbiter syntax, e.g. "BUY gold".
func (d Decision) String() string {
	if d.Kind == EndTurn || d.Card == "" {
		return protocol.DecisionEndTurn
	}
	return d.Kind.String() + " " + d.Card
}

// Turn is the arbiter-supplied view for one decision.
type Turn struct {
	GameID string
	Hand   *protocol.Cards
	Stock  *protocol.Cards
}

// Outcome carries the decision plus whatever produced it, for logging and records.
type Outcome struct {
	Decision   Decision
	Prompt     string
	Completion string
	Reasoning  string
}

// Strategy decides what to do with the current hand.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, turn Turn, g *session.Game) (Outcome, error)
}

// Preparer is implemented by strategies that adjust the counters before
// deciding. Callers run it before snapshotting the counters.
type Preparer interface {
	Prepare(turn Turn, g *session.Game)
}

// Prepare runs s's Prepare hook if it has one.
func Prepare(s Strategy, turn Turn, g *session.Game) {
	if p, ok := s.(Preparer); ok {
		p.Prepare(turn, g)
	}
}

// thinking accumulates the reasons behind a decision.
type thinking struct {
	thoughts []string
}

func (t *thinking) add(thought string) {
	t.thoughts = append(t.thoughts, thought)
}

func (t *thinking) String() string {
	if len(t.thoughts) == 0 {
		return "No clear reasoning available"
	}
	return strings.Join(t.thoughts, ". ")
}
