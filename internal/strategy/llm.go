package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/dominionbot/internal/cards"
	"github.com/lox/dominionbot/internal/llm"
	"github.com/lox/dominionbot/internal/session"
)

var (
	// ErrNoCredential is returned when the game has no API key assigned.
	ErrNoCredential = errors.New("no API key assigned to this game")
	// ErrCompletionFailed wraps any failure of the completion call.
	ErrCompletionFailed = errors.New("completion request failed")
)

// LLM delegates the decision to a chat-completion model and keeps the
// game's counters in step with the answer.
type LLM struct {
	completer llm.Completer
	logger    *log.Logger
}

// NewLLM creates an LLM strategy backed by completer.
func NewLLM(completer llm.Completer, logger *log.Logger) *LLM {
	return &LLM{completer: completer, logger: logger.WithPrefix("llm-strategy")}
}

// Name implements Strategy.
func (s *LLM) Name() string { return "llm" }

// Prepare primes the coin counter with the hand's treasure on the first
// decision of a turn. It is a no-op afterwards.
func (s *LLM) Prepare(turn Turn, g *session.Game) {
	if g.Credential == "" || g.CoinsSeeded {
		return
	}
	g.Counters.Coins += cards.MoneyValue(turn.Hand)
	g.CoinsSeeded = true
}

// Decide implements Strategy.
func (s *LLM) Decide(ctx context.Context, turn Turn, g *session.Game) (Outcome, error) {
	if g.Credential == "" {
		return Outcome{}, ErrNoCredential
	}

	s.Prepare(turn, g)

	prompt := BuildPrompt(turn, g.Counters)
	text, err := s.completer.Complete(ctx, llm.Request{
		APIKey: g.Credential,
		System: SystemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return Outcome{Prompt: prompt}, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	cmd, err := ParseCompletion(text)
	if err != nil {
		s.logger.Warn("Unparseable completion, ending turn",
			"game", turn.GameID,
			"turn", g.Counters.Turn,
			"text", text,
			"error", err)
		cmd = Command{Verb: VerbEndTurn}
	}

	before := g.Counters
	s.apply(cmd, g)

	s.logger.Info("LLM decision",
		"game", turn.GameID,
		"turn", g.Counters.Turn,
		"command", string(cmd.Verb),
		"card", cmd.Card,
		"before", fmt.Sprintf("%+v", before),
		"after", fmt.Sprintf("%+v", g.Counters))

	return Outcome{
		Decision:   cmd.Decision(),
		Prompt:     prompt,
		Completion: text,
	}, nil
}

// apply updates the counters for a parsed command. Counters never go below zero.
func (s *LLM) apply(cmd Command, g *session.Game) {
	c := &g.Counters
	switch cmd.Verb {
	case VerbPlay:
		c.Actions = max(c.Actions-1, 0)
		eff := cards.Effects[cmd.Card]
		c.Actions += eff.Actions
		c.Buys += eff.Buys
		c.Coins += eff.Coins
	case VerbBuy:
		price, ok := cards.Price(cmd.Card)
		if !ok {
			s.logger.Warn("Unknown card price, assuming free", "card", cmd.Card)
		}
		c.Coins = max(c.Coins-price, 0)
		c.Buys = max(c.Buys-1, 0)
	default:
		g.ResetTurn()
	}
}
