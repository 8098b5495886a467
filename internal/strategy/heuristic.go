package strategy

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/dominionbot/internal/cards"
	"github.com/lox/dominionbot/internal/session"
)

// Rule is one entry of a priority list. Action rules fire when Card is in
// hand; buy rules fire when the hand's coins reach MinCoins and Card is still
// in the supply.
type Rule struct {
	Card     string
	MinCoins int
	// Consumes reports whether firing the rule spends the allowance.
	Consumes bool
}

// DefaultActionRules are tried in order while an action is available.
// Magpie does not consume the action allowance; this mirrors the deployed
// bot and means a hand holding magpie plays it on every call.
var DefaultActionRules = []Rule{
	{Card: cards.Fairgrounds, Consumes: true},
	{Card: cards.Smithy, Consumes: true},
	{Card: cards.Magpie, Consumes: false},
}

// DefaultBuyRules are tried in order while a buy is available.
var DefaultBuyRules = []Rule{
	{Card: cards.Colony, MinCoins: 11, Consumes: true},
	{Card: cards.Platinum, MinCoins: 9, Consumes: true},
	{Card: cards.Province, MinCoins: 8, Consumes: true},
	{Card: cards.Fairgrounds, MinCoins: 7, Consumes: true},
	{Card: cards.Gold, MinCoins: 6, Consumes: true},
	{Card: cards.Magpie, MinCoins: 5, Consumes: true},
	{Card: cards.Smithy, MinCoins: 4, Consumes: true},
	{Card: cards.Silver, MinCoins: 3, Consumes: true},
}

// Heuristic plays the first matching action rule, otherwise buys the first
// matching buy rule, otherwise ends the turn.
type Heuristic struct {
	actions []Rule
	buys    []Rule
	logger  *log.Logger
}

// NewHeuristic creates a Heuristic. Nil rule lists fall back to the defaults.
func NewHeuristic(logger *log.Logger, actions, buys []Rule) *Heuristic {
	if actions == nil {
		actions = DefaultActionRules
	}
	if buys == nil {
		buys = DefaultBuyRules
	}
	return &Heuristic{
		actions: actions,
		buys:    buys,
		logger:  logger.WithPrefix("heuristic"),
	}
}

// Name implements Strategy.
func (h *Heuristic) Name() string { return "heuristic" }

// Decide implements Strategy.
func (h *Heuristic) Decide(_ context.Context, turn Turn, g *session.Game) (Outcome, error) {
	t := &thinking{}
	d := h.decide(turn, &g.Counters, t)

	h.logger.Debug("Heuristic decision",
		"game", turn.GameID,
		"turn", g.Counters.Turn,
		"decision", d.String(),
		"reasoning", t.String())

	return Outcome{Decision: d, Reasoning: t.String()}, nil
}

func (h *Heuristic) decide(turn Turn, c *session.Counters, t *thinking) Decision {
	if c.Actions >= 1 {
		for _, r := range h.actions {
			if !turn.Hand.Has(r.Card) {
				continue
			}
			if r.Consumes {
				c.Actions--
			}
			t.add(fmt.Sprintf("Playing %s from hand", r.Card))
			return Decision{Kind: Action, Card: r.Card}
		}
		// Falls through to the buy rules instead of ending the turn.
		t.add("No playable action card in hand")
	} else {
		t.add("Action allowance spent")
	}

	if c.Buys < 1 {
		t.add("Buy allowance spent")
		return Decision{Kind: EndTurn}
	}

	coins := cards.MoneyValue(turn.Hand)
	t.add(fmt.Sprintf("Hand is worth %d coins", coins))
	for _, r := range h.buys {
		if coins < r.MinCoins || !turn.Stock.Has(r.Card) {
			continue
		}
		if r.Consumes {
			c.Buys--
		}
		t.add(fmt.Sprintf("Buying %s (needs %d)", r.Card, r.MinCoins))
		return Decision{Kind: Buy, Card: r.Card}
	}

	t.add("Nothing worth buying")
	return Decision{Kind: EndTurn}
}
