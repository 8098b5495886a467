// Package protocol defines the JSON contract spoken between the game arbiter
// and the bot. Field names are fixed by the arbiter and must not change.
package protocol

// HeaderGameID carries the game identifier on every arbiter request.
const HeaderGameID = "X-Game-Id"

// DefaultBotName is reported on /name when no name is configured.
const DefaultBotName = "Les Variables 2"

// Decision strings understood by the arbiter on /play.
const (
	DecisionOK      = "OK"
	DecisionEndTurn = "END_TURN"
	PrefixAction    = "ACTION"
	PrefixBuy       = "BUY"
)

// CardName is the arbiter's lower-case card identifier (e.g. "copper", "smithy").
type CardName = string

// Cards is a multiset of card names.
type Cards struct {
	Quantities map[CardName]int `json:"quantities"`
}

// Count returns how many copies of name the multiset holds.
func (c *Cards) Count(name CardName) int {
	if c == nil || c.Quantities == nil {
		return 0
	}
	return c.Quantities[name]
}

// Has reports whether at least one copy of name is present.
func (c *Cards) Has(name CardName) bool {
	return c.Count(name) > 0
}

// Total returns the number of cards in the multiset.
func (c *Cards) Total() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, qty := range c.Quantities {
		if qty > 0 {
			n += qty
		}
	}
	return n
}

// Player is one seat in the roster. Only the active player has a hand.
type Player struct {
	Name  string `json:"name"`
	Hand  *Cards `json:"hand"`
	Score int    `json:"score"`
}

// Game is the payload of /play.
type Game struct {
	Finished bool     `json:"finished"`
	Players  []Player `json:"players"`
	Stock    Cards    `json:"stock"`
}

// ActivePlayer returns the first player holding a hand.
func (g *Game) ActivePlayer() (*Player, bool) {
	for i := range g.Players {
		if g.Players[i].Hand != nil {
			return &g.Players[i], true
		}
	}
	return nil, false
}

// Hand is the payload of /discard_card_from_hand.
type Hand struct {
	Hand []CardName `json:"hand"`
}

// PossibleCards is the payload of /choose_card_to_receive_in_discard.
type PossibleCards struct {
	PossibleCards []CardName `json:"possible_cards"`
}

// MoneyCardsInHand is the payload of /trash_money_card_for_better_money_card.
type MoneyCardsInHand struct {
	MoneyInHand []CardName `json:"money_in_hand"`
}

// CardNameAndHand is the payload of the confirm/skip callbacks.
type CardNameAndHand struct {
	CardName CardName   `json:"card_name"`
	Hand     []CardName `json:"hand"`
}

// Response wraps every callback decision.
type Response[T bool | string] struct {
	GameID   string `json:"game_id"`
	Decision T      `json:"decision"`
}

// ErrorResponse is returned for unhandled faults.
type ErrorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Name    string `json:"name"`
}

// DetailResponse is returned for client-visible request failures.
type DetailResponse struct {
	Detail string `json:"detail"`
}
