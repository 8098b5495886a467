// Package cards holds the static card knowledge the bot relies on: treasure
// values, supply prices and the resource deltas of action cards.
package cards

import (
	"sort"

	"github.com/lox/dominionbot/internal/protocol"
)

// Card names referenced by the built-in strategies.
const (
	Copper   = "copper"
	Silver   = "silver"
	Gold     = "gold"
	Platinum = "platinum"

	Estate   = "estate"
	Duchy    = "duchy"
	Province = "province"
	Colony   = "colony"
	Curse    = "curse"

	Smithy      = "smithy"
	Magpie      = "magpie"
	Fairgrounds = "fairgrounds"
	Village     = "village"
	Market      = "market"
	Festival    = "festival"
	Laboratory  = "laboratory"
	Woodcutter  = "woodcutter"
	CouncilRoom = "councilroom"
	Bazaar      = "bazaar"
	Cellar      = "cellar"
)

// MoneyValues maps treasure cards to the coins they produce.
var MoneyValues = map[string]int{
	Copper:   1,
	Silver:   2,
	Gold:     3,
	Platinum: 5,
}

// Prices is the supply cost of each known card.
var Prices = map[string]int{
	Copper:   0,
	Silver:   3,
	Gold:     6,
	Platinum: 9,

	Curse:    0,
	Estate:   2,
	Duchy:    5,
	Province: 8,
	Colony:   11,

	Cellar:      2,
	"chapel":    2,
	"moat":      2,
	Village:     3,
	Woodcutter:  3,
	"workshop":  3,
	"harbinger": 3,
	"merchant":  3,
	"vassal":    3,

	Smithy:        4,
	Magpie:        4,
	"gardens":     4,
	"feast":       4,
	"militia":     4,
	"moneylender": 4,
	"remodel":     4,
	"bureaucrat":  4,
	"throneroom":  4,
	"poacher":     4,

	Market:      5,
	Festival:    5,
	Laboratory:  5,
	CouncilRoom: 5,
	Bazaar:      5,
	"library":   5,
	"mine":      5,
	"witch":     5,
	"sentry":    5,
	"bandit":    5,

	Fairgrounds:  6,
	"adventurer": 6,
	"artisan":    6,
}

// Effect is the change an action card applies to the turn's allowances.
type Effect struct {
	Actions int
	Buys    int
	Coins   int
}

// Effects is hard-coded knowledge of action card resource bonuses. Cards not
// listed here only consume the action spent to play them.
var Effects = map[string]Effect{
	Village:     {Actions: 2},
	Market:      {Actions: 1, Buys: 1, Coins: 1},
	Festival:    {Actions: 2, Buys: 1, Coins: 2},
	Laboratory:  {Actions: 1},
	Woodcutter:  {Buys: 1, Coins: 2},
	CouncilRoom: {Buys: 1},
	Bazaar:      {Actions: 2, Coins: 1},
	Cellar:      {Actions: 1},
	Magpie:      {Actions: 1},
	"harbinger": {Actions: 1},
	"merchant":  {Actions: 1},
	"vassal":    {Coins: 2},
	"poacher":   {Actions: 1, Coins: 1},
	"militia":   {Coins: 2},
	"sentry":    {Actions: 1},
}

// MoneyValue returns the total coin value of the treasures in c.
func MoneyValue(c *protocol.Cards) int {
	if c == nil {
		return 0
	}
	total := 0
	for name, qty := range c.Quantities {
		if value, ok := MoneyValues[name]; ok && qty > 0 {
			total += value * qty
		}
	}
	return total
}

// Price returns the cost of name and whether it is known.
func Price(name string) (int, bool) {
	p, ok := Prices[name]
	return p, ok
}

// IsMoney reports whether name is a treasure card.
func IsMoney(name string) bool {
	_, ok := MoneyValues[name]
	return ok
}

// Affordable lists the supply cards still in stock whose known price is at
// most coins, most expensive first, ties broken by name.
func Affordable(stock *protocol.Cards, coins int) []string {
	if stock == nil {
		return nil
	}
	var out []string
	for name, qty := range stock.Quantities {
		if qty <= 0 {
			continue
		}
		if p, ok := Prices[name]; ok && p <= coins {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := Prices[out[i]], Prices[out[j]]
		if pi != pj {
			return pi > pj
		}
		return out[i] < out[j]
	})
	return out
}

// Names returns the card names in c with a positive count, sorted.
func Names(c *protocol.Cards) []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Quantities))
	for name, qty := range c.Quantities {
		if qty > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Quantities returns a copy of the counts in c, or nil.
func Quantities(c *protocol.Cards) map[string]int {
	if c == nil || c.Quantities == nil {
		return nil
	}
	out := make(map[string]int, len(c.Quantities))
	for name, qty := range c.Quantities {
		out[name] = qty
	}
	return out
}
