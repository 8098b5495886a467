package strategy

import (
	"fmt"
	"strings"

	"github.com/lox/dominionbot/internal/cards"
	"github.com/lox/dominionbot/internal/protocol"
	"github.com/lox/dominionbot/internal/session"
)

// SystemPrompt frames every completion request.
const SystemPrompt = `You are an expert player of Dominion, the deck-building card game.
You decide one step of your own turn at a time.
Reply with exactly one line and nothing else, using one of:
PLAY <card>
BUY <card>
END_TURN
Card names are lower-case and written exactly as listed.`

// BuildPrompt describes the hand, the affordable supply and the remaining
// allowances for the model.
func BuildPrompt(turn Turn, c session.Counters) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Turn %d.\n", c.Turn)
	fmt.Fprintf(&b, "Your hand: %s\n", describeCards(turn.Hand))

	var actions []string
	for _, name := range cards.Names(turn.Hand) {
		if !cards.IsMoney(name) {
			actions = append(actions, name)
		}
	}
	if len(actions) > 0 {
		fmt.Fprintf(&b, "Cards you could play: %s\n", strings.Join(actions, ", "))
	} else {
		b.WriteString("Cards you could play: none\n")
	}

	fmt.Fprintf(&b, "Actions remaining: %d\n", c.Actions)
	fmt.Fprintf(&b, "Buys remaining: %d\n", c.Buys)
	fmt.Fprintf(&b, "Coins available: %d\n", c.Coins)

	affordable := cards.Affordable(turn.Stock, c.Coins)
	if len(affordable) > 0 {
		priced := make([]string, len(affordable))
		for i, name := range affordable {
			p, _ := cards.Price(name)
			priced[i] = fmt.Sprintf("%s (%d)", name, p)
		}
		fmt.Fprintf(&b, "Cards you can afford: %s\n", strings.Join(priced, ", "))
	} else {
		b.WriteString("Cards you can afford: none\n")
	}

	b.WriteString("You may only PLAY with an action remaining and only BUY with a buy remaining.\n")
	b.WriteString("What is your next step?")
	return b.String()
}

func describeCards(c *protocol.Cards) string {
	names := cards.Names(c)
	if len(names) == 0 {
		return "empty"
	}
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s x%d", name, c.Count(name))
	}
	return strings.Join(parts, ", ")
}
