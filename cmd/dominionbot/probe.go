package main

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/lox/dominionbot/cmd/dominionbot/shared"
	"github.com/lox/dominionbot/internal/cards"
	"github.com/lox/dominionbot/internal/client"
	"github.com/lox/dominionbot/internal/gameid"
	"github.com/lox/dominionbot/internal/protocol"
	"github.com/lox/dominionbot/internal/randutil"
)

// ProbeCmd plays a short scripted game against a running bot.
type ProbeCmd struct {
	URL      string        `kong:"default='http://localhost:8000',help='Bot base URL'"`
	Turns    int           `kong:"default='3',help='Number of turns to play'"`
	MaxPlays int           `kong:"default='5',help='Maximum /play calls per turn'"`
	Seed     *int64        `kong:"help='Seed for the dealt hands'"`
	GameID   string        `kong:"name='game-id',help='Reuse a probe game id instead of generating one'"`
	Timeout  time.Duration `kong:"default='30s',help='Per-request timeout'"`
	Debug    bool          `kong:"help='Enable debug logging'"`
}

// probeStarterDeck is the deck hands are dealt from.
var probeStarterDeck = []string{
	cards.Copper, cards.Copper, cards.Copper, cards.Copper, cards.Copper, cards.Copper, cards.Copper,
	cards.Silver, cards.Silver, cards.Gold,
	cards.Estate, cards.Estate, cards.Estate,
	cards.Smithy, cards.Magpie, cards.Fairgrounds, cards.Village,
}

func probeSupply() protocol.Cards {
	return protocol.Cards{Quantities: map[string]int{
		cards.Copper: 46, cards.Silver: 40, cards.Gold: 30, cards.Platinum: 12,
		cards.Estate: 8, cards.Duchy: 8, cards.Province: 8, cards.Colony: 8,
		cards.Smithy: 10, cards.Magpie: 10, cards.Fairgrounds: 10, cards.Village: 10,
	}}
}

// dealHand draws five cards from the starter deck.
func dealHand(rng *rand.Rand) map[string]int {
	deck := append([]string(nil), probeStarterDeck...)
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	hand := make(map[string]int)
	for _, c := range deck[:5] {
		hand[c]++
	}
	return hand
}

func (c *ProbeCmd) Run() error {
	level := "info"
	if c.Debug {
		level = "debug"
	}
	logger, err := shared.SetupLogger(level, "text")
	if err != nil {
		return err
	}

	bot, err := client.NewClient(c.URL, logger, client.WithHTTPClient(&http.Client{Timeout: c.Timeout}))
	if err != nil {
		return err
	}
	rng, seed := randutil.Resolve(c.Seed)
	ctx := shared.SetupSignalHandlerWithLogger(logger)

	if err := c.probe(ctx, bot, rng); err != nil {
		fmt.Println(failStyle.Render("probe failed: " + err.Error()))
		return err
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("seed %d", seed)))
	return nil
}

func (c *ProbeCmd) probe(ctx context.Context, bot *client.Client, rng *rand.Rand) error {
	name, err := bot.Name(ctx)
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	id, err := c.gameID()
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("Probing %q as game %s", name, id)))

	if err := bot.StartGame(ctx, id); err != nil {
		return fmt.Errorf("start_game: %w", err)
	}
	defer func() {
		if err := bot.EndGame(context.Background(), id); err != nil {
			fmt.Fprintln(os.Stderr, failStyle.Render("end_game: "+err.Error()))
		}
	}()

	for turn := 1; turn <= c.Turns; turn++ {
		if err := bot.StartTurn(ctx, id); err != nil {
			return fmt.Errorf("start_turn: %w", err)
		}
		hand := dealHand(rng)
		fmt.Println(row(fmt.Sprintf("turn %d", turn), formatPile(hand)))

		for i := 0; i < c.MaxPlays; i++ {
			decision, err := bot.Play(ctx, id, protocol.Game{
				Players: []protocol.Player{{Name: name, Hand: &protocol.Cards{Quantities: hand}}},
				Stock:   probeSupply(),
			})
			if err != nil {
				return fmt.Errorf("play: %w", err)
			}
			fmt.Println(row("", decisionStyle.Render(decision)))
			if decision == protocol.DecisionEndTurn {
				break
			}
		}
	}

	return c.probeChoices(ctx, bot, id)
}

// gameID returns the configured id after checking it, or a fresh one.
func (c *ProbeCmd) gameID() (string, error) {
	if c.GameID == "" {
		return gameid.WithPrefix("probe"), nil
	}
	if _, _, err := gameid.Parse(c.GameID); err != nil {
		return "", fmt.Errorf("--game-id: %w", err)
	}
	return c.GameID, nil
}

// probeChoices exercises every secondary callback once.
func (c *ProbeCmd) probeChoices(ctx context.Context, bot *client.Client, id string) error {
	hand := []string{cards.Estate, cards.Copper, cards.Silver}

	card, err := bot.DiscardFromHand(ctx, id, hand)
	if err != nil {
		return fmt.Errorf("discard_card_from_hand: %w", err)
	}
	fmt.Println(row("discard", card))

	card, err = bot.ChooseCardToReceive(ctx, id, []string{cards.Silver, cards.Gold})
	if err != nil {
		return fmt.Errorf("choose_card_to_receive_in_discard: %w", err)
	}
	fmt.Println(row("receive", card))

	card, err = bot.TrashMoneyCard(ctx, id, []string{cards.Silver, cards.Copper})
	if err != nil {
		return fmt.Errorf("trash_money_card_for_better_money_card: %w", err)
	}
	fmt.Println(row("trash", card))

	for label, call := range map[string]func() (bool, error){
		"confirm": func() (bool, error) { return bot.ConfirmDiscardFromHand(ctx, id, cards.Estate, hand) },
		"deck":    func() (bool, error) { return bot.ConfirmDiscardDeck(ctx, id) },
		"skip":    func() (bool, error) { return bot.SkipCardReception(ctx, id, cards.Curse, hand) },
	} {
		ok, err := call()
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		fmt.Println(row(label, fmt.Sprint(ok)))
	}
	return nil
}
