package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lox/dominionbot/internal/cards"
	"github.com/lox/dominionbot/internal/decisionlog"
	"github.com/lox/dominionbot/internal/protocol"
	"github.com/lox/dominionbot/internal/session"
	"github.com/lox/dominionbot/internal/strategy"
)

// DecideCmd answers a single /play payload without starting a server.
type DecideCmd struct {
	Overrides `embed:""`

	File    string `arg:"" default:"-" help:"Game JSON file, or - for stdin"`
	GameID  string `kong:"name='game-id',default='offline',help='Game id used for credentials and records'"`
	Turn    int    `kong:"default='1',help='Turn number to decide for'"`
	Actions int    `kong:"default='1',help='Actions remaining'"`
	Buys    int    `kong:"default='1',help='Buys remaining'"`
	Coins   int    `kong:"default='0',help='Coins already counted this turn'"`
	Verbose bool   `kong:"short='V',help='Show the prompt sent to the model'"`
}

func (c *DecideCmd) Run() error {
	ctx := context.Background()
	a, err := c.build(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	game, err := readGame(c.File)
	if err != nil {
		return err
	}

	rec, err := decideOnce(ctx, a, c.GameID, game, session.Counters{
		Turn:    c.Turn,
		Actions: c.Actions,
		Buys:    c.Buys,
		Coins:   c.Coins,
	})
	if err != nil {
		fmt.Println(failStyle.Render("decision failed: " + err.Error()))
		return err
	}
	fmt.Println(renderRecord(rec, c.Verbose))
	return nil
}

func readGame(path string) (protocol.Game, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return protocol.Game{}, err
		}
		defer f.Close()
		r = f
	}

	var game protocol.Game
	if err := protocol.Decode(r, &game); err != nil {
		return protocol.Game{}, fmt.Errorf("read game: %w", err)
	}
	return game, nil
}

// decideOnce runs the configured strategy against game with the given
// starting counters and records the outcome.
func decideOnce(ctx context.Context, a *app, gameID string, game protocol.Game, counters session.Counters) (decisionlog.Record, error) {
	player, ok := game.ActivePlayer()
	if !ok {
		return decisionlog.Record{}, fmt.Errorf("no active player hand found in game state")
	}

	g := &session.Game{ID: gameID, Counters: counters}
	if a.creds != nil {
		key, err := a.creds.Assign(gameID)
		if err != nil {
			return decisionlog.Record{}, err
		}
		g.Credential = key
	}

	turn := strategy.Turn{GameID: gameID, Hand: player.Hand, Stock: &game.Stock}
	strategy.Prepare(a.strategy, turn, g)
	before := g.Counters
	out, err := a.strategy.Decide(ctx, turn, g)
	if err != nil {
		return decisionlog.Record{}, err
	}

	rec := decisionlog.Record{
		GameID:     gameID,
		Turn:       g.Counters.Turn,
		Strategy:   a.strategy.Name(),
		Hand:       cards.Quantities(player.Hand),
		Stock:      cards.Quantities(&game.Stock),
		Before:     before,
		After:      g.Counters,
		Prompt:     out.Prompt,
		Completion: out.Completion,
		Reasoning:  out.Reasoning,
		Decision:   out.Decision.String(),
		Timestamp:  time.Now(),
	}
	if err := a.sink.Write(ctx, rec); err != nil {
		a.logger.Warn("Failed to record decision", "game", gameID, "error", err)
	}
	return rec, nil
}
