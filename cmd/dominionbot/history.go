package main

import (
	"context"
	"fmt"

	"github.com/lox/dominionbot/internal/decisionlog"
)

// HistoryCmd prints decisions recorded by the SQLite sink.
type HistoryCmd struct {
	Database string `arg:"" help:"SQLite database written by serve --sqlite"`
	Game     string `kong:"help='Only show this game id'"`
	Limit    int    `kong:"short='n',default='20',help='Number of records to show'"`
	Verbose  bool   `kong:"short='V',help='Show prompts'"`
}

func (c *HistoryCmd) Run() error {
	ctx := context.Background()
	db, err := decisionlog.NewSQLiteSink(ctx, c.Database, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.Recent(ctx, c.Game, c.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(dimStyle.Render("no decisions recorded"))
		return nil
	}
	// Oldest first reads like a game log
	for i := len(records) - 1; i >= 0; i-- {
		fmt.Println(renderRecord(records[i], c.Verbose))
	}
	return nil
}
