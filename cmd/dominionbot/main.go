package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" help:"Serve arbiter callbacks"`
	Decide  DecideCmd        `cmd:"" help:"Decide one /play payload offline"`
	Probe   ProbeCmd         `cmd:"" help:"Drive a running bot through a short game"`
	History HistoryCmd       `cmd:"" help:"Show decisions recorded in a SQLite database"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dominionbot"),
		kong.Description("Decision service for Dominion-style card game arbiters"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
