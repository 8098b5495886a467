package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/dominionbot/cmd/dominionbot/shared"
	"github.com/lox/dominionbot/internal/config"
	"github.com/lox/dominionbot/internal/credentials"
	"github.com/lox/dominionbot/internal/decisionlog"
	"github.com/lox/dominionbot/internal/llm"
	"github.com/lox/dominionbot/internal/randutil"
	"github.com/lox/dominionbot/internal/strategy"
)

// Overrides are the command-line flags that take precedence over the
// config file and environment.
type Overrides struct {
	Config       string  `kong:"short='c',default='dominionbot.hcl',help='HCL config file (ignored if missing)'"`
	Strategy     string  `kong:"help='Decision strategy (heuristic or llm)'"`
	Debug        bool    `kong:"help='Enable debug logging'"`
	LogFormat    string  `kong:"help='Log format (text or json)'"`
	DecisionsDir string  `kong:"help='Write one JSON file per /play decision to this directory'"`
	SQLite       string  `kong:"name='sqlite',help='Append /play decisions to this SQLite database'"`
	Seed         *int64  `kong:"help='Deterministic seed for API key assignment'"`
	Model        string  `kong:"help='Completion model for the llm strategy'"`
	Temperature  float64 `kong:"help='Completion temperature for the llm strategy'"`
}

// load resolves configuration: defaults, then file, then environment, then flags.
func (o Overrides) load() (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}

	if o.Strategy != "" {
		cfg.Strategy = o.Strategy
	}
	if o.Debug {
		cfg.Server.LogLevel = "debug"
	}
	if o.LogFormat != "" {
		cfg.Server.LogFormat = o.LogFormat
	}
	if o.DecisionsDir != "" {
		cfg.Decisions.Dir = o.DecisionsDir
	}
	if o.SQLite != "" {
		cfg.Decisions.SQLitePath = o.SQLite
	}
	if o.Seed != nil {
		cfg.Credentials.Seed = o.Seed
	}
	if o.Model != "" {
		cfg.LLM.Model = o.Model
	}
	if o.Temperature != 0 {
		t := o.Temperature
		cfg.LLM.Temperature = &t
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app holds everything built from configuration.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	strategy strategy.Strategy
	creds    credentials.Provider
	sink     decisionlog.Sink
	closers  []func() error
}

func (o Overrides) build(ctx context.Context) (*app, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	logger, err := shared.SetupLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, sink: decisionlog.Nop{}}

	switch cfg.Strategy {
	case config.StrategyLLM:
		client := llm.NewClient(cfg.LLMConfig(), logger)
		a.strategy = strategy.NewLLM(client, logger)
		a.creds = a.buildCredentials()
		logger.Info("Using llm strategy", "model", client.Model(), "keys", len(cfg.Credentials.Keys))
	default:
		a.strategy = strategy.NewHeuristic(logger, cfg.Heuristic.ActionRules(), cfg.Heuristic.BuyRules())
		logger.Info("Using heuristic strategy")
	}

	var sinks decisionlog.Multi
	if dir := cfg.Decisions.Dir; dir != "" {
		fs, err := decisionlog.NewFileSink(dir, nil)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
		logger.Info("Recording decisions to files", "dir", dir)
	}
	if path := cfg.Decisions.SQLitePath; path != "" {
		db, err := decisionlog.NewSQLiteSink(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, db)
		a.closers = append(a.closers, db.Close)
		logger.Info("Recording decisions to sqlite", "path", path)
	}
	if len(sinks) > 0 {
		a.sink = sinks
	}
	return a, nil
}

// buildCredentials returns a random pool, or an empty provider that fails
// every game start when no keys are configured.
func (a *app) buildCredentials() credentials.Provider {
	rng, seed := randutil.Resolve(a.cfg.Credentials.Seed)
	pool, err := credentials.NewPool(a.cfg.Credentials.Keys, rng)
	if err != nil {
		a.logger.Warn("No API keys configured, games will be rejected at start", "error", err)
		return credentials.Static("")
	}
	a.logger.Debug("Credential pool ready", "size", pool.Size(), "seed", seed)
	return pool
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
