// Package config loads the bot's settings from an HCL file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/dominionbot/internal/llm"
	"github.com/lox/dominionbot/internal/protocol"
	"github.com/lox/dominionbot/internal/strategy"
)

// Strategy kinds accepted in configuration.
const (
	StrategyHeuristic = "heuristic"
	StrategyLLM       = "llm"
)

// Config is the complete bot configuration.
type Config struct {
	Strategy    string
	Server      ServerSettings
	LLM         LLMSettings
	Credentials CredentialSettings
	Decisions   DecisionSettings
	Heuristic   HeuristicSettings
}

// ServerSettings contains listener and logging configuration.
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	Name      string `hcl:"name,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
}

// LLMSettings configures the completion client.
type LLMSettings struct {
	BaseURL     string   `hcl:"base_url,optional"`
	Model       string   `hcl:"model,optional"`
	Temperature *float64 `hcl:"temperature,optional"`
	MaxTokens   int64    `hcl:"max_tokens,optional"`
}

// CredentialSettings lists the API keys handed out to games.
type CredentialSettings struct {
	Keys []string `hcl:"keys,optional"`
	// Seed makes key assignment reproducible; nil seeds from the clock.
	Seed *int64 `hcl:"seed,optional"`
}

// DecisionSettings configures where /play decisions are recorded. Both
// destinations are optional and may be combined.
type DecisionSettings struct {
	Dir        string `hcl:"dir,optional"`
	SQLitePath string `hcl:"sqlite_path,optional"`
}

// HeuristicSettings overrides the heuristic's rule lists. An empty list keeps
// the built-in rules.
type HeuristicSettings struct {
	Actions []RuleConfig `hcl:"action,block"`
	Buys    []RuleConfig `hcl:"buy,block"`
}

// RuleConfig is one heuristic rule, labelled by card name.
type RuleConfig struct {
	Card     string `hcl:"card,label"`
	MinCoins int    `hcl:"min_coins,optional"`
	Consumes *bool  `hcl:"consumes,optional"`
}

// fileConfig mirrors the HCL layout. Every block is optional.
type fileConfig struct {
	Strategy    string              `hcl:"strategy,optional"`
	Server      *ServerSettings     `hcl:"server,block"`
	LLM         *LLMSettings        `hcl:"llm,block"`
	Credentials *CredentialSettings `hcl:"credentials,block"`
	Decisions   *DecisionSettings   `hcl:"decisions,block"`
	Heuristic   *HeuristicSettings  `hcl:"heuristic,block"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	temperature := llm.DefaultTemperature
	return &Config{
		Strategy: StrategyHeuristic,
		Server: ServerSettings{
			Address:   ":8000",
			Name:      protocol.DefaultBotName,
			LogLevel:  "info",
			LogFormat: "text",
		},
		LLM: LLMSettings{
			Model:       llm.DefaultModel,
			Temperature: &temperature,
			MaxTokens:   llm.DefaultMaxTokens,
		},
	}
}

// Load reads filename, falling back to defaults when it does not exist.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	src, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes HCL source and applies defaults for anything left unset.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &fc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := Default()
	if fc.Strategy != "" {
		cfg.Strategy = fc.Strategy
	}
	if s := fc.Server; s != nil {
		setString(&cfg.Server.Address, s.Address)
		setString(&cfg.Server.Name, s.Name)
		setString(&cfg.Server.LogLevel, s.LogLevel)
		setString(&cfg.Server.LogFormat, s.LogFormat)
	}
	if l := fc.LLM; l != nil {
		setString(&cfg.LLM.BaseURL, l.BaseURL)
		setString(&cfg.LLM.Model, l.Model)
		if l.Temperature != nil {
			cfg.LLM.Temperature = l.Temperature
		}
		if l.MaxTokens != 0 {
			cfg.LLM.MaxTokens = l.MaxTokens
		}
	}
	if c := fc.Credentials; c != nil {
		cfg.Credentials = *c
	}
	if d := fc.Decisions; d != nil {
		cfg.Decisions = *d
	}
	if h := fc.Heuristic; h != nil {
		cfg.Heuristic = *h
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// envOverlay lists the environment variables that override file settings.
type envOverlay struct {
	Strategy     string   `env:"DOMINIONBOT_STRATEGY"`
	Address      string   `env:"DOMINIONBOT_ADDRESS"`
	Name         string   `env:"DOMINIONBOT_NAME"`
	LogLevel     string   `env:"DOMINIONBOT_LOG_LEVEL"`
	LogFormat    string   `env:"DOMINIONBOT_LOG_FORMAT"`
	BaseURL      string   `env:"DOMINIONBOT_LLM_BASE_URL"`
	Model        string   `env:"DOMINIONBOT_LLM_MODEL"`
	APIKeys      []string `env:"DOMINIONBOT_API_KEYS" envSeparator:","`
	OpenAIKey    string   `env:"OPENAI_API_KEY"`
	DecisionsDir string   `env:"DOMINIONBOT_DECISIONS_DIR"`
	SQLitePath   string   `env:"DOMINIONBOT_DECISIONS_SQLITE"`
}

// ApplyEnv overlays environment variables onto c. A nil environ reads the
// process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var overlay envOverlay
	var err error
	if environ == nil {
		err = env.Parse(&overlay)
	} else {
		err = env.ParseWithOptions(&overlay, env.Options{Environment: environ})
	}
	if err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setString(&c.Strategy, overlay.Strategy)
	setString(&c.Server.Address, overlay.Address)
	setString(&c.Server.Name, overlay.Name)
	setString(&c.Server.LogLevel, overlay.LogLevel)
	setString(&c.Server.LogFormat, overlay.LogFormat)
	setString(&c.LLM.BaseURL, overlay.BaseURL)
	setString(&c.LLM.Model, overlay.Model)
	setString(&c.Decisions.Dir, overlay.DecisionsDir)
	setString(&c.Decisions.SQLitePath, overlay.SQLitePath)

	switch {
	case len(overlay.APIKeys) > 0:
		c.Credentials.Keys = overlay.APIKeys
	case overlay.OpenAIKey != "" && len(c.Credentials.Keys) == 0:
		c.Credentials.Keys = []string{overlay.OpenAIKey}
	}
	return nil
}

// Validate checks the configuration for values the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyHeuristic, StrategyLLM:
	default:
		return fmt.Errorf("invalid strategy %q: must be %s or %s", c.Strategy, StrategyHeuristic, StrategyLLM)
	}

	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("server address is required")
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if c.Server.LogFormat != "text" && c.Server.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q: must be text or json", c.Server.LogFormat)
	}

	if t := c.LLM.Temperature; t != nil && (*t <= 0 || *t > 2) {
		return fmt.Errorf("llm temperature must be in (0, 2], got %g", *t)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be positive")
	}

	for _, group := range []struct {
		kind  string
		rules []RuleConfig
	}{{"action", c.Heuristic.Actions}, {"buy", c.Heuristic.Buys}} {
		for _, r := range group.rules {
			if strings.TrimSpace(r.Card) == "" {
				return fmt.Errorf("heuristic %s rule: card is required", group.kind)
			}
			if r.MinCoins < 0 {
				return fmt.Errorf("heuristic %s rule %s: min_coins must not be negative", group.kind, r.Card)
			}
		}
	}
	return nil
}

// ActionRules returns the configured action rules, or nil for the defaults.
func (h HeuristicSettings) ActionRules() []strategy.Rule {
	return toRules(h.Actions)
}

// BuyRules returns the configured buy rules, or nil for the defaults.
func (h HeuristicSettings) BuyRules() []strategy.Rule {
	return toRules(h.Buys)
}

func toRules(in []RuleConfig) []strategy.Rule {
	if len(in) == 0 {
		return nil
	}
	out := make([]strategy.Rule, 0, len(in))
	for _, r := range in {
		consumes := true
		if r.Consumes != nil {
			consumes = *r.Consumes
		}
		out = append(out, strategy.Rule{
			Card:     strings.ToLower(strings.TrimSpace(r.Card)),
			MinCoins: r.MinCoins,
			Consumes: consumes,
		})
	}
	return out
}

// LLMConfig converts the settings into an llm.Config.
func (c *Config) LLMConfig() llm.Config {
	cfg := llm.Config{
		BaseURL:   c.LLM.BaseURL,
		Model:     c.LLM.Model,
		MaxTokens: c.LLM.MaxTokens,
	}
	if c.LLM.Temperature != nil {
		cfg.Temperature = *c.LLM.Temperature
	}
	return cfg
}
