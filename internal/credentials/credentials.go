// Package credentials hands out completion API keys to games.
package credentials

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"strings"
	"sync"
)

// ErrNoCredentials is returned when the pool holds no usable key.
var ErrNoCredentials = errors.New("no API credentials configured")

// Provider assigns one credential to a game. Implementations decide how the
// credential is chosen; callers keep the result for the game's lifetime.
type Provider interface {
	Assign(gameID string) (string, error)
}

// Pool picks a key uniformly at random for every new game.
type Pool struct {
	mu   sync.Mutex
	keys []string
	rng  *rand.Rand
}

// NewPool builds a pool from keys, dropping blanks and duplicates.
func NewPool(keys []string, rng *rand.Rand) (*Pool, error) {
	seen := make(map[string]bool, len(keys))
	var clean []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		clean = append(clean, k)
	}
	if len(clean) == 0 {
		return nil, ErrNoCredentials
	}
	if rng == nil {
		return nil, fmt.Errorf("credentials: rng is required")
	}
	return &Pool{keys: clean, rng: rng}, nil
}

// Assign implements Provider.
func (p *Pool) Assign(_ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", ErrNoCredentials
	}
	return p.keys[p.rng.IntN(len(p.keys))], nil
}

// Size returns the number of keys in the pool.
func (p *Pool) Size() int {
	return len(p.keys)
}

// Static always assigns the same key. Useful for single-key deployments and tests.
type Static string

// Assign implements Provider.
func (s Static) Assign(_ string) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoCredentials
	}
	return string(s), nil
}

// Redact shortens a key for logging.
func Redact(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}
