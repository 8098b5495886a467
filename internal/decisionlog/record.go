// Package decisionlog persists one record per /play decision.
//
// Records are written after the decision has been made; a sink failure is
// reported to the caller but is never allowed to change the decision.
package decisionlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lox/dominionbot/internal/session"
)

// Record is the immutable artifact kept for a single /play call.
type Record struct {
	ID         string           `json:"id"`
	GameID     string           `json:"game_id"`
	Turn       int              `json:"turn"`
	Strategy   string           `json:"strategy"`
	Hand       map[string]int   `json:"hand"`
	Stock      map[string]int   `json:"stock"`
	Before     session.Counters `json:"counters_before"`
	After      session.Counters `json:"counters_after"`
	Prompt     string           `json:"prompt,omitempty"`
	Completion string           `json:"completion,omitempty"`
	Reasoning  string           `json:"reasoning,omitempty"`
	Decision   string           `json:"decision"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Sink stores decision records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// Nop discards every record.
type Nop struct{}

func (Nop) Write(context.Context, Record) error { return nil }

// Multi fans a record out to several sinks. Every sink is attempted; the
// errors are joined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// stamp fills the fields a sink needs but a caller may have left empty.
func stamp(rec Record, now time.Time) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	return rec
}
