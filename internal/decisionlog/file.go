package decisionlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/quartz"

	"github.com/lox/dominionbot/internal/fileutil"
)

// FileSink writes each record as its own JSON file named
// <game>_turn<NNN>_<unixmicro>.json inside Dir.
type FileSink struct {
	dir   string
	clock quartz.Clock

	mu   sync.Mutex
	last int64
}

// NewFileSink creates dir if needed. A nil clock uses the wall clock.
func NewFileSink(dir string, clock quartz.Clock) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("decision directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create decision directory: %w", err)
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &FileSink{dir: dir, clock: clock}, nil
}

// Dir returns the directory records are written to.
func (s *FileSink) Dir() string { return s.dir }

func (s *FileSink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = stamp(rec, s.clock.Now())

	path := filepath.Join(s.dir, fmt.Sprintf("%s_turn%03d_%d.json",
		fileutil.SafeName(rec.GameID), rec.Turn, s.nextMicro(rec)))
	if err := fileutil.WriteJSONAtomic(path, rec, 0o644); err != nil {
		return fmt.Errorf("write decision record: %w", err)
	}
	return nil
}

// nextMicro returns the record's microsecond timestamp, bumped past the last
// one issued so two records in the same microsecond never share a file.
func (s *FileSink) nextMicro(rec Record) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	us := rec.Timestamp.UnixMicro()
	if us <= s.last {
		us = s.last + 1
	}
	s.last = us
	return us
}
