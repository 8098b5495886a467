package shared

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// SetupLogger builds the root logger. format is "text" for pretty console
// output or "json" for structured output.
func SetupLogger(level, format string) (*log.Logger, error) {
	return NewLogger(os.Stderr, level, format)
}

// NewLogger is SetupLogger with an explicit destination.
func NewLogger(w io.Writer, level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}
	switch format {
	case "", "text":
	case "json":
		opts.Formatter = log.JSONFormatter
		opts.TimeFormat = time.RFC3339Nano
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return log.NewWithOptions(w, opts), nil
}
