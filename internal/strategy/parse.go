package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnparseable is returned when completion text matches none of the
// accepted forms.
var ErrUnparseable = errors.New("unparseable completion")

// Verb is the first word of a completion answer.
type Verb string

const (
	VerbPlay    Verb = "PLAY"
	VerbBuy     Verb = "BUY"
	VerbEndTurn Verb = "END_TURN"
)

// Command is a parsed completion answer.
type Command struct {
	Verb Verb
	Card string
}

// Decision converts the command to its arbiter decision. PLAY is sent as ACTION.
func (c Command) Decision() Decision {
	switch c.Verb {
	case VerbPlay:
		return Decision{Kind: Action, Card: c.Card}
	case VerbBuy:
		return Decision{Kind: Buy, Card: c.Card}
	default:
		return Decision{Kind: EndTurn}
	}
}

// ParseCompletion reads the first non-empty line of text, which must be one of
//
//	PLAY <card>
//	BUY <card>
//	END_TURN
//
// Keywords are case-insensitive and card names are lower-cased. Markdown
// emphasis and a trailing period are tolerated.
func ParseCompletion(text string) (Command, error) {
	line := firstLine(text)
	line = strings.Trim(line, "`*\"' ")
	line = strings.TrimRight(line, ".!")
	if line == "" {
		return Command{}, fmt.Errorf("%w: empty", ErrUnparseable)
	}

	fields := strings.Fields(line)
	verb := Verb(strings.ToUpper(fields[0]))

	switch verb {
	case VerbEndTurn:
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("%w: %q", ErrUnparseable, line)
		}
		return Command{Verb: VerbEndTurn}, nil
	case VerbPlay, VerbBuy:
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: %q", ErrUnparseable, line)
		}
		card := strings.ToLower(strings.Trim(fields[1], ".,;:!`*\"'"))
		if card == "" {
			return Command{}, fmt.Errorf("%w: %q", ErrUnparseable, line)
		}
		return Command{Verb: verb, Card: card}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnparseable, line)
	}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
