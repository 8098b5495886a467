package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/dominionbot/internal/decisionlog"
	"github.com/lox/dominionbot/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Width(12)

	decisionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// formatPile renders a card multiset as "copper x5, smithy x1".
func formatPile(q map[string]int) string {
	names := make([]string, 0, len(q))
	for name, n := range q {
		if n > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return dimStyle.Render("empty")
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s x%d", name, q[name])
	}
	return strings.Join(parts, ", ")
}

func formatCounters(c session.Counters) string {
	return fmt.Sprintf("turn %d  actions %d  buys %d  coins %d", c.Turn, c.Actions, c.Buys, c.Coins)
}

// renderRecord draws one decision record as a bordered box.
func renderRecord(rec decisionlog.Record, verbose bool) string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s  turn %d", rec.GameID, rec.Turn)),
		row("strategy", rec.Strategy),
		row("hand", formatPile(rec.Hand)),
		row("supply", formatPile(rec.Stock)),
		row("before", formatCounters(rec.Before)),
		row("after", formatCounters(rec.After)),
		row("decision", decisionStyle.Render(rec.Decision)),
	}
	if rec.Reasoning != "" {
		lines = append(lines, row("reasoning", dimStyle.Render(rec.Reasoning)))
	}
	if verbose && rec.Prompt != "" {
		lines = append(lines, "", dimStyle.Render(rec.Prompt))
	}
	if rec.Completion != "" {
		lines = append(lines, row("completion", rec.Completion))
	}
	if !rec.Timestamp.IsZero() {
		lines = append(lines, row("at", dimStyle.Render(rec.Timestamp.Format("2006-01-02 15:04:05.000000"))))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
