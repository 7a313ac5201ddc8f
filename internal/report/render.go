package report

import (
	"fmt"
	"strings"

	"nutrition-bot/internal/nutrition"
)

// Render writes the fixed-order progress report: one bar line per group in
// canonical order, then the suggestions section. The suggestions header is
// always present, even when every goal is met.
func Render(rep AggregateReport) string {
	lines := []string{"**📊 Weekly Food Intake Progress:**"}

	width := maxTitleWidth()
	for _, gp := range rep.Progress {
		lines = append(lines, fmt.Sprintf("- **%-*s**: [%s] %d%% of weekly goal",
			width, gp.Group.Title(), bar(gp.Percent), gp.Percent))
	}

	lines = append(lines, "\n**💡 Suggestions to Complete Weekly Targets:**")
	for _, gp := range rep.Progress {
		if gp.Percent >= 100 {
			continue
		}
		suggestion, ok := rep.Suggestions[gp.Group]
		if !ok {
			continue
		}
		if rep.Canned {
			lines = append(lines, fmt.Sprintf("- **%-*s**: %s", width, gp.Group.Title(), suggestion))
		} else {
			lines = append(lines, fmt.Sprintf("- **%s**: %s", gp.Group.Title(), suggestion))
		}
	}

	return strings.Join(lines, "\n")
}

// Breakdown renders the per-meal fraction summary sent right after a meal
// is classified.
func Breakdown(c nutrition.Classification) string {
	lines := []string{"**📝 Current Meal Breakdown (fractions of weekly goals):**"}
	for _, g := range nutrition.Groups() {
		lines = append(lines, fmt.Sprintf("- **%-10s**: %.2f", g.Title(), c.Value(g)))
	}
	return strings.Join(lines, "\n")
}

// bar renders a ten-segment progress bar, one filled segment per full 10%.
func bar(percent int) string {
	filled := percent / 10
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func maxTitleWidth() int {
	width := 0
	for _, g := range nutrition.Groups() {
		if n := len(g.Title()); n > width {
			width = n
		}
	}
	return width
}
