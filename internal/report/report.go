package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"nutrition-bot/internal/nutrition"
)

// Store is the slice of the meal store the reporter reads from.
type Store interface {
	Classifications(ctx context.Context, userID string, since *time.Time) ([]nutrition.Classification, error)
}

// SuggestionSource issues the batched freeform exchange used for per-group
// suggestions.
type SuggestionSource interface {
	Freeform(ctx context.Context, operation string, payload any) (string, error)
}

// GroupProgress is one group's standing against its weekly goal.
type GroupProgress struct {
	Group   nutrition.Group
	Percent int
}

// AggregateReport is a user's weekly progress snapshot. Progress is always
// in canonical group order; Suggestions holds entries only for groups under
// 100%.
type AggregateReport struct {
	Progress    []GroupProgress
	Suggestions map[nutrition.Group]string
	Canned      bool
}

const suggestionInstructions = "Return valid JSON ONLY—no extra text.  " +
	"Structure: { \"fruits\": \"single-sentence suggestion\", \"vegetables\": \"single-sentence suggestion\", … }.  " +
	"For each food group below 100%, recommend a specific food or meal that will help achieve 100% " +
	"of that week's goal.  Consider the weekly targets:\n" + nutrition.WeeklyTargets + "\n\n" +
	"Output only the JSON object."

var cannedSuggestions = map[nutrition.Group]string{
	nutrition.Fruits:     "🍓 Try adding a serving of berries or an apple.",
	nutrition.Vegetables: "🥗 Consider a side salad with mixed greens.",
	nutrition.Grains:     "🍞 Have a slice of whole-grain toast or a bowl of oats.",
	nutrition.Protein:    "🍗 Grill a chicken breast or add beans to your meal.",
	nutrition.Dairy:      "🥛 Drink a cup of low-fat yogurt or milk.",
	nutrition.Oils:       "🥜 Cook with olive oil or snack on a handful of nuts.",
}

// Service aggregates stored meals into weekly progress and renders reports.
type Service struct {
	store   Store
	gateway SuggestionSource
	logger  *slog.Logger
}

// NewService wires the reporter.
func NewService(store Store, gateway SuggestionSource, logger *slog.Logger) *Service {
	return &Service{store: store, gateway: gateway, logger: logger}
}

// StartOfWeek returns the most recent Monday 00:00 UTC at or before now.
func StartOfWeek(now time.Time) time.Time {
	now = now.UTC()
	offset := (int(now.Weekday()) + 6) % 7
	day := now.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// percentOf converts a cumulative weekly fraction into a clamped percent of
// the weekly goal. Each stored fraction is already a fraction of the weekly
// target, so the division by 7 normalizes a week of per-meal contributions.
func percentOf(cumulative float64) int {
	fraction := cumulative / 7.0
	if fraction > 1.0 {
		fraction = 1.0
	}
	return int(fraction * 100)
}

// Aggregate sums this week's stored fractions for the user and converts
// each group into a percent of its weekly goal.
func (s *Service) Aggregate(ctx context.Context, userID string, now time.Time) (AggregateReport, error) {
	since := StartOfWeek(now)
	classifications, err := s.store.Classifications(ctx, userID, &since)
	if err != nil {
		return AggregateReport{}, fmt.Errorf("failed to load weekly meals: %w", err)
	}

	rep := AggregateReport{Progress: make([]GroupProgress, 0, 6)}
	for _, g := range nutrition.Groups() {
		var cumulative float64
		for _, c := range classifications {
			cumulative += c.Value(g)
		}
		rep.Progress = append(rep.Progress, GroupProgress{Group: g, Percent: percentOf(cumulative)})
	}
	return rep, nil
}

// Weekly builds the full weekly progress report text for a user.
func (s *Service) Weekly(ctx context.Context, userID string, now time.Time) (string, error) {
	rep, err := s.Aggregate(ctx, userID, now)
	if err != nil {
		return "", err
	}
	s.fillSuggestions(ctx, &rep)
	return Render(rep), nil
}

// fillSuggestions asks the model for one batched set of suggestions covering
// every under-100% group, and falls back to the canned set when the exchange
// fails in any way. A report with no under-100% groups gets none.
func (s *Service) fillSuggestions(ctx context.Context, rep *AggregateReport) {
	flagged := make([]nutrition.Group, 0, len(rep.Progress))
	percentages := make(map[string]int, len(rep.Progress))
	for _, gp := range rep.Progress {
		percentages[string(gp.Group)] = gp.Percent
		if gp.Percent < 100 {
			flagged = append(flagged, gp.Group)
		}
	}
	if len(flagged) == 0 {
		return
	}

	payload := map[string]any{
		"current_percentages": percentages,
		"instructions":        suggestionInstructions,
	}

	reply, err := s.gateway.Freeform(ctx, "report_suggestions", payload)
	if err != nil || reply == "" {
		s.logger.Warn("suggestion request failed, using canned suggestions", slog.Any("error", err))
		rep.Suggestions, rep.Canned = canned(flagged), true
		return
	}

	span, err := nutrition.ExtractJSONObject(reply)
	if err != nil {
		s.logger.Error("suggestion extraction failed", slog.String("raw_response", reply), slog.Any("error", err))
		rep.Suggestions, rep.Canned = canned(flagged), true
		return
	}

	var parsed map[string]string
	if err := json.Unmarshal([]byte(span), &parsed); err != nil {
		s.logger.Error("suggestion parse failed", slog.String("extracted", span), slog.Any("error", err))
		rep.Suggestions, rep.Canned = canned(flagged), true
		return
	}
	if len(parsed) == 0 {
		rep.Suggestions, rep.Canned = canned(flagged), true
		return
	}

	// A non-empty reply is trusted as-is: suggestions are kept only for
	// flagged groups it names, and groups it skips simply get no line.
	suggestions := make(map[nutrition.Group]string, len(flagged))
	for _, g := range flagged {
		if text, ok := parsed[string(g)]; ok && text != "" {
			suggestions[g] = text
		}
	}
	rep.Suggestions = suggestions
}

func canned(flagged []nutrition.Group) map[nutrition.Group]string {
	suggestions := make(map[nutrition.Group]string, len(flagged))
	for _, g := range flagged {
		suggestions[g] = cannedSuggestions[g]
	}
	return suggestions
}
