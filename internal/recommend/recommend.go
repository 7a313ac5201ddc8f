package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"nutrition-bot/internal/llm"
	"nutrition-bot/internal/nutrition"
)

// Store is the slice of the meal store the recommender reads from.
type Store interface {
	Classifications(ctx context.Context, userID string, since *time.Time) ([]nutrition.Classification, error)
}

// Source issues the freeform model exchange.
type Source interface {
	Freeform(ctx context.Context, operation string, payload any) (string, error)
}

// Recommendations are best-effort: every failure maps to one of these fixed
// strings instead of an error.
const (
	fallbackPreferences = "Sorry, I couldn't fetch your food preferences right now. Please try again later."
	fallbackCall        = "Sorry, I couldn't fetch recommendations right now. Please try again later."
	fallbackEmpty       = "Sorry, Gemini returned no recommendations."
	fallbackFormat      = "Sorry, I received an unexpected response format from Gemini."
	fallbackNoMatches   = "I couldn't find any specific recommendations right now. Try eating a balanced meal!"
)

const instructions = "You are a recommendation assistant. Respond with valid JSON ONLY—no extra text or formatting.  " +
	"Return exactly this structure: { \"recommendations\": [\"food1\", \"food2\", …] }.  " +
	"Based on the user's cumulative weekly food group intake fractions (each between 0.0 and 1.0), " +
	"and considering the following weekly targets:\n" + nutrition.WeeklyTargets + "\n\n" +
	"Suggest specific foods or meals that will help them meet or exceed 100% of each group's weekly goal.  " +
	"Output only the JSON object."

// Service builds food recommendations from a user's full meal history.
type Service struct {
	store  Store
	source Source
	logger *slog.Logger
}

// NewService wires the recommender.
func NewService(store Store, source Source, logger *slog.Logger) *Service {
	return &Service{store: store, source: source, logger: logger}
}

// Recommend sums the user's entire history into a preference profile, asks
// the model for foods that would close the remaining gaps, and returns the
// resulting text. It never fails the caller.
func (s *Service) Recommend(ctx context.Context, userID string) string {
	classifications, err := s.store.Classifications(ctx, userID, nil)
	if err != nil {
		s.logger.Error("failed to load preference history",
			slog.String("user_id", userID), slog.Any("error", err))
		return fallbackPreferences
	}

	// Unclamped accumulation: the profile describes what the user eats, not
	// progress against a goal.
	preferences := make(map[string]float64, 6)
	for _, g := range nutrition.Groups() {
		var sum float64
		for _, c := range classifications {
			sum += c.Value(g)
		}
		preferences[string(g)] = sum
	}

	payload := map[string]any{
		"preferences":  preferences,
		"instructions": instructions,
	}

	reply, err := s.source.Freeform(ctx, "recommend", payload)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return fallbackEmpty
		}
		s.logger.Error("recommendation call failed", slog.Any("error", err))
		return fallbackCall
	}
	if reply == "" {
		return fallbackEmpty
	}

	span, err := nutrition.ExtractJSONObject(reply)
	if err != nil {
		s.logger.Error("recommendation extraction failed",
			slog.String("raw_response", reply), slog.Any("error", err))
		return fallbackFormat
	}

	var parsed struct {
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(span), &parsed); err != nil {
		s.logger.Error("recommendation parse failed",
			slog.String("extracted", span), slog.Any("error", err))
		return fallbackFormat
	}

	if len(parsed.Recommendations) == 0 {
		return fallbackNoMatches
	}
	return "Here are some food recommendations for you: " + strings.Join(parsed.Recommendations, ", ")
}
