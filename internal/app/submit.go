package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"nutrition-bot/internal/meal"
	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/report"
)

// MealSubmission is one user meal-logging request.
type MealSubmission struct {
	UserID      string
	ImageRef    string
	Description string
}

const tipInstructions = "You are a helpful nutrition assistant. The user just logged a meal called \"{food_name}\" " +
	"with the above food group fractions (where each fraction is the portion of that group's weekly target). " +
	"Based on this, provide a short (1–2 sentence) tip that: " +
	"1) Mentions the food_name explicitly and praises its healthy qualities (e.g., if vegetables fraction is high, praise that). " +
	"2) Suggests a complementary action or food (e.g., drink water afterward). " +
	"3) Does not include any JSON—just plain, friendly advice."

// SubmitMeal runs the full pipeline for one meal and returns the messages to
// deliver, in order: breakdown, tip, weekly progress. Classification and
// persistence failures each collapse the result to a single apology.
// Submissions for the same user run one at a time.
func (a *App) SubmitMeal(ctx context.Context, sub MealSubmission) []string {
	logger := a.logger.With(
		slog.String("submission_id", uuid.NewString()),
		slog.String("user_id", sub.UserID),
	)

	lock := a.userLock(sub.UserID)
	lock.Lock()
	defer lock.Unlock()

	logger.Info("classifying meal")
	classification, err := a.classifier.Classify(ctx, sub.ImageRef, sub.Description)
	if err != nil {
		logger.Error("classification failed", slog.Any("error", err))
		return []string{fmt.Sprintf(
			"😔 **Error:** Unable to classify your meal at the moment. Please try again later.\n**Details:** %v",
			err,
		)}
	}

	foodName := a.foodName(ctx, logger, sub)
	breakdown := report.Breakdown(classification)
	tip := a.mealTip(ctx, logger, foodName, classification)

	_, err = a.meals.Append(ctx, meal.Record{
		UserID:         sub.UserID,
		Timestamp:      time.Now(),
		ImageRef:       sub.ImageRef,
		Description:    sub.Description,
		Classification: classification,
	})
	if err != nil {
		logger.Error("failed to save meal", slog.Any("error", err))
		return []string{"😔 Sorry, I couldn't save your meal right now. Please try again later."}
	}
	logger.Info("meal saved", slog.String("food_name", foodName))

	messages := []string{breakdown, "💡 **Meal Tip:** " + tip}

	progress, err := a.reports.Weekly(ctx, sub.UserID, time.Now())
	if err != nil {
		logger.Error("failed to build weekly report", slog.Any("error", err))
		return messages
	}
	return append(messages, "🍽️ **Weekly Progress:**\n"+progress)
}

// foodName picks the name used in the tip: the user's own description wins,
// then image inference, then a generic fallback.
func (a *App) foodName(ctx context.Context, logger *slog.Logger, sub MealSubmission) string {
	if sub.Description != "" {
		return sub.Description
	}
	if sub.ImageRef == "" {
		return "your meal"
	}

	name, err := a.classifier.InferName(ctx, sub.ImageRef)
	if err != nil {
		logger.Error("failed to infer food name", slog.Any("error", err))
		return "your meal"
	}
	if name == "" {
		return "your meal"
	}
	return name
}

// mealTip asks the model for a short tip about the logged meal. Tips are
// decorative: any failure falls back to a fixed encouragement.
func (a *App) mealTip(ctx context.Context, logger *slog.Logger, foodName string, c nutrition.Classification) string {
	payload := map[string]any{
		"food_name":      foodName,
		"classification": c,
		"instructions":   strings.ReplaceAll(tipInstructions, "{food_name}", foodName),
	}

	tip, err := a.classifier.Freeform(ctx, "meal_tip", payload)
	if err != nil {
		logger.Error("failed to generate meal tip", slog.Any("error", err))
		return fmt.Sprintf("Enjoy your %s! Stay hydrated and keep up the good choices.", foodName)
	}
	if tip == "" {
		return fmt.Sprintf("Enjoy your %s! Stay hydrated and keep up the good choices.", foodName)
	}
	return tip
}
