package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nutrition-bot/internal/classifier"
	"nutrition-bot/internal/meal"
	"nutrition-bot/internal/recommend"
	"nutrition-bot/internal/report"
)

// App holds the bot's use cases and their dependencies.
type App struct {
	classifier  *classifier.Service
	meals       *meal.Repository
	reports     *report.Service
	recommender *recommend.Service
	logger      *slog.Logger

	// locks maps user IDs to the mutex serializing that user's submissions.
	locks sync.Map
}

// NewApp creates and initializes a new App instance.
func NewApp(
	classifier *classifier.Service,
	meals *meal.Repository,
	reports *report.Service,
	recommender *recommend.Service,
	logger *slog.Logger,
) *App {
	return &App{
		classifier:  classifier,
		meals:       meals,
		reports:     reports,
		recommender: recommender,
		logger:      logger,
	}
}

// FoodReport builds the weekly progress message for one user.
func (a *App) FoodReport(ctx context.Context, userID string) (string, error) {
	progress, err := a.reports.Weekly(ctx, userID, time.Now())
	if err != nil {
		return "", err
	}
	return "🍽️ **Weekly Progress:**\n" + progress, nil
}

// Recommend builds the food recommendation message for one user. The result
// is always sendable text.
func (a *App) Recommend(ctx context.Context, userID string) string {
	return a.recommender.Recommend(ctx, userID)
}

// userLock returns the mutex serializing submissions for one user.
func (a *App) userLock(userID string) *sync.Mutex {
	lock, _ := a.locks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
