package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"nutrition-bot/internal/classifier"
	"nutrition-bot/internal/config"
	"nutrition-bot/internal/database"
	"nutrition-bot/internal/llm"
	"nutrition-bot/internal/logging"
	"nutrition-bot/internal/meal"
	"nutrition-bot/internal/metrics"
	"nutrition-bot/internal/recommend"
	"nutrition-bot/internal/report"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg)
	ctx := context.Background()

	db, err := database.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	mealRepo := meal.NewRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL, logger)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "report":
		reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
		user := reportCmd.String("user", "", "User ID to report on")
		noModel := reportCmd.Bool("no-model", false, "Skip model suggestions, use the canned ones")
		reportCmd.Parse(os.Args[2:])
		if *user == "" {
			log.Fatal("report requires --user")
		}

		var source report.SuggestionSource = noModelSource{}
		if !*noModel {
			gateway, closeGateway := newGateway(ctx, cfg, metricsStore, logger)
			defer closeGateway()
			source = gateway
		}

		reports := report.NewService(mealRepo, source, logger)
		text, err := reports.Weekly(ctx, *user, time.Now())
		if err != nil {
			log.Fatalf("Failed to build report: %v", err)
		}
		fmt.Println(text)

	case "recommend":
		recommendCmd := flag.NewFlagSet("recommend", flag.ExitOnError)
		user := recommendCmd.String("user", "", "User ID to recommend for")
		recommendCmd.Parse(os.Args[2:])
		if *user == "" {
			log.Fatal("recommend requires --user")
		}

		gateway, closeGateway := newGateway(ctx, cfg, metricsStore, logger)
		defer closeGateway()

		recommender := recommend.NewService(mealRepo, gateway, logger)
		fmt.Println(recommender.Recommend(ctx, *user))

	case "metrics-usage":
		usageCmd := flag.NewFlagSet("metrics-usage", flag.ExitOnError)
		days := usageCmd.Int("days", 7, "Show usage for the last N days")
		usageCmd.Parse(os.Args[2:])

		usage, err := metricsStore.GetDailyUsage(*days)
		if err != nil {
			log.Fatalf("Failed to fetch usage: %v", err)
		}
		if len(usage) == 0 {
			fmt.Println("No model calls recorded.")
			return
		}
		for _, d := range usage {
			fmt.Printf("%s  prompt=%d completion=%d calls=%d\n", d.Date, d.PromptTokens, d.CompletionTokens, d.Calls)
		}

	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := metricsStore.Cleanup(*days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old call records.\n", affected)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// newGateway builds the model-backed gateway shared by the model-calling
// commands.
func newGateway(ctx context.Context, cfg *config.Config, metricsStore *metrics.Store, logger *slog.Logger) (*classifier.Service, func()) {
	if err := cfg.ValidateModel(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	geminiClient, err := llm.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini client: %v", err)
	}

	gateway := classifier.NewService(
		geminiClient,
		classifier.NewHTTPImageFetcher(),
		metricsStore,
		nil,
		cfg.LLMTimeout,
		logger,
	)
	return gateway, func() { geminiClient.Close() }
}

// noModelSource forces canned suggestions when the CLI runs without a model.
type noModelSource struct{}

func (noModelSource) Freeform(ctx context.Context, operation string, payload any) (string, error) {
	return "", errors.New("model disabled")
}

func printUsage() {
	fmt.Println("Usage: nutritionctl <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  report --user <id> [--no-model]   Print the weekly progress report")
	fmt.Println("  recommend --user <id>             Print food recommendations")
	fmt.Println("  metrics-usage --days <n>          Show model usage for the last N days")
	fmt.Println("  metrics-cleanup --days <n>        Remove call records older than N days")
}
