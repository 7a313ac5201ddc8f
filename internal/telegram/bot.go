package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrition-bot/internal/app"
	"nutrition-bot/internal/config"
	"nutrition-bot/internal/metrics"
)

// Bot wraps the Telegram API around the meal pipeline.
type Bot struct {
	api          *tgbotapi.BotAPI
	app          *app.App
	metricsStore *metrics.Store
	cfg          *config.Config
	logger       *slog.Logger
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(
	cfg *config.Config,
	application *app.App,
	metricsStore *metrics.Store,
	logger *slog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	logger.Info("authorized on telegram", slog.String("account", api.Self.UserName))

	wh, _ := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Info("webhook set", slog.String("response", resp.Description))

	return &Bot{
		api:          api,
		app:          application,
		metricsStore: metricsStore,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// RegisterHandlers registers the webhook and health endpoints. The webhook is
// served on the exact path of the configured webhook URL, so callers that
// don't know the full URL never reach the bot.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc(b.webhookPath(), b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) webhookPath() string {
	u, err := url.Parse(b.cfg.TelegramWebhookURL)
	if err != nil || u.Path == "" {
		return "/webhook"
	}
	return u.Path
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.logger.Error("failed to parse update", slog.Any("error", err))
		return
	}

	if update.Message == nil {
		return
	}
	if !b.allowed(update.Message) {
		b.logger.Warn("ignoring message outside allowed chats",
			slog.Int64("chat_id", update.Message.Chat.ID))
		return
	}

	go b.processMessage(update.Message)
}

// allowed mirrors the submission gating: drop other bots' messages, accept
// private chats, and otherwise require the chat to be on the allowlist.
func (b *Bot) allowed(msg *tgbotapi.Message) bool {
	if msg.From == nil || msg.From.IsBot {
		return false
	}
	if msg.Chat.IsPrivate() {
		return true
	}
	for _, id := range b.cfg.TelegramAllowChats {
		if msg.Chat.ID == id {
			return true
		}
	}
	return false
}

const (
	routeFoodReport = "foodreport"
	routeRecommend  = "recommend"
	routeStats      = "llmstats"
	routeMeal       = "meal"
)

// route decides which handler a message's text belongs to. Anything that is
// not a known command counts as a meal submission.
func route(text string) string {
	cmd := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(cmd, "!foodreport"):
		return routeFoodReport
	case strings.HasPrefix(cmd, "!recommend"):
		return routeRecommend
	case strings.HasPrefix(cmd, "!llmstats"):
		return routeStats
	default:
		return routeMeal
	}
}

// messageText returns the user-typed text of a message: the text itself, or
// the caption when the message is a photo.
func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	switch route(messageText(msg)) {
	case routeStats:
		b.handleStatsRequest(msg)
	case routeFoodReport:
		b.handleFoodReport(msg)
	case routeRecommend:
		b.handleRecommend(msg)
	default:
		b.handleMealSubmission(msg)
	}
}

func (b *Bot) handleMealSubmission(msg *tgbotapi.Message) {
	imageRef := ""
	if len(msg.Photo) > 0 {
		fileURL, err := b.api.GetFileDirectURL(largestPhoto(msg.Photo))
		if err != nil {
			b.logger.Error("failed to resolve photo file", slog.Any("error", err))
		} else {
			imageRef = fileURL
		}
	}

	description := strings.TrimSpace(messageText(msg))
	if imageRef == "" && description == "" {
		b.logger.Info("ignoring message with no image or text",
			slog.Int64("chat_id", msg.Chat.ID))
		return
	}

	b.sendTyping(msg.Chat.ID)

	messages := b.app.SubmitMeal(context.Background(), app.MealSubmission{
		UserID:      fmt.Sprintf("%d", msg.From.ID),
		ImageRef:    imageRef,
		Description: description,
	})
	for _, text := range messages {
		b.sendMarkdown(msg.Chat.ID, text)
	}
}

func (b *Bot) handleFoodReport(msg *tgbotapi.Message) {
	b.sendTyping(msg.Chat.ID)

	report, err := b.app.FoodReport(context.Background(), fmt.Sprintf("%d", msg.From.ID))
	if err != nil {
		b.logger.Error("failed to build weekly report", slog.Any("error", err))
		return
	}
	b.sendMarkdown(msg.Chat.ID, report)
}

func (b *Bot) handleRecommend(msg *tgbotapi.Message) {
	b.sendTyping(msg.Chat.ID)
	b.sendMarkdown(msg.Chat.ID, b.app.Recommend(context.Background(), fmt.Sprintf("%d", msg.From.ID)))
}

func (b *Bot) handleStatsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.TelegramAdminID {
		b.sendMarkdown(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}

	usage, err := b.metricsStore.GetDailyUsage(7)
	if err != nil {
		b.logger.Error("failed to fetch usage metrics", slog.Any("error", err))
		b.sendMarkdown(msg.Chat.ID, "❌ Error fetching metrics.")
		return
	}
	b.sendMarkdown(msg.Chat.ID, formatStats(usage, metrics.GetSysHealth(b.cfg.DBPath)))
}

// largestPhoto picks the file ID of the biggest rendition Telegram sent.
func largestPhoto(photos []tgbotapi.PhotoSize) string {
	best := ""
	bestArea := -1
	for _, p := range photos {
		if area := p.Width * p.Height; area > bestArea {
			bestArea = area
			best = p.FileID
		}
	}
	return best
}

func formatStats(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d calls)\n", d.Date, d.PromptTokens+d.CompletionTokens, d.Calls))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• DB Size: %s\n", health.DBSize))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))

	return sb.String()
}

func (b *Bot) sendTyping(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Warn("failed to send typing action", slog.Any("error", err))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = "Markdown"
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("failed to send message",
			slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
