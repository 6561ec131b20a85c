package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"wine-cellar/internal/app"
	"wine-cellar/internal/config"
	"wine-cellar/internal/evening"
)

// requestTimeout bounds one command, model calls included.
const requestTimeout = 2 * time.Minute

// Bot wraps the Telegram API and the cellar app.
type Bot struct {
	api    *tgbotapi.BotAPI
	app    *app.App
	cfg    *config.Config
	logger *zap.Logger
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, application *app.App, logger *zap.Logger) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url: %w", err)
		}
		resp, err := bot.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		logger.Info("webhook set", zap.String("description", resp.Description))
	}

	return &Bot{api: bot, app: application, cfg: cfg, logger: logger}, nil
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.logger.Warn("error parsing update", zap.Error(err))
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}

	if !b.cfg.IsAllowed(update.Message.From.ID) {
		b.logger.Warn("unauthorized access attempt",
			zap.Int64("telegram_id", update.Message.From.ID),
			zap.String("username", update.Message.From.UserName),
		)
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		b.handleImport(ctx, chatID, userID, text)
		return
	}

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.send(chatID, helpText)
	case "insights":
		b.handleInsights(ctx, chatID, userID)
	case "analyze":
		b.handleAnalyze(ctx, chatID, userID)
	case "plan":
		b.handlePlan(ctx, chatID, userID, args)
	case "alts":
		b.handleAlternatives(ctx, chatID, userID)
	case "swap":
		b.handleSwap(ctx, chatID, userID, args)
	case "lock":
		b.handleLock(ctx, chatID, userID, args)
	case "go":
		b.handleTransition(ctx, chatID, userID, b.app.StartPlan)
	case "next":
		b.handleTransition(ctx, chatID, userID, b.app.NextWine)
	case "end":
		b.handleTransition(ctx, chatID, userID, b.app.EndPlan)
	case "metrics":
		b.handleMetrics(ctx, msg)
	default:
		b.handleResume(ctx, chatID, userID)
	}
}

const helpText = `🍷 *Cellar Bot*

/insights: readiness buckets and what to open tonight
/plan <occasion> <small|medium|large> [reds] [top]: build a lineup
/alts: list swap candidates
/swap <position> <alternative>: replace a wine
/lock <position>: keep a wine in place
/go: start the evening
/next: serve the next wine
/end: finish the evening
/analyze: label unanalyzed bottles

Send a shop link to add a bottle.`

func (b *Bot) handleInsights(ctx context.Context, chatID int64, userID string) {
	report, err := b.app.Insights(ctx, userID)
	if err != nil {
		b.sendError(chatID, "loading insights", err)
		return
	}
	b.send(chatID, formatInsights(report))
}

func (b *Bot) handleAnalyze(ctx context.Context, chatID int64, userID string) {
	sent := b.send(chatID, "🔎 *Analyzing bottles...*")
	sum, err := b.app.AnalyzePending(ctx, userID)
	if err != nil {
		b.editError(chatID, sent, "analyzing bottles", err)
		return
	}
	b.edit(chatID, sent, fmt.Sprintf("✅ *Analysis done*\nLabeled: %d\nFailed: %d\nTokens: %d",
		sum.Analyzed, sum.Failed, sum.Usage.PromptTokens+sum.Usage.CompletionTokens))
	b.alertOnBloat(sum.Usage.PromptTokens, sum.Usage.Model)
}

func (b *Bot) handleImport(ctx context.Context, chatID int64, userID, url string) {
	sent := b.send(chatID, "📥 *Importing bottle...*")
	bottle, err := b.app.Import(ctx, userID, url, 1)
	if err != nil {
		b.editError(chatID, sent, "importing bottle", err)
		return
	}
	b.edit(chatID, sent, fmt.Sprintf("✅ *Bottle added!*\n%s\nID: `%s`", escape(bottle.DisplayName()), bottle.ID))
}

func (b *Bot) handlePlan(ctx context.Context, chatID int64, userID string, args []string) {
	prefs, err := parsePlanArgs(args)
	if err != nil {
		b.send(chatID, "Usage: /plan <occasion> <small|medium|large> [reds] [top]")
		return
	}
	plan, err := b.app.GeneratePlan(ctx, userID, prefs)
	if err != nil {
		b.sendError(chatID, "building lineup", err)
		return
	}
	b.send(chatID, formatPlan(plan))
}

func (b *Bot) handleAlternatives(ctx context.Context, chatID int64, userID string) {
	_, alts, err := b.app.PlanAlternatives(ctx, userID)
	if err != nil {
		b.sendError(chatID, "listing alternatives", err)
		return
	}
	b.send(chatID, formatAlternatives(alts))
}

func (b *Bot) handleSwap(ctx context.Context, chatID int64, userID string, args []string) {
	nums, err := parseInts(args, 2)
	if err != nil {
		b.send(chatID, "Usage: /swap <position> <alternative>")
		return
	}
	plan, err := b.app.SwapPlan(ctx, userID, nums[0], nums[1])
	if err != nil {
		b.sendError(chatID, "swapping", err)
		return
	}
	b.send(chatID, formatPlan(plan))
}

func (b *Bot) handleLock(ctx context.Context, chatID int64, userID string, args []string) {
	nums, err := parseInts(args, 1)
	if err != nil {
		b.send(chatID, "Usage: /lock <position>")
		return
	}
	plan, err := b.app.ToggleLock(ctx, userID, nums[0])
	if err != nil {
		b.sendError(chatID, "locking", err)
		return
	}
	b.send(chatID, formatPlan(plan))
}

func (b *Bot) handleTransition(ctx context.Context, chatID int64, userID string, step func(context.Context, string) (evening.Plan, error)) {
	plan, err := step(ctx, userID)
	if err != nil {
		b.sendError(chatID, "updating the evening", err)
		return
	}
	b.send(chatID, formatPlan(plan))
}

func (b *Bot) handleResume(ctx context.Context, chatID int64, userID string) {
	plan, err := b.app.CurrentPlan(ctx, userID)
	if err != nil {
		b.send(chatID, helpText)
		return
	}
	b.send(chatID, formatPlan(plan))
}

func (b *Bot) handleMetrics(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.TelegramAdminID {
		b.send(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	usage, err := b.app.Usage(ctx, 7)
	if err != nil {
		b.sendError(msg.Chat.ID, "fetching metrics", err)
		return
	}
	b.send(msg.Chat.ID, formatMetrics(usage, b.app.Health()))
}

// alertOnBloat warns the admin about unusually large prompts.
func (b *Bot) alertOnBloat(promptTokens int, model string) {
	if promptTokens <= 4000 || b.cfg.TelegramAdminID == 0 {
		return
	}
	b.send(b.cfg.TelegramAdminID, fmt.Sprintf("⚠️ *Context Bloat Alert*\nModel: %s\nPrompt Tokens: %d", escape(model), promptTokens))
}

func (b *Bot) send(chatID int64, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return sent.MessageID
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.send(chatID, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("failed to edit message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendError(chatID int64, action string, err error) {
	b.logger.Warn("command failed", zap.String("action", action), zap.Error(err))
	b.send(chatID, errorText(action, err))
}

func (b *Bot) editError(chatID int64, messageID int, action string, err error) {
	b.logger.Warn("command failed", zap.String("action", action), zap.Error(err))
	b.edit(chatID, messageID, errorText(action, err))
}

// errorText turns known errors into a user-facing reply.
func errorText(action string, err error) string {
	switch {
	case errors.Is(err, app.ErrNoPlan):
		return "🤷 No evening in progress. Try /plan dinner small"
	case errors.Is(err, app.ErrLLMUnavailable):
		return "🤖 No language model is configured."
	case errors.Is(err, evening.ErrSlotLocked):
		return "🔒 That wine is locked. /lock it again to release it."
	case errors.Is(err, evening.ErrUnknownPosition):
		return "❓ There is no wine at that position."
	case errors.Is(err, evening.ErrDuplicateBottle):
		return "♻️ That bottle is already in the lineup."
	case errors.Is(err, evening.ErrPersistenceUnavailable):
		return "💾 Could not save the evening. Nothing changed, please retry."
	case errors.Is(err, evening.ErrInvalidPrecondition):
		return "🚫 " + escape(err.Error())
	}
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *Error %s:*\n```\n%v\n```", action, safeErr)
}
