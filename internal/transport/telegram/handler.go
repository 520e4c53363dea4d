package telegram

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	chatDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	chatService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/service"
	deliveryService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/service"
	operatorService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/operator/service"
	pollDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/domain"
	pollService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/service"
	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	postRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/repository"
	settingsDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/settings/domain"
	settingsService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/settings/service"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/config"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
)

// latestPostCount is how many posts /post sends without an id
const latestPostCount = 2

// Handler handles Telegram bot interactions
type Handler struct {
	cfg       *config.Config
	chats     *chatService.Service
	operators *operatorService.Service
	settings  *settingsService.Machine
	poller    *pollService.Poller
	scheduler *pollService.Scheduler
	posts     postRepo.Repository
	poster    *deliveryService.Poster
	sender    *Sender
}

// New creates a new Telegram handler
func New(
	cfg *config.Config,
	chats *chatService.Service,
	operators *operatorService.Service,
	settings *settingsService.Machine,
	poller *pollService.Poller,
	scheduler *pollService.Scheduler,
	posts postRepo.Repository,
	poster *deliveryService.Poster,
	sender *Sender,
) *Handler {
	return &Handler{
		cfg:       cfg,
		chats:     chats,
		operators: operators,
		settings:  settings,
		poller:    poller,
		scheduler: scheduler,
		posts:     posts,
		poster:    poster,
		sender:    sender,
	}
}

type command struct {
	name        string
	description string
	handle      bot.HandlerFunc
}

func (h *Handler) commands() []command {
	return []command{
		{"start", "Starts the bot", h.handleStart},
		{"help", "Show help message", h.authorized(h.handleHelp)},
		{"settings", "Configure the bot", h.authorized(h.handleSettings)},
		{"cancel", "Cancel the current action", h.authorized(h.handleCancel)},
		{"post", "Send a post, or the latest ones", h.authorized(h.handlePost)},
		{"refresh", "Check for new posts now", h.authorized(h.handleRefresh)},
		{"stop", "Stop polling for new posts", h.authorized(h.handleStop)},
		{"resume", "Resume polling for new posts", h.authorized(h.handleResume)},
		{"subscribe", "Receive new posts in this chat", h.authorized(h.handleSubscribe)},
		{"unsubscribe", "Stop receiving new posts in this chat", h.authorized(h.handleUnsubscribe)},
		{"status", "Show bot status", h.authorized(h.handleStatus)},
	}
}

// RegisterCommands registers bot commands
func (h *Handler) RegisterCommands(b *bot.Bot) {
	for _, c := range h.commands() {
		b.RegisterHandlerMatchFunc(matchCommand(c.name), c.handle)
	}
}

// PublishCommands sets the command menu shown by Telegram clients
func (h *Handler) PublishCommands(ctx context.Context, b *bot.Bot) error {
	commands := lo.Map(h.commands(), func(c command, _ int) models.BotCommand {
		return models.BotCommand{Command: c.name, Description: c.description}
	})
	_, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commands})
	return err
}

// parseCommand splits "/Name@bot arg..." into the lowercased name and its
// arguments. Text that is not a command yields an empty name.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	name, _, _ := strings.Cut(fields[0][1:], "@")
	return strings.ToLower(name), fields[1:]
}

func matchCommand(name string) bot.MatchFunc {
	return func(update *models.Update) bool {
		if update.Message == nil {
			return false
		}
		command, _ := parseCommand(update.Message.Text)
		return command == name
	}
}

func (h *Handler) authorized(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message.From == nil || !h.operators.IsAuthorized(update.Message.From.ID) {
			h.say(ctx, update.Message.Chat.ID, "❌ Unauthorized")
			return
		}
		next(ctx, b, update)
	}
}

// HandleUpdate routes plain messages to the chat's settings conversation
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !h.settings.Active(msg.Chat.ID) || !h.operators.IsAuthorized(msg.From.ID) {
		return
	}

	input := settingsDomain.Input{ChatID: msg.Chat.ID, UserID: msg.From.ID, Text: msg.Text}
	if msg.Document != nil {
		input.Document = &settingsDomain.Document{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			Size:     msg.Document.FileSize,
		}
	}

	replies, err := h.settings.Handle(ctx, input)
	if err != nil {
		slog.Error("Settings turn failed", "chat_id", msg.Chat.ID, "error", err)
		h.say(ctx, msg.Chat.ID, "❌ Something went wrong, please try again.")
		return
	}
	h.reply(ctx, msg.Chat.ID, replies)
}

func (h *Handler) say(ctx context.Context, chatID int64, text string) {
	h.reply(ctx, chatID, []settingsDomain.Reply{{Text: text}})
}

func (h *Handler) reply(ctx context.Context, chatID int64, replies []settingsDomain.Reply) {
	if err := h.sender.Reply(ctx, chatID, replies); err != nil {
		slog.Error("Failed to reply", "chat_id", chatID, "error", err)
	}
}

const helpText = `👋 Danbooru feed bot

I forward new Danbooru posts to subscribed chats.

Available commands:
/help - Show this help message
/settings - Configure buttons, caption template and tag filter
/cancel - Cancel the current settings action
/post [id] - Send a post, or the latest ones
/subscribe - Receive new posts in this chat
/unsubscribe - Stop receiving new posts in this chat
/refresh - Check for new posts now
/stop - Stop polling for new posts
/resume - Resume polling for new posts
/status - Show bot status`

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	from := update.Message.From
	if from == nil {
		return
	}

	if _, err := h.operators.Register(from.ID, from.Username); err != nil {
		if !stderrors.Is(err, errors.ErrUnauthorized) {
			slog.Error("Failed to register operator", "user_id", from.ID, "error", err)
		}
		h.say(ctx, update.Message.Chat.ID, "❌ You are not authorized to use this bot.")
		return
	}

	h.say(ctx, update.Message.Chat.ID, helpText)
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.say(ctx, update.Message.Chat.ID, helpText)
}

func (h *Handler) handleSettings(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	replies, err := h.settings.Begin(ctx, chatID, update.Message.From.ID)
	if err != nil {
		slog.Error("Failed to open settings", "chat_id", chatID, "error", err)
		h.say(ctx, chatID, fmt.Sprintf("❌ Failed to open settings: %v", err))
		return
	}
	h.reply(ctx, chatID, replies)
}

func (h *Handler) handleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	if !h.settings.Active(chatID) {
		h.reply(ctx, chatID, []settingsDomain.Reply{{Text: "Nothing to cancel", RemoveKeyboard: true}})
		return
	}
	h.reply(ctx, chatID, h.settings.Cancel(chatID))
}

func (h *Handler) handlePost(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	_, args := parseCommand(update.Message.Text)

	var posts []*postDomain.Post
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			h.say(ctx, chatID, "First argument has to be a post id")
			return
		}
		post, err := h.posts.Get(ctx, id)
		if err != nil {
			if stderrors.Is(err, errors.ErrRestrictedPost) {
				h.say(ctx, chatID, fmt.Sprintf("❌ Post %d is restricted or does not exist", id))
				return
			}
			slog.Error("Failed to fetch post", "post_id", id, "error", err)
			h.say(ctx, chatID, fmt.Sprintf("❌ Failed to fetch post: %v", err))
			return
		}
		posts = []*postDomain.Post{post}
	} else {
		latest, err := h.posts.Search(ctx, h.cfg.SearchTags, latestPostCount)
		if err != nil {
			slog.Error("Failed to fetch latest posts", "error", err)
			h.say(ctx, chatID, fmt.Sprintf("❌ Failed to fetch posts: %v", err))
			return
		}
		posts = latest
	}

	cfg, err := h.chats.Get(chatID)
	if err != nil {
		slog.Error("Failed to load chat config", "chat_id", chatID, "error", err)
		return
	}
	for _, post := range posts {
		if _, err := h.poster.Send(ctx, chatID, cfg, post); err != nil {
			slog.Error("Failed to send post", "chat_id", chatID, "post_id", post.ID, "error", err)
			h.say(ctx, chatID, fmt.Sprintf("❌ Failed to send post %d", post.ID))
		}
	}
}

func (h *Handler) handleRefresh(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	if h.poller.Running() {
		h.say(ctx, chatID, "🔄 A refresh is already running")
		return
	}

	h.say(ctx, chatID, "🔄 Refresh started")
	go func() {
		ctx := context.WithoutCancel(ctx)
		result, err := h.poller.Refresh(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrRefreshRunning) {
				h.say(ctx, chatID, "🔄 A refresh is already running")
				return
			}
			slog.Error("Manual refresh failed", "error", err)
			h.say(ctx, chatID, fmt.Sprintf("❌ Refresh failed: %v", err))
			return
		}
		h.say(ctx, chatID, resultText(result))
	}()
}

func (h *Handler) handleStop(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	scheduled := h.scheduler.Running()
	h.scheduler.Stop()
	cancelled := h.poller.Cancel()

	switch {
	case scheduled:
		h.say(ctx, chatID, "⏸️ Polling stopped. Use /resume to start it again.")
	case cancelled:
		h.say(ctx, chatID, "⏸️ Cancelled the running refresh")
	default:
		h.say(ctx, chatID, "Polling is not running")
	}
}

func (h *Handler) handleResume(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	if h.scheduler.Running() {
		h.say(ctx, chatID, "Polling is already running")
		return
	}
	if err := h.scheduler.Resume(); err != nil {
		slog.Error("Failed to resume polling", "error", err)
		h.say(ctx, chatID, fmt.Sprintf("❌ Failed to resume polling: %v", err))
		return
	}
	h.say(ctx, chatID, "▶️ Polling resumed")
}

func (h *Handler) handleSubscribe(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.setSubscribed(ctx, update.Message.Chat.ID, true)
}

func (h *Handler) handleUnsubscribe(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.setSubscribed(ctx, update.Message.Chat.ID, false)
}

func (h *Handler) setSubscribed(ctx context.Context, chatID int64, subscribed bool) {
	if _, err := h.chats.SetSubscribed(chatID, subscribed); err != nil {
		slog.Error("Failed to update subscription", "chat_id", chatID, "error", err)
		h.say(ctx, chatID, fmt.Sprintf("❌ Failed to update subscription: %v", err))
		return
	}

	switch {
	case subscribed:
		h.say(ctx, chatID, "✅ This chat now receives new posts")
	case lo.Contains(h.cfg.ChatIDs, chatID):
		h.say(ctx, chatID, "This chat is configured to always receive new posts")
	default:
		h.say(ctx, chatID, "✅ This chat no longer receives new posts")
	}
}

func (h *Handler) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID
	cfg, err := h.chats.Get(chatID)
	if err != nil {
		h.say(ctx, chatID, fmt.Sprintf("❌ Failed to get status: %v", err))
		return
	}

	status := h.poller.Status()
	status.Scheduled = h.scheduler.Running()
	next, _ := h.scheduler.Next()
	receiving := cfg.Subscribed || lo.Contains(h.cfg.ChatIDs, chatID)

	h.say(ctx, chatID, statusText(status, next, cfg, receiving, h.cfg.UpdateInterval))
}

func resultText(result pollDomain.Result) string {
	state := "✅ Refresh finished"
	if result.Cancelled {
		state = "⏸️ Refresh cancelled"
	}
	return fmt.Sprintf("%s\nProcessed: %d\nDelivered: %d\nFailed: %d", state, result.Processed, result.Delivered, result.Failed)
}

func statusText(status pollDomain.Status, next time.Time, cfg *chatDomain.Config, receiving bool, interval int) string {
	var b strings.Builder
	b.WriteString("📊 Bot Status:\n\n")
	fmt.Fprintf(&b, "Mode: %s\n", status.Mode)
	fmt.Fprintf(&b, "Polling: %s\n", lo.Ternary(status.Scheduled, "active", "stopped"))
	if status.Scheduled && !next.IsZero() {
		fmt.Fprintf(&b, "Next refresh: %s\n", next.Format(time.DateTime))
	}
	fmt.Fprintf(&b, "Update Interval: %d seconds\n", interval)
	if status.Running {
		b.WriteString("Refresh: running\n")
	}
	fmt.Fprintf(&b, "Last post: %d\n", status.LastPostID)
	if status.Mode == pollDomain.ModeSearch {
		fmt.Fprintf(&b, "Tracked posts: %d\n", status.Tracked)
	}
	if !status.LastRefresh.IsZero() {
		fmt.Fprintf(&b, "Last refresh: %s (delivered %d, failed %d)\n",
			status.LastRefresh.Format(time.DateTime), status.LastResult.Delivered, status.LastResult.Failed)
	}

	b.WriteString("\nThis chat:\n")
	fmt.Fprintf(&b, "Receiving posts: %s\n", lo.Ternary(receiving, "yes", "no"))
	fmt.Fprintf(&b, "Subscription groups: %d (%s)\n", len(cfg.SubscriptionGroups), cfg.CombinePolicy())
	fmt.Fprintf(&b, "Send as files from: %s", lo.Ternary(cfg.SendAsFilesThreshold == postDomain.RatingUnset, "disabled", string(cfg.SendAsFilesThreshold)))
	return b.String()
}
