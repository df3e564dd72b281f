// Package telegram provides the bot transport over the screening engine.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/macks-labs/coinscreen/internal/criteria"
	"github.com/macks-labs/coinscreen/internal/logger"
	"github.com/macks-labs/coinscreen/internal/screener"
)

// Callback data constants for the inline adjustment keyboard.
const (
	callbackAdjustPrefix = "adj:"
	callbackAdjustDone   = "adj:done"
	callbackNoop         = "noop"
)

// Bot drives the Telegram command surface: screening requests,
// criteria display and the guided edit flows.
type Bot struct {
	api            *tgbotapi.BotAPI
	engine         *screener.Engine
	maxRows        int
	updateTimeout  int
	maxRetries     int
	retryDelayBase time.Duration
}

// Config holds transport tuning for the bot.
type Config struct {
	UpdateTimeout  int
	MaxRows        int
	MaxRetries     int
	RetryDelayBase time.Duration
}

// NewBot creates a bot around the screening engine.
func NewBot(botToken string, engine *screener.Engine, cfg Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = 60
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}

	return &Bot{
		api:            api,
		engine:         engine,
		maxRows:        cfg.MaxRows,
		updateTimeout:  cfg.UpdateTimeout,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}, nil
}

// Run polls for updates and dispatches them until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.updateTimeout
	updates := b.api.GetUpdatesChan(u)

	logger.Info("Telegram bot @%s listening for updates", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case update.CallbackQuery != nil:
				b.handleCallback(update.CallbackQuery)
			case update.Message != nil && update.Message.IsCommand():
				b.handleCommand(ctx, update.Message)
			case update.Message != nil && update.Message.Text != "":
				b.handleText(update.Message)
			}
		}
	}
}

// userID maps a Telegram sender to the engine's opaque user identity.
func userID(from *tgbotapi.User) string {
	return strconv.FormatInt(from.ID, 10)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	user := userID(msg.From)
	logger.Debug("Command /%s from user %s", msg.Command(), user)

	switch msg.Command() {
	case "start", "help":
		b.send(msg.Chat.ID, welcomeText)
	case "coins":
		b.handleCoins(ctx, msg.Chat.ID, user)
	case "filters":
		b.sendMarkdownV2(msg.Chat.ID, FormatCriteria(b.engine.Criteria(user)))
	case "set":
		b.handleSet(msg.Chat.ID, user, msg.CommandArguments())
	case "tune":
		b.sendKeyboard(msg.Chat.ID, "Pick a criterion to adjust in ±steps, then press Done.", adjustKeyboard())
	case "reset":
		b.engine.Reset(user)
		b.send(msg.Chat.ID, "All filters are back to their defaults.")
	case "cancel":
		if err := b.engine.Cancel(user); errors.Is(err, screener.ErrNoActiveEdit) {
			b.send(msg.Chat.ID, "Nothing to cancel.")
			return
		}
		b.send(msg.Chat.ID, "Edit cancelled.")
	case "ping":
		b.send(msg.Chat.ID, "Pong")
	default:
		b.send(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleCoins(ctx context.Context, chatID int64, user string) {
	matches, err := b.engine.ListMatches(ctx, user)
	if err != nil {
		logger.Error("Screening failed for user %s: %v", user, err)
		b.send(chatID, "No market data available right now. Please try again later.")
		return
	}
	if len(matches) == 0 {
		b.send(chatID, "No assets match your current filters. Loosen them with /set or /tune.")
		return
	}
	b.sendMarkdownV2(chatID, FormatMatches(matches, b.maxRows))
}

func (b *Bot) handleSet(chatID int64, user, args string) {
	fields := strings.Fields(args)
	switch len(fields) {
	case 0:
		b.sendMarkdownV2(chatID, FormatSetUsage())
	case 1:
		key := fields[0]
		if err := b.engine.BeginEdit(user, key); err != nil {
			b.send(chatID, userMessage(err))
			return
		}
		current := b.engine.Criteria(user)[key]
		def, _ := criteria.Lookup(key)
		b.send(chatID, fmt.Sprintf("Send the new value for %s (current: %s). /cancel to abort.",
			key, criteria.FormatValue(def, current)))
	default:
		res, err := b.engine.SetValue(user, fields[0], fields[1])
		if err != nil {
			b.send(chatID, userMessage(err))
			return
		}
		b.sendMarkdownV2(chatID, FormatDelta(res))
	}
}

// handleText feeds plain messages into an open direct-entry edit.
func (b *Bot) handleText(msg *tgbotapi.Message) {
	user := userID(msg.From)

	_, state, ok := b.engine.ActiveSession(user)
	if !ok || state != screener.StateAwaitingValue {
		b.send(msg.Chat.ID, "I only understand commands here. Try /help.")
		return
	}

	res, err := b.engine.SubmitValue(user, msg.Text)
	if err != nil {
		// The session stays open on invalid input so the user can retry.
		b.send(msg.Chat.ID, userMessage(err)+" Send another value or /cancel.")
		return
	}
	b.sendMarkdownV2(msg.Chat.ID, FormatDelta(res))
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	user := userID(cq.From)
	data := cq.Data

	var toast string
	switch {
	case data == callbackNoop:
		// Label button, nothing to do.
	case data == callbackAdjustDone:
		if err := b.engine.Cancel(user); errors.Is(err, screener.ErrNoActiveEdit) {
			toast = "Nothing was being adjusted."
		} else {
			toast = "Done."
		}
	case strings.HasPrefix(data, callbackAdjustPrefix):
		key, direction, err := parseAdjustCallback(data)
		if err != nil {
			logger.Warn("Malformed callback %q from user %s: %v", data, user, err)
			toast = "That button looks stale."
			break
		}
		res, err := b.engine.Adjust(user, key, direction)
		if err != nil {
			toast = userMessage(err)
			break
		}
		def, _ := criteria.Lookup(res.Key)
		toast = fmt.Sprintf("%s: %s → %s", res.Key,
			criteria.FormatValue(def, res.OldValue), criteria.FormatValue(def, res.NewValue))
	default:
		logger.Warn("Unknown callback %q from user %s", data, user)
	}

	callback := tgbotapi.NewCallback(cq.ID, toast)
	if _, err := b.api.Request(callback); err != nil {
		logger.Warn("Failed to answer callback: %v", err)
	}
}

// parseAdjustCallback splits "adj:<key>:+" / "adj:<key>:-".
func parseAdjustCallback(data string) (key string, direction int, err error) {
	rest := strings.TrimPrefix(data, callbackAdjustPrefix)
	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return "", 0, fmt.Errorf("missing direction in %q", data)
	}
	key = rest[:i]
	switch rest[i+1:] {
	case "+":
		return key, +1, nil
	case "-":
		return key, -1, nil
	default:
		return "", 0, fmt.Errorf("bad direction in %q", data)
	}
}

// adjustKeyboard builds one row per criterion: minus, label, plus.
func adjustKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(criteria.Keys())+1)
	for _, key := range criteria.Keys() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("−", callbackAdjustPrefix+key+":-"),
			tgbotapi.NewInlineKeyboardButtonData(key, callbackNoop),
			tgbotapi.NewInlineKeyboardButtonData("+", callbackAdjustPrefix+key+":+"),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Done", callbackAdjustDone),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// userMessage maps engine error kinds to plain language.
func userMessage(err error) string {
	switch {
	case errors.Is(err, criteria.ErrUnknownCriterion):
		return "That filter does not exist. See /set for the list."
	case errors.Is(err, criteria.ErrInvalidValue):
		return "That value does not work for this filter."
	case errors.Is(err, screener.ErrNoActiveEdit):
		return "There is no edit in progress. Start one with /set."
	default:
		return "Something went wrong, please try again."
	}
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	b.sendWithRetry(msg)
}

func (b *Bot) sendMarkdownV2(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "MarkdownV2"
	b.sendWithRetry(msg)
}

func (b *Bot) sendKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.sendWithRetry(msg)
}

// sendWithRetry delivers a message with linear-backoff retry.
func (b *Bot) sendWithRetry(msg tgbotapi.MessageConfig) {
	var lastErr error
	for i := 0; i < b.maxRetries; i++ {
		if _, err := b.api.Send(msg); err == nil {
			return
		} else {
			lastErr = err
		}
		time.Sleep(b.retryDelayBase * time.Duration(i+1))
	}
	logger.Error("Failed to send message after %d retries: %v", b.maxRetries, lastErr)
}

const welcomeText = `Welcome to the coin screener bot!

/coins - show assets matching your filters
/filters - show your current filters
/set <key> <value> - change one filter
/set <key> - change one filter step by step
/tune - adjust filters with +/- buttons
/reset - restore the default filters
/cancel - abort an edit in progress
/help - show this message`
