// Package notify delivers alert notifications: Telegram messages and the
// dashboard sound cue.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/levelwatch/levelwatch/internal/watch"
)

// Telegram sends alert messages through the Telegram Bot API.
type Telegram struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewTelegram creates a Telegram sink.
func NewTelegram(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Telegram{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when ctx
// is cancelled.
func (t *Telegram) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				t.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					t.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (t *Telegram) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		t.bot.Send(reply) //nolint:errcheck
	}
}

// Notify sends a breach alert message.
func (t *Telegram) Notify(d watch.Decision) error {
	return t.sendMarkdownV2(formatDecision(d))
}

// SendError sends an error notification for a failed poll cycle.
// Call this only on the first occurrence of a consecutive error sequence.
func (t *Telegram) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Poll error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return t.sendMarkdownV2(text)
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (t *Telegram) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if _, err := t.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(t.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", t.maxRetries, lastErr)
}

// formatDecision formats a fired alert into a Telegram MarkdownV2 message.
func formatDecision(d watch.Decision) string {
	var b strings.Builder
	b.WriteString("🔻 *Run\\-down alert*\n\n")
	fmt.Fprintf(&b, "📉 *%s* at %s\n", escapeMarkdownV2(d.Ticker), escapeMarkdownV2(d.Price.StringFixed(2)))
	fmt.Fprintf(&b, "P2L: %s\n", escapeMarkdownV2(d.P2LPercent.StringFixed(2)+"%"))
	if d.ElapsedMinutes > 0 {
		fmt.Fprintf(&b, "Below level for %d min\n", d.ElapsedMinutes)
	}
	fmt.Fprintf(&b, "🕒 %s", escapeMarkdownV2(d.At.Format("2006-01-02 15:04:05")))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
