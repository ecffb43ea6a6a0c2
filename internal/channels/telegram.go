package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the slice of tgbotapi.BotAPI the channel uses, extracted so
// tests can swap in a fake.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel forwards deliveries to a fixed set of chats. It is
// one-way: inbound messages are ignored, the bot only speaks.
type TelegramChannel struct {
	token   string
	chatIDs []int64
	logger  *slog.Logger

	// mu guards bot: Start writes it from its own goroutine while the
	// dispatcher calls Notify.
	mu  sync.Mutex
	bot botAPI
}

// NewTelegramChannel creates a Telegram forwarder for the given chats.
func NewTelegramChannel(token string, chatIDs []int64, logger *slog.Logger) *TelegramChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramChannel{token: token, chatIDs: chatIDs, logger: logger}
}

func (t *TelegramChannel) Name() string { return "telegram" }

// Start authenticates the bot and then blocks. There is no update polling;
// this channel never reads.
func (t *TelegramChannel) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram init failed: %w", err)
	}
	t.setBot(bot)
	t.logger.Info("telegram channel started", "user", bot.Self.UserName, "chats", len(t.chatIDs))
	<-ctx.Done()
	return nil
}

func (t *TelegramChannel) setBot(b botAPI) {
	t.mu.Lock()
	t.bot = b
	t.mu.Unlock()
}

func (t *TelegramChannel) currentBot() botAPI {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bot
}

// Notify fans the delivery out to every configured chat. Telegram rate
// limits are handled with a short retry; a chat that keeps failing is
// skipped, not fatal.
func (t *TelegramChannel) Notify(ctx context.Context, d Delivery) error {
	bot := t.currentBot()
	if bot == nil {
		return fmt.Errorf("telegram channel not started")
	}
	text := formatTelegram(d)
	var lastErr error
	for _, chatID := range t.chatIDs {
		if err := t.sendWithRetry(ctx, bot, chatID, text); err != nil {
			t.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func (t *TelegramChannel) sendWithRetry(ctx context.Context, bot botAPI, chatID int64, text string) error {
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = "MarkdownV2"
		if _, err := bot.Send(msg); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func formatTelegram(d Delivery) string {
	var b strings.Builder
	if d.Icon != "" {
		b.WriteString(d.Icon)
		b.WriteString(" ")
	}
	b.WriteString("*")
	b.WriteString(escapeMarkdownV2(d.Title))
	b.WriteString("*")
	if d.Body != "" {
		b.WriteString("\n")
		b.WriteString(escapeMarkdownV2(d.Body))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
// Must escape: _ * [ ] ( ) ~ > # + - = | { } . !
func escapeMarkdownV2(s string) string {
	const specialChars = "_*[]()~>#+-=|{}.!"
	result := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(specialChars, c) >= 0 {
			result = append(result, '\\')
		}
		result = append(result, c)
	}
	return string(result)
}
