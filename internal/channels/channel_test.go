package channels

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestToastChannel_NotifyWritesOneLine(t *testing.T) {
	var buf strings.Builder
	ch := NewToastChannel(&buf)
	ch.NoColor = true

	err := ch.Notify(context.Background(), Delivery{
		Icon: "📌", Title: "Task assigned", Body: "Write report", Level: "info",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	got := buf.String()
	if got != "📌 Task assigned: Write report\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestToastChannel_StickyMarker(t *testing.T) {
	var buf strings.Builder
	ch := NewToastChannel(&buf)
	ch.NoColor = true

	_ = ch.Notify(context.Background(), Delivery{
		Title: "Connection lost", Level: "error", Sticky: true,
	})
	if !strings.Contains(buf.String(), "(restart required)") {
		t.Fatalf("sticky marker missing: %q", buf.String())
	}
}

func TestRenderToast_BodyOnly(t *testing.T) {
	got := renderToast(Delivery{Body: "3 tasks overdue", Level: "warn"}, true)
	if got != "3 tasks overdue" {
		t.Fatalf("renderToast = %q", got)
	}
}

type fakeBot struct {
	sent     []tgbotapi.MessageConfig
	failures int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("429 too many requests")
	}
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTelegramChannel_NotifyFansOutToChats(t *testing.T) {
	bot := &fakeBot{}
	ch := NewTelegramChannel("tok", []int64{1, 2}, nil)
	ch.setBot(bot)

	err := ch.Notify(context.Background(), Delivery{Icon: "✅", Title: "Task completed", Body: "Write report"})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(bot.sent))
	}
	if bot.sent[0].ChatID != 1 || bot.sent[1].ChatID != 2 {
		t.Fatalf("chat ids = %d, %d", bot.sent[0].ChatID, bot.sent[1].ChatID)
	}
	if !strings.Contains(bot.sent[0].Text, "*Task completed*") {
		t.Fatalf("text = %q", bot.sent[0].Text)
	}
}

func TestTelegramChannel_NotifyBeforeStart(t *testing.T) {
	ch := NewTelegramChannel("tok", []int64{1}, nil)
	if err := ch.Notify(context.Background(), Delivery{Title: "x"}); err == nil {
		t.Fatal("expected error before Start")
	}
}

// The dispatcher calls Notify from its own goroutine while Start installs
// the bot handle; the handle accessors must be safe under the race detector.
func TestTelegramChannel_NotifyDuringStartup(t *testing.T) {
	ch := NewTelegramChannel("tok", []int64{1}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = ch.Notify(context.Background(), Delivery{Title: "x"})
		}
	}()
	ch.setBot(&fakeBot{})
	<-done

	if err := ch.Notify(context.Background(), Delivery{Title: "x"}); err != nil {
		t.Fatalf("Notify after handle installed: %v", err)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	got := escapeMarkdownV2("a_b (1.2)")
	want := `a\_b \(1\.2\)`
	if got != want {
		t.Fatalf("escape = %q, want %q", got, want)
	}
}

func TestFormatTelegram(t *testing.T) {
	got := formatTelegram(Delivery{Icon: "⏰", Title: "Task overdue", Body: "Q3 report is late!"})
	want := "⏰ *Task overdue*\nQ3 report is late\\!"
	if got != want {
		t.Fatalf("format = %q, want %q", got, want)
	}
}
