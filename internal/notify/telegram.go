// Package notify delivers finished job reports to the user.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"github.com/aristath/allocator/internal/domain"
)

// MaxMessageLength is the Telegram limit on one message, leaving room for the
// <pre> wrapper.
const MaxMessageLength = 4000

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Config selects the Telegram bot and chat. An empty token disables
// notifications.
type Config struct {
	Token  string
	ChatID int64
}

// New returns a Telegram notifier, or a Noop notifier when no token is set.
func New(cfg Config, log zerolog.Logger) (domain.Notifier, error) {
	if cfg.Token == "" {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, notifications disabled")
		return Noop{}, nil
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required when a bot token is set")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, cfg.ChatID, log), nil
}

// TelegramNotifier sends messages to one chat as preformatted text.
type TelegramNotifier struct {
	sender messageSender
	chat   *tele.Chat
	log    zerolog.Logger
}

func newTelegramNotifier(sender messageSender, chatID int64, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		chat:   &tele.Chat{ID: chatID},
		log:    log.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Notify sends message, split into as many Telegram messages as needed.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	chunks := split(message, MaxMessageLength)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		body := "<pre>" + html.EscapeString(chunk) + "</pre>"
		if _, err := n.sender.Send(n.chat, body, tele.ModeHTML); err != nil {
			return fmt.Errorf("failed to send part %d of %d: %w", i+1, len(chunks), err)
		}
	}
	n.log.Debug().Int64("chat_id", n.chat.ID).Int("parts", len(chunks)).Msg("Notification sent")
	return nil
}

// split cuts text at line boundaries into chunks of at most limit bytes.
// Lines longer than limit are cut hard, on a rune boundary.
func split(text string, limit int) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				// limit is smaller than the rune; emit it whole
				_, cut = utf8.DecodeRuneInString(line)
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		extra := len(line)
		if cur.Len() > 0 {
			extra++
		}
		if cur.Len()+extra > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return chunks
}

// Noop discards every message.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, string) error { return nil }

var (
	_ domain.Notifier = (*TelegramNotifier)(nil)
	_ domain.Notifier = Noop{}
)
