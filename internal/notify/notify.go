// Package notify sends a one-shot Telegram message when a run reaches
// a terminal state. Unlike a chat bot, it never polls or holds a
// lock: one message, one send, one HTTP round trip.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/proberun/probe/internal/domain"
)

// Config is the Telegram bot credential pair a Notifier needs.
type Config struct {
	Token  string `json:"token" yaml:"token"`
	ChatID int64  `json:"chat_id" yaml:"chat_id"`
}

// Notifier sends run-completion summaries to a single Telegram chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// New constructs a Notifier. A zero Config (empty token) is valid and
// produces a Notifier whose NotifyCompletion is a no-op, so callers
// can wire this unconditionally and let the run's config decide
// whether anything is actually sent.
func New(cfg Config) (*Notifier, error) {
	if cfg.Token == "" {
		return &Notifier{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

// NotifyCompletion sends a terminal-run summary. No-op when the
// Notifier was built without credentials.
func (n *Notifier) NotifyCompletion(run *domain.Run, progress *domain.Progress) error {
	if n.bot == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatCompletion(run, progress))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := n.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("sending telegram notification: %w", err)
	}
	return nil
}

// FormatCompletion renders a run's terminal status as a Telegram
// MarkdownV2 message: status badge, target, pass/fail tally.
func FormatCompletion(run *domain.Run, progress *domain.Progress) string {
	badge := "✅"
	if run.Status == domain.RunFailed {
		badge = "❌"
	}

	passed, failed := 0, 0
	if progress != nil {
		for _, r := range progress.Results {
			switch r.Status {
			case domain.ScenarioPassed:
				passed++
			case domain.ScenarioFailed:
				failed++
			}
		}
	}

	target := run.Target.URL
	if target == "" {
		target = run.Target.LocalPath
	}

	text := fmt.Sprintf("%s *Run %s*\nTarget: %s\nPassed: %d  Failed: %d",
		badge,
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, run.RunID),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, target),
		passed, failed,
	)

	if len(run.ErrorLog) > 0 {
		text += fmt.Sprintf("\nErrors: %d", len(run.ErrorLog))
	}

	if len(text) > 4000 {
		text = text[:3997] + "..."
	}
	return text
}
