package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/pkazmin/signal-dispatcher/internal/retry"
)

// Telegram publishes reports to a chat through the Telegram Bot API.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	channel string
	log     *logrus.Logger
	retry   retry.Config
}

// NewTelegram authenticates the bot token and resolves the chat target.
// chatID is either a numeric chat id or an @channel username.
func NewTelegram(botToken, chatID string, log *logrus.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot auth: %w", err)
	}

	t := &Telegram{
		bot: bot,
		log: log,
		retry: retry.Config{
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     15 * time.Second,
			Timeout:        time.Minute,
		},
	}
	if id, parseErr := strconv.ParseInt(chatID, 10, 64); parseErr == nil {
		t.chatID = id
	} else {
		t.channel = chatID
	}

	log.Infof("Telegram notifier authorized as @%s", bot.Self.UserName)
	return t, nil
}

func (t *Telegram) NotifyReport(ctx context.Context, report *Report) error {
	return t.send(ctx, FormatReport(report))
}

func (t *Telegram) NotifyError(ctx context.Context, report *ErrorReport) error {
	return t.send(ctx, FormatError(report))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	var msg tgbotapi.MessageConfig
	if t.channel != "" {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	err := retry.Do(ctx, logrus.NewEntry(t.log), t.retry, "telegram send", func(context.Context) error {
		_, sendErr := t.bot.Send(msg)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	t.log.Debug("Telegram message sent")
	return nil
}

var _ Notifier = (*Telegram)(nil)
