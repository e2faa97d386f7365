package telegram

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fircargo/cargotrack/internal/services/notifier"
)

// Client оборачивает go-telegram/bot под интерфейс notifier.Transport.
type Client struct {
	bot *tgbot.Bot
}

func New(token string) (*Client, error) {
	b, err := tgbot.New(token)
	if err != nil {
		return nil, errors.Wrap(err, "tgbot new")
	}
	log.Info("telegram bot client connected")

	return &Client{bot: b}, nil
}

func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err == nil {
		return nil
	}
	if isRecipientGone(err) {
		return errors.Wrap(notifier.ErrRecipientGone, err.Error())
	}
	return errors.Wrap(err, "send message")
}

// isRecipientGone распознаёт ответы Bot API, после которых в этот чат
// писать бессмысленно навсегда.
func isRecipientGone(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"bot was blocked by the user",
		"user is deactivated",
		"chat not found",
		"bot can't initiate conversation",
		"bot was kicked",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
