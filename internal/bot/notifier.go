package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mex-balancer-bot-go/internal/trader"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier sends Markdown messages to users and the public channel.
type Notifier struct {
	api     BotAPI
	channel string
	logger  *zap.Logger
}

var _ trader.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier. channel is a numeric chat id or an @name; empty disables channel posts.
func NewNotifier(api BotAPI, channel string, logger *zap.Logger) *Notifier {
	return &Notifier{
		api:     api,
		channel: strings.TrimSpace(channel),
		logger:  logger.Named("notifier"),
	}
}

// NotifyUser sends text to a user's private chat.
func (n *Notifier) NotifyUser(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to notify user %d: %w", userID, err)
	}
	return nil
}

// NotifyChannel posts text to the configured channel. silent suppresses the notification sound.
func (n *Notifier) NotifyChannel(ctx context.Context, text string, silent bool) error {
	if n.channel == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(n.channel, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(n.channel, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableNotification = silent

	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("Channel notification failed", zap.String("channel", n.channel), zap.Error(err))
		return fmt.Errorf("failed to notify channel: %w", err)
	}
	return nil
}
