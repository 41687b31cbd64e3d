package telegram

import (
	"log/slog"

	"skyton/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends fire-and-forget messages through the bot. Delivery failures
// are logged and swallowed; no business operation depends on a message
// arriving.
type Notifier struct {
	bot      *tgbotapi.BotAPI
	adminIDs []int64
	log      *slog.Logger
}

func NewNotifier(token string, adminIDs []int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log := logger.With("component", "notifier")
	log.Info("notifier bot authorized", "username", bot.Self.UserName)

	return &Notifier{bot: bot, adminIDs: adminIDs, log: log}, nil
}

func (n *Notifier) NotifyAdmins(msg string) {
	for _, id := range n.adminIDs {
		n.send(id, msg)
	}
}

func (n *Notifier) NotifyUser(userID int64, msg string) {
	n.send(userID, msg)
}

func (n *Notifier) send(chatID int64, text string) {
	go func() {
		if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			n.log.Warn("failed to send telegram message", "chat_id", chatID, "error", err)
		}
	}()
}
