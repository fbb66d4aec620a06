package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// ChatResolver находит чат Telegram пользователя.
type ChatResolver interface {
	TelegramChatID(ctx context.Context, userID int64) (int64, bool, error)
}

// Sender: часть API бота, которая нужна каналу.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Telegram дублирует уведомления в личный чат пользователя.
type Telegram struct {
	bot   Sender
	chats ChatResolver
}

// NewTelegramBot создаёт клиента Bot API.
func NewTelegramBot(token string) (*telego.Bot, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return bot, nil
}

func NewTelegram(bot Sender, chats ChatResolver) *Telegram {
	return &Telegram{bot: bot, chats: chats}
}

func (t *Telegram) Notify(ctx context.Context, userID int64, n Notification) error {
	chatID, ok, err := t.chats.TelegramChatID(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoRecipient
	}

	if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), FormatText(n))); err != nil {
		return fmt.Errorf("ошибка отправки в Telegram (chat=%d): %w", chatID, err)
	}
	return nil
}

// FormatText собирает текст сообщения для мессенджера.
func FormatText(n Notification) string {
	prefix := ""
	switch n.Priority {
	case PriorityUrgent:
		prefix = "❗️ "
	case PriorityHigh:
		prefix = "⚠️ "
	}
	if n.Title == "" {
		return prefix + n.Message
	}
	return prefix + n.Title + "\n\n" + n.Message
}
