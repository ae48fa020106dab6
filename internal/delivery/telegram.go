package delivery

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"whoprelay/internal/whop"
	logx "whoprelay/pkg/logx"
)

// Sender is the part of *tele.Bot the Telegram sink uses.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int
}

// Telegram mirrors messages into a Telegram chat or forum topic.
type Telegram struct {
	sender   Sender
	chatID   int64
	threadID int
	log      logx.Logger
}

// NewTelegram builds an offline bot: it only sends and never polls updates.
func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}
	return NewTelegramWithSender(b, cfg.ChatID, cfg.ThreadID, log), nil
}

func NewTelegramWithSender(s Sender, chatID int64, threadID int, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{sender: s, chatID: chatID, threadID: threadID, log: log.Component("telegram")}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Deliver(ctx context.Context, m whop.Message) error {
	body := Body(m)
	if body == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	text := AuthorName(m) + ":\n" + body
	_, err := t.sender.Send(&tele.Chat{ID: t.chatID}, text, &tele.SendOptions{ThreadID: t.threadID})
	return err
}
