// Package notify delivers operational messages to a Telegram chat.
// It backs the logx Telegram sink; lapsecam itself has no chat surface.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

type Config struct {
	Token  string
	ChatID int64
}

type Telegram struct {
	bot  *tele.Bot
	chat *tele.Chat
}

// NewTelegram creates a send-only Telegram client.
// The bot is created offline: no getMe roundtrip at startup, so a camera
// host without network still boots (sends will fail and be dropped by logx).
func NewTelegram(cfg Config) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("notify: telegram token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("notify: telegram chat_id is required")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
		Client:  nil,
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, chat: &tele.Chat{ID: cfg.ChatID}}, nil
}

// SendText implements logx.Sender.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if t == nil || t.bot == nil {
		return nil
	}
	// telebot has no context-aware send; bound the call ourselves.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(t.chat, text, &tele.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(15 * time.Second):
		return errors.New("notify: telegram send timed out")
	}
}
