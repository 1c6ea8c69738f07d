// Package bot connects the conversation controller to the Telegram Bot API.
package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/conversation"
)

// Handler answers one inbound message of a session
type Handler interface {
	HandleMessage(ctx context.Context, sessionID int64, text string) conversation.Reply
}

// sender is the part of the Bot API client used to answer
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Начать работу с ботом"},
	{Command: "menu", Description: "Открыть меню с функциями"},
	{Command: "help", Description: "Показать справку"},
	{Command: "cancel", Description: "Отменить текущую операцию"},
}

// Bot polls for updates and routes text messages to the handler. Each chat
// is one conversation.
type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	handler Handler
	log     *zap.Logger

	wg sync.WaitGroup
}

// New authorizes the bot token
func New(token string, handler Handler, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	return &Bot{
		api:     api,
		sender:  api,
		handler: handler,
		log:     log.Named("bot"),
	}, nil
}

// Run polls until ctx is cancelled, then waits for in-flight messages
func (b *Bot) Run(ctx context.Context) error {
	if _, err := b.sender.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.log.Warn("failed to register bot commands", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Info("bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.log.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handle(ctx, msg.Chat.ID, msg.Text)
	}()
}

func (b *Bot) handle(ctx context.Context, chatID int64, text string) {
	if text == conversation.LabelYes {
		if _, err := b.sender.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
			b.log.Debug("failed to send typing action", zap.Error(err))
		}
	}

	reply := b.handler.HandleMessage(ctx, chatID, text)
	if reply.Text == "" {
		return
	}
	for _, m := range toMessages(chatID, reply) {
		if _, err := b.sender.Send(m); err != nil {
			b.log.Error("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
	}
}

// maxMessageLen is the Bot API limit for one text message
const maxMessageLen = 4096

// toMessages renders a reply, splitting text that does not fit one
// message. The keyboard goes with the last part.
func toMessages(chatID int64, r conversation.Reply) []tgbotapi.MessageConfig {
	parts := split(r.Text, maxMessageLen)
	msgs := make([]tgbotapi.MessageConfig, len(parts))
	for i, p := range parts {
		msgs[i] = tgbotapi.NewMessage(chatID, p)
	}

	last := &msgs[len(msgs)-1]
	switch {
	case len(r.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, len(r.Keyboard))
		for i, row := range r.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, len(row))
			for j, label := range row {
				buttons[j] = tgbotapi.NewKeyboardButton(label)
			}
			rows[i] = buttons
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.OneTimeKeyboard = true
		kb.ResizeKeyboard = true
		last.ReplyMarkup = kb
	case r.RemoveKeyboard:
		last.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	return msgs
}

func split(text string, n int) []string {
	r := []rune(text)
	if len(r) <= n {
		return []string{text}
	}
	var parts []string
	for len(r) > n {
		parts = append(parts, string(r[:n]))
		r = r[n:]
	}
	if len(r) > 0 {
		parts = append(parts, string(r))
	}
	return parts
}
