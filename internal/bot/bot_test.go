package bot

import (
	"context"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/conversation"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeHandler struct {
	reply   conversation.Reply
	session int64
	text    string
}

func (f *fakeHandler) HandleMessage(ctx context.Context, sessionID int64, text string) conversation.Reply {
	f.session, f.text = sessionID, text
	return f.reply
}

func TestToMessagesKeyboard(t *testing.T) {
	msgs := toMessages(5, conversation.Reply{Text: "Выберите", Keyboard: [][]string{{"Да", "Нет"}}})
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(5), msgs[0].ChatID)

	kb, ok := msgs[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.OneTimeKeyboard)
	assert.True(t, kb.ResizeKeyboard)
	require.Len(t, kb.Keyboard, 1)
	assert.Equal(t, "Нет", kb.Keyboard[0][1].Text)
}

func TestToMessagesRemoveKeyboard(t *testing.T) {
	msgs := toMessages(5, conversation.Reply{Text: "Готово", RemoveKeyboard: true})
	rm, ok := msgs[0].ReplyMarkup.(tgbotapi.ReplyKeyboardRemove)
	require.True(t, ok)
	assert.True(t, rm.RemoveKeyboard)

	msgs = toMessages(5, conversation.Reply{Text: "Текст"})
	assert.Nil(t, msgs[0].ReplyMarkup)
}

func TestToMessagesSplitsLongText(t *testing.T) {
	long := strings.Repeat("я", maxMessageLen+10)
	msgs := toMessages(1, conversation.Reply{Text: long, RemoveKeyboard: true})
	require.Len(t, msgs, 2)
	assert.Len(t, []rune(msgs[0].Text), maxMessageLen)
	assert.Nil(t, msgs[0].ReplyMarkup)
	assert.NotNil(t, msgs[1].ReplyMarkup)
}

func TestHandleRoutesByChat(t *testing.T) {
	s := &fakeSender{}
	h := &fakeHandler{reply: conversation.Reply{Text: "ok"}}
	b := &Bot{sender: s, handler: h, log: zap.NewNop()}

	b.handle(context.Background(), 77, "/menu")
	assert.Equal(t, int64(77), h.session)
	assert.Equal(t, "/menu", h.text)
	assert.Len(t, s.sent, 1)
	assert.Empty(t, s.requests)

	b.handle(context.Background(), 77, conversation.LabelYes)
	require.Len(t, s.requests, 1)
	_, isAction := s.requests[0].(tgbotapi.ChatActionConfig)
	assert.True(t, isAction)
}

func TestDispatchIgnoresNonText(t *testing.T) {
	s := &fakeSender{}
	h := &fakeHandler{reply: conversation.Reply{Text: "ok"}}
	b := &Bot{sender: s, handler: h, log: zap.NewNop()}

	b.dispatch(context.Background(), tgbotapi.Update{})
	b.dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
	b.dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "hi", Chat: &tgbotapi.Chat{ID: 3}}})
	b.wg.Wait()

	assert.Equal(t, int64(3), h.session)
	assert.Len(t, s.sent, 1)
}
