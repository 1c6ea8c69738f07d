package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/analyzer"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls []string

	channelReport *analyzer.ChannelReport
	plan          *analyzer.ContentPlan
	postReport    *analyzer.PostReport
	survey        *analyzer.SurveyDraft
	err           error

	// when set, channel analysis closes started and waits for release
	started chan struct{}
	release chan struct{}
}

func (f *fakeAnalyzer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAnalyzer) AnalyzeChannelContent(ctx context.Context, channelID int64) (*analyzer.ChannelReport, error) {
	f.record(fmt.Sprintf("channel:%d", channelID))
	if f.started != nil {
		close(f.started)
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.channelReport, f.err
}

func (f *fakeAnalyzer) GenerateContentPlan(ctx context.Context, channelID int64, days int) (*analyzer.ContentPlan, error) {
	f.record(fmt.Sprintf("plan:%d:%d", channelID, days))
	return f.plan, f.err
}

func (f *fakeAnalyzer) AnalyzePostPerformance(ctx context.Context, postID int64) (*analyzer.PostReport, error) {
	f.record(fmt.Sprintf("post:%d", postID))
	return f.postReport, f.err
}

func (f *fakeAnalyzer) GenerateSurvey(ctx context.Context, channelID int64) (*analyzer.SurveyDraft, error) {
	f.record(fmt.Sprintf("survey:%d", channelID))
	return f.survey, f.err
}

type fakeResolver struct {
	channels map[string]int64
	handles  []string
}

func (f *fakeResolver) ResolveChannel(ctx context.Context, handle string) (*types.Channel, error) {
	f.handles = append(f.handles, handle)
	id, ok := f.channels[handle]
	if !ok {
		return nil, fmt.Errorf("channel %q: %w", handle, types.ErrNotFound)
	}
	return &types.Channel{ID: id, Username: handle}, nil
}

func setup() (*Controller, *fakeAnalyzer, *fakeResolver) {
	an := &fakeAnalyzer{
		channelReport: &analyzer.ChannelReport{
			MainTopics:        analyzer.TextList{"технологии", "новости"},
			TopPosts:          analyzer.TextList{"a", "b"},
			AudienceSentiment: "позитивное",
			ContentIdeas:      analyzer.TextList{"1", "2", "3"},
		},
	}
	res := &fakeResolver{channels: map[string]int64{"testchan": 42}}
	return New(an, res, zap.NewNop(), 7), an, res
}

func TestChannelAnalysisDialogue(t *testing.T) {
	c, an, res := setup()
	ctx := context.Background()
	const sid = 1

	r := c.HandleMessage(ctx, sid, "/menu")
	assert.Equal(t, menuKeyboard, r.Keyboard)
	assert.Equal(t, StateMenu, c.Session(sid).State)

	r = c.HandleMessage(ctx, sid, "Анализ канала")
	assert.Equal(t, StateAwaitChannelForAnalysis, c.Session(sid).State)
	assert.Contains(t, r.Text, "username канала")

	r = c.HandleMessage(ctx, sid, "@testchan")
	s := c.Session(sid)
	assert.Equal(t, StateAwaitConfirmation, s.State)
	assert.Equal(t, TaskAnalyzeChannel, s.Pending)
	assert.Equal(t, "testchan", s.Channel)
	assert.Equal(t, "Вы хотите проанализировать канал @testchan?", r.Text)
	assert.Equal(t, confirmKeyboard, r.Keyboard)
	assert.Empty(t, an.calls)

	r = c.HandleMessage(ctx, sid, "Да")
	assert.Equal(t, []string{"channel:42"}, an.calls)
	assert.Equal(t, []string{"testchan"}, res.handles)
	assert.True(t, r.RemoveKeyboard)
	assert.Contains(t, r.Text, "Задача выполнена успешно!")
	assert.Contains(t, r.Text, "Основные темы: технологии, новости")
	assert.Contains(t, r.Text, "Настроение аудитории: позитивное")
	assert.Equal(t, Session{}, c.Session(sid))
}

func TestDeclineDoesNotRunAnything(t *testing.T) {
	c, an, _ := setup()
	ctx := context.Background()

	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ канала")
	c.HandleMessage(ctx, 1, "@testchan")
	r := c.HandleMessage(ctx, 1, "Нет")

	assert.Equal(t, "Действие отменено.", r.Text)
	assert.True(t, r.RemoveKeyboard)
	assert.Empty(t, an.calls)
	assert.Equal(t, StateEnd, c.Session(1).State)
}

func TestInvalidPostIDStaysInPlace(t *testing.T) {
	c, an, _ := setup()
	ctx := context.Background()

	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ поста")

	for _, bad := range []string{"abc", "12a", "-5", "0", ""} {
		r := c.HandleMessage(ctx, 1, bad)
		assert.Equal(t, "Неверный формат ID поста. Пожалуйста, введите число.", r.Text, bad)
		assert.Equal(t, StateAwaitPostID, c.Session(1).State)
	}

	an.postReport = &analyzer.PostReport{
		EngagementLevel:   "высокое",
		CommentsSentiment: "позитивная",
		ProsAndCons: analyzer.ProsAndCons{
			Pros: analyzer.TextList{"p1", "p2", "p3", "p4"},
			Cons: analyzer.TextList{"c1"},
		},
	}
	r := c.HandleMessage(ctx, 1, " 123 ")
	assert.Equal(t, "Вы хотите проанализировать пост с ID 123?", r.Text)

	r = c.HandleMessage(ctx, 1, "Да")
	assert.Equal(t, []string{"post:123"}, an.calls)
	assert.Contains(t, r.Text, "• p3")
	assert.NotContains(t, r.Text, "• p4")
	assert.Contains(t, r.Text, "• c1")
}

func TestContentPlanUsesConfiguredDays(t *testing.T) {
	c, an, _ := setup()
	ctx := context.Background()
	an.plan = &analyzer.ContentPlan{Days: []analyzer.PlannedDay{
		{Day: 1, Plan: analyzer.DayPlan{Title: "Обзор"}},
		{Day: 2, Plan: analyzer.DayPlan{Title: "Опрос"}},
		{Day: 3, Plan: analyzer.DayPlan{Title: "Кейс"}},
		{Day: 4, Plan: analyzer.DayPlan{Title: "Итоги"}},
	}}

	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Генерация контент-плана")
	c.HandleMessage(ctx, 1, "https://t.me/testchan")
	r := c.HandleMessage(ctx, 1, "Да")

	assert.Equal(t, []string{"plan:42:7"}, an.calls)
	assert.Contains(t, r.Text, "на 4 дней")
	assert.Contains(t, r.Text, "• День 3: Кейс")
	assert.NotContains(t, r.Text, "Итоги")
}

func TestSurveyDialogue(t *testing.T) {
	c, an, _ := setup()
	ctx := context.Background()
	an.survey = &analyzer.SurveyDraft{
		Title:     "Опрос читателей",
		Questions: []analyzer.SurveyQuestion{{QuestionText: "q1"}, {QuestionText: "q2"}},
	}

	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Создать опрос")
	r := c.HandleMessage(ctx, 1, "testchan")
	assert.Equal(t, "Вы хотите создать опрос для аудитории канала @testchan?", r.Text)

	r = c.HandleMessage(ctx, 1, "Да")
	assert.Equal(t, []string{"survey:42"}, an.calls)
	assert.Contains(t, r.Text, "Название: Опрос читателей")
	assert.Contains(t, r.Text, "Количество вопросов: 2")
	assert.Contains(t, r.Text, "• q2")
}

func TestConfirmationReasksOnOtherInput(t *testing.T) {
	c, an, _ := setup()
	ctx := context.Background()

	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ канала")
	c.HandleMessage(ctx, 1, "testchan")
	r := c.HandleMessage(ctx, 1, "может быть")

	assert.Equal(t, confirmKeyboard, r.Keyboard)
	s := c.Session(1)
	assert.Equal(t, StateAwaitConfirmation, s.State)
	assert.Equal(t, "testchan", s.Channel)
	assert.Empty(t, an.calls)
}

func TestCancelFromAnyState(t *testing.T) {
	c, an, _ := setup()
	ctx := context.Background()

	for _, steps := range [][]string{
		{"/menu"},
		{"/menu", "Анализ поста"},
		{"/menu", "Анализ канала", "testchan"},
	} {
		for _, m := range steps {
			c.HandleMessage(ctx, 1, m)
		}
		r := c.HandleMessage(ctx, 1, "/cancel")
		assert.Equal(t, "Операция отменена.", r.Text)
		assert.Equal(t, Session{}, c.Session(1))
	}

	c.HandleMessage(ctx, 2, "/menu")
	c.HandleMessage(ctx, 2, "Создать опрос")
	r := c.Cancel(2)
	assert.True(t, r.RemoveKeyboard)
	assert.Equal(t, Session{}, c.Session(2))
	assert.Empty(t, an.calls)
}

func TestCancelAbortsRunningTask(t *testing.T) {
	c, an, _ := setup()
	an.started = make(chan struct{})
	ctx := context.Background()

	for _, m := range []string{"/menu", "Анализ канала", "testchan"} {
		c.HandleMessage(ctx, 1, m)
	}
	done := make(chan Reply)
	go func() { done <- c.HandleMessage(ctx, 1, "Да") }()
	<-an.started

	r := c.HandleMessage(ctx, 1, "/cancel")
	assert.Equal(t, "Операция отменена.", r.Text)
	assert.Equal(t, "Задача прервана.", (<-done).Text)
	assert.Equal(t, Session{}, c.Session(1))
}

func TestMessageQueuedBehindTaskKeepsItsState(t *testing.T) {
	c, an, _ := setup()
	an.started = make(chan struct{})
	an.release = make(chan struct{})
	ctx := context.Background()

	for _, m := range []string{"/menu", "Анализ канала", "testchan"} {
		c.HandleMessage(ctx, 1, m)
	}
	done := make(chan Reply)
	go func() { done <- c.HandleMessage(ctx, 1, "Да") }()
	<-an.started

	queued := make(chan Reply)
	go func() { queued <- c.HandleMessage(ctx, 1, "/menu") }()
	// give /menu time to wait on the session
	time.Sleep(50 * time.Millisecond)
	close(an.release)

	assert.Contains(t, (<-done).Text, "Задача выполнена успешно!")
	assert.Equal(t, menuKeyboard, (<-queued).Keyboard)
	assert.Equal(t, StateMenu, c.Session(1).State)

	c.HandleMessage(ctx, 1, "Анализ канала")
	assert.Equal(t, StateAwaitChannelForAnalysis, c.Session(1).State)
}

func TestCommands(t *testing.T) {
	c, _, _ := setup()
	ctx := context.Background()

	r := c.HandleMessage(ctx, 1, "/start")
	assert.Contains(t, r.Text, "Привет!")

	r = c.HandleMessage(ctx, 1, "привет")
	assert.Equal(t, msgIdle, r.Text)

	c.HandleMessage(ctx, 1, "/menu@tg_analytics_bot")
	assert.Equal(t, StateMenu, c.Session(1).State)

	r = c.HandleMessage(ctx, 1, "/help")
	assert.Contains(t, r.Text, "/cancel")
	assert.Equal(t, StateMenu, c.Session(1).State)

	r = c.HandleMessage(ctx, 1, "/frobnicate now")
	assert.Equal(t, msgUnknownCommand, r.Text)
	assert.Equal(t, StateMenu, c.Session(1).State)

	r = c.HandleMessage(ctx, 1, "что-то другое")
	assert.Equal(t, menuKeyboard, r.Keyboard)
	assert.Equal(t, StateMenu, c.Session(1).State)
}

func TestEmptyHandleReprompts(t *testing.T) {
	c, _, _ := setup()
	ctx := context.Background()

	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ канала")
	r := c.HandleMessage(ctx, 1, "@")

	assert.Equal(t, msgBadHandle, r.Text)
	assert.Equal(t, StateAwaitChannelForAnalysis, c.Session(1).State)
}

func TestFailuresAreReported(t *testing.T) {
	c, an, _ := setup()
	ctx := context.Background()

	an.err = analyzer.ErrNoPosts
	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ канала")
	c.HandleMessage(ctx, 1, "testchan")
	r := c.HandleMessage(ctx, 1, "Да")
	assert.Contains(t, r.Text, "Произошла ошибка: No posts found for analysis")
	assert.Equal(t, StateEnd, c.Session(1).State)

	an.err = nil
	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ канала")
	c.HandleMessage(ctx, 1, "unknown")
	r = c.HandleMessage(ctx, 1, "Да")
	assert.Contains(t, r.Text, "канал @unknown не найден")
	assert.Len(t, an.calls, 1)

	an.err = analyzer.ErrPostNotFound
	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ поста")
	c.HandleMessage(ctx, 1, "9")
	r = c.HandleMessage(ctx, 1, "Да")
	assert.Contains(t, r.Text, "Post not found")

	an.err = errors.New("provider exploded")
	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ канала")
	c.HandleMessage(ctx, 1, "testchan")
	r = c.HandleMessage(ctx, 1, "Да")
	assert.Contains(t, r.Text, "Provider exploded")
}

func TestUnparsedChannelReportSummary(t *testing.T) {
	c, an, _ := setup()
	ctx := context.Background()
	an.channelReport = &analyzer.ChannelReport{Unparsed: "просто текст"}

	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 1, "Анализ канала")
	c.HandleMessage(ctx, 1, "testchan")
	r := c.HandleMessage(ctx, 1, "Да")
	assert.Contains(t, r.Text, "просто текст")
}

func TestMissingPendingTaskEndsConversation(t *testing.T) {
	c, an, _ := setup()

	next, r := c.Step(context.Background(), Session{State: StateAwaitConfirmation}, "Да")
	assert.Equal(t, Session{}, next)
	assert.Equal(t, msgNoPending, r.Text)
	assert.Empty(t, an.calls)
}

func TestSessionsAreIndependent(t *testing.T) {
	c, _, _ := setup()
	ctx := context.Background()

	c.HandleMessage(ctx, 1, "/menu")
	c.HandleMessage(ctx, 2, "/menu")
	c.HandleMessage(ctx, 1, "Анализ поста")
	c.HandleMessage(ctx, 2, "Создать опрос")

	assert.Equal(t, StateAwaitPostID, c.Session(1).State)
	assert.Equal(t, StateAwaitChannelForSurvey, c.Session(2).State)

	var wg sync.WaitGroup
	for i := int64(10); i < 30; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c.HandleMessage(ctx, id, "/menu")
			c.HandleMessage(ctx, id, "Анализ поста")
		}(i)
	}
	wg.Wait()
	for i := int64(10); i < 30; i++ {
		require.Equal(t, StateAwaitPostID, c.Session(i).State)
	}
}

func TestStepIsPure(t *testing.T) {
	c, _, _ := setup()
	start := Session{State: StateAwaitChannelForPlan}

	next, _ := c.Step(context.Background(), start, "@news")
	assert.Equal(t, Session{State: StateAwaitChannelForPlan}, start)
	assert.Equal(t, Session{State: StateAwaitConfirmation, Pending: TaskContentPlan, Channel: "news"}, next)
}
