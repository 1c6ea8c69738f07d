// Package conversation implements the operator dialogue that picks an
// analysis, collects its single input, asks for confirmation and reports
// a short summary of the result.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/analyzer"
	"github.com/ibeckermayer/tganalytics/internal/collector"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// Analyzer runs the confirmed tasks
type Analyzer interface {
	AnalyzeChannelContent(ctx context.Context, channelID int64) (*analyzer.ChannelReport, error)
	GenerateContentPlan(ctx context.Context, channelID int64, days int) (*analyzer.ContentPlan, error)
	AnalyzePostPerformance(ctx context.Context, postID int64) (*analyzer.PostReport, error)
	GenerateSurvey(ctx context.Context, channelID int64) (*analyzer.SurveyDraft, error)
}

// ChannelResolver maps a channel handle to a stored channel
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, handle string) (*types.Channel, error)
}

// Controller drives one state machine per session
type Controller struct {
	analyzer Analyzer
	resolver ChannelResolver
	log      *zap.Logger
	planDays int

	mu       sync.Mutex
	sessions map[int64]*entry
}

type entry struct {
	mu      sync.Mutex
	session Session

	// abort cancels the message being handled; guarded by Controller.mu
	abort context.CancelFunc
}

// New creates a controller. planDays is the length of plans requested
// from the dialogue.
func New(an Analyzer, resolver ChannelResolver, log *zap.Logger, planDays int) *Controller {
	if planDays <= 0 {
		planDays = 7
	}
	return &Controller{
		analyzer: an,
		resolver: resolver,
		log:      log.Named("conversation"),
		planDays: planDays,
		sessions: make(map[int64]*entry),
	}
}

// HandleMessage feeds one inbound message of a session through the state
// machine. Messages of the same session are handled one at a time.
// A /cancel does not queue: it aborts the running task right away.
func (c *Controller) HandleMessage(ctx context.Context, sessionID int64, text string) Reply {
	if cmd, ok := command(strings.TrimSpace(text)); ok && cmd == "cancel" {
		return c.Cancel(sessionID)
	}

	e := c.lock(sessionID)
	defer e.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.setAbort(e, cancel)
	defer c.setAbort(e, nil)

	next, reply := c.Step(ctx, e.session, text)
	if next.State != e.session.State {
		c.log.Debug("state changed",
			zap.Int64("session", sessionID),
			zap.Stringer("from", e.session.State),
			zap.Stringer("to", next.State))
	}
	e.session = next
	if next.State == StateEnd {
		c.forget(sessionID, e)
	}
	return reply
}

// Cancel ends a session from outside the message flow
func (c *Controller) Cancel(sessionID int64) Reply {
	c.mu.Lock()
	if e, ok := c.sessions[sessionID]; ok && e.abort != nil {
		e.abort()
	}
	c.mu.Unlock()

	e := c.lock(sessionID)
	defer e.mu.Unlock()

	e.session = Session{}
	c.forget(sessionID, e)
	return Reply{Text: msgCancelled, RemoveKeyboard: true}
}

// Session returns the current context of a session
func (c *Controller) Session(sessionID int64) Session {
	c.mu.Lock()
	e, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return Session{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// lock returns the session's entry with its mutex held. An entry that was
// forgotten while this caller waited is never returned.
func (c *Controller) lock(sessionID int64) *entry {
	for {
		c.mu.Lock()
		e, ok := c.sessions[sessionID]
		if !ok {
			e = &entry{}
			c.sessions[sessionID] = e
		}
		c.mu.Unlock()

		e.mu.Lock()
		c.mu.Lock()
		live := c.sessions[sessionID] == e
		c.mu.Unlock()
		if live {
			return e
		}
		e.mu.Unlock()
	}
}

func (c *Controller) setAbort(e *entry, cancel context.CancelFunc) {
	c.mu.Lock()
	e.abort = cancel
	c.mu.Unlock()
}

func (c *Controller) forget(sessionID int64, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[sessionID] == e {
		delete(c.sessions, sessionID)
	}
}

// Step computes the next session and the reply for one message. It only
// touches the analyzer and resolver when a task is confirmed.
func (c *Controller) Step(ctx context.Context, s Session, text string) (Session, Reply) {
	text = strings.TrimSpace(text)

	if cmd, ok := command(text); ok {
		return handleCommand(s, cmd)
	}

	switch s.State {
	case StateMenu:
		return menuChoice(s, text)

	case StateAwaitChannelForAnalysis:
		return awaitChannel(s, text, TaskAnalyzeChannel, msgConfirmAnalysis)
	case StateAwaitChannelForPlan:
		return awaitChannel(s, text, TaskContentPlan, msgConfirmPlan)
	case StateAwaitChannelForSurvey:
		return awaitChannel(s, text, TaskSurvey, msgConfirmSurvey)

	case StateAwaitPostID:
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil || id <= 0 {
			return s, Reply{Text: msgBadPostID}
		}
		return Session{State: StateAwaitConfirmation, Pending: TaskAnalyzePost, PostID: id},
			Reply{Text: fmt.Sprintf(msgConfirmPost, id), Keyboard: confirmKeyboard}

	case StateAwaitConfirmation:
		switch text {
		case LabelYes:
			return Session{}, c.run(ctx, s)
		case LabelNo:
			return Session{}, Reply{Text: msgDeclined, RemoveKeyboard: true}
		default:
			return s, Reply{Text: msgConfirmAgain, Keyboard: confirmKeyboard}
		}

	default:
		return Session{}, Reply{Text: msgIdle}
	}
}

// command extracts a bot command, dropping any @botname suffix and arguments
func command(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), true
}

func handleCommand(s Session, cmd string) (Session, Reply) {
	switch cmd {
	case "start":
		return Session{}, Reply{Text: msgGreeting, RemoveKeyboard: true}
	case "help":
		return s, Reply{Text: msgHelp}
	case "menu":
		return Session{State: StateMenu}, Reply{Text: msgMenu, Keyboard: menuKeyboard}
	case "cancel":
		return Session{}, Reply{Text: msgCancelled, RemoveKeyboard: true}
	default:
		return s, Reply{Text: msgUnknownCommand}
	}
}

func menuChoice(s Session, text string) (Session, Reply) {
	switch text {
	case LabelAnalyzeChannel:
		return Session{State: StateAwaitChannelForAnalysis}, Reply{Text: msgAskChannelAnalysis, RemoveKeyboard: true}
	case LabelContentPlan:
		return Session{State: StateAwaitChannelForPlan}, Reply{Text: msgAskChannelPlan, RemoveKeyboard: true}
	case LabelAnalyzePost:
		return Session{State: StateAwaitPostID}, Reply{Text: msgAskPostID, RemoveKeyboard: true}
	case LabelSurvey:
		return Session{State: StateAwaitChannelForSurvey}, Reply{Text: msgAskChannelSurvey, RemoveKeyboard: true}
	default:
		return s, Reply{Text: msgMenu, Keyboard: menuKeyboard}
	}
}

func awaitChannel(s Session, text string, task Task, confirm string) (Session, Reply) {
	handle, err := collector.NormalizeHandle(text)
	if err != nil {
		return s, Reply{Text: msgBadHandle}
	}
	return Session{State: StateAwaitConfirmation, Pending: task, Channel: handle},
		Reply{Text: fmt.Sprintf(confirm, handle), Keyboard: confirmKeyboard}
}

// run executes the confirmed task and formats its outcome
func (c *Controller) run(ctx context.Context, s Session) Reply {
	var (
		summary string
		err     error
	)
	switch s.Pending {
	case TaskAnalyzeChannel, TaskContentPlan, TaskSurvey:
		summary, err = c.runChannelTask(ctx, s)
	case TaskAnalyzePost:
		var report *analyzer.PostReport
		if report, err = c.analyzer.AnalyzePostPerformance(ctx, s.PostID); err == nil {
			summary = postSummary(s.PostID, report)
		}
	default:
		c.log.Error("confirmation reached without a pending task")
		return Reply{Text: msgNoPending, RemoveKeyboard: true}
	}

	if err != nil && ctx.Err() != nil {
		c.log.Info("task aborted", zap.Stringer("task", s.Pending))
		return Reply{Text: msgAborted, RemoveKeyboard: true}
	}
	if err != nil {
		c.log.Warn("task failed", zap.Stringer("task", s.Pending), zap.Error(err))
		return Reply{Text: fmt.Sprintf(msgFailed, describe(s, err)), RemoveKeyboard: true}
	}
	return Reply{Text: msgDone + summary, RemoveKeyboard: true}
}

func (c *Controller) runChannelTask(ctx context.Context, s Session) (string, error) {
	if s.Channel == "" {
		return "", fmt.Errorf("%w: channel handle is empty", types.ErrValidation)
	}
	ch, err := c.resolver.ResolveChannel(ctx, s.Channel)
	if err != nil {
		return "", err
	}

	switch s.Pending {
	case TaskAnalyzeChannel:
		report, err := c.analyzer.AnalyzeChannelContent(ctx, ch.ID)
		if err != nil {
			return "", err
		}
		return channelSummary(s.Channel, report), nil
	case TaskContentPlan:
		plan, err := c.analyzer.GenerateContentPlan(ctx, ch.ID, c.planDays)
		if err != nil {
			return "", err
		}
		return planSummary(s.Channel, plan), nil
	default:
		survey, err := c.analyzer.GenerateSurvey(ctx, ch.ID)
		if err != nil {
			return "", err
		}
		return surveySummary(s.Channel, survey), nil
	}
}

// describe renders an error for the operator
func describe(s Session, err error) string {
	if errors.Is(err, types.ErrNotFound) && s.Pending != TaskAnalyzePost {
		return fmt.Sprintf("канал @%s не найден", s.Channel)
	}
	return analyzer.Failure(err).Error
}
