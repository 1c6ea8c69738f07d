// Package mtproto implements the collector's messaging client over the
// Telegram MTProto API with a user account session.
package mtproto

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/collector"
	"github.com/ibeckermayer/tganalytics/internal/config"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// Client is a collector.Client backed by a gotd session
type Client struct {
	cfg    config.TelegramConfig
	log    *zap.Logger
	prompt *CodePrompt

	mu     sync.Mutex
	api    *tg.Client
	cancel context.CancelFunc
	done   chan error

	usersMu sync.RWMutex
	users   map[int64]*tg.User
}

var _ collector.Client = (*Client)(nil)

// New creates an MTProto client. Login codes are read from stdin when the
// stored session is not authorised.
func New(cfg config.TelegramConfig, log *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		log:    log.Named("mtproto"),
		prompt: NewCodePrompt(os.Stdin, os.Stdout),
		users:  make(map[int64]*tg.User),
	}
}

// WithPrompt replaces the interactive login prompt
func (c *Client) WithPrompt(in io.Reader, out io.Writer) *Client {
	c.prompt = NewCodePrompt(in, out)
	return c
}

// Start connects, authorises if needed and keeps the connection open in
// the background until Stop.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil {
		return nil
	}

	client := telegram.NewClient(c.cfg.APIID, c.cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: c.cfg.SessionPath},
		Logger:         c.log.Named("gotd"),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- client.Run(runCtx, func(ctx context.Context) error {
			if err := c.authenticate(ctx, client); err != nil {
				return err
			}
			close(ready)
			<-ctx.Done()
			return nil
		})
	}()

	select {
	case <-ready:
		c.api = client.API()
		c.cancel = cancel
		c.done = done
		return nil
	case err := <-done:
		cancel()
		if err == nil {
			err = fmt.Errorf("connection closed during login")
		}
		return classify(err)
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Stop closes the connection
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api == nil {
		return nil
	}
	c.cancel()
	err := <-c.done
	c.api = nil
	return err
}

func (c *Client) client() (*tg.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.api == nil {
		return nil, types.ErrSessionNotStarted
	}
	return c.api, nil
}

// ResolveChannel resolves a public handle and loads the channel's about
// text and member count.
func (c *Client) ResolveChannel(ctx context.Context, handle string) (*collector.RemoteChannel, error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}

	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: handle})
	if err != nil {
		return nil, classify(err)
	}
	c.rememberUsers(resolved.Users)

	for _, chat := range resolved.Chats {
		ch, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}

		rc := &collector.RemoteChannel{
			ID:         ch.ID,
			AccessHash: ch.AccessHash,
			Username:   ch.Username,
			Title:      ch.Title,
		}
		if n, ok := ch.GetParticipantsCount(); ok {
			rc.MemberCount = n
		}

		full, err := api.ChannelsGetFullChannel(ctx, inputChannel(rc))
		if err != nil {
			c.log.Warn("failed to load full channel", zap.String("channel", handle), zap.Error(err))
			return rc, nil
		}
		if cf, ok := full.FullChat.(*tg.ChannelFull); ok {
			rc.About = cf.About
			if n, ok := cf.GetParticipantsCount(); ok {
				rc.MemberCount = n
			}
		}
		return rc, nil
	}

	return nil, fmt.Errorf("@%s is not a channel: %w", handle, types.ErrNotFound)
}

// History returns one page of channel history, newest first
func (c *Client) History(ctx context.Context, ch *collector.RemoteChannel, q collector.HistoryQuery) ([]collector.Message, error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}

	res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     inputPeer(ch),
		OffsetID: int(q.OffsetID),
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, classify(err)
	}
	return c.messages(res), nil
}

// Message returns a single channel message
func (c *Client) Message(ctx context.Context, ch *collector.RemoteChannel, id int64) (*collector.Message, error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}

	res, err := api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: inputChannel(ch),
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: int(id)}},
	})
	if err != nil {
		return nil, classify(err)
	}

	for _, m := range c.messages(res) {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("message %d %w", id, types.ErrNotFound)
}

// Replies returns a post's discussion thread
func (c *Client) Replies(ctx context.Context, ch *collector.RemoteChannel, msgID int64, limit int) ([]collector.Message, error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}

	res, err := api.MessagesGetReplies(ctx, &tg.MessagesGetRepliesRequest{
		Peer:  inputPeer(ch),
		MsgID: int(msgID),
		Limit: limit,
	})
	if err != nil {
		return nil, classify(err)
	}
	return c.messages(res), nil
}

// User returns an author seen in an earlier response of this session
func (c *Client) User(ctx context.Context, id int64) (*collector.RemoteUser, error) {
	c.usersMu.RLock()
	u, ok := c.users[id]
	c.usersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %d %w in session cache", id, types.ErrNotFound)
	}
	return &collector.RemoteUser{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, nil
}

func (c *Client) messages(res tg.MessagesMessagesClass) []collector.Message {
	msgs, users := unpack(res)
	c.rememberUsers(users)
	return convertMessages(msgs)
}

func (c *Client) rememberUsers(users []tg.UserClass) {
	c.usersMu.Lock()
	defer c.usersMu.Unlock()
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			c.users[u.ID] = u
		}
	}
}

func inputPeer(ch *collector.RemoteChannel) *tg.InputPeerChannel {
	return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
}

func inputChannel(ch *collector.RemoteChannel) *tg.InputChannel {
	return &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
}
