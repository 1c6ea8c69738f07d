// Package preview implements the collector's messaging client by scraping
// the public web preview at t.me/s/<handle>. It needs no account but only
// sees public channels, and comments and users are not available.
package preview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/browser"
	"github.com/ibeckermayer/tganalytics/internal/collector"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

const baseURL = "https://t.me/s/"

// Client is a collector.Client over a headless browser
type Client struct {
	headless bool
	log      *zap.Logger

	mu         sync.Mutex
	browserCtx context.Context
	cancel     context.CancelFunc
}

var _ collector.Client = (*Client)(nil)

// New creates a web preview client
func New(headless bool, log *zap.Logger) *Client {
	return &Client{headless: headless, log: log.Named("preview")}
}

// Start launches the browser
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx != nil {
		return nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), browser.Options(c.headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
	)
	if err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	c.browserCtx = browserCtx
	c.cancel = func() {
		browserCancel()
		allocCancel()
	}
	return nil
}

// Stop closes the browser
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx == nil {
		return nil
	}
	c.cancel()
	c.browserCtx = nil
	return nil
}

// run executes actions in the shared browser tab, bounded by ctx
func (c *Client) run(ctx context.Context, actions ...chromedp.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx == nil {
		return types.ErrSessionNotStarted
	}

	runCtx, cancel := context.WithTimeout(c.browserCtx, 2*time.Minute)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", types.ErrRateLimited, err)
	}
	return nil
}

// ResolveChannel loads the channel header from the preview page
func (c *Client) ResolveChannel(ctx context.Context, handle string) (*collector.RemoteChannel, error) {
	var rc rawChannel
	err := c.run(ctx,
		chromedp.Navigate(baseURL+handle),
		chromedp.WaitReady(WaitForPage, chromedp.ByQuery),
		chromedp.Evaluate(extractChannelJS, &rc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load preview of @%s: %w", handle, err)
	}
	if strings.TrimSpace(rc.Title) == "" {
		return nil, fmt.Errorf("@%s has no public preview: %w", handle, types.ErrNotFound)
	}
	return toChannel(handle, rc), nil
}

// History returns the page of messages before q.OffsetID
func (c *Client) History(ctx context.Context, ch *collector.RemoteChannel, q collector.HistoryQuery) ([]collector.Message, error) {
	msgs, err := c.page(ctx, ch.Username, q.OffsetID)
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(msgs) > q.Limit {
		msgs = msgs[:q.Limit]
	}
	return msgs, nil
}

// Message finds one message on the page that ends with it
func (c *Client) Message(ctx context.Context, ch *collector.RemoteChannel, id int64) (*collector.Message, error) {
	msgs, err := c.page(ctx, ch.Username, id+1)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("message %d %w", id, types.ErrNotFound)
}

// Replies is not available from the web preview
func (c *Client) Replies(ctx context.Context, ch *collector.RemoteChannel, msgID int64, limit int) ([]collector.Message, error) {
	return nil, fmt.Errorf("comments: %w", types.ErrUnsupported)
}

// User is not available from the web preview
func (c *Client) User(ctx context.Context, id int64) (*collector.RemoteUser, error) {
	return nil, fmt.Errorf("users: %w", types.ErrUnsupported)
}

func (c *Client) page(ctx context.Context, handle string, before int64) ([]collector.Message, error) {
	url := baseURL + handle
	if before > 0 {
		url = fmt.Sprintf("%s?before=%d", url, before)
	}

	var raw []rawMessage
	err := c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady(WaitForPage, chromedp.ByQuery),
		chromedp.Evaluate(extractMessagesJS, &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages of @%s: %w", handle, err)
	}
	c.log.Debug("preview page", zap.String("url", url), zap.Int("messages", len(raw)))

	msgs := toMessages(raw)
	// ?before=N is inclusive of nothing at or above N
	filtered := msgs[:0]
	for _, m := range msgs {
		if before == 0 || m.ID < before {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

var extractChannelJS = `
	(function() {
		const text = (sel) => document.querySelector(sel)?.innerText?.trim() || '';
		const counters = {};
		document.querySelectorAll('` + ChannelCounter + `').forEach(el => {
			const value = el.querySelector('.counter_value')?.textContent?.trim() || '';
			const label = el.querySelector('.counter_type')?.textContent?.trim() || '';
			if (label) counters[label] = value;
		});
		return {
			title: text('` + ChannelTitle + `'),
			username: text('` + ChannelUsername + `'),
			description: text('` + ChannelDescription + `'),
			counters
		};
	})()
`

var extractMessagesJS = `
	(function() {
		const results = [];
		document.querySelectorAll('` + MessageWrap + `').forEach(el => {
			try {
				const reactions = [];
				el.querySelectorAll('` + Reaction + `').forEach(r => {
					const emoji = r.querySelector('.emoji b')?.textContent || '';
					const customId = r.querySelector('tg-emoji')?.getAttribute('emoji-id') || '';
					const text = r.textContent?.trim() || '';
					const count = text.replace(emoji, '').trim();
					reactions.push({ emoji, customId, text, count });
				});
				results.push({
					post: el.getAttribute('data-post') || '',
					text: el.querySelector('` + MessageText + `')?.innerText || '',
					datetime: el.querySelector('` + MessageDate + `')?.getAttribute('datetime') || '',
					views: el.querySelector('` + MessageView + `')?.textContent?.trim() || '0',
					reactions
				});
			} catch (e) {
				console.error('Error extracting message:', e);
			}
		});
		return results;
	})()
`
