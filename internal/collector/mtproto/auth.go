package mtproto

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

// CodePrompt asks the operator for the login code Telegram sends
type CodePrompt struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewCodePrompt creates a prompt reading from in and writing to out
func NewCodePrompt(in io.Reader, out io.Writer) *CodePrompt {
	return &CodePrompt{in: bufio.NewReader(in), out: out}
}

// Code implements auth.CodeAuthenticator
func (p *CodePrompt) Code(ctx context.Context, sentCode *tg.AuthSentCode) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, "Enter the login code Telegram sent you: ")
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read login code: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// authenticate signs in with phone + code (+ 2FA password) unless the
// stored session is already authorised.
func (c *Client) authenticate(ctx context.Context, client *telegram.Client) error {
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to check auth status: %w", err)
	}
	if status.Authorized {
		c.log.Debug("session already authorized")
		return nil
	}

	if c.cfg.Phone == "" {
		return fmt.Errorf("%w: session is not authorized and no phone is configured", types.ErrAuthExpired)
	}

	c.log.Info("logging in", zap.String("phone", maskPhone(c.cfg.Phone)))
	flow := auth.NewFlow(
		auth.Constant(c.cfg.Phone, c.cfg.Password, auth.CodeAuthenticatorFunc(c.prompt.Code)),
		auth.SendCodeOptions{},
	)
	if err := client.Auth().IfNecessary(ctx, flow); err != nil {
		return fmt.Errorf("%w: login failed: %w", types.ErrAuthExpired, err)
	}
	c.log.Info("logged in")
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
