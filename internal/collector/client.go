package collector

import (
	"context"
	"time"
)

// Client is a messaging-platform session the collector reads from.
// Implementations map platform failures onto the types.Err* sentinels.
type Client interface {
	Start(ctx context.Context) error
	Stop() error

	// ResolveChannel looks a public channel up by handle (without @)
	ResolveChannel(ctx context.Context, handle string) (*RemoteChannel, error)

	// History returns up to q.Limit messages older than q.OffsetID
	// (or the newest ones when OffsetID is 0), newest first.
	History(ctx context.Context, ch *RemoteChannel, q HistoryQuery) ([]Message, error)

	// Message returns one channel message, or an error wrapping types.ErrNotFound
	Message(ctx context.Context, ch *RemoteChannel, id int64) (*Message, error)

	// Replies returns up to limit messages of a post's discussion thread
	Replies(ctx context.Context, ch *RemoteChannel, msgID int64, limit int) ([]Message, error)

	// User returns a message author by platform id
	User(ctx context.Context, id int64) (*RemoteUser, error)
}

// RemoteChannel is a channel as reported by the platform
type RemoteChannel struct {
	ID          int64
	AccessHash  int64
	Username    string
	Title       string
	About       string
	MemberCount int
}

// HistoryQuery pages through channel history
type HistoryQuery struct {
	Limit    int
	OffsetID int64
}

// Message is a raw platform message
type Message struct {
	ID         int64
	Date       time.Time
	Text       string
	Views      int
	Forwards   int
	FromUserID int64
	Reactions  []RawReaction
}

// RawReaction is one reaction kind with its count. Emoticon is set for
// standard emoji, DocumentID for custom emoji; Descriptor is the
// platform's own rendering of anything else.
type RawReaction struct {
	Emoticon   string
	DocumentID int64
	Descriptor string
	Count      int
}

// RemoteUser is a message author as reported by the platform
type RemoteUser struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}
