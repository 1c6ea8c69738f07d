package mtproto

import (
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/ibeckermayer/tganalytics/internal/collector"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

func unpack(res tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.UserClass) {
	switch v := res.(type) {
	case *tg.MessagesMessages:
		return v.Messages, v.Users
	case *tg.MessagesMessagesSlice:
		return v.Messages, v.Users
	case *tg.MessagesChannelMessages:
		return v.Messages, v.Users
	default:
		return nil, nil
	}
}

// convertMessages keeps regular messages; service messages are dropped
func convertMessages(msgs []tg.MessageClass) []collector.Message {
	out := make([]collector.Message, 0, len(msgs))
	for _, mc := range msgs {
		m, ok := mc.(*tg.Message)
		if !ok {
			continue
		}
		out = append(out, convertMessage(m))
	}
	return out
}

func convertMessage(m *tg.Message) collector.Message {
	msg := collector.Message{
		ID:   int64(m.ID),
		Date: time.Unix(int64(m.Date), 0).UTC(),
		Text: m.Message,
	}
	if v, ok := m.GetViews(); ok {
		msg.Views = v
	}
	if f, ok := m.GetForwards(); ok {
		msg.Forwards = f
	}
	if from, ok := m.GetFromID(); ok {
		if pu, ok := from.(*tg.PeerUser); ok {
			msg.FromUserID = pu.UserID
		}
	}
	if reactions, ok := m.GetReactions(); ok {
		for _, rc := range reactions.Results {
			msg.Reactions = append(msg.Reactions, convertReaction(rc))
		}
	}
	return msg
}

func convertReaction(rc tg.ReactionCount) collector.RawReaction {
	r := collector.RawReaction{Count: rc.Count}
	switch v := rc.Reaction.(type) {
	case *tg.ReactionEmoji:
		r.Emoticon = v.Emoticon
	case *tg.ReactionCustomEmoji:
		r.DocumentID = v.DocumentID
	default:
		r.Descriptor = fmt.Sprint(rc.Reaction)
	}
	return r
}

// classify maps gotd errors onto the shared sentinels
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrAuthExpired) {
		return err
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return fmt.Errorf("%w (retry in %s): %w", types.ErrRateLimited, d, err)
	}
	if auth.IsUnauthorized(err) || tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED") {
		return fmt.Errorf("%w: %w", types.ErrAuthExpired, err)
	}
	if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID", "CHANNEL_INVALID", "CHANNEL_PRIVATE", "MSG_ID_INVALID", "PEER_ID_INVALID") {
		return fmt.Errorf("%w: %w", types.ErrNotFound, err)
	}
	if _, ok := tgerr.As(err); !ok {
		return fmt.Errorf("%w: %w", types.ErrRateLimited, err)
	}
	return err
}
