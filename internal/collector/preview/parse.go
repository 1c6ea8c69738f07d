package preview

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ibeckermayer/tganalytics/internal/collector"
)

// rawChannel is the channel header extracted from the DOM
type rawChannel struct {
	Title       string            `json:"title"`
	Username    string            `json:"username"`
	Description string            `json:"description"`
	Counters    map[string]string `json:"counters"`
}

// rawMessage is one message extracted from the DOM
type rawMessage struct {
	Post      string        `json:"post"` // "<handle>/<id>"
	Text      string        `json:"text"`
	Datetime  string        `json:"datetime"`
	Views     string        `json:"views"`
	Reactions []rawReaction `json:"reactions"`
}

type rawReaction struct {
	Emoji    string `json:"emoji"`
	CustomID string `json:"customId"`
	Text     string `json:"text"`
	Count    string `json:"count"`
}

// toChannel converts the header. The web preview exposes no numeric
// channel id, so a stable one is derived from the handle.
func toChannel(handle string, rc rawChannel) *collector.RemoteChannel {
	username := strings.TrimPrefix(strings.TrimSpace(rc.Username), "@")
	if username == "" {
		username = handle
	}
	ch := &collector.RemoteChannel{
		ID:       syntheticID(username),
		Username: username,
		Title:    strings.TrimSpace(rc.Title),
		About:    strings.TrimSpace(rc.Description),
	}
	for label, value := range rc.Counters {
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "subscriber", "subscribers", "member", "members":
			ch.MemberCount = parseMetric(value)
		}
	}
	return ch
}

// syntheticID maps a handle to a negative id so it can never collide
// with a real platform id (FNV-1a, 63 bits).
func syntheticID(handle string) int64 {
	var h uint64 = 14695981039346656037
	for _, b := range []byte(strings.ToLower(handle)) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return -int64(h >> 1)
}

// toMessages converts extracted messages, newest first
func toMessages(raw []rawMessage) []collector.Message {
	out := make([]collector.Message, 0, len(raw))
	for _, rm := range raw {
		id := messageID(rm.Post)
		if id == 0 {
			continue
		}

		m := collector.Message{
			ID:    id,
			Text:  rm.Text,
			Views: parseMetric(rm.Views),
		}
		if rm.Datetime != "" {
			if parsed, err := time.Parse(time.RFC3339, rm.Datetime); err == nil {
				m.Date = parsed.UTC()
			}
		}
		for _, rr := range rm.Reactions {
			m.Reactions = append(m.Reactions, toReaction(rr))
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func toReaction(rr rawReaction) collector.RawReaction {
	r := collector.RawReaction{Count: parseMetric(rr.Count)}
	switch {
	case rr.Emoji != "":
		r.Emoticon = rr.Emoji
	case rr.CustomID != "":
		if id, err := strconv.ParseInt(rr.CustomID, 10, 64); err == nil {
			r.DocumentID = id
		} else {
			r.Descriptor = rr.CustomID
		}
	default:
		r.Descriptor = strings.TrimSpace(rr.Text)
	}
	return r
}

func messageID(post string) int64 {
	i := strings.LastIndex(post, "/")
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseInt(post[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseMetric converts display numbers like "1.2K" or "3,4M" into ints
func parseMetric(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	s = strings.ReplaceAll(s, " ", "")
	multiplier := 1.0
	switch {
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1000
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1000000
		s = s[:len(s)-1]
	}
	if multiplier > 1 {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(value * multiplier))
}
