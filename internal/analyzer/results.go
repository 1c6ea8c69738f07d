package analyzer

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Text accepts any JSON value. Strings are kept as is; objects use their
// first descriptive field when present, otherwise everything is rendered
// as compact JSON.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err == nil {
		for _, key := range []string{"title", "text", "question", "name", "topic", "idea", "description"} {
			if v, ok := obj[key]; ok {
				var inner Text
				if err := inner.UnmarshalJSON(v); err == nil && inner != "" {
					*t = inner
					return nil
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

func (t Text) String() string {
	return string(t)
}

// TextList accepts a JSON array or a single value
type TextList []Text

func (l *TextList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var items []Text
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var one Text
	if err := one.UnmarshalJSON(b); err != nil {
		return err
	}
	*l = TextList{one}
	return nil
}

// First returns up to n items
func (l TextList) First(n int) TextList {
	if len(l) > n {
		return l[:n]
	}
	return l
}

// Join renders the list as a comma separated string
func (l TextList) Join(sep string) string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = string(t)
	}
	return strings.Join(parts, sep)
}

// ChannelReport is the result of a channel content analysis. When the
// model reply was not JSON, only Unparsed is set.
type ChannelReport struct {
	ChannelID          int64    `json:"-"`
	MainTopics         TextList `json:"main_topics"`
	TopPosts           TextList `json:"top_posts"`
	AudienceSentiment  Text     `json:"audience_sentiment"`
	AudienceQuestions  TextList `json:"audience_questions"`
	ContentIdeas       TextList `json:"content_ideas"`
	OptimalPostingTime Text     `json:"optimal_posting_time"`
	ContentStrengths   TextList `json:"content_strengths"`
	ContentWeaknesses  TextList `json:"content_weaknesses"`
	Unparsed           string   `json:"analysis"`

	// Document is the stored JSON document
	Document json.RawMessage `json:"-"`
}

// Parsed reports whether the model reply was structured
func (r *ChannelReport) Parsed() bool {
	return r.Unparsed == ""
}

// DayPlan is one day of a content plan as the model described it
type DayPlan struct {
	Title              Text `json:"title"`
	Description        Text `json:"description"`
	ContentType        Text `json:"content_type"`
	PostingTime        Text `json:"posting_time"`
	ExpectedEngagement Text `json:"expected_engagement"`
}

// PlannedDay is a DayPlan placed on the calendar
type PlannedDay struct {
	Day  int             `json:"day"`
	Date time.Time       `json:"planned_date"`
	Plan DayPlan         `json:"plan"`
	Raw  json.RawMessage `json:"-"`
}

// ContentPlan is a generated plan, ordered by day
type ContentPlan struct {
	ChannelID int64
	Days      []PlannedDay
}

// Document returns the plan keyed by day_N, as the model produced it
func (p *ContentPlan) Document() map[string]json.RawMessage {
	doc := make(map[string]json.RawMessage, len(p.Days))
	for _, d := range p.Days {
		doc[dayKey(d.Day)] = d.Raw
	}
	return doc
}

// ProsAndCons lists what worked and what did not. Anything other than an
// object is ignored.
type ProsAndCons struct {
	Pros TextList `json:"pros"`
	Cons TextList `json:"cons"`
}

func (p *ProsAndCons) UnmarshalJSON(b []byte) error {
	var v struct {
		Pros TextList `json:"pros"`
		Cons TextList `json:"cons"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	p.Pros, p.Cons = v.Pros, v.Cons
	return nil
}

// PostReport is the result of a post performance analysis
type PostReport struct {
	PostID                 int64       `json:"-"`
	EngagementLevel        Text        `json:"engagement_level"`
	EngagementAnalysis     Text        `json:"engagement_analysis"`
	CommentsSentiment      Text        `json:"comments_sentiment"`
	KeyQuestions           TextList    `json:"key_questions"`
	ImprovementSuggestions TextList    `json:"improvement_suggestions"`
	ProsAndCons            ProsAndCons `json:"pros_and_cons"`

	Document json.RawMessage `json:"-"`
}

// SurveyQuestion is one question of a survey draft
type SurveyQuestion struct {
	QuestionText Text     `json:"question_text"`
	QuestionType Text     `json:"question_type"`
	Options      TextList `json:"options"`
}

// SurveyDraft is a generated audience survey
type SurveyDraft struct {
	ID              int64            `json:"-"`
	ChannelID       int64            `json:"-"`
	Title           Text             `json:"title"`
	Description     Text             `json:"description"`
	Questions       []SurveyQuestion `json:"questions"`
	ThankYouMessage Text             `json:"thank_you_message"`

	Document json.RawMessage `json:"-"`
}

// UnmarshalJSON also accepts a bare string as the question text
func (q *SurveyQuestion) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return q.QuestionText.UnmarshalJSON(b)
	}
	type plain SurveyQuestion
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*q = SurveyQuestion(v)
	return nil
}
