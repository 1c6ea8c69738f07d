package types

import "time"

// Channel is a public broadcast channel as known to the local store
type Channel struct {
	ID          int64     `json:"id"`
	TelegramID  int64     `json:"telegram_id"`
	Username    string    `json:"username"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Post is a message published in a channel
type Post struct {
	ID         int64     `json:"id"`
	ChannelID  int64     `json:"channel_id"`
	TelegramID int64     `json:"telegram_id"`
	Content    string    `json:"content"`
	PostedAt   time.Time `json:"posted_at"`
	Views      int       `json:"views"`
	Forwards   int       `json:"forwards"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// User is the author of a comment
type User struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// Comment is a reply in a post's discussion thread.
// UserID is nil when the author could not be resolved.
type Comment struct {
	ID          int64     `json:"id"`
	PostID      int64     `json:"post_id"`
	UserID      *int64    `json:"user_id"`
	TelegramID  int64     `json:"telegram_id"`
	Content     string    `json:"content"`
	CommentedAt time.Time `json:"commented_at"`
}

// Reaction is a point-in-time count of one reaction kind on exactly one
// post or comment.
type Reaction struct {
	ID          int64     `json:"id"`
	PostID      *int64    `json:"post_id,omitempty"`
	CommentID   *int64    `json:"comment_id,omitempty"`
	Label       string    `json:"reaction"`
	Count       int       `json:"count"`
	CollectedAt time.Time `json:"collected_at"`
}

// AnalysisType names the kind of stored analysis
type AnalysisType string

const (
	AnalysisChannelContent  AnalysisType = "channel_content"
	AnalysisPostPerformance AnalysisType = "post_performance"
)

// Analysis is an append-only model result. Content holds the JSON document.
type Analysis struct {
	ID        int64        `json:"id"`
	ChannelID *int64       `json:"channel_id,omitempty"`
	PostID    *int64       `json:"post_id,omitempty"`
	Type      AnalysisType `json:"analysis_type"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
}

// Plan and survey statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// ContentPlan is one planned day of a generated content plan
type ContentPlan struct {
	ID          int64     `json:"id"`
	ChannelID   int64     `json:"channel_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PlannedDate time.Time `json:"planned_date"`
	Content     string    `json:"content"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Survey is a generated audience survey. Questions holds a JSON array.
type Survey struct {
	ID          int64     `json:"id"`
	ChannelID   int64     `json:"channel_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Questions   string    `json:"questions"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}
