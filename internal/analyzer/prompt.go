package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ibeckermayer/tganalytics/internal/store"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// task holds the fixed model settings of one analysis kind
type task struct {
	name        string
	system      string
	temperature float64
	maxTokens   int
}

var (
	taskChannel = task{
		name:        "channel_content",
		system:      "Ты аналитик социальных медиа, который анализирует Telegram-каналы и предоставляет инсайты и рекомендации.",
		temperature: 0.3,
		maxTokens:   2000,
	}
	taskPlan = task{
		name:        "content_plan",
		system:      "Ты контент-менеджер Telegram-канала и составляешь контент-планы на основе аналитики.",
		temperature: 0.7,
		maxTokens:   2500,
	}
	taskPost = task{
		name:        "post_performance",
		system:      "Ты аналитик социальных медиа и оцениваешь эффективность постов в Telegram.",
		temperature: 0.3,
		maxTokens:   1500,
	}
	taskSurvey = task{
		name:        "survey",
		system:      "Ты специалист по маркетинговым исследованиям и составляешь опросы для аудитории Telegram-канала.",
		temperature: 0.5,
		maxTokens:   2000,
	}
)

type promptComment struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	UserID      *int64 `json:"user_id"`
	CommentedAt string `json:"commented_at,omitempty"`
}

type promptReaction struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type promptPost struct {
	ID            int64            `json:"id"`
	Content       string           `json:"content"`
	PostedAt      string           `json:"posted_at"`
	Views         int              `json:"views"`
	Forwards      int              `json:"forwards"`
	CommentsCount *int             `json:"comments_count,omitempty"`
	Comments      []promptComment  `json:"comments"`
	Reactions     []promptReaction `json:"reactions"`
}

func newPromptPost(p types.Post, comments []types.Comment, reactions []types.Reaction, withDates bool) promptPost {
	pp := promptPost{
		ID:        p.TelegramID,
		Content:   p.Content,
		PostedAt:  p.PostedAt.UTC().Format(time.RFC3339),
		Views:     p.Views,
		Forwards:  p.Forwards,
		Comments:  make([]promptComment, 0, len(comments)),
		Reactions: make([]promptReaction, 0, len(reactions)),
	}
	for _, c := range comments {
		pc := promptComment{ID: c.TelegramID, Content: c.Content, UserID: c.UserID}
		if withDates {
			pc.CommentedAt = c.CommentedAt.UTC().Format(time.RFC3339)
		}
		pp.Comments = append(pp.Comments, pc)
	}
	for _, r := range store.LatestSnapshot(reactions) {
		pp.Reactions = append(pp.Reactions, promptReaction{Type: r.Label, Count: r.Count})
	}
	return pp
}

// toJSON renders v for a prompt, keeping non-ASCII text readable
func toJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSpace(buf.String())
}

// indentDocument pretty-prints a stored JSON document, returning it
// unchanged if it is not valid JSON
func indentDocument(doc string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(doc), "", "  "); err != nil {
		return doc
	}
	return buf.String()
}

func buildChannelPrompt(posts []promptPost) string {
	var sb strings.Builder

	sb.WriteString("Проанализируй следующие данные из Telegram-канала:\n\n")
	sb.WriteString(toJSON(posts))
	sb.WriteString("\n\n")

	sb.WriteString("Выполни следующие задачи:\n")
	sb.WriteString("1. Определи основные темы и категории контента\n")
	sb.WriteString("2. Найди посты с наибольшим вовлечением (по просмотрам, комментариям и реакциям)\n")
	sb.WriteString("3. Оцени тональность комментариев и общее настроение аудитории\n")
	sb.WriteString("4. Выдели ключевые вопросы и запросы подписчиков\n")
	sb.WriteString("5. Предложи 5 идей для новых постов\n")
	sb.WriteString("6. Определи оптимальное время публикации\n")
	sb.WriteString("7. Назови сильные и слабые стороны контента\n\n")

	sb.WriteString("Ответ дай одним JSON-объектом со следующими ключами:\n")
	for _, key := range []string{"main_topics", "top_posts", "audience_sentiment", "audience_questions",
		"content_ideas", "optimal_posting_time", "content_strengths", "content_weaknesses"} {
		sb.WriteString("- " + key + "\n")
	}

	return sb.String()
}

func buildPlanPrompt(analysis string, days int) string {
	var sb strings.Builder

	sb.WriteString("На основе следующего анализа Telegram-канала:\n\n")
	sb.WriteString(indentDocument(analysis))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Составь контент-план на %d дней. Для каждого дня предложи:\n", days)
	sb.WriteString("1. Тему поста\n")
	sb.WriteString("2. Краткое описание содержания\n")
	sb.WriteString("3. Тип контента (информационный, развлекательный, опрос, обучающий, интерактивный и т.д.)\n")
	sb.WriteString("4. Оптимальное время публикации\n")
	sb.WriteString("5. Ожидаемый отклик аудитории\n\n")

	sb.WriteString("Ответ дай одним JSON-объектом, где ключи - дни (day_1, day_2, ...), а значения - объекты с полями:\n")
	for _, key := range []string{"title", "description", "content_type", "posting_time", "expected_engagement"} {
		sb.WriteString("- " + key + "\n")
	}

	return sb.String()
}

func buildPostPrompt(post promptPost) string {
	var sb strings.Builder

	sb.WriteString("Проанализируй эффективность этого поста из Telegram-канала:\n\n")
	sb.WriteString(toJSON(post))
	sb.WriteString("\n\n")

	sb.WriteString("Выполни следующие задачи:\n")
	sb.WriteString("1. Оцени вовлечение аудитории (высокое, среднее, низкое) с обоснованием\n")
	sb.WriteString("2. Определи тональность комментариев (позитивная, нейтральная, негативная)\n")
	sb.WriteString("3. Выдели ключевые вопросы или запросы в комментариях\n")
	sb.WriteString("4. Предложи, как улучшить пост или его подачу\n")
	sb.WriteString("5. Определи, что в посте сработало хорошо, а что нет\n\n")

	sb.WriteString("Ответ дай одним JSON-объектом со следующими ключами:\n")
	for _, key := range []string{"engagement_level", "engagement_analysis", "comments_sentiment",
		"key_questions", "improvement_suggestions"} {
		sb.WriteString("- " + key + "\n")
	}
	sb.WriteString("- pros_and_cons (объект с полями pros и cons)\n")

	return sb.String()
}

func buildSurveyPrompt(analysis string) string {
	var sb strings.Builder

	sb.WriteString("На основе следующего анализа Telegram-канала:\n\n")
	sb.WriteString(indentDocument(analysis))
	sb.WriteString("\n\n")

	sb.WriteString("Составь опрос для аудитории, который поможет лучше понять её потребности и улучшить контент.\n\n")
	sb.WriteString("Опрос должен содержать:\n")
	sb.WriteString("1. Короткое вступление с целью опроса\n")
	sb.WriteString("2. 5-7 вопросов разных типов (один вариант, несколько вариантов, открытый вопрос и т.д.)\n")
	sb.WriteString("3. Благодарность за участие\n\n")

	sb.WriteString("Вопросы должны касаться:\n")
	sb.WriteString("- предпочтений по темам контента\n")
	sb.WriteString("- удовлетворённости текущим контентом\n")
	sb.WriteString("- пожеланий по новым форматам\n")
	sb.WriteString("- демографии аудитории (возраст, интересы)\n")
	sb.WriteString("- частоты взаимодействия с каналом\n\n")

	sb.WriteString("Ответ дай одним JSON-объектом со следующими ключами:\n")
	sb.WriteString("- title\n")
	sb.WriteString("- description\n")
	sb.WriteString("- questions (массив объектов с полями question_text, question_type, options)\n")
	sb.WriteString("- thank_you_message\n")

	return sb.String()
}
