// Package report renders a channel's stored posts and analyses as a
// single HTML page.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/ibeckermayer/tganalytics/internal/analyzer"
	"github.com/ibeckermayer/tganalytics/internal/store"
	"github.com/ibeckermayer/tganalytics/internal/types"
)

// Builder creates channel reports from stored data
type Builder struct {
	store    *store.Store
	maxPosts int
	template *template.Template
	now      func() time.Time
}

// New creates a new report builder
func New(st *store.Store, maxPosts int) (*Builder, error) {
	tmpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if maxPosts <= 0 {
		maxPosts = 10
	}

	return &Builder{
		store:    st,
		maxPosts: maxPosts,
		template: tmpl,
		now:      time.Now,
	}, nil
}

// Report is a rendered channel report
type Report struct {
	Title     string
	HTML      []byte
	CreatedAt time.Time
}

// Data is the template data structure
type Data struct {
	Title      string
	Date       string
	Channel    types.Channel
	Analysis   *analyzer.ChannelReport
	AnalyzedAt string
	TopPosts   []PostData
	Plans      []PlanData
	Survey     *SurveyData
	Stats      StatsData
}

// PostData represents a post in the report
type PostData struct {
	Content   string
	PostedAt  string
	Views     int
	Forwards  int
	Comments  int
	Reactions int
	URL       string
}

// PlanData is one planned day
type PlanData struct {
	Date        string
	Title       string
	Description string
	Status      string
}

// SurveyData is the latest survey draft
type SurveyData struct {
	Title       string
	Description string
	Questions   []analyzer.SurveyQuestion
}

// StatsData contains report statistics
type StatsData struct {
	PostsScanned int
	TotalViews   int
}

// Build renders the report of one channel
func (b *Builder) Build(ctx context.Context, channelID int64) (*Report, error) {
	ch, err := b.store.ChannelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	now := b.now()
	data := Data{
		Title:   fmt.Sprintf("Отчёт по каналу %s", displayName(ch)),
		Date:    now.Format("02.01.2006"),
		Channel: *ch,
	}

	if err := b.addAnalysis(ctx, &data); err != nil {
		return nil, err
	}
	if err := b.addPosts(ctx, &data); err != nil {
		return nil, err
	}
	if err := b.addPlans(ctx, &data); err != nil {
		return nil, err
	}
	if err := b.addSurvey(ctx, &data); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := b.template.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &Report{Title: data.Title, HTML: buf.Bytes(), CreatedAt: now}, nil
}

func (b *Builder) addAnalysis(ctx context.Context, data *Data) error {
	latest, err := b.store.LatestAnalysis(ctx, store.AnalysisFilter{
		ChannelID: data.Channel.ID,
		Type:      types.AnalysisChannelContent,
	})
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var r analyzer.ChannelReport
	if err := json.Unmarshal([]byte(latest.Content), &r); err != nil {
		r = analyzer.ChannelReport{Unparsed: latest.Content}
	}
	data.Analysis = &r
	data.AnalyzedAt = latest.CreatedAt.Format("02.01.2006 15:04")
	return nil
}

func (b *Builder) addPosts(ctx context.Context, data *Data) error {
	posts, err := b.store.PostsByChannel(ctx, data.Channel.ID, 200, 0)
	if err != nil {
		return err
	}
	data.Stats.PostsScanned = len(posts)
	for _, p := range posts {
		data.Stats.TotalViews += p.Views
	}

	// Sort by views descending
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Views > posts[j].Views
	})
	if len(posts) > b.maxPosts {
		posts = posts[:b.maxPosts]
	}

	for _, p := range posts {
		comments, err := b.store.CountComments(ctx, p.ID)
		if err != nil {
			return err
		}
		reactions, err := b.store.ReactionsByPost(ctx, p.ID)
		if err != nil {
			return err
		}

		pd := PostData{
			Content:   truncate(p.Content, 280),
			PostedAt:  p.PostedAt.Format("02.01.2006 15:04"),
			Views:     p.Views,
			Forwards:  p.Forwards,
			Comments:  comments,
			Reactions: reactionTotal(reactions),
		}
		if data.Channel.Username != "" {
			pd.URL = fmt.Sprintf("https://t.me/%s/%d", data.Channel.Username, p.TelegramID)
		}
		data.TopPosts = append(data.TopPosts, pd)
	}
	return nil
}

func (b *Builder) addPlans(ctx context.Context, data *Data) error {
	plans, err := b.store.ContentPlansByChannel(ctx, data.Channel.ID, 14, 0)
	if err != nil {
		return err
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].PlannedDate.Before(plans[j].PlannedDate)
	})
	for _, p := range plans {
		data.Plans = append(data.Plans, PlanData{
			Date:        p.PlannedDate.Format("02.01.2006"),
			Title:       p.Title,
			Description: p.Description,
			Status:      p.Status,
		})
	}
	return nil
}

func (b *Builder) addSurvey(ctx context.Context, data *Data) error {
	surveys, err := b.store.SurveysByChannel(ctx, data.Channel.ID, 1, 0)
	if err != nil || len(surveys) == 0 {
		return err
	}

	s := surveys[0]
	sd := &SurveyData{Title: s.Title, Description: s.Description}
	if err := json.Unmarshal([]byte(s.Questions), &sd.Questions); err != nil {
		sd.Questions = nil
	}
	data.Survey = sd
	return nil
}

// reactionTotal sums the counts of the newest collection run
func reactionTotal(all []types.Reaction) int {
	total := 0
	for _, r := range store.LatestSnapshot(all) {
		total += r.Count
	}
	return total
}

func displayName(ch *types.Channel) string {
	if ch.Username != "" {
		return "@" + ch.Username
	}
	return ch.Title
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

const defaultTemplate = `<!DOCTYPE html>
<html lang="ru">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 760px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #229ed9; margin-bottom: 5px; }
        h2 { color: #333; border-bottom: 1px solid #eee; padding-bottom: 6px; }
        .date { color: #666; margin-bottom: 20px; }
        .about { color: #444; white-space: pre-line; }
        .facet { margin: 8px 0; }
        .facet b { color: #333; }
        .tag { background: #e6f4fb; color: #229ed9; padding: 2px 8px; border-radius: 12px; font-size: 12px; margin-right: 5px; display: inline-block; margin-bottom: 4px; }
        .raw { white-space: pre-wrap; background: #fafafa; padding: 10px; border-radius: 6px; }
        .post { border-bottom: 1px solid #eee; padding: 12px 0; }
        .post:last-child { border-bottom: none; }
        .content { margin: 6px 0; line-height: 1.4; white-space: pre-line; }
        .metrics { color: #666; font-size: 13px; }
        .link { color: #229ed9; text-decoration: none; }
        table { width: 100%; border-collapse: collapse; }
        td { padding: 6px; border-bottom: 1px solid #eee; vertical-align: top; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}} · {{.Channel.Title}} · подписчиков: {{.Channel.MemberCount}}</div>
        {{with .Channel.Description}}<div class="about">{{.}}</div>{{end}}

        <h2>Анализ контента</h2>
        {{with .Analysis}}
            <div class="date">от {{$.AnalyzedAt}}</div>
            {{if .Parsed}}
            <div class="facet"><b>Основные темы:</b> {{range .MainTopics}}<span class="tag">{{.}}</span>{{end}}</div>
            <div class="facet"><b>Настроение аудитории:</b> {{.AudienceSentiment}}</div>
            <div class="facet"><b>Оптимальное время публикации:</b> {{.OptimalPostingTime}}</div>
            <div class="facet"><b>Вопросы аудитории:</b><ul>{{range .AudienceQuestions}}<li>{{.}}</li>{{end}}</ul></div>
            <div class="facet"><b>Идеи для постов:</b><ul>{{range .ContentIdeas}}<li>{{.}}</li>{{end}}</ul></div>
            <div class="facet"><b>Сильные стороны:</b><ul>{{range .ContentStrengths}}<li>{{.}}</li>{{end}}</ul></div>
            <div class="facet"><b>Слабые стороны:</b><ul>{{range .ContentWeaknesses}}<li>{{.}}</li>{{end}}</ul></div>
            {{else}}
            <div class="raw">{{.Unparsed}}</div>
            {{end}}
        {{else}}
            <p>Анализ ещё не проводился.</p>
        {{end}}

        <h2>Популярные посты</h2>
        {{range .TopPosts}}
        <div class="post">
            <div class="metrics">{{.PostedAt}}</div>
            <div class="content">{{.Content}}</div>
            <div class="metrics">{{.Views}} просмотров · {{.Forwards}} репостов · {{.Comments}} комментариев · {{.Reactions}} реакций</div>
            {{with .URL}}<a href="{{.}}" class="link">Открыть в Telegram →</a>{{end}}
        </div>
        {{else}}
        <p>Посты ещё не собраны.</p>
        {{end}}

        {{with .Plans}}
        <h2>Контент-план</h2>
        <table>
            {{range .}}<tr><td>{{.Date}}</td><td><b>{{.Title}}</b><br>{{.Description}}</td><td>{{.Status}}</td></tr>{{end}}
        </table>
        {{end}}

        {{with .Survey}}
        <h2>Опрос: {{.Title}}</h2>
        <p>{{.Description}}</p>
        <ol>{{range .Questions}}<li>{{.QuestionText}}{{with .Options}} <span class="metrics">({{.Join ", "}})</span>{{end}}</li>{{end}}</ol>
        {{end}}

        <div class="footer">
            Просмотрено постов: {{.Stats.PostsScanned}} · всего просмотров: {{.Stats.TotalViews}} · tganalytics
        </div>
    </div>
</body>
</html>`
