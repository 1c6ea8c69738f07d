package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ibeckermayer/tganalytics/internal/analyzer"
)

const maxUnparsedPreview = 700

func channelSummary(handle string, r *analyzer.ChannelReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Анализ канала @%s завершен!\n\n", handle)

	if !r.Parsed() {
		sb.WriteString("Модель вернула неструктурированный ответ:\n")
		sb.WriteString(truncate(r.Unparsed, maxUnparsedPreview))
		sb.WriteString("\n\n")
		sb.WriteString(msgSeeFullResult)
		return sb.String()
	}

	fmt.Fprintf(&sb, "Основные темы: %s\n", r.MainTopics.Join(", "))
	fmt.Fprintf(&sb, "Выявлено %d постов с наибольшим вовлечением\n", len(r.TopPosts))
	fmt.Fprintf(&sb, "Настроение аудитории: %s\n", r.AudienceSentiment)
	fmt.Fprintf(&sb, "Создано %d идей для новых постов\n\n", len(r.ContentIdeas))
	sb.WriteString(msgSeeFullResult)
	return sb.String()
}

func planSummary(handle string, p *analyzer.ContentPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Контент-план для канала @%s на %d дней создан!\n\n", handle, len(p.Days))
	sb.WriteString("Примеры тем:\n")
	for _, d := range p.Days[:min(3, len(p.Days))] {
		fmt.Fprintf(&sb, "• День %d: %s\n", d.Day, d.Plan.Title)
	}
	sb.WriteString("\nПолный контент-план доступен в веб-интерфейсе.")
	return sb.String()
}

func postSummary(postID int64, r *analyzer.PostReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Анализ поста ID %d завершен!\n\n", postID)
	fmt.Fprintf(&sb, "Уровень вовлечения: %s\n", r.EngagementLevel)
	fmt.Fprintf(&sb, "Тональность комментариев: %s\n\n", r.CommentsSentiment)

	sb.WriteString("Сильные стороны:\n")
	for _, pro := range r.ProsAndCons.Pros.First(3) {
		fmt.Fprintf(&sb, "• %s\n", pro)
	}
	sb.WriteString("\nСлабые стороны:\n")
	for _, con := range r.ProsAndCons.Cons.First(3) {
		fmt.Fprintf(&sb, "• %s\n", con)
	}

	sb.WriteString("\nПолные результаты анализа доступны в веб-интерфейсе.")
	return sb.String()
}

func surveySummary(handle string, s *analyzer.SurveyDraft) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Опрос для аудитории канала @%s создан!\n\n", handle)
	fmt.Fprintf(&sb, "Название: %s\n", s.Title)
	fmt.Fprintf(&sb, "Количество вопросов: %d\n\n", len(s.Questions))

	sb.WriteString("Примеры вопросов:\n")
	for _, q := range s.Questions[:min(3, len(s.Questions))] {
		fmt.Fprintf(&sb, "• %s\n", q.QuestionText)
	}

	sb.WriteString("\nОпрос доступен в веб-интерфейсе и готов к публикации.")
	return sb.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
