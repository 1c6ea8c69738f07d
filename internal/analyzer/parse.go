package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*?\\})\\s*\\n?```")
	dayKeyRe   = regexp.MustCompile(`^day_(\d+)$`)
)

// extractJSON pulls a JSON object out of a model reply that may be
// wrapped in a markdown fence or surrounded by prose.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	candidates := []string{text}

	if m := fencedJSON.FindStringSubmatch(text); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}

	var lastErr error
	for _, c := range candidates {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(c), &obj); err != nil {
			lastErr = err
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(c)); err != nil {
			lastErr = err
			continue
		}
		return buf.Bytes(), nil
	}
	if lastErr == nil {
		lastErr = errors.New("no JSON object in response")
	}
	return nil, lastErr
}

func malformed(task, raw string, err error) error {
	return &types.MalformedOutputError{Task: task, Raw: raw, Err: err}
}

func parseChannelReport(raw string) (*ChannelReport, error) {
	doc, err := extractJSON(raw)
	if err != nil {
		return nil, malformed(taskChannel.name, raw, err)
	}
	var r ChannelReport
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, malformed(taskChannel.name, raw, err)
	}
	r.Unparsed = ""
	r.Document = doc
	return &r, nil
}

func parseContentPlan(raw string) ([]PlannedDay, error) {
	doc, err := extractJSON(raw)
	if err != nil {
		return nil, malformed(taskPlan.name, raw, err)
	}

	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(doc, &byKey); err != nil {
		return nil, malformed(taskPlan.name, raw, err)
	}
	if len(byKey) == 0 {
		return nil, malformed(taskPlan.name, raw, errors.New("plan has no days"))
	}

	days := make([]PlannedDay, 0, len(byKey))
	for key, value := range byKey {
		m := dayKeyRe.FindStringSubmatch(key)
		if m == nil {
			return nil, malformed(taskPlan.name, raw, fmt.Errorf("unexpected key %q", key))
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return nil, malformed(taskPlan.name, raw, fmt.Errorf("bad day number in %q", key))
		}

		var plan DayPlan
		if err := json.Unmarshal(value, &plan); err != nil {
			return nil, malformed(taskPlan.name, raw, fmt.Errorf("%s: %w", key, err))
		}
		if strings.TrimSpace(string(plan.Title)) == "" {
			return nil, malformed(taskPlan.name, raw, fmt.Errorf("%s has no title", key))
		}
		days = append(days, PlannedDay{Day: n, Plan: plan, Raw: value})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

func parsePostReport(raw string) (*PostReport, error) {
	doc, err := extractJSON(raw)
	if err != nil {
		return nil, malformed(taskPost.name, raw, err)
	}
	var r PostReport
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, malformed(taskPost.name, raw, err)
	}
	r.Document = doc
	return &r, nil
}

func parseSurvey(raw string) (*SurveyDraft, json.RawMessage, error) {
	doc, err := extractJSON(raw)
	if err != nil {
		return nil, nil, malformed(taskSurvey.name, raw, err)
	}

	var fields struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, nil, malformed(taskSurvey.name, raw, err)
	}

	var s SurveyDraft
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, nil, malformed(taskSurvey.name, raw, err)
	}
	if strings.TrimSpace(string(s.Title)) == "" {
		return nil, nil, malformed(taskSurvey.name, raw, errors.New("survey has no title"))
	}
	if len(s.Questions) == 0 {
		return nil, nil, malformed(taskSurvey.name, raw, errors.New("survey has no questions"))
	}
	s.Document = doc
	return &s, fields.Questions, nil
}

func dayKey(n int) string {
	return "day_" + strconv.Itoa(n)
}
