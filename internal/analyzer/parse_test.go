package analyzer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a":1}`},
		{"fenced", "Вот результат:\n```json\n{\"a\": 1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\": 1}\n```", `{"a":1}`},
		{"prose around", `Конечно! {"a": {"b": 2}} Надеюсь, помог.`, `{"a":{"b":2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}

	for _, bad := range []string{"", "no json here", "[1, 2]", "{broken"} {
		_, err := extractJSON(bad)
		assert.Error(t, err, bad)
	}
}

func TestTextAcceptsAnyJSON(t *testing.T) {
	var v struct {
		A Text     `json:"a"`
		B Text     `json:"b"`
		C Text     `json:"c"`
		D Text     `json:"d"`
		L TextList `json:"l"`
		S TextList `json:"s"`
	}
	err := json.Unmarshal([]byte(`{
		"a": "строка",
		"b": {"title": "Заголовок", "views": 10},
		"c": {"views": 10},
		"d": 42,
		"l": ["x", {"text": "y"}],
		"s": "single"
	}`), &v)
	require.NoError(t, err)

	assert.Equal(t, Text("строка"), v.A)
	assert.Equal(t, Text("Заголовок"), v.B)
	assert.Equal(t, Text(`{"views":10}`), v.C)
	assert.Equal(t, Text("42"), v.D)
	assert.Equal(t, TextList{"x", "y"}, v.L)
	assert.Equal(t, TextList{"single"}, v.S)
	assert.Equal(t, "x, y", v.L.Join(", "))
	assert.Equal(t, TextList{"x"}, v.L.First(1))
}

func TestProsAndConsIgnoresNonObjects(t *testing.T) {
	var r PostReport
	require.NoError(t, json.Unmarshal([]byte(`{"engagement_level": "low", "pros_and_cons": "всё плохо"}`), &r))
	assert.Empty(t, r.ProsAndCons.Pros)
	assert.Equal(t, Text("low"), r.EngagementLevel)
}

func TestParseContentPlanOrdersDays(t *testing.T) {
	days, err := parseContentPlan(`{"day_10": {"title": "c"}, "day_2": {"title": "b"}, "day_1": {"title": "a"}}`)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{days[0].Day, days[1].Day, days[2].Day})
}

func TestFailureCapitalizes(t *testing.T) {
	assert.Equal(t, ErrorPayload{}, Failure(nil))
	assert.Equal(t, "Post not found", Failure(ErrPostNotFound).Error)
}
