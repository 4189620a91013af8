package query

import (
	"errors"
	"testing"

	"github.com/pavelanni/questionbot/internal/model"
)

func TestCriteriaFromParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   Criteria
	}{
		{
			name:   "empty",
			params: map[string]any{},
			want:   Criteria{Limit: DefaultLimit},
		},
		{
			name: "all fields",
			params: map[string]any{
				"Year":       "2021",
				"number":     float64(5),
				"Exam_Type":  " Final ",
				"Subject":    "Math",
				"Type":       "Theory",
				"Difficulty": "Hard",
				"Topic":      "alpha or beta",
				"any":        "ignored when topic is set",
				"Repeated":   "unknown keys are ignored",
			},
			want: Criteria{
				Year:         "2021",
				ExamType:     "Final",
				Subject:      "Math",
				QuestionType: "Theory",
				Difficulty:   "Hard",
				SearchTerms:  "alpha or beta",
				Limit:        5,
			},
		},
		{
			name:   "any used when topic empty",
			params: map[string]any{"Topic": "", "any": "gamma"},
			want:   Criteria{SearchTerms: "gamma", Limit: DefaultLimit},
		},
		{
			name:   "numeric year",
			params: map[string]any{"Year": float64(2021)},
			want:   Criteria{Year: "2021", Limit: DefaultLimit},
		},
		{
			name:   "list values",
			params: map[string]any{"Subject": []any{"", "Physics"}, "number": []any{float64(3)}},
			want:   Criteria{Subject: "Physics", Limit: 3},
		},
		{
			name:   "zero number",
			params: map[string]any{"number": float64(0)},
			want:   Criteria{Limit: DefaultLimit},
		},
		{
			name:   "negative number",
			params: map[string]any{"number": "-4"},
			want:   Criteria{Limit: DefaultLimit},
		},
		{
			name:   "empty number string",
			params: map[string]any{"number": "  "},
			want:   Criteria{Limit: DefaultLimit},
		},
		{
			name:   "fractional number truncates",
			params: map[string]any{"number": 3.7},
			want:   Criteria{Limit: 3},
		},
		{
			name:   "integer string",
			params: map[string]any{"number": " 4 "},
			want:   Criteria{Limit: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CriteriaFromParams(tt.params)
			if err != nil {
				t.Fatalf("CriteriaFromParams: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCriteriaFromParamsMalformedLimit(t *testing.T) {
	for _, v := range []any{"three", "2.5", map[string]any{"x": 1}, true} {
		_, err := CriteriaFromParams(map[string]any{"number": v})
		if !errors.Is(err, model.ErrInvalidCriteria) {
			t.Errorf("number %#v: expected ErrInvalidCriteria, got %v", v, err)
		}
	}
}
