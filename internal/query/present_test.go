package query

import (
	"testing"

	"github.com/pavelanni/questionbot/internal/model"
)

func TestPresentEmpty(t *testing.T) {
	if s, ok := Present(nil); ok || s != "" {
		t.Errorf("Present(nil) = %q, %v; want \"\", false", s, ok)
	}
	if _, ok := Present([]model.QuestionRecord{}); ok {
		t.Error("Present(empty) reported results")
	}
}

func TestPresent(t *testing.T) {
	got, ok := Present(scenario)
	if !ok {
		t.Fatal("expected results")
	}
	want := "<b>[2020] Math (Final)</b><br>Q: derivative rules\n\n" +
		"<b>[2021] Math (Mid)</b><br>Q: integral rules"
	if got != want {
		t.Errorf("Present =\n%s\nwant\n%s", got, want)
	}
}

func TestPresentEscapesMarkup(t *testing.T) {
	got, _ := Present([]model.QuestionRecord{{Year: "2020", Subject: "CS", ExamType: "Final", Text: "Is a<b?"}})
	want := "<b>[2020] CS (Final)</b><br>Q: Is a&lt;b?"
	if got != want {
		t.Errorf("Present = %q, want %q", got, want)
	}
}
