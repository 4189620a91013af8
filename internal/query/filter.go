package query

import (
	"strings"

	"github.com/pavelanni/questionbot/internal/model"
)

type predicate func(model.QuestionRecord) bool

// Filter narrows records by each set criterion in turn and truncates the
// survivors to c.Limit. Source order is preserved. It never returns nil.
func Filter(records []model.QuestionRecord, c Criteria) []model.QuestionRecord {
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	stages := stagesFor(c)
	out := make([]model.QuestionRecord, 0, min(limit, len(records)))
	for _, r := range records {
		if len(out) == limit {
			break
		}
		if matchAll(stages, r) {
			out = append(out, r)
		}
	}
	return out
}

// stagesFor returns the predicates for the set fields, in narrowing order:
// year, exam type, subject, question type, difficulty, free-text search.
func stagesFor(c Criteria) []predicate {
	var stages []predicate
	if c.Year != "" {
		year := c.Year
		stages = append(stages, func(r model.QuestionRecord) bool { return r.Year == year })
	}
	if c.ExamType != "" {
		stages = append(stages, containsFold(c.ExamType, func(r model.QuestionRecord) string { return r.ExamType }))
	}
	if c.Subject != "" {
		stages = append(stages, containsFold(c.Subject, func(r model.QuestionRecord) string { return r.Subject }))
	}
	if c.QuestionType != "" {
		stages = append(stages, containsFold(c.QuestionType, func(r model.QuestionRecord) string { return r.QuestionType }))
	}
	if c.Difficulty != "" {
		want := c.Difficulty
		stages = append(stages, func(r model.QuestionRecord) bool { return strings.EqualFold(r.Difficulty, want) })
	}
	if terms := c.Alternatives(); len(terms) > 0 {
		stages = append(stages, func(r model.QuestionRecord) bool {
			text := strings.ToLower(r.Text)
			for _, t := range terms {
				if strings.Contains(text, t) {
					return true
				}
			}
			return false
		})
	}
	return stages
}

func containsFold(needle string, field func(model.QuestionRecord) string) predicate {
	needle = strings.ToLower(needle)
	return func(r model.QuestionRecord) bool {
		return strings.Contains(strings.ToLower(field(r)), needle)
	}
}

func matchAll(stages []predicate, r model.QuestionRecord) bool {
	for _, p := range stages {
		if !p(r) {
			return false
		}
	}
	return true
}
