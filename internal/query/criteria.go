// Package query turns classifier parameters into filter criteria and applies
// them to the question bank.
package query

import (
	"regexp"
	"strings"
)

// DefaultLimit is the number of records returned when no positive limit is given.
const DefaultLimit = 2

// orSeparator splits free-text search on the standalone word "or".
var orSeparator = regexp.MustCompile(`(?i)\s+or\s+`)

// Criteria is the immutable filter built once per request. Empty string
// fields impose no constraint.
type Criteria struct {
	Year         string
	ExamType     string
	Subject      string
	QuestionType string
	Difficulty   string
	SearchTerms  string
	Limit        int
}

// Option sets one field of a Criteria.
type Option func(*Criteria)

// NewCriteria builds a Criteria from options. A non-positive limit becomes DefaultLimit.
func NewCriteria(opts ...Option) Criteria {
	c := Criteria{Limit: DefaultLimit}
	for _, o := range opts {
		o(&c)
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	return c
}

// WithYear requires an exact year match.
func WithYear(y string) Option {
	return func(c *Criteria) { c.Year = strings.TrimSpace(y) }
}

// WithExamType requires the exam type to contain s.
func WithExamType(s string) Option {
	return func(c *Criteria) { c.ExamType = strings.TrimSpace(s) }
}

// WithSubject requires the subject to contain s.
func WithSubject(s string) Option {
	return func(c *Criteria) { c.Subject = strings.TrimSpace(s) }
}

// WithQuestionType requires the question type to contain s.
func WithQuestionType(s string) Option {
	return func(c *Criteria) { c.QuestionType = strings.TrimSpace(s) }
}

// WithDifficulty requires the difficulty to equal s, ignoring case.
func WithDifficulty(s string) Option {
	return func(c *Criteria) { c.Difficulty = strings.TrimSpace(s) }
}

// WithSearch sets free text; alternatives are separated by "or".
func WithSearch(s string) Option {
	return func(c *Criteria) { c.SearchTerms = strings.TrimSpace(s) }
}

// WithLimit caps the result size.
func WithLimit(n int) Option {
	return func(c *Criteria) { c.Limit = n }
}

// Alternatives splits SearchTerms on "or" into lower-cased literal terms.
// Blank alternatives are dropped.
func (c Criteria) Alternatives() []string {
	if c.SearchTerms == "" {
		return nil
	}
	parts := orSeparator.Split(c.SearchTerms, -1)
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}
