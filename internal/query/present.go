package query

import (
	"fmt"
	"html"
	"strings"

	"github.com/pavelanni/questionbot/internal/model"
)

// Present renders records for the chat widget. The boolean is false when
// there is nothing to show, so callers can fall back to another response.
func Present(records []model.QuestionRecord) (string, bool) {
	if len(records) == 0 {
		return "", false
	}
	entries := make([]string, 0, len(records))
	for _, r := range records {
		entries = append(entries, fmt.Sprintf("<b>[%s] %s (%s)</b><br>Q: %s",
			html.EscapeString(r.Year),
			html.EscapeString(r.Subject),
			html.EscapeString(r.ExamType),
			html.EscapeString(r.Text),
		))
	}
	return strings.Join(entries, "\n\n"), true
}
