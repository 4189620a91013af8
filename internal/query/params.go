package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pavelanni/questionbot/internal/bank"
	"github.com/pavelanni/questionbot/internal/model"
)

// Parameter keys produced by the intent classifier.
const (
	ParamYear       = "Year"
	ParamNumber     = "number"
	ParamExamType   = "Exam_Type"
	ParamSubject    = "Subject"
	ParamTopic      = "Topic"
	ParamAny        = "any"
	ParamType       = "Type"
	ParamDifficulty = "Difficulty"
)

// CriteriaFromParams builds Criteria from classifier parameters. Unknown keys
// are ignored. It fails with model.ErrInvalidCriteria only when the limit is
// present but cannot be read as an integer.
func CriteriaFromParams(params map[string]any) (Criteria, error) {
	limit, err := parseLimit(params[ParamNumber])
	if err != nil {
		return Criteria{}, err
	}

	search := paramString(params[ParamTopic])
	if search == "" {
		search = paramString(params[ParamAny])
	}

	return NewCriteria(
		WithYear(bank.NormalizeYear(paramString(params[ParamYear]))),
		WithExamType(paramString(params[ParamExamType])),
		WithSubject(paramString(params[ParamSubject])),
		WithQuestionType(paramString(params[ParamType])),
		WithDifficulty(paramString(params[ParamDifficulty])),
		WithSearch(search),
		WithLimit(limit),
	), nil
}

// paramString flattens a parameter value to a trimmed string. Lists yield
// their first non-empty element; integral numbers print without a fraction.
func paramString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		for _, e := range t {
			if s := paramString(e); s != "" {
				return s
			}
		}
		return ""
	case []string:
		for _, e := range t {
			if s := strings.TrimSpace(e); s != "" {
				return s
			}
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// parseLimit returns 0 for an absent or empty value, which NewCriteria turns
// into DefaultLimit.
func parseLimit(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("%w: number %v", model.ErrInvalidCriteria, t)
		}
		if t > math.MaxInt32 {
			return math.MaxInt32, nil
		}
		return int(t), nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: number %q", model.ErrInvalidCriteria, s)
		}
		return n, nil
	case []any:
		if len(t) == 0 {
			return 0, nil
		}
		return parseLimit(t[0])
	default:
		return 0, fmt.Errorf("%w: number of type %T", model.ErrInvalidCriteria, v)
	}
}
