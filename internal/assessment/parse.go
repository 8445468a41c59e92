package assessment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/pavelanni/traderpath/internal/model"
)

// ParseAnswers converts a decoded JSON object into an AnswerSet.
//
// Keys must be base-10 question ids and values integral option indices.
// Anything else is a *model.ValidationError. Ids that are not in the catalog
// and indices out of range are accepted here; scoring ignores them.
func ParseAnswers(raw map[string]any) (AnswerSet, error) {
	answers := make(AnswerSet, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, &model.ValidationError{Field: "answers", Reason: fmt.Sprintf("question id %q is not an integer", k)}
		}
		index, err := optionIndex(v)
		if err != nil {
			return nil, &model.ValidationError{Field: "answers", Reason: fmt.Sprintf("question %d: %v", id, err)}
		}
		answers[id] = index
	}
	return answers, nil
}

func optionIndex(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
			return 0, fmt.Errorf("option index %v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("option index %q is not an integer", n.String())
		}
		return int(i), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("option index has type %T, want integer", v)
	}
}
