// Package assessment scores the psychological intake questionnaire and decides
// whether an applicant is eligible to proceed to the interview step.
//
// Everything here is a pure function of a Catalog and an AnswerSet: nothing is
// stored and nothing is shared, so a Catalog may be used from any number of
// goroutines at once.
package assessment

import (
	"math"

	"github.com/pavelanni/traderpath/internal/model"
)

// Dimension is one of the five fixed trait categories scored by the assessment.
type Dimension string

const (
	RiskTolerance      Dimension = "risk_tolerance"
	Discipline         Dimension = "discipline"
	EmotionalStability Dimension = "emotional_stability"
	PatienceFocus      Dimension = "patience_focus"
	LearningMotivation Dimension = "learning_motivation"
)

// Dimensions lists every Dimension in catalog order.
var Dimensions = []Dimension{
	RiskTolerance,
	Discipline,
	EmotionalStability,
	PatienceFocus,
	LearningMotivation,
}

const (
	// PassThreshold is the minimum score every dimension must reach.
	PassThreshold = 70
	// FloorThreshold is the safety floor: no dimension may score below it.
	FloorThreshold = 50
)

// Option is one selectable answer to a Question.
type Option struct {
	Label   string `json:"label"`
	Score   int    `json:"score"`
	RedFlag bool   `json:"red_flag,omitempty"`
}

// Question is an immutable catalog entry.
type Question struct {
	ID        int       `json:"id"`
	Dimension Dimension `json:"dimension"`
	Text      string    `json:"text"`
	Options   []Option  `json:"options"`
}

// AnswerSet maps a question id to the index of the chosen option.
type AnswerSet map[int]int

// Report maps every dimension to its rounded average score.
type Report map[Dimension]int

// Decision is the outcome of evaluating an AnswerSet.
type Decision struct {
	Scores   Report `json:"scores"`
	RedFlag  bool   `json:"red_flag"`
	Eligible bool   `json:"eligible"`
}

// Catalog is an ordered, read-only list of questions.
type Catalog struct {
	questions []Question
	byID      map[int]int
}

// NewCatalog builds a catalog from questions. Question ids must be unique;
// a later duplicate replaces the earlier one in lookups.
func NewCatalog(questions []Question) *Catalog {
	c := &Catalog{
		questions: make([]Question, len(questions)),
		byID:      make(map[int]int, len(questions)),
	}
	for i, q := range questions {
		c.questions[i] = q.clone()
		c.byID[q.ID] = i
	}
	return c
}

func (q Question) clone() Question {
	opts := make([]Option, len(q.Options))
	copy(opts, q.Options)
	q.Options = opts
	return q
}

// Questions returns a copy of the catalog in order.
func (c *Catalog) Questions() []Question {
	out := make([]Question, len(c.questions))
	for i, q := range c.questions {
		out[i] = q.clone()
	}
	return out
}

// Len returns the number of questions.
func (c *Catalog) Len() int { return len(c.questions) }

// Question looks up a question by id.
func (c *Catalog) Question(id int) (Question, error) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, &model.NotFoundError{Resource: "question", ID: int64(id)}
	}
	return c.questions[i].clone(), nil
}

// option resolves an answer to its option. Unknown ids and out-of-range
// indices resolve to false.
func (c *Catalog) option(id, index int) (Question, Option, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Question{}, Option{}, false
	}
	q := c.questions[i]
	if index < 0 || index >= len(q.Options) {
		return Question{}, Option{}, false
	}
	return q, q.Options[index], true
}

// Scores averages the chosen option scores per dimension. The report always
// holds all five dimensions; a dimension with no counted answers scores 0.
// Answers naming an unknown question or an out-of-range option are ignored.
func (c *Catalog) Scores(answers AnswerSet) Report {
	type acc struct{ sum, count int }
	totals := make(map[Dimension]*acc, len(Dimensions))
	for _, d := range Dimensions {
		totals[d] = &acc{}
	}

	for id, index := range answers {
		q, opt, ok := c.option(id, index)
		if !ok {
			continue
		}
		a, ok := totals[q.Dimension]
		if !ok {
			continue
		}
		a.sum += opt.Score
		a.count++
	}

	report := make(Report, len(Dimensions))
	for d, a := range totals {
		if a.count == 0 {
			report[d] = 0
			continue
		}
		report[d] = int(math.Round(float64(a.sum) / float64(a.count)))
	}
	return report
}

// HasRedFlag reports whether any counted answer is a red-flag option.
func (c *Catalog) HasRedFlag(answers AnswerSet) bool {
	for id, index := range answers {
		if _, opt, ok := c.option(id, index); ok && opt.RedFlag {
			return true
		}
	}
	return false
}

// Evaluate runs scoring, red-flag detection and the eligibility decision.
func (c *Catalog) Evaluate(answers AnswerSet) Decision {
	report := c.Scores(answers)
	redFlag := c.HasRedFlag(answers)
	return Decision{
		Scores:   report,
		RedFlag:  redFlag,
		Eligible: IsEligible(report, redFlag),
	}
}

// IsEligible applies the pass policy. A red flag vetoes regardless of scores.
// A dimension missing from the report counts as 0.
func IsEligible(report Report, redFlag bool) bool {
	if redFlag {
		return false
	}
	return allDimensionsPass(report) && noLowScores(report)
}

func allDimensionsPass(report Report) bool {
	for _, d := range Dimensions {
		if report[d] < PassThreshold {
			return false
		}
	}
	return true
}

func noLowScores(report Report) bool {
	for _, d := range Dimensions {
		if report[d] < FloorThreshold {
			return false
		}
	}
	return true
}

// ScoreMap converts a report to string keys for storage and JSON.
func (r Report) ScoreMap() map[string]int {
	out := make(map[string]int, len(r))
	for d, s := range r {
		out[string(d)] = s
	}
	return out
}
