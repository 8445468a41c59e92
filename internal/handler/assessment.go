package handler

import (
	"net/http"

	"github.com/pavelanni/traderpath/internal/assessment"
	appI18n "github.com/pavelanni/traderpath/internal/i18n"
	"github.com/pavelanni/traderpath/internal/model"
)

// publicQuestion hides option scores and red flags from the client.
type publicQuestion struct {
	ID        int                  `json:"id"`
	Dimension assessment.Dimension `json:"dimension"`
	Text      string               `json:"text"`
	Options   []string             `json:"options"`
}

func (h *Handler) handleAssessmentQuestions(w http.ResponseWriter, r *http.Request) {
	qs := h.catalog.Questions()
	out := make([]publicQuestion, 0, len(qs))
	for _, q := range qs {
		pq := publicQuestion{ID: q.ID, Dimension: q.Dimension, Text: q.Text, Options: make([]string, len(q.Options))}
		for i, o := range q.Options {
			pq.Options[i] = o.Label
		}
		out = append(out, pq)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"questions":       out,
		"pass_threshold":  assessment.PassThreshold,
		"floor_threshold": assessment.FloorThreshold,
	})
}

type assessmentRequest struct {
	Answers map[string]any `json:"answers"`
}

type assessmentResponse struct {
	assessment.Decision
	Message  string `json:"message"`
	ResultID int64  `json:"result_id,omitempty"`
}

// handleAssessment scores an answer set. Anyone may take the assessment; the
// result is stored only for a signed-in caller.
func (h *Handler) handleAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if err := h.decode(r, "assessment", &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	answers, err := assessment.ParseAnswers(req.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d := h.catalog.Evaluate(answers)
	h.metrics.Assessment(d.Eligible, d.RedFlag)

	resp := assessmentResponse{Decision: d}
	switch {
	case d.RedFlag:
		resp.Message = appI18n.T(r.Context(), "AssessmentRedFlag")
	case d.Eligible:
		resp.Message = appI18n.T(r.Context(), "AssessmentEligible")
	default:
		resp.Message = appI18n.T(r.Context(), "AssessmentNotEligible")
	}

	if user := model.UserFromContext(r.Context()); user != nil {
		id, err := h.store.SaveAssessmentResult(model.AssessmentResult{
			UserID:   user.ID,
			Answers:  answers,
			Scores:   d.Scores.ScoreMap(),
			RedFlag:  d.RedFlag,
			Eligible: d.Eligible,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.ResultID = id
	}
	writeJSON(w, http.StatusOK, resp)
}
