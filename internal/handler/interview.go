package handler

import (
	"net/http"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/notify"
	"github.com/pavelanni/traderpath/internal/progression"
)

type applyRequest struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (h *Handler) handleApplyInterview(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req applyRequest
	if err := h.decode(r, "interview_apply", &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	existing, err := h.store.GetInterviewApplicationByUser(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := progression.CheckInterviewApplication(user.Role, existing); err != nil {
		h.writeError(w, r, err)
		return
	}
	label, err := h.store.AssessmentLabelFor(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	app, err := h.store.CreateInterviewApplication(model.InterviewApplication{
		UserID:     user.ID,
		Name:       req.Name,
		Age:        req.Age,
		Phone:      req.Phone,
		Email:      req.Email,
		Assessment: label,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleInterviewStatus(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	app, err := h.store.GetInterviewApplicationByUser(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interview_status": user.InterviewStatus,
		"can_apply":        progression.CanApplyInterview(user.Role) && app == nil,
		"application":      app,
	})
}

func (h *Handler) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	apps, err := h.store.ListInterviewApplications(r.URL.Query().Get("result"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

type interviewUpdateRequest struct {
	InterviewTime  *time.Time `json:"interview_time"`
	MeetingNumber  *string    `json:"meeting_number"`
	InterviewNotes *string    `json:"interview_notes"`
	Result         *string    `json:"result"`
}

// handleUpdateInterview schedules an interview or records its result. The
// applicant hears about a newly set or moved interview time and about a
// decided result.
func (h *Handler) handleUpdateInterview(w http.ResponseWriter, r *http.Request) {
	actor := model.UserFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req interviewUpdateRequest
	if err := h.decode(r, "interview_update", &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	before, err := h.store.GetInterviewApplication(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if before == nil {
		h.writeError(w, r, &model.NotFoundError{Resource: "interview application", ID: id})
		return
	}

	upd := model.InterviewUpdate{
		InterviewTime:  req.InterviewTime,
		MeetingNumber:  req.MeetingNumber,
		InterviewNotes: req.InterviewNotes,
	}
	if req.Result != nil {
		result, err := progression.ParseInterviewResult(*req.Result)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		upd.Result = &result
	}

	after, err := h.store.UpdateInterviewApplication(id, upd, *actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	to := notify.Recipient{UserID: after.UserID, Name: after.Name, Email: after.Email, Phone: after.Phone}
	if rescheduled(before.InterviewTime, after.InterviewTime) {
		h.send(r.Context(), notify.Message{
			Kind:    notify.InterviewScheduled,
			To:      to,
			Subject: subject("SubjectInterviewScheduled", nil),
			Data:    notify.Data{InterviewTime: after.InterviewTime, MeetingNumber: after.MeetingNumber},
		})
	}
	if before.Result == model.InterviewResultPending && after.Result != model.InterviewResultPending {
		h.metrics.InterviewDecision(string(after.Result))
		h.send(r.Context(), notify.Message{
			Kind:    notify.InterviewResult,
			To:      to,
			Subject: subject("SubjectInterviewResult", nil),
			Data:    notify.Data{Result: string(after.Result)},
		})
	}
	writeJSON(w, http.StatusOK, after)
}

func rescheduled(before, after *time.Time) bool {
	if after == nil {
		return false
	}
	return before == nil || !before.Equal(*after)
}

// handleDeleteInterview removes an application so the applicant may apply again.
func (h *Handler) handleDeleteInterview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteInterviewApplication(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
