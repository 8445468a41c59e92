package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/traderpath/internal/i18n"
	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/progression"
)

func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.URL.Query().Get("role"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Age         int    `json:"age"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Gender      string `json:"gender"`
}

func (h *Handler) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	actor := model.UserFromContext(r.Context())
	var req createUserRequest
	if err := h.decode(r, "user_create", &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	role, err := progression.CheckRoleChange(actor.Role, req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}
	status := model.InterviewNotApplied
	if progression.IsActiveStudent(role) {
		status = model.InterviewPassed
	}

	id, err := h.store.CreateUser(model.User{
		Username:        req.Username,
		DisplayName:     req.DisplayName,
		PasswordHash:    string(hash),
		Role:            role,
		Age:             req.Age,
		Phone:           req.Phone,
		Email:           req.Email,
		Gender:          req.Gender,
		InterviewStatus: status,
		Active:          true,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("user created by admin", "id", id, "role", role, "by", actor.ID)
	writeJSON(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	DisplayName       *string `json:"display_name"`
	Password          *string `json:"password"`
	Role              *string `json:"role"`
	Active            *bool   `json:"active"`
	Age               *int    `json:"age"`
	Phone             *string `json:"phone"`
	Email             *string `json:"email"`
	Gender            *string `json:"gender"`
	TrainingStartDate *string `json:"training_start_date"`
}

func (h *Handler) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor := model.UserFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateUserRequest
	if err := h.decode(r, "user_update", &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	upd := model.UserUpdate{
		DisplayName: req.DisplayName,
		Active:      req.Active,
		Age:         req.Age,
		Phone:       req.Phone,
		Email:       req.Email,
		Gender:      req.Gender,
	}
	if req.Role != nil {
		role, err := progression.CheckRoleChange(actor.Role, *req.Role)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if id == actor.ID && role != actor.Role {
			h.writeError(w, r, &model.StateConflictError{Resource: "user", Reason: "cannot change your own role"})
			return
		}
		upd.Role = &role
	}
	if req.Active != nil && !*req.Active && id == actor.ID {
		h.writeError(w, r, &model.StateConflictError{Resource: "user", Reason: "cannot deactivate yourself"})
		return
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("hash password: %w", err))
			return
		}
		s := string(hash)
		upd.PasswordHash = &s
	}
	if req.TrainingStartDate != nil {
		d, err := time.Parse(time.DateOnly, *req.TrainingStartDate)
		if err != nil {
			h.writeError(w, r, &model.ValidationError{Field: "training_start_date", Reason: "want YYYY-MM-DD"})
			return
		}
		upd.TrainingStartDate = &d
	}

	if err := h.store.UpdateUser(id, upd); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := model.UserFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if id == actor.ID {
		h.writeError(w, r, &model.StateConflictError{Resource: "user", Reason: "cannot delete yourself"})
		return
	}
	if err := h.store.DeleteUser(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("user deleted by admin", "id", id, "by", actor.ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleMonitoring lists every user's stage completion. The role query
// parameter narrows the list.
func (h *Handler) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportProgress(r.URL.Query().Get("role"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleMonitoringDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user == nil {
		h.writeError(w, r, &model.NotFoundError{Resource: "user", ID: id})
		return
	}
	stages, err := h.store.ListStages(true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	report, err := h.store.StudentReport(*user, progression.OrderStages(stages))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	assignments, err := h.store.ListUserAssignments(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	app, err := h.store.GetInterviewApplicationByUser(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"report":      report,
		"assignments": assignments,
		"interview":   app,
	})
}

// handleDashboard returns a summary shaped by the caller's role.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	ctx := r.Context()
	out := map[string]any{"user": user, "role": user.Role}

	switch {
	case progression.IsTeamLeader(user.Role):
		interviews, err := h.store.CountInterviewApplications(model.InterviewResultPending)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		reviews, err := h.store.CountAssignments(model.AssignmentPendingReview)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out["pending_interviews"] = interviews
		out["pending_reviews"] = reviews
		out["summary"] = []string{
			appI18n.Tp(ctx, "PendingInterviews", interviews),
			appI18n.Tp(ctx, "PendingReviews", reviews),
		}

	case progression.IsActiveStudent(user.Role):
		stages, err := h.store.ListStages(true)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		report, err := h.store.StudentReport(*user, progression.OrderStages(stages))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		assignments, err := h.store.ListUserAssignments(user.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		var pending []model.Assignment
		for _, a := range assignments {
			if a.Status == model.AssignmentPendingReview {
				pending = append(pending, a)
			}
		}
		reviews, err := h.store.ListReviewsForUser(user.ID, 5)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out["progress_percent"] = report.ProgressPercent
		out["completed_stages"] = report.CompletedStages
		out["total_stages"] = report.TotalStages
		out["current_stage"] = report.CurrentStage
		out["pending_assignments"] = pending
		out["recent_reviews"] = reviews
		out["premium"] = progression.CanAccessPremiumContent(user.Role)

	default:
		app, err := h.store.GetInterviewApplicationByUser(user.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		latest, err := h.store.LatestAssessmentResult(user.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out["interview_status"] = user.InterviewStatus
		out["interview"] = app
		out["assessment"] = latest
		out["can_apply"] = progression.CanApplyInterview(user.Role) && app == nil
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAdminListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.store.ListStages(false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

type stageUpdateRequest struct {
	Active bool `json:"active"`
}

// handleAdminUpdateStage hides or restores a stage. Progress already
// recorded against a hidden stage is kept.
func (h *Handler) handleAdminUpdateStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req stageUpdateRequest
	if err := h.decode(r, "stage_update", &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.SetStageActive(id, req.Active); err != nil {
		h.writeError(w, r, err)
		return
	}
	stage, err := h.store.GetStage(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}
