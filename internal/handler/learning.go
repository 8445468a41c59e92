package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	appI18n "github.com/pavelanni/traderpath/internal/i18n"
	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/notify"
	"github.com/pavelanni/traderpath/internal/progression"
)

// multipartMemory is how much of a multipart form is kept in memory before
// spilling file parts to disk.
const multipartMemory = 8 << 20

type stagesResponse struct {
	Stages          []model.LearningStage          `json:"stages"`
	Progress        map[int64]model.StageProgress `json:"progress"`
	CurrentStage    *model.LearningStage           `json:"current_stage"`
	CompletedStages int                            `json:"completed_stages"`
	ProgressPercent int                            `json:"progress_percent"`
}

func (h *Handler) handleListStages(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	stages, err := h.store.ListStages(true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.store.ListProgress(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stages = progression.OrderStages(stages)
	progress := progression.ProgressByStage(records)
	writeJSON(w, http.StatusOK, stagesResponse{
		Stages:          stages,
		Progress:        progress,
		CurrentStage:    progression.CurrentStage(stages, progress),
		CompletedStages: progression.CompletedCount(stages, progress),
		ProgressPercent: progression.CompletionPercent(stages, progress),
	})
}

func (h *Handler) handleStartStage(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	stageID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stage, err := h.store.GetStage(stageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	existing, err := h.store.GetProgress(user.ID, stageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := progression.CheckStartStage(user.Role, stage, stageID, existing); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.store.StartStage(user.ID, stageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleStageMaterials(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	stageID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stage, err := h.store.GetStage(stageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if stage == nil || !stage.Active {
		h.writeError(w, r, &model.NotFoundError{Resource: "stage", ID: stageID})
		return
	}
	materials, err := h.store.ListMaterials(stageID, progression.CanAccessPremiumContent(user.Role))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, materials)
}

func (h *Handler) handlePremiumMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.store.ListPremiumMaterials()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, materials)
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	list, err := h.store.ListUserAssignments(user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSubmitAssignment accepts a multipart form with stage_id,
// submission_text and an optional file part. The file is stored before the
// database row; if the row cannot be written the file is removed again.
func (h *Handler) handleSubmitAssignment(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.upload.MaxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, &model.ValidationError{
				Field:  "file",
				Reason: appI18n.Td(r.Context(), "ErrUploadTooLarge", map[string]any{"Limit": h.upload.MaxBytes}),
			})
			return
		}
		h.writeError(w, r, &model.ValidationError{Reason: "expected a multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	stageID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("stage_id")), 10, 64)
	if err != nil || stageID <= 0 {
		h.writeError(w, r, &model.ValidationError{Field: "stage_id", Reason: "must be a positive integer"})
		return
	}
	text := r.FormValue("submission_text")

	stage, err := h.store.GetStage(stageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	progress, err := h.store.GetProgress(user.ID, stageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := progression.CheckSubmission(user.Role, stage, stageID, progress, text); err != nil {
		h.writeError(w, r, err)
		return
	}

	var ref *model.ArtifactRef
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		h.writeError(w, r, &model.ValidationError{Field: "file", Reason: err.Error()})
		return
	default:
		defer file.Close()
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := h.upload.Check(header.Filename, header.Size, contentType); err != nil {
			h.writeError(w, r, err)
			return
		}
		stored, err := h.artifacts.Put(r.Context(), user.ID, header.Filename, contentType, header.Size, file)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("store artifact: %w", err))
			return
		}
		ref = &stored
	}

	a, err := h.store.CreateAssignment(model.Assignment{
		UserID:         user.ID,
		StageID:        stageID,
		SubmissionText: text,
		Artifact:       ref,
	})
	if err != nil {
		if ref != nil {
			if derr := h.artifacts.Delete(r.Context(), ref.Key); derr != nil {
				slog.Error("failed to remove orphaned artifact", "key", ref.Key, "error", derr)
			}
		}
		h.writeError(w, r, err)
		return
	}
	h.metrics.AssignmentSubmitted()
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleReviewList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = string(model.AssignmentPendingReview)
	} else if status == "all" {
		status = ""
	}
	list, err := h.store.ListAssignmentsForReview(status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type reviewRequest struct {
	Result  string `json:"result"`
	Comment string `json:"comment"`
}

func (h *Handler) handleReviewAssignment(w http.ResponseWriter, r *http.Request) {
	reviewer := model.UserFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req reviewRequest
	if err := h.decode(r, "review", &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	a, review, err := h.store.ReviewAssignment(id, *reviewer, model.ReviewResult(req.Result), strings.TrimSpace(req.Comment))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.metrics.AssignmentReview(string(a.Status))

	student, err := h.store.GetUserByID(a.UserID)
	if err != nil {
		slog.Error("failed to load reviewed student", "user_id", a.UserID, "error", err)
	}
	stage, err := h.store.GetStage(a.StageID)
	if err != nil {
		slog.Error("failed to load reviewed stage", "stage_id", a.StageID, "error", err)
	}
	if student != nil && stage != nil {
		h.send(r.Context(), notify.Message{
			Kind:    notify.AssignmentReviewed,
			To:      notify.Recipient{UserID: student.ID, Name: student.DisplayName, Email: student.Email, Phone: student.Phone},
			Subject: subject("SubjectAssignmentReviewed", map[string]any{"Stage": stage.Name}),
			Data:    notify.Data{Result: string(a.Status), StageName: stage.Name, Comment: review.Comment},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignment": a, "review": review})
}
