// Package handler serves the JSON API: registration and login, the public
// assessment, interview applications, learning stages, assignments and the
// team lead's administration endpoints.
package handler

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xeipuuv/gojsonschema"

	"github.com/pavelanni/traderpath/internal/artifact"
	"github.com/pavelanni/traderpath/internal/assessment"
	appI18n "github.com/pavelanni/traderpath/internal/i18n"
	"github.com/pavelanni/traderpath/internal/metrics"
	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/notify"
	"github.com/pavelanni/traderpath/internal/progression"
	"github.com/pavelanni/traderpath/internal/store"
)

const maxJSONBody = 1 << 20

//go:embed schemas/*.json
var schemaFS embed.FS

// Deps are the collaborators a Handler needs.
type Deps struct {
	Store     *store.Store
	Artifacts artifact.Store
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Catalog   *assessment.Catalog
	Config    model.AppConfig
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	artifacts artifact.Store
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	catalog   *assessment.Catalog
	config    model.AppConfig
	upload    progression.UploadPolicy
	schemas   map[string]*gojsonschema.Schema
}

// New creates a Handler and compiles the request schemas.
func New(d Deps) (*Handler, error) {
	if d.Store == nil || d.Artifacts == nil || d.Notifier == nil || d.Metrics == nil {
		return nil, errors.New("handler: store, artifacts, notifier and metrics are required")
	}
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	catalog := d.Catalog
	if catalog == nil {
		catalog = assessment.ReferenceCatalog()
	}
	upload := progression.DefaultUploadPolicy()
	if d.Config.MaxUploadBytes > 0 {
		upload.MaxBytes = d.Config.MaxUploadBytes
	}
	if len(d.Config.AllowedMIME) > 0 {
		upload.AllowedTypes = d.Config.AllowedMIME
	}
	return &Handler{
		store:     d.Store,
		artifacts: d.Artifacts,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		catalog:   catalog,
		config:    d.Config,
		upload:    upload,
		schemas:   schemas,
	}, nil
}

func loadSchemas() (map[string]*gojsonschema.Schema, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	out := make(map[string]*gojsonschema.Schema, len(entries))
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = s
	}
	return out, nil
}

// Routes registers all API routes under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Use(h.loadUser)

		r.Get("/csrf", h.handleCSRF)
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Get("/assessment/questions", h.handleAssessmentQuestions)
		r.Post("/assessment", h.handleAssessment)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/logout", h.handleLogout)
			r.Get("/profile", h.handleProfile)
			r.Get("/dashboard", h.handleDashboard)

			r.Get("/interview", h.handleInterviewStatus)
			r.Post("/interview", h.handleApplyInterview)

			r.Group(func(r chi.Router) {
				r.Use(h.requireCapability(progression.AccessLearning))
				r.Get("/stages", h.handleListStages)
				r.Post("/stages/{id}/start", h.handleStartStage)
				r.Get("/stages/{id}/materials", h.handleStageMaterials)
			})
			r.With(h.requireCapability(progression.AccessPremium)).
				Get("/premium/materials", h.handlePremiumMaterials)

			r.Group(func(r chi.Router) {
				r.Use(h.requireCapability(progression.SubmitAssignment))
				r.Get("/assignments", h.handleListAssignments)
				r.Post("/assignments", h.handleSubmitAssignment)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.requireCapability(progression.ReviewAssignment))
				r.Get("/reviews", h.handleReviewList)
				r.Post("/assignments/{id}/review", h.handleReviewAssignment)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.requireCapability(progression.ManageInterview))
				r.Get("/interviews", h.handleListInterviews)
				r.Patch("/interviews/{id}", h.handleUpdateInterview)
				r.Delete("/interviews/{id}", h.handleDeleteInterview)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.requireCapability(progression.AdministerUsers))
				r.Get("/users", h.handleAdminListUsers)
				r.Post("/users", h.handleAdminCreateUser)
				r.Patch("/users/{id}", h.handleAdminUpdateUser)
				r.Delete("/users/{id}", h.handleAdminDeleteUser)
				r.Get("/monitoring", h.handleMonitoring)
				r.Get("/monitoring/{id}", h.handleMonitoringDetail)
				r.Get("/stages", h.handleAdminListStages)
				r.Patch("/stages/{id}", h.handleAdminUpdateStage)
			})
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps the model error kinds onto HTTP statuses with a localized
// message. Anything else is logged and reported as 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		ve *model.ValidationError
		ae *model.AuthorizationError
		ce *model.StateConflictError
		ne *model.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		detail := ve.Reason
		if ve.Field != "" {
			detail = appI18n.Td(ctx, "ErrSchemaField", map[string]any{"Field": ve.Field, "Description": ve.Reason})
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: appI18n.T(ctx, "ErrValidation"), Detail: detail})
	case errors.As(err, &ae):
		writeJSON(w, http.StatusForbidden, errorBody{Error: appI18n.T(ctx, "ErrForbidden"), Detail: ae.Error()})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, errorBody{Error: appI18n.T(ctx, "ErrConflict"), Detail: ce.Reason})
	case errors.As(err, &ne):
		writeJSON(w, http.StatusNotFound, errorBody{Error: appI18n.T(ctx, "ErrNotFound"), Detail: ne.Error()})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: appI18n.T(ctx, "ErrInternal")})
	}
}

// decode validates the JSON body against the named schema and unmarshals it into dst.
func (h *Handler) decode(r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	s, ok := h.schemas[schema]
	if !ok {
		return fmt.Errorf("no schema %q", schema)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &model.ValidationError{Reason: "body is not valid JSON"}
	}
	if !res.Valid() {
		first := res.Errors()[0]
		return &model.ValidationError{Field: first.Field(), Reason: first.Description()}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &model.ValidationError{Reason: err.Error()}
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &model.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}

// send hands a notification to the notifier. Delivery problems are logged and
// never fail the request that caused them.
func (h *Handler) send(ctx context.Context, m notify.Message) {
	if err := h.notifier.Notify(ctx, m); err != nil {
		slog.Warn("notification not delivered", "kind", m.Kind, "user_id", m.To.UserID, "error", err)
	}
}

// subject localizes a notification subject in the server's default language.
func subject(id string, data map[string]any) string {
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer())
	return appI18n.Td(ctx, id, data)
}
