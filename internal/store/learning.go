package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
)

// ImportStages upserts stages by name and replaces each imported stage's
// materials. Stage ids survive re-imports, so existing progress stays attached.
func (s *Store) ImportStages(stages []model.StageImport) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, si := range stages {
		if si.Name == "" {
			return 0, &model.ValidationError{Field: "name", Reason: "stage name is required"}
		}
		var stageID int64
		err := tx.QueryRow(
			`INSERT INTO learning_stages (name, description, order_index, active) VALUES (?, ?, ?, 1)
			 ON CONFLICT(name) DO UPDATE SET description = excluded.description,
			 order_index = excluded.order_index, active = 1
			 RETURNING id`,
			si.Name, si.Description, si.OrderIndex,
		).Scan(&stageID)
		if err != nil {
			return 0, fmt.Errorf("upsert stage %q: %w", si.Name, err)
		}
		if _, err := tx.Exec(`DELETE FROM stage_materials WHERE stage_id = ?`, stageID); err != nil {
			return 0, fmt.Errorf("clear materials of %q: %w", si.Name, err)
		}
		for _, m := range si.Materials {
			kind := m.Kind
			if kind == "" {
				kind = "document"
			}
			if _, err := tx.Exec(
				`INSERT INTO stage_materials (stage_id, title, url, kind, premium, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
				stageID, m.Title, m.URL, kind, m.Premium, now,
			); err != nil {
				return 0, fmt.Errorf("insert material %q: %w", m.Title, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stages), nil
}

// SetStageActive shows or hides a stage without touching progress recorded against it.
func (s *Store) SetStageActive(id int64, active bool) error {
	res, err := s.db.Exec(`UPDATE learning_stages SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &model.NotFoundError{Resource: "stage", ID: id}
	}
	return nil
}

// ListStages returns stages ordered by order index.
func (s *Store) ListStages(activeOnly bool) ([]model.LearningStage, error) {
	query := `SELECT id, name, description, order_index, active FROM learning_stages`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	rows, err := s.db.Query(query + ` ORDER BY order_index, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stages []model.LearningStage
	for rows.Next() {
		var st model.LearningStage
		if err := rows.Scan(&st.ID, &st.Name, &st.Description, &st.OrderIndex, &st.Active); err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

// GetStage returns a stage by ID, or nil.
func (s *Store) GetStage(id int64) (*model.LearningStage, error) {
	var st model.LearningStage
	err := s.db.QueryRow(
		`SELECT id, name, description, order_index, active FROM learning_stages WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.Description, &st.OrderIndex, &st.Active)
	return optional(&st, err)
}

// StageCount returns the number of active stages.
func (s *Store) StageCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM learning_stages WHERE active = 1`).Scan(&n)
	return n, err
}

func (s *Store) queryMaterials(query string, args ...any) ([]model.StageMaterial, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StageMaterial
	for rows.Next() {
		var m model.StageMaterial
		if err := rows.Scan(&m.ID, &m.StageID, &m.Title, &m.URL, &m.Kind, &m.Premium, &m.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMaterials returns a stage's materials. Premium items are included only
// when includePremium is set.
func (s *Store) ListMaterials(stageID int64, includePremium bool) ([]model.StageMaterial, error) {
	query := `SELECT id, stage_id, title, url, kind, premium, uploaded_at FROM stage_materials WHERE stage_id = ?`
	if !includePremium {
		query += ` AND premium = 0`
	}
	return s.queryMaterials(query+` ORDER BY id`, stageID)
}

// ListPremiumMaterials returns premium materials of active stages.
func (s *Store) ListPremiumMaterials() ([]model.StageMaterial, error) {
	return s.queryMaterials(
		`SELECT m.id, m.stage_id, m.title, m.url, m.kind, m.premium, m.uploaded_at
		 FROM stage_materials m JOIN learning_stages st ON st.id = m.stage_id
		 WHERE m.premium = 1 AND st.active = 1 ORDER BY st.order_index, m.id`,
	)
}

const progressColumns = `id, user_id, stage_id, status, started_at, completed_at`

func scanProgress(row scanner) (*model.StageProgress, error) {
	var p model.StageProgress
	if err := row.Scan(&p.ID, &p.UserID, &p.StageID, &p.Status, &p.StartedAt, &p.CompletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// StartStage records that a user began a stage. A second start of the same
// stage, in progress or completed, is a StateConflictError.
func (s *Store) StartStage(userID, stageID int64) (*model.StageProgress, error) {
	p := model.StageProgress{
		UserID:    userID,
		StageID:   stageID,
		Status:    model.ProgressInProgress,
		StartedAt: time.Now(),
	}
	res, err := s.db.Exec(
		`INSERT INTO stage_progress (user_id, stage_id, status, started_at) VALUES (?, ?, ?, ?)`,
		p.UserID, p.StageID, p.Status, p.StartedAt,
	)
	if isUniqueViolation(err) {
		return nil, &model.StateConflictError{Resource: "stage progress", Reason: fmt.Sprintf("stage %d already started", stageID)}
	}
	if err != nil {
		return nil, fmt.Errorf("start stage %d: %w", stageID, err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	slog.Info("stage started", "user_id", userID, "stage_id", stageID)
	return &p, nil
}

// GetProgress returns the user's progress on a stage, or nil if not started.
func (s *Store) GetProgress(userID, stageID int64) (*model.StageProgress, error) {
	return optional(scanProgress(s.db.QueryRow(
		`SELECT `+progressColumns+` FROM stage_progress WHERE user_id = ? AND stage_id = ?`, userID, stageID,
	)))
}

// ListProgress returns every progress record of a user.
func (s *Store) ListProgress(userID int64) ([]model.StageProgress, error) {
	rows, err := s.db.Query(`SELECT `+progressColumns+` FROM stage_progress WHERE user_id = ? ORDER BY stage_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StageProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// completeStageTx marks a stage completed inside tx. Completion is monotonic:
// an already completed record keeps its original completion time.
func completeStageTx(tx *sql.Tx, userID, stageID int64, at time.Time) error {
	res, err := tx.Exec(
		`UPDATE stage_progress SET status = ?, completed_at = ?
		 WHERE user_id = ? AND stage_id = ? AND status <> ?`,
		model.ProgressCompleted, at, userID, stageID, model.ProgressCompleted,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = tx.Exec(
		`INSERT INTO stage_progress (user_id, stage_id, status, started_at, completed_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, stage_id) DO NOTHING`,
		userID, stageID, model.ProgressCompleted, at, at,
	)
	return err
}
