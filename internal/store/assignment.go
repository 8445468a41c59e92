package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/progression"
)

const assignmentColumns = `a.id, a.user_id, a.stage_id, a.submission_text, a.artifact_key, a.artifact_name,
	a.artifact_size, a.artifact_type, a.artifact_location, a.submission_count, a.status,
	a.submitted_at, a.reviewed_at, a.reviewed_by`

func scanAssignment(row scanner, extra ...any) (*model.Assignment, error) {
	var a model.Assignment
	var ref model.ArtifactRef
	dest := []any{&a.ID, &a.UserID, &a.StageID, &a.SubmissionText, &ref.Key, &ref.Name, &ref.Size,
		&ref.ContentType, &ref.Location, &a.SubmissionCount, &a.Status, &a.SubmittedAt, &a.ReviewedAt,
		&a.ReviewedBy}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if ref.Key != "" {
		a.Artifact = &ref
	}
	return &a, nil
}

// CreateAssignment stores a submission. The submission count is assigned
// inside the transaction from the latest one for (user, stage).
func (s *Store) CreateAssignment(a model.Assignment) (*model.Assignment, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	latest, err := latestAssignment(tx, a.UserID, a.StageID)
	if err != nil {
		return nil, err
	}
	a.SubmissionCount = progression.NextSubmissionCount(latest)
	a.Status = model.AssignmentPendingReview
	a.SubmittedAt = time.Now()

	var ref model.ArtifactRef
	if a.Artifact != nil {
		ref = *a.Artifact
	}
	res, err := tx.Exec(
		`INSERT INTO assignments (user_id, stage_id, submission_text, artifact_key, artifact_name, artifact_size,
		 artifact_type, artifact_location, submission_count, status, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.StageID, a.SubmissionText, ref.Key, ref.Name, ref.Size, ref.ContentType, ref.Location,
		a.SubmissionCount, a.Status, a.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	slog.Info("assignment submitted", "id", a.ID, "user_id", a.UserID, "stage_id", a.StageID, "count", a.SubmissionCount)
	return &a, nil
}

// GetAssignment returns an assignment by ID, or nil.
func (s *Store) GetAssignment(id int64) (*model.Assignment, error) {
	return optional(scanAssignment(s.db.QueryRow(`SELECT `+assignmentColumns+` FROM assignments a WHERE a.id = ?`, id)))
}

// latestAssignment returns the most recent submission for (user, stage), or nil.
func latestAssignment(q rowQuerier, userID, stageID int64) (*model.Assignment, error) {
	return optional(scanAssignment(q.QueryRow(
		`SELECT `+assignmentColumns+` FROM assignments a WHERE a.user_id = ? AND a.stage_id = ?
		 ORDER BY a.submission_count DESC LIMIT 1`, userID, stageID,
	)))
}

// ListUserAssignments returns a user's submissions, newest first.
func (s *Store) ListUserAssignments(userID int64) ([]model.Assignment, error) {
	rows, err := s.db.Query(`SELECT `+assignmentColumns+` FROM assignments a WHERE a.user_id = ? ORDER BY a.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListAssignmentsForReview returns submissions joined with submitter and stage
// names, oldest first. An empty status returns every submission.
func (s *Store) ListAssignmentsForReview(status string) ([]model.AssignmentView, error) {
	query := `SELECT ` + assignmentColumns + `, u.username, st.name
		FROM assignments a
		JOIN users u ON u.id = a.user_id
		JOIN learning_stages st ON st.id = a.stage_id`
	var args []any
	if status != "" {
		query += ` WHERE a.status = ?`
		args = append(args, status)
	}
	rows, err := s.db.Query(query+` ORDER BY a.submitted_at, a.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AssignmentView
	for rows.Next() {
		var v model.AssignmentView
		a, err := scanAssignment(rows, &v.Username, &v.StageName)
		if err != nil {
			return nil, err
		}
		v.Assignment = *a
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountAssignments counts submissions with the given status.
func (s *Store) CountAssignments(status model.AssignmentStatus) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM assignments WHERE status = ?`, status).Scan(&n)
	return n, err
}

// ReviewAssignment records a verdict. In one transaction it writes the review
// row, sets the assignment status and, on pass, completes the stage. The
// review guard runs against the row read inside the transaction.
func (s *Store) ReviewAssignment(id int64, reviewer model.User, result model.ReviewResult, comment string) (*model.Assignment, *model.Review, error) {
	status, completes, err := progression.ReviewOutcome(result)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	a, err := scanAssignment(tx.QueryRow(`SELECT `+assignmentColumns+` FROM assignments a WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil, &model.NotFoundError{Resource: "assignment", ID: id}
	}
	if err != nil {
		return nil, nil, err
	}
	if err := progression.CheckReview(reviewer.Role, *a); err != nil {
		return nil, nil, err
	}

	reviewerID := reviewer.ID
	now := time.Now()
	a.Status = status
	a.ReviewedAt = &now
	a.ReviewedBy = &reviewerID
	if _, err := tx.Exec(
		`UPDATE assignments SET status = ?, reviewed_at = ?, reviewed_by = ? WHERE id = ?`,
		a.Status, now, reviewerID, id,
	); err != nil {
		return nil, nil, fmt.Errorf("update assignment %d: %w", id, err)
	}

	rv := model.Review{AssignmentID: id, ReviewerID: reviewerID, Result: status, Comment: comment, CreatedAt: now}
	res, err := tx.Exec(
		`INSERT INTO reviews (assignment_id, reviewer_id, result, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		rv.AssignmentID, rv.ReviewerID, rv.Result, rv.Comment, rv.CreatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert review: %w", err)
	}
	if rv.ID, err = res.LastInsertId(); err != nil {
		return nil, nil, err
	}

	if completes {
		if err := completeStageTx(tx, a.UserID, a.StageID, now); err != nil {
			return nil, nil, fmt.Errorf("complete stage %d: %w", a.StageID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	slog.Info("assignment reviewed", "id", id, "reviewer", reviewerID, "status", status, "stage_completed", completes)
	return a, &rv, nil
}

// ListReviewsForUser returns the latest reviews of a user's submissions.
func (s *Store) ListReviewsForUser(userID int64, limit int) ([]model.Review, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT r.id, r.assignment_id, r.reviewer_id, r.result, r.comment, r.created_at
		 FROM reviews r JOIN assignments a ON a.id = r.assignment_id
		 WHERE a.user_id = ? ORDER BY r.id DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.AssignmentID, &r.ReviewerID, &r.Result, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
