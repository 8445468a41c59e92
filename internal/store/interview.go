package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/progression"
)

const interviewColumns = `id, user_id, name, age, phone, email, assessment, result, interview_time,
	meeting_number, interview_notes, applied_at, updated_at, reviewed_at, reviewed_by`

func scanInterview(row scanner) (*model.InterviewApplication, error) {
	var a model.InterviewApplication
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Age, &a.Phone, &a.Email, &a.Assessment, &a.Result,
		&a.InterviewTime, &a.MeetingNumber, &a.InterviewNotes, &a.AppliedAt, &a.UpdatedAt,
		&a.ReviewedAt, &a.ReviewedBy)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateInterviewApplication records an application and marks the applicant's
// interview status pending. A second application for the same user is a
// StateConflictError, checked inside the transaction and backed by a UNIQUE index.
func (s *Store) CreateInterviewApplication(app model.InterviewApplication) (*model.InterviewApplication, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRow(`SELECT id FROM interview_applications WHERE user_id = ?`, app.UserID).Scan(&existing)
	if err == nil {
		return nil, &model.StateConflictError{Resource: "interview application", Reason: "an application already exists"}
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	if app.Assessment == "" {
		app.Assessment = model.AssessmentNotTaken
	}
	app.Result = model.InterviewResultPending
	app.AppliedAt = time.Now()
	res, err := tx.Exec(
		`INSERT INTO interview_applications (user_id, name, age, phone, email, assessment, result, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		app.UserID, app.Name, app.Age, app.Phone, app.Email, app.Assessment, app.Result, app.AppliedAt,
	)
	if isUniqueViolation(err) {
		return nil, &model.StateConflictError{Resource: "interview application", Reason: "an application already exists"}
	}
	if err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	if app.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`UPDATE users SET interview_status = ? WHERE id = ?`, model.InterviewPending, app.UserID); err != nil {
		return nil, fmt.Errorf("update interview status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	slog.Info("interview application created", "id", app.ID, "user_id", app.UserID, "assessment", app.Assessment)
	return &app, nil
}

// GetInterviewApplication returns an application by ID, or nil.
func (s *Store) GetInterviewApplication(id int64) (*model.InterviewApplication, error) {
	return optional(scanInterview(s.db.QueryRow(`SELECT `+interviewColumns+` FROM interview_applications WHERE id = ?`, id)))
}

// GetInterviewApplicationByUser returns the user's application, or nil.
func (s *Store) GetInterviewApplicationByUser(userID int64) (*model.InterviewApplication, error) {
	return optional(scanInterview(s.db.QueryRow(`SELECT `+interviewColumns+` FROM interview_applications WHERE user_id = ?`, userID)))
}

// ListInterviewApplications returns applications, newest first. An empty
// result filter returns all of them.
func (s *Store) ListInterviewApplications(result string) ([]model.InterviewApplication, error) {
	query := `SELECT ` + interviewColumns + ` FROM interview_applications`
	var args []any
	if result != "" {
		query += ` WHERE result = ?`
		args = append(args, result)
	}
	rows, err := s.db.Query(query+` ORDER BY id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []model.InterviewApplication
	for rows.Next() {
		a, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// CountInterviewApplications counts applications with the given result.
func (s *Store) CountInterviewApplications(result model.InterviewResult) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM interview_applications WHERE result = ?`, result).Scan(&n)
	return n, err
}

// UpdateInterviewApplication applies a team lead's edit. When the result
// changes, the applicant's role and interview status move with it in the same
// transaction. A result change is checked against the row read inside the
// transaction, so a decided result is never overwritten.
func (s *Store) UpdateInterviewApplication(id int64, upd model.InterviewUpdate, reviewer model.User) (*model.InterviewApplication, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	app, err := optional(scanInterview(tx.QueryRow(`SELECT `+interviewColumns+` FROM interview_applications WHERE id = ?`, id)))
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, &model.NotFoundError{Resource: "interview application", ID: id}
	}

	if upd.Result != nil {
		if err := progression.CheckInterviewDecision(reviewer.Role, *app, *upd.Result); err != nil {
			return nil, err
		}
	}

	reviewerID := reviewer.ID
	now := time.Now()
	if upd.InterviewTime != nil {
		t := *upd.InterviewTime
		app.InterviewTime = &t
	}
	if upd.MeetingNumber != nil {
		app.MeetingNumber = *upd.MeetingNumber
	}
	if upd.InterviewNotes != nil {
		app.InterviewNotes = *upd.InterviewNotes
	}
	decided := upd.Result != nil && *upd.Result != app.Result
	if decided {
		app.Result = *upd.Result
		app.ReviewedAt = &now
		app.ReviewedBy = &reviewerID
	}
	app.UpdatedAt = &now

	if _, err := tx.Exec(
		`UPDATE interview_applications SET interview_time = ?, meeting_number = ?, interview_notes = ?,
		 result = ?, updated_at = ?, reviewed_at = ?, reviewed_by = ? WHERE id = ?`,
		app.InterviewTime, app.MeetingNumber, app.InterviewNotes, app.Result, app.UpdatedAt,
		app.ReviewedAt, app.ReviewedBy, id,
	); err != nil {
		return nil, fmt.Errorf("update application %d: %w", id, err)
	}

	if decided {
		var current string
		if err := tx.QueryRow(`SELECT role FROM users WHERE id = ?`, app.UserID).Scan(&current); err != nil {
			return nil, fmt.Errorf("load applicant %d: %w", app.UserID, err)
		}
		role, err := progression.ApplyInterviewOutcome(model.Role(current), app.Result)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(
			`UPDATE users SET role = ?, interview_status = ? WHERE id = ?`,
			role, progression.InterviewStatusFor(app.Result), app.UserID,
		); err != nil {
			return nil, fmt.Errorf("update applicant %d: %w", app.UserID, err)
		}
		slog.Info("interview decided", "id", id, "user_id", app.UserID, "result", app.Result, "role", role)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return app, nil
}

// DeleteInterviewApplication removes an application so the user may apply
// again. Their interview status returns to not_applied; their role is untouched.
func (s *Store) DeleteInterviewApplication(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRow(`SELECT user_id FROM interview_applications WHERE id = ?`, id).Scan(&userID)
	if err == sql.ErrNoRows {
		return &model.NotFoundError{Resource: "interview application", ID: id}
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM interview_applications WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete application %d: %w", id, err)
	}
	if _, err := tx.Exec(`UPDATE users SET interview_status = ? WHERE id = ?`, model.InterviewNotApplied, userID); err != nil {
		return fmt.Errorf("reset interview status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("interview application deleted", "id", id, "user_id", userID)
	return nil
}
