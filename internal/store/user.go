package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
)

const userColumns = `id, username, display_name, password_hash, role, age, phone, email, gender,
	interview_status, training_start_date, active, created_at`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &role, &u.Age, &u.Phone,
		&u.Email, &u.Gender, &u.InterviewStatus, &u.TrainingStartDate, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = model.ParseRole(role)
	return &u, nil
}

// CreateUser inserts a new user. A taken username or phone is a StateConflictError.
func (s *Store) CreateUser(u model.User) (int64, error) {
	if u.InterviewStatus == "" {
		u.InterviewStatus = model.InterviewNotApplied
	}
	res, err := s.db.Exec(
		`INSERT INTO users (username, display_name, password_hash, role, age, phone, email, gender,
		 interview_status, training_start_date, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, u.PasswordHash, model.ParseRole(string(u.Role)), u.Age, u.Phone,
		u.Email, u.Gender, u.InterviewStatus, u.TrainingStartDate, u.Active, time.Now(),
	)
	if isUniqueViolation(err) {
		return 0, &model.StateConflictError{Resource: "user", Reason: userConflictReason(err)}
	}
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return id, nil
}

func userConflictReason(err error) string {
	if strings.Contains(err.Error(), "phone") {
		return "phone already registered"
	}
	return "username already taken"
}

// GetUserByUsername returns a user by username, or nil if none exists.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	return optional(scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username)))
}

// GetUserByID returns a user by ID, or nil if none exists.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	return optional(scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)))
}

// GetUserByPhone returns the user registered with phone, or nil.
func (s *Store) GetUserByPhone(phone string) (*model.User, error) {
	if phone == "" {
		return nil, nil
	}
	return optional(scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE phone = ?`, phone)))
}

// ListUsers returns all users, optionally restricted to one role.
func (s *Store) ListUsers(role string) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	rows, err := s.db.Query(query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser applies the non-nil fields of upd. Deactivating an account also
// drops its auth sessions.
func (s *Store) UpdateUser(id int64, upd model.UserUpdate) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.DisplayName != nil {
		add("display_name", *upd.DisplayName)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.Role != nil {
		add("role", *upd.Role)
	}
	if upd.Age != nil {
		add("age", *upd.Age)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Gender != nil {
		add("gender", *upd.Gender)
	}
	if upd.TrainingStartDate != nil {
		add("training_start_date", *upd.TrainingStartDate)
	}
	if upd.Active != nil {
		add("active", *upd.Active)
	}
	if len(sets) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, append(args, id)...)
	if isUniqueViolation(err) {
		return &model.StateConflictError{Resource: "user", Reason: userConflictReason(err)}
	}
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &model.NotFoundError{Resource: "user", ID: id}
	}
	if upd.Active != nil && !*upd.Active {
		if _, err := tx.Exec(`DELETE FROM auth_sessions WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("drop sessions for user %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("updated user", "id", id, "fields", len(sets))
	return nil
}

// DeleteUser removes a user and everything recorded against them.
func (s *Store) DeleteUser(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cleanup := []string{
		`DELETE FROM reviews WHERE assignment_id IN (SELECT id FROM assignments WHERE user_id = ?)`,
		`DELETE FROM assignments WHERE user_id = ?`,
		`DELETE FROM stage_progress WHERE user_id = ?`,
		`DELETE FROM interview_applications WHERE user_id = ?`,
		`DELETE FROM assessment_results WHERE user_id = ?`,
		`DELETE FROM auth_sessions WHERE user_id = ?`,
	}
	for _, q := range cleanup {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
	}
	res, err := tx.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &model.NotFoundError{Resource: "user", ID: id}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("deleted user", "id", id)
	return nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
