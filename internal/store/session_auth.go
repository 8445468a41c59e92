package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
)

const authSessionTTL = 24 * time.Hour

// CreateAuthSession issues a new session token for a user.
func (s *Store) CreateAuthSession(userID int64) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	now := time.Now()
	if _, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, now, now.Add(authSessionTTL),
	); err != nil {
		return "", err
	}
	return token, nil
}

// UserForSession resolves a session token to its active user. Expired tokens
// are removed and yield nil, as do tokens of deactivated accounts.
func (s *Store) UserForSession(token string) (*model.User, error) {
	var expires time.Time
	var userID int64
	err := s.db.QueryRow(`SELECT user_id, expires_at FROM auth_sessions WHERE id = ?`, token).Scan(&userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(expires) {
		_ = s.DeleteAuthSession(token)
		return nil, nil
	}
	u, err := s.GetUserByID(userID)
	if err != nil || u == nil || !u.Active {
		return nil, err
	}
	return u, nil
}

// DeleteAuthSession removes a session token.
func (s *Store) DeleteAuthSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, token)
	return err
}

// CleanupExpiredSessions removes expired sessions and reports how many went.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
