package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
)

// SaveAssessmentResult persists one attempt. Answers and scores are stored as JSON.
func (s *Store) SaveAssessmentResult(r model.AssessmentResult) (int64, error) {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return 0, fmt.Errorf("marshal answers: %w", err)
	}
	scores, err := json.Marshal(r.Scores)
	if err != nil {
		return 0, fmt.Errorf("marshal scores: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO assessment_results (user_id, answers, scores, red_flag, eligible, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.UserID, string(answers), string(scores), r.RedFlag, r.Eligible, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestAssessmentResult returns the user's most recent attempt, or nil.
func (s *Store) LatestAssessmentResult(userID int64) (*model.AssessmentResult, error) {
	var r model.AssessmentResult
	var answers, scores string
	err := s.db.QueryRow(
		`SELECT id, user_id, answers, scores, red_flag, eligible, created_at
		 FROM assessment_results WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID,
	).Scan(&r.ID, &r.UserID, &answers, &scores, &r.RedFlag, &r.Eligible, &r.CreatedAt)
	res, err := optional(&r, err)
	if res == nil || err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return nil, fmt.Errorf("decode answers of result %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(scores), &r.Scores); err != nil {
		return nil, fmt.Errorf("decode scores of result %d: %w", r.ID, err)
	}
	return res, nil
}

// AssessmentLabelFor summarises the user's latest attempt for an interview application.
func (s *Store) AssessmentLabelFor(userID int64) (model.AssessmentLabel, error) {
	r, err := s.LatestAssessmentResult(userID)
	if err != nil {
		return "", err
	}
	switch {
	case r == nil:
		return model.AssessmentNotTaken, nil
	case r.Eligible:
		return model.AssessmentPassed, nil
	default:
		return model.InterviewAssessmentFailed, nil
	}
}
