package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/progression"
)

// StudentReport builds the progression summary of one user against stages.
func (s *Store) StudentReport(u model.User, stages []model.LearningStage) (model.StudentReport, error) {
	records, err := s.ListProgress(u.ID)
	if err != nil {
		return model.StudentReport{}, fmt.Errorf("list progress of user %d: %w", u.ID, err)
	}
	progress := progression.ProgressByStage(records)

	counts := make(map[int64]int)
	var lastActivity *time.Time
	touch := func(t *time.Time) {
		if t != nil && (lastActivity == nil || t.After(*lastActivity)) {
			v := *t
			lastActivity = &v
		}
	}
	assignments, err := s.ListUserAssignments(u.ID)
	if err != nil {
		return model.StudentReport{}, fmt.Errorf("list assignments of user %d: %w", u.ID, err)
	}
	for _, a := range assignments {
		counts[a.StageID]++
		touch(&a.SubmittedAt)
	}

	rep := model.StudentReport{
		UserID:          u.ID,
		Username:        u.Username,
		DisplayName:     u.DisplayName,
		Role:            u.Role,
		InterviewStatus: u.InterviewStatus,
		CompletedStages: progression.CompletedCount(stages, progress),
		TotalStages:     len(stages),
		ProgressPercent: progression.CompletionPercent(stages, progress),
	}
	if cur := progression.CurrentStage(stages, progress); cur != nil && progression.IsActiveStudent(u.Role) {
		rep.CurrentStage = cur.Name
	}
	for _, st := range progression.OrderStages(stages) {
		sr := model.StageReport{StageID: st.ID, Name: st.Name, Status: model.ProgressNotStarted, Submissions: counts[st.ID]}
		if p, ok := progress[st.ID]; ok {
			started := p.StartedAt
			sr.Status = p.Status
			sr.StartedAt = &started
			sr.CompletedAt = p.CompletedAt
			touch(&started)
			touch(p.CompletedAt)
		}
		rep.Stages = append(rep.Stages, sr)
	}
	rep.LastActivity = lastActivity
	return rep, nil
}

// ExportProgress builds the progress report of every user holding role, or of
// all users when role is empty.
func (s *Store) ExportProgress(role string) (*model.ProgressExport, error) {
	stages, err := s.ListStages(true)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	users, err := s.ListUsers(role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	export := &model.ProgressExport{
		GeneratedAt: time.Now().UTC(),
		TotalStages: len(stages),
		Students:    []model.StudentReport{},
	}
	for _, u := range users {
		rep, err := s.StudentReport(u, stages)
		if err != nil {
			return nil, err
		}
		export.Students = append(export.Students, rep)
	}
	return export, nil
}
