package model

import "time"

// ProgressExport is the top-level JSON structure for the progress report export.
type ProgressExport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	TotalStages int             `json:"total_stages"`
	Students    []StudentReport `json:"students"`
}

// StudentReport holds one user's progression data, used for export and monitoring.
type StudentReport struct {
	UserID          int64           `json:"user_id"`
	Username        string          `json:"username"`
	DisplayName     string          `json:"display_name"`
	Role            Role            `json:"role"`
	InterviewStatus InterviewStatus `json:"interview_status"`
	CompletedStages int             `json:"completed_stages"`
	TotalStages     int             `json:"total_stages"`
	ProgressPercent int             `json:"progress_percent"`
	CurrentStage    string          `json:"current_stage,omitempty"`
	LastActivity    *time.Time      `json:"last_activity,omitempty"`
	Stages          []StageReport   `json:"stages,omitempty"`
}

// StageReport holds per-stage data for a StudentReport.
type StageReport struct {
	StageID     int64          `json:"stage_id"`
	Name        string         `json:"name"`
	Status      ProgressStatus `json:"status"`
	Submissions int            `json:"submissions"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
