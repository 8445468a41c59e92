package model

import (
	"context"
	"time"
)

// InterviewStatus mirrors the state of a user's interview application on the account itself.
type InterviewStatus string

const (
	InterviewNotApplied InterviewStatus = "not_applied"
	InterviewPending    InterviewStatus = "pending"
	InterviewPassed     InterviewStatus = "passed"
	InterviewFailed     InterviewStatus = "failed"
)

// User represents a system user.
type User struct {
	ID                int64           `json:"id"`
	Username          string          `json:"username"`
	DisplayName       string          `json:"display_name"`
	PasswordHash      string          `json:"-"`
	Role              Role            `json:"role"`
	Age               int             `json:"age,omitempty"`
	Phone             string          `json:"phone,omitempty"`
	Email             string          `json:"email,omitempty"`
	Gender            string          `json:"gender,omitempty"`
	InterviewStatus   InterviewStatus `json:"interview_status"`
	TrainingStartDate *time.Time      `json:"training_start_date,omitempty"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
}

// UserUpdate carries the optional fields of an administrative user edit.
// Nil fields are left unchanged.
type UserUpdate struct {
	Username          *string
	DisplayName       *string
	PasswordHash      *string
	Role              *Role
	Age               *int
	Phone             *string
	Email             *string
	Gender            *string
	TrainingStartDate *time.Time
	Active            *bool
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// InterviewResult is the decision recorded on an interview application.
type InterviewResult string

const (
	InterviewResultPending InterviewResult = "pending"
	InterviewResultPass    InterviewResult = "pass"
	InterviewResultFail    InterviewResult = "fail"
)

// AssessmentLabel is informational only: it records how the applicant did on the
// assessment at the time of applying and never gates anything.
type AssessmentLabel string

const (
	AssessmentNotTaken AssessmentLabel = "not_taken"
	AssessmentPassed   AssessmentLabel = "passed"
	// InterviewAssessmentFailed marks an application whose applicant failed the assessment.
	InterviewAssessmentFailed AssessmentLabel = "assessment_failed"
)

// InterviewApplication is a prospective student's request for an interview.
type InterviewApplication struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	Age            int             `json:"age"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	Assessment     AssessmentLabel `json:"assessment"`
	Result         InterviewResult `json:"result"`
	InterviewTime  *time.Time      `json:"interview_time,omitempty"`
	MeetingNumber  string          `json:"meeting_number,omitempty"`
	InterviewNotes string          `json:"interview_notes,omitempty"`
	AppliedAt      time.Time       `json:"applied_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
	ReviewedBy     *int64          `json:"reviewed_by,omitempty"`
}

// InterviewUpdate carries a team lead's edit of an application. Nil fields are left unchanged.
type InterviewUpdate struct {
	InterviewTime  *time.Time
	MeetingNumber  *string
	InterviewNotes *string
	Result         *InterviewResult
}

// LearningStage is one ordered phase of the curriculum.
type LearningStage struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
	Active      bool   `json:"active"`
}

// StageMaterial is a learning resource attached to a stage.
type StageMaterial struct {
	ID         int64     `json:"id"`
	StageID    int64     `json:"stage_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	Premium    bool      `json:"premium"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ProgressStatus is the state of a user's progress through one stage.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// StageProgress tracks one (user, stage) pair.
type StageProgress struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	StageID     int64          `json:"stage_id"`
	Status      ProgressStatus `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// AssignmentStatus is the review state of a submitted assignment.
type AssignmentStatus string

const (
	AssignmentPendingReview AssignmentStatus = "pending_review"
	AssignmentApproved      AssignmentStatus = "approved"
	AssignmentRejected      AssignmentStatus = "rejected"
)

// ReviewResult is a team lead's verdict on an assignment.
type ReviewResult string

const (
	ReviewPass ReviewResult = "pass"
	ReviewFail ReviewResult = "fail"
)

// ArtifactRef is an opaque reference to an uploaded file.
type ArtifactRef struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Location    string `json:"location"`
}

// Assignment is one submission for a (user, stage) pair.
type Assignment struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	StageID         int64            `json:"stage_id"`
	SubmissionText  string           `json:"submission_text"`
	Artifact        *ArtifactRef     `json:"artifact,omitempty"`
	SubmissionCount int              `json:"submission_count"`
	Status          AssignmentStatus `json:"status"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy      *int64           `json:"reviewed_by,omitempty"`
}

// AssignmentView joins an assignment with the names a reviewer needs.
type AssignmentView struct {
	Assignment
	Username  string `json:"username"`
	StageName string `json:"stage_name"`
}

// Review is the comment left by a team lead when reviewing an assignment.
type Review struct {
	ID           int64            `json:"id"`
	AssignmentID int64            `json:"assignment_id"`
	ReviewerID   int64            `json:"reviewer_id"`
	Result       AssignmentStatus `json:"result"`
	Comment      string           `json:"comment"`
	CreatedAt    time.Time        `json:"created_at"`
}

// AssessmentResult is a persisted assessment attempt.
type AssessmentResult struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Answers   map[int]int    `json:"answers"`
	Scores    map[string]int `json:"scores"`
	RedFlag   bool           `json:"red_flag"`
	Eligible  bool           `json:"eligible"`
	CreatedAt time.Time      `json:"created_at"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	SecureCookies   bool     // Set Secure flag on cookies (disable for local dev)
	MaxUploadBytes  int64    // Largest accepted assignment artifact
	AllowedMIME     []string // Accepted artifact content types
	FrontendBaseURL string   // Used in notification links
}

// StageImport is used for loading the stage catalog from JSON.
type StageImport struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	OrderIndex  int              `json:"order_index"`
	Materials   []MaterialImport `json:"materials"`
}

// MaterialImport is a material entry inside a StageImport.
type MaterialImport struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Kind    string `json:"kind"`
	Premium bool   `json:"premium"`
}
