package progression

import (
	"fmt"
	"strings"

	"github.com/pavelanni/traderpath/internal/model"
)

// RegistrationRole is the role every new account starts in.
func RegistrationRole() model.Role { return model.RoleProspectiveStudent }

// CheckInterviewApplication allows an application only from a prospective
// student with no application on record. A failed application still counts:
// re-applying needs an administrator to remove the old record first.
func CheckInterviewApplication(r model.Role, existing *model.InterviewApplication) error {
	if err := Authorize(r, ApplyInterview); err != nil {
		return err
	}
	if existing != nil {
		return &model.StateConflictError{Resource: "interview application", Reason: "an application already exists"}
	}
	return nil
}

// ParseInterviewResult validates a submitted interview result.
func ParseInterviewResult(s string) (model.InterviewResult, error) {
	switch r := model.InterviewResult(strings.TrimSpace(s)); r {
	case model.InterviewResultPending, model.InterviewResultPass, model.InterviewResultFail:
		return r, nil
	default:
		return "", &model.ValidationError{Field: "result", Reason: fmt.Sprintf("unknown interview result %q", s)}
	}
}

// CheckInterviewDecision validates changing an application's result.
// A decided application (pass or fail) is terminal; only the same result may
// be re-submitted, which is a no-op.
func CheckInterviewDecision(actor model.Role, app model.InterviewApplication, next model.InterviewResult) error {
	if err := Authorize(actor, ManageInterview); err != nil {
		return err
	}
	if _, err := ParseInterviewResult(string(next)); err != nil {
		return err
	}
	if app.Result == next || app.Result == model.InterviewResultPending || app.Result == "" {
		return nil
	}
	return &model.StateConflictError{
		Resource: "interview application",
		Reason:   fmt.Sprintf("result already decided as %s", app.Result),
	}
}

// ApplyInterviewOutcome returns the applicant's role after an interview result.
// A pass moves a prospective student to student; nothing moves a role back.
func ApplyInterviewOutcome(current model.Role, result model.InterviewResult) (model.Role, error) {
	current = model.ParseRole(string(current))
	switch result {
	case model.InterviewResultPass:
		if current == model.RoleProspectiveStudent {
			return model.RoleStudent, nil
		}
		return current, nil
	case model.InterviewResultFail, model.InterviewResultPending:
		return current, nil
	default:
		return current, &model.ValidationError{Field: "result", Reason: fmt.Sprintf("unknown interview result %q", result)}
	}
}

// InterviewStatusFor maps an application result onto the account's interview status.
func InterviewStatusFor(result model.InterviewResult) model.InterviewStatus {
	switch result {
	case model.InterviewResultPass:
		return model.InterviewPassed
	case model.InterviewResultFail:
		return model.InterviewFailed
	default:
		return model.InterviewPending
	}
}

// CheckStartStage allows starting a stage that exists, is active, and has no
// progress record yet for this user.
func CheckStartStage(r model.Role, stage *model.LearningStage, stageID int64, existing *model.StageProgress) error {
	if err := Authorize(r, AccessLearning); err != nil {
		return err
	}
	if stage == nil || !stage.Active {
		return &model.NotFoundError{Resource: "stage", ID: stageID}
	}
	if existing != nil {
		return &model.StateConflictError{
			Resource: "stage progress",
			Reason:   fmt.Sprintf("stage %d already %s", stageID, existing.Status),
		}
	}
	return nil
}

// CheckSubmission allows a submission for a started, not yet completed stage
// that is still active.
// Resubmitting while a previous submission awaits review is allowed; the
// submission count tells them apart.
func CheckSubmission(r model.Role, stage *model.LearningStage, stageID int64, progress *model.StageProgress, text string) error {
	if err := Authorize(r, SubmitAssignment); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return &model.ValidationError{Field: "submission_text", Reason: "must not be empty"}
	}
	if stage == nil || !stage.Active {
		return &model.NotFoundError{Resource: "stage", ID: stageID}
	}
	if progress == nil {
		return &model.StateConflictError{Resource: "assignment", Reason: fmt.Sprintf("stage %d not started", stageID)}
	}
	if progress.Status == model.ProgressCompleted {
		return &model.StateConflictError{Resource: "assignment", Reason: fmt.Sprintf("stage %d already completed", stageID)}
	}
	return nil
}

// NextSubmissionCount returns the count for a new submission given the latest one.
func NextSubmissionCount(latest *model.Assignment) int {
	if latest == nil {
		return 1
	}
	return latest.SubmissionCount + 1
}

// CheckReview allows reviewing an assignment that still awaits review.
func CheckReview(r model.Role, a model.Assignment) error {
	if err := Authorize(r, ReviewAssignment); err != nil {
		return err
	}
	if a.Status != model.AssignmentPendingReview {
		return &model.StateConflictError{
			Resource: "assignment",
			Reason:   fmt.Sprintf("assignment %d already %s", a.ID, a.Status),
		}
	}
	return nil
}

// ReviewOutcome maps a review verdict to the assignment status and whether the
// owning stage progress completes. It never changes the user's role.
func ReviewOutcome(result model.ReviewResult) (model.AssignmentStatus, bool, error) {
	switch result {
	case model.ReviewPass:
		return model.AssignmentApproved, true, nil
	case model.ReviewFail:
		return model.AssignmentRejected, false, nil
	default:
		return "", false, &model.ValidationError{Field: "result", Reason: fmt.Sprintf("unknown review result %q", result)}
	}
}

// CheckRoleChange allows administrative role edits by team leads only. The
// target role must be one of the enumerated roles.
func CheckRoleChange(actor model.Role, target string) (model.Role, error) {
	if err := Authorize(actor, AdministerUsers); err != nil {
		return "", err
	}
	r := model.Role(strings.ToLower(strings.TrimSpace(target)))
	if !r.Valid() {
		return "", &model.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", target)}
	}
	return r, nil
}
