// Package progression holds the role guards and the legality rules for moving a
// user through the program: interview application and outcome, stage start,
// assignment submission and review, and the current-stage lookup.
//
// Nothing here touches storage. Callers check legality first, then persist;
// a rejected check means nothing may be written.
package progression

import "github.com/pavelanni/traderpath/internal/model"

// Capability names an action gated by role.
type Capability string

const (
	ApplyInterview   Capability = "apply for an interview"
	AccessLearning   Capability = "access learning content"
	SubmitAssignment Capability = "submit assignments"
	ReviewAssignment Capability = "review assignments"
	ManageInterview  Capability = "manage interviews"
	AdministerUsers  Capability = "administer users"
	AccessPremium    Capability = "access premium content"
)

// CanApplyInterview is true only for prospective students.
func CanApplyInterview(r model.Role) bool {
	return model.ParseRole(string(r)) == model.RoleProspectiveStudent
}

// IsActiveStudent is true for every role that has passed the interview.
func IsActiveStudent(r model.Role) bool {
	switch model.ParseRole(string(r)) {
	case model.RoleStudent, model.RolePayingStudent, model.RoleTrader, model.RoleTeamLead:
		return true
	}
	return false
}

// CanAccessLearning is an alias of IsActiveStudent.
func CanAccessLearning(r model.Role) bool { return IsActiveStudent(r) }

// CanSubmitAssignment excludes team leads, who review rather than submit.
func CanSubmitAssignment(r model.Role) bool {
	switch model.ParseRole(string(r)) {
	case model.RoleStudent, model.RolePayingStudent, model.RoleTrader:
		return true
	}
	return false
}

// IsTeamLeader is true only for team leads.
func IsTeamLeader(r model.Role) bool {
	return model.ParseRole(string(r)) == model.RoleTeamLead
}

// IsAdmin is an alias of IsTeamLeader.
func IsAdmin(r model.Role) bool { return IsTeamLeader(r) }

// CanReviewAssignment is true only for team leads.
func CanReviewAssignment(r model.Role) bool { return IsTeamLeader(r) }

// CanManageInterview is true only for team leads.
func CanManageInterview(r model.Role) bool { return IsTeamLeader(r) }

// CanAccessPremiumContent is true for paying students and above.
func CanAccessPremiumContent(r model.Role) bool {
	switch model.ParseRole(string(r)) {
	case model.RolePayingStudent, model.RoleTrader, model.RoleTeamLead:
		return true
	}
	return false
}

var guards = map[Capability]func(model.Role) bool{
	ApplyInterview:   CanApplyInterview,
	AccessLearning:   CanAccessLearning,
	SubmitAssignment: CanSubmitAssignment,
	ReviewAssignment: CanReviewAssignment,
	ManageInterview:  CanManageInterview,
	AdministerUsers:  IsAdmin,
	AccessPremium:    CanAccessPremiumContent,
}

// Allows reports whether role r holds capability c. Unknown capabilities are denied.
func Allows(r model.Role, c Capability) bool {
	g, ok := guards[c]
	return ok && g(r)
}

// Authorize returns a *model.AuthorizationError unless r holds c.
func Authorize(r model.Role, c Capability) error {
	if Allows(r, c) {
		return nil
	}
	return &model.AuthorizationError{Role: model.ParseRole(string(r)), Action: string(c)}
}
