package progression

import (
	"errors"
	"testing"

	"github.com/pavelanni/traderpath/internal/model"
)

func TestGuardTable(t *testing.T) {
	type row struct {
		apply, learn, submit, review, manage, admin, premium bool
	}
	tests := []struct {
		role model.Role
		want row
	}{
		{model.RoleProspectiveStudent, row{apply: true}},
		{model.RoleStudent, row{learn: true, submit: true}},
		{model.RolePayingStudent, row{learn: true, submit: true, premium: true}},
		{model.RoleTrader, row{learn: true, submit: true, premium: true}},
		{model.RoleTeamLead, row{learn: true, review: true, manage: true, admin: true, premium: true}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got := row{
				apply:   CanApplyInterview(tt.role),
				learn:   IsActiveStudent(tt.role),
				submit:  CanSubmitAssignment(tt.role),
				review:  CanReviewAssignment(tt.role),
				manage:  CanManageInterview(tt.role),
				admin:   IsTeamLeader(tt.role),
				premium: CanAccessPremiumContent(tt.role),
			}
			if got != tt.want {
				t.Errorf("guards for %s = %+v, want %+v", tt.role, got, tt.want)
			}
			if CanAccessLearning(tt.role) != got.learn {
				t.Error("CanAccessLearning must alias IsActiveStudent")
			}
			if IsAdmin(tt.role) != got.admin {
				t.Error("IsAdmin must alias IsTeamLeader")
			}
		})
	}
}

func TestUnknownRoleFallsBackToProspective(t *testing.T) {
	caps := []Capability{ApplyInterview, AccessLearning, SubmitAssignment, ReviewAssignment, ManageInterview, AdministerUsers, AccessPremium}
	for _, raw := range []string{"", "admin", "TEAM-LEAD", "superuser", "assessment_failed"} {
		t.Run("role="+raw, func(t *testing.T) {
			r := model.Role(raw)
			for _, c := range caps {
				if Allows(r, c) != Allows(model.RoleProspectiveStudent, c) {
					t.Errorf("%q differs from prospective student on %q", raw, c)
				}
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want model.Role
	}{
		{"student", model.RoleStudent},
		{" Team_Lead ", model.RoleTeamLead},
		{"paying_student", model.RolePayingStudent},
		{"trader", model.RoleTrader},
		{"", model.RoleProspectiveStudent},
		{"nonsense", model.RoleProspectiveStudent},
	}
	for _, tt := range tests {
		if got := model.ParseRole(tt.in); got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAuthorize(t *testing.T) {
	if err := Authorize(model.RoleTeamLead, ReviewAssignment); err != nil {
		t.Fatalf("team lead review: %v", err)
	}
	err := Authorize(model.RoleStudent, ReviewAssignment)
	var ae *model.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if ae.Role != model.RoleStudent {
		t.Errorf("error role = %s, want student", ae.Role)
	}
	if Allows(model.RoleTeamLead, Capability("fly")) {
		t.Error("unknown capability must be denied")
	}
}
