package model

import "strings"

// Role is a user's position in the program. Exactly one Role is held at a time.
type Role string

const (
	RoleProspectiveStudent Role = "prospective_student"
	RoleStudent            Role = "student"
	RolePayingStudent      Role = "paying_student"
	RoleTrader             Role = "trader"
	RoleTeamLead           Role = "team_lead"
)

// Roles lists every Role in progression order.
var Roles = []Role{
	RoleProspectiveStudent,
	RoleStudent,
	RolePayingStudent,
	RoleTrader,
	RoleTeamLead,
}

// ParseRole maps a stored or submitted role string onto the closed enumeration.
// Anything unrecognised, including the empty string, is the least privileged role.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleProspectiveStudent, RoleStudent, RolePayingStudent, RoleTrader, RoleTeamLead:
		return r
	default:
		return RoleProspectiveStudent
	}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}
