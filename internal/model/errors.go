package model

import "fmt"

// ValidationError reports structurally invalid input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports that a role may not perform an action.
type AuthorizationError struct {
	Role   Role
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %s may not %s", e.Role, e.Action)
}

// StateConflictError reports a violated uniqueness or idempotency invariant.
type StateConflictError struct {
	Resource string
	Reason   string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Reason)
}

// NotFoundError reports a missing stage, question, or record.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}
