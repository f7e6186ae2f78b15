package domain

import "time"

// AuthEventKind classifies an audit record.
type AuthEventKind string

const (
	EventLogin         AuthEventKind = "login"
	EventAuthorization AuthEventKind = "authorization"
	EventUserMutation  AuthEventKind = "user_mutation"
)

// AuthEvent is an audit record of an authentication or authorization
// decision. It never carries secrets, tokens or the identity of a failed
// login.
type AuthEvent struct {
	Kind      AuthEventKind `json:"kind"`
	SubjectID string        `json:"subject_id,omitempty"`
	Role      Role          `json:"role,omitempty"`
	Operation Operation     `json:"operation,omitempty"`
	TargetID  string        `json:"target_id,omitempty"`
	Outcome   string        `json:"outcome"`
	At        time.Time     `json:"at"`
}
