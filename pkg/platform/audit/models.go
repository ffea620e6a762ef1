// Package audit captures the append-only trail of protocol actions. Events
// are emitted from domain services and fanned out to stores and sinks; an
// audit failure never fails the operation that emitted it.
package audit

import "time"

// Action names one audited protocol step.
type Action string

const (
	ActionCredentialIssued    Action = "credential_issued"
	ActionCredentialAccepted  Action = "credential_accepted"
	ActionCredentialRejected  Action = "credential_rejected"
	ActionCredentialRevoked   Action = "credential_revoked"
	ActionRequestCreated      Action = "request_created"
	ActionRequestApproved     Action = "request_approved"
	ActionRequestRejected     Action = "request_rejected"
	ActionVerificationPassed  Action = "verification_passed"
	ActionVerificationFailed  Action = "verification_failed"
)

// Event is transport-agnostic so stores and sinks can fan out.
//
// Subject is the stable key of the thing acted on: a content hash for
// credential events, a request id for request events.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}
