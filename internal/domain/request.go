package domain

import (
	"time"

	derrors "credrelay/pkg/domain-errors"
)

// RequestStatus is the proof-request lifecycle state.
//
// pending is the only initial state; approved and rejected are terminal.
// There is no transition out of a terminal state: a resolved request is an
// append-only audit record.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// ProofRequest records one verifier's disclosure ask against the holder's
// wallet. Attributes are resolved to their derivation rules at creation;
// whether any stored credential can satisfy them is checked at resolution
// time, so unsupported-attribute failures are reported against a concrete
// credential choice.
type ProofRequest struct {
	ID           string        `json:"id"`
	VerifierID   string        `json:"verifierId"`
	Attributes   []Attribute   `json:"attributes"`
	IssuerFilter string        `json:"issuerFilter,omitempty"`
	Status       RequestStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	ResolvedAt   *time.Time    `json:"resolvedAt,omitempty"`
	Presentation *Presentation `json:"presentation,omitempty"`
}

// NewProofRequest builds a pending request.
func NewProofRequest(id, verifierID string, attributeNames []string, issuerFilter string, now time.Time) (ProofRequest, error) {
	if verifierID == "" {
		return ProofRequest{}, derrors.New(derrors.CodeInvalidInput, "verifier id is required")
	}
	if len(attributeNames) == 0 {
		return ProofRequest{}, derrors.New(derrors.CodeInvalidInput, "at least one requested attribute is required")
	}
	return ProofRequest{
		ID:           id,
		VerifierID:   verifierID,
		Attributes:   ResolveAttributes(attributeNames),
		IssuerFilter: issuerFilter,
		Status:       StatusPending,
		CreatedAt:    now,
	}, nil
}

// Resolved reports whether the request has left the pending state.
func (r ProofRequest) Resolved() bool {
	return r.Status != StatusPending
}

// AttributeNames returns the requested names in request order.
func (r ProofRequest) AttributeNames() []string {
	names := make([]string, 0, len(r.Attributes))
	for _, a := range r.Attributes {
		names = append(names, a.Name)
	}
	return names
}
