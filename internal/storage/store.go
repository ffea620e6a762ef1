// Package storage defines the persistence interfaces for each role's state.
// Stores are interface-driven so domain logic stays testable and in-memory,
// Redis, and Postgres backends can be swapped without rewiring business
// code. Stores are pure I/O: protocol rules live in the services.
package storage

import (
	"context"
	"time"

	"credrelay/internal/domain"
)

// CredentialStore keeps accepted credentials keyed by content hash.
type CredentialStore interface {
	// Put stores a credential. Re-inserting the same content hash is a
	// no-op: acceptance is idempotent.
	Put(ctx context.Context, cred domain.Credential) error
	// Get returns sentinel.ErrNotFound when the hash is unknown.
	Get(ctx context.Context, contentHash string) (domain.Credential, error)
	// List returns credentials in insertion order, so credential selection
	// is deterministic across backends.
	List(ctx context.Context) ([]domain.Credential, error)
}

// RequestStore keeps proof requests keyed by request id.
//
// Resolve is the per-key atomic commit of the request state machine: it
// moves a request out of pending if and only if it is still pending,
// otherwise it returns sentinel.ErrConflict without change. Callers perform
// registry I/O between Get and Resolve; the pending re-check inside Resolve
// closes that race window.
type RequestStore interface {
	Save(ctx context.Context, req domain.ProofRequest) error
	Get(ctx context.Context, id string) (domain.ProofRequest, error)
	ListPending(ctx context.Context) ([]domain.ProofRequest, error)
	Resolve(ctx context.Context, id string, status domain.RequestStatus, presentation *domain.Presentation, resolvedAt time.Time) (domain.ProofRequest, error)
}
