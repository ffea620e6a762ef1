// Package registry defines the narrow interfaces the protocol consumes from
// the trust registry, an append-mostly external ledger. Calls are treated as
// blocking, potentially high-latency I/O: callers must never hold a
// store-wide lock across them.
package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	derrors "credrelay/pkg/domain-errors"
	"credrelay/internal/domain"
)

// Confirmation acknowledges a registry write.
type Confirmation struct {
	Confirmed bool   `json:"confirmed"`
	Ref       string `json:"ref,omitempty"`
}

// TrustRegistry is the read side every role consumes.
type TrustRegistry interface {
	IsIssuerTrusted(ctx context.Context, issuer common.Address) (bool, error)
	IsCredentialIssued(ctx context.Context, hash common.Hash) (bool, error)
	IsCredentialRevoked(ctx context.Context, hash common.Hash) (bool, error)
}

// Writer is the privileged mutating side. caller identifies the writing
// account; the ledger enforces authorization.
type Writer interface {
	RegisterIssuer(ctx context.Context, caller, issuer common.Address) (Confirmation, error)
	RecordCredential(ctx context.Context, caller common.Address, hash common.Hash) (Confirmation, error)
	RevokeCredential(ctx context.Context, caller common.Address, hash common.Hash) (Confirmation, error)
}

// Checks carries the three registry facts about a credential, in the order
// the pipelines evaluate them. Kept for audit display even when the overall
// check fails.
type Checks struct {
	IssuerTrusted     bool `json:"issuerTrusted"`
	CredentialIssued  bool `json:"credentialIssued"`
	CredentialRevoked bool `json:"credentialRevoked"`
}

// Check runs the three registry lookups for a credential and returns the
// first policy failure as a coded error. This is the single re-validation
// routine shared by holder acceptance, the pre-sign re-check, and the
// verifier pipeline, so all three sites agree on semantics. It is pure with
// respect to local state: no mutation, repeatable.
func Check(ctx context.Context, reg TrustRegistry, issuerID, contentHash string) (Checks, error) {
	issuer := common.HexToAddress(issuerID)
	hash := domain.NormalizeHash(contentHash)

	var checks Checks

	trusted, err := reg.IsIssuerTrusted(ctx, issuer)
	if err != nil {
		return checks, derrors.Wrap(err, derrors.CodeRegistry, "issuer trust lookup failed")
	}
	checks.IssuerTrusted = trusted
	if !trusted {
		return checks, derrors.Newf(derrors.CodeUntrustedIssuer, "issuer %s is not trusted", issuerID)
	}

	issued, err := reg.IsCredentialIssued(ctx, hash)
	if err != nil {
		return checks, derrors.Wrap(err, derrors.CodeRegistry, "issuance lookup failed")
	}
	checks.CredentialIssued = issued
	if !issued {
		return checks, derrors.New(derrors.CodeNotIssued, "credential hash is not recorded as issued")
	}

	revoked, err := reg.IsCredentialRevoked(ctx, hash)
	if err != nil {
		return checks, derrors.Wrap(err, derrors.CodeRegistry, "revocation lookup failed")
	}
	checks.CredentialRevoked = revoked
	if revoked {
		return checks, derrors.New(derrors.CodeRevoked, "credential has been revoked")
	}

	return checks, nil
}
