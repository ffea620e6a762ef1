package domain

import (
	derrors "credrelay/pkg/domain-errors"
)

// Credential binds a claim set to its issuer: the content hash is the
// SHA-256 of the canonical claims and the issuer signature is recoverable to
// the issuer's account address.
//
// Invariants:
//   - ContentHash is a pure function of Claims
//   - IssuerSignature over ContentHash recovers to IssuerID
//   - a credential is never stored or reused until the full acceptance
//     pipeline has passed (hash, signature, trusted, issued, not revoked)
type Credential struct {
	Claims          Claims `json:"claims"`
	ContentHash     string `json:"contentHash"`
	IssuerID        string `json:"issuerId"`
	IssuerSignature string `json:"issuerSignature"`
}

// VerifyContentHash recomputes the hash from the claims and compares it to
// the supplied one. The supplied hash is never trusted on its own.
func (c Credential) VerifyContentHash() error {
	computed, err := c.Claims.ContentHash()
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInvalidInput, "claims not serializable")
	}
	if !SameIdentifier(computed.Hex(), c.ContentHash) {
		return derrors.New(derrors.CodeHashMismatch, "content hash does not match claims")
	}
	return nil
}

// VerifyIssuerSignature recovers the signer of the issuer signature over the
// content hash and compares it to the declared issuer.
func (c Credential) VerifyIssuerSignature() error {
	digest := NormalizeHash(c.ContentHash)
	signer, err := RecoverSigner(digest.Bytes(), c.IssuerSignature)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeSignatureMismatch, "issuer signature not recoverable")
	}
	if !SameIdentifier(signer.Hex(), c.IssuerID) {
		return derrors.New(derrors.CodeSignatureMismatch, "issuer signature recovers to a different identity")
	}
	return nil
}

// Clone returns an independent copy of the credential.
func (c Credential) Clone() Credential {
	out := c
	out.Claims = c.Claims.Clone()
	return out
}
