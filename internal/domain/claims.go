package domain

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// Claims is the attested fact set of a credential: attribute name to a
// holder-legible value (name, date of birth, identifier number, issuance
// timestamp). Values stay free-form strings; derived assertions are computed
// at disclosure time, never stored back into claims.
type Claims map[string]string

// Well-known claim names the derivation rules source from.
const (
	ClaimName     = "name"
	ClaimDOB      = "dob"
	ClaimPAN      = "pan"
	ClaimIssuedAt = "issuedAt"
)

// CanonicalBytes returns the deterministic encoding used for hashing and
// signing. encoding/json marshals map keys in lexical order, so identical
// logical content always produces identical bytes on both the signing and
// the verifying side.
func (c Claims) CanonicalBytes() ([]byte, error) {
	return json.Marshal(map[string]string(c))
}

// ContentHash computes the SHA-256 digest of the canonical claim encoding.
// It is a pure function of the claims: equal claims, equal hash.
func (c Claims) ContentHash() (common.Hash, error) {
	raw, err := c.CanonicalBytes()
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(sha256.Sum256(raw)), nil
}

// Clone returns an independent copy so stored credentials cannot be mutated
// through a retained caller reference.
func (c Claims) Clone() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
