package domain

import (
	"crypto/sha256"
	"encoding/json"
)

// Presentation is a holder-signed, selectively-disclosed derivative of one
// credential, scoped to exactly one proof request. The issuer fields are
// copied verbatim from the source credential (the original attestation is
// not re-signed); the relay signature is the holder's own attestation over
// the full disclosure envelope.
//
// Immutable once constructed: signed exactly once, never re-derived for a
// different request.
type Presentation struct {
	Disclosed       map[string]any `json:"disclosed"`
	ContentHash     string         `json:"contentHash"`
	IssuerID        string         `json:"issuerId"`
	IssuerSignature string         `json:"issuerSignature"`
	RelayID         string         `json:"relayId"`
	RelayTimestamp  int64          `json:"relayTimestamp"`
	RelaySignature  string         `json:"relaySignature"`
	RequestID       string         `json:"requestId"`
	VerifierID      string         `json:"verifierId"`
}

// relayEnvelope is the signed portion of a presentation: every field except
// the relay signature itself. The issuer's original signature bytes are
// deliberately inside the envelope, so substituting a different
// validly-signed credential invalidates the relay signature.
//
// Field order is fixed by struct declaration and the disclosed map is
// marshaled with lexically ordered keys, so both sides reproduce the exact
// signed bytes. The timestamp travels as Unix seconds to keep the encoding
// independent of time formatting.
type relayEnvelope struct {
	Disclosed       map[string]any `json:"disclosed"`
	ContentHash     string         `json:"contentHash"`
	IssuerID        string         `json:"issuerId"`
	IssuerSignature string         `json:"issuerSignature"`
	RelayID         string         `json:"relayId"`
	RelayTimestamp  int64          `json:"relayTimestamp"`
	RequestID       string         `json:"requestId"`
	VerifierID      string         `json:"verifierId"`
}

// RelayDigest returns the 32-byte digest the holder signs (and the verifier
// re-derives) over the relay envelope.
func (p Presentation) RelayDigest() ([]byte, error) {
	raw, err := json.Marshal(relayEnvelope{
		Disclosed:       p.Disclosed,
		ContentHash:     p.ContentHash,
		IssuerID:        p.IssuerID,
		IssuerSignature: p.IssuerSignature,
		RelayID:         p.RelayID,
		RelayTimestamp:  p.RelayTimestamp,
		RequestID:       p.RequestID,
		VerifierID:      p.VerifierID,
	})
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(raw)
	return digest[:], nil
}
