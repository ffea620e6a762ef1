package domain

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "credrelay/pkg/domain-errors"
)

// signedCredential builds a well-formed credential with a fresh issuer key.
func signedCredential(t *testing.T, claims Claims) Credential {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	hash, err := claims.ContentHash()
	require.NoError(t, err)
	sig, err := crypto.Sign(hash.Bytes(), key)
	require.NoError(t, err)

	return Credential{
		Claims:          claims,
		ContentHash:     hash.Hex(),
		IssuerID:        crypto.PubkeyToAddress(key.PublicKey).Hex(),
		IssuerSignature: hexutil.Encode(sig),
	}
}

func TestVerifyContentHash(t *testing.T) {
	cred := signedCredential(t, Claims{"name": "John Doe", "dob": "1990-01-01"})
	require.NoError(t, cred.VerifyContentHash())

	t.Run("tampered claims detected", func(t *testing.T) {
		tampered := cred.Clone()
		tampered.Claims["name"] = "Jane Doe"
		err := tampered.VerifyContentHash()
		require.Error(t, err)
		assert.Equal(t, derrors.CodeHashMismatch, derrors.CodeOf(err))
	})

	t.Run("supplied hash never trusted", func(t *testing.T) {
		forged := cred.Clone()
		forged.ContentHash = "0x" + "00" + forged.ContentHash[4:]
		err := forged.VerifyContentHash()
		require.Error(t, err)
		assert.Equal(t, derrors.CodeHashMismatch, derrors.CodeOf(err))
	})
}

func TestVerifyIssuerSignature(t *testing.T) {
	cred := signedCredential(t, Claims{"name": "John Doe"})
	require.NoError(t, cred.VerifyIssuerSignature())

	t.Run("declared issuer must match recovered signer", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)

		impostor := cred.Clone()
		impostor.IssuerID = crypto.PubkeyToAddress(other.PublicKey).Hex()
		err = impostor.VerifyIssuerSignature()
		require.Error(t, err)
		assert.Equal(t, derrors.CodeSignatureMismatch, derrors.CodeOf(err))
	})

	t.Run("garbage signature rejected", func(t *testing.T) {
		broken := cred.Clone()
		broken.IssuerSignature = "0xdead"
		err := broken.VerifyIssuerSignature()
		require.Error(t, err)
		assert.Equal(t, derrors.CodeSignatureMismatch, derrors.CodeOf(err))
	})

	t.Run("identifier comparison is case-insensitive", func(t *testing.T) {
		lowered := cred.Clone()
		lowered.IssuerID = strings.ToLower(lowered.IssuerID)
		require.NoError(t, lowered.VerifyIssuerSignature())
	})
}

func TestRelayDigestStable(t *testing.T) {
	p := Presentation{
		Disclosed:       map[string]any{"over18": true, "panLast4": "234F"},
		ContentHash:     "0xabc0000000000000000000000000000000000000000000000000000000000000",
		IssuerID:        "0x1111111111111111111111111111111111111111",
		IssuerSignature: "0x22",
		RelayID:         "0x3333333333333333333333333333333333333333",
		RelayTimestamp:  1700000000,
		RequestID:       "req-1",
		VerifierID:      "acme-bank",
	}

	d1, err := p.RelayDigest()
	require.NoError(t, err)
	d2, err := p.RelayDigest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	t.Run("digest excludes the relay signature itself", func(t *testing.T) {
		signed := p
		signed.RelaySignature = "0x44"
		d3, err := signed.RelayDigest()
		require.NoError(t, err)
		assert.Equal(t, d1, d3)
	})

	t.Run("digest covers the issuer signature", func(t *testing.T) {
		swapped := p
		swapped.IssuerSignature = "0x99"
		d4, err := swapped.RelayDigest()
		require.NoError(t, err)
		assert.NotEqual(t, d1, d4)
	})

	t.Run("digest covers disclosed values", func(t *testing.T) {
		tampered := p
		tampered.Disclosed = map[string]any{"over18": true, "panLast4": "999X"}
		d5, err := tampered.RelayDigest()
		require.NoError(t, err)
		assert.NotEqual(t, d1, d5)
	})
}

func TestRequestStateMachine(t *testing.T) {
	req, err := NewProofRequest("req-1", "acme-bank", []string{AttrOver18}, "", date("2026-01-02"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.False(t, req.Resolved())

	req.Status = StatusApproved
	assert.True(t, req.Resolved())

	t.Run("verifier id required", func(t *testing.T) {
		_, err := NewProofRequest("req-2", "", []string{AttrOver18}, "", date("2026-01-02"))
		require.Error(t, err)
		assert.Equal(t, derrors.CodeInvalidInput, derrors.CodeOf(err))
	})

	t.Run("attributes required", func(t *testing.T) {
		_, err := NewProofRequest("req-3", "acme-bank", nil, "", date("2026-01-02"))
		require.Error(t, err)
		assert.Equal(t, derrors.CodeInvalidInput, derrors.CodeOf(err))
	})
}
