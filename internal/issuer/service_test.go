package issuer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credrelay/internal/domain"
	"credrelay/internal/keys"
	"credrelay/internal/registry"
	derrors "credrelay/pkg/domain-errors"
)

func newTestService(t *testing.T) (*Service, *registry.Ledger) {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	ledger := registry.NewLedger(kp.Address())
	svc, err := New(kp, ledger, ledger, WithClock(func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return svc, ledger
}

func validClaims() domain.Claims {
	return domain.Claims{
		domain.ClaimName: "John Doe",
		domain.ClaimDOB:  "1990-01-01",
		domain.ClaimPAN:  "ABCDE1234F",
	}
}

func TestEnsureRegisteredIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newTestService(t)

	require.NoError(t, svc.EnsureRegistered(ctx))
	trusted, err := ledger.IsIssuerTrusted(ctx, svc.Address())
	require.NoError(t, err)
	assert.True(t, trusted)

	// Second call observes the registration and writes nothing.
	require.NoError(t, svc.EnsureRegistered(ctx))
}

func TestIssue(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newTestService(t)
	require.NoError(t, svc.EnsureRegistered(ctx))

	cred, err := svc.Issue(ctx, validClaims())
	require.NoError(t, err)

	t.Run("credential is internally consistent", func(t *testing.T) {
		require.NoError(t, cred.VerifyContentHash())
		require.NoError(t, cred.VerifyIssuerSignature())
		assert.Equal(t, svc.ID(), cred.IssuerID)
	})

	t.Run("issuance timestamp stamped into claims", func(t *testing.T) {
		assert.Equal(t, "2026-08-29T12:00:00Z", cred.Claims[domain.ClaimIssuedAt])
	})

	t.Run("hash recorded as issued", func(t *testing.T) {
		issued, err := ledger.IsCredentialIssued(ctx, domain.NormalizeHash(cred.ContentHash))
		require.NoError(t, err)
		assert.True(t, issued)
	})

	t.Run("caller claims not mutated", func(t *testing.T) {
		claims := validClaims()
		_, err := svc.Issue(ctx, claims)
		require.NoError(t, err)
		_, stamped := claims[domain.ClaimIssuedAt]
		assert.False(t, stamped)
	})
}

func TestIssueMissingRequiredClaim(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, field := range DefaultRequiredClaims {
		t.Run(field, func(t *testing.T) {
			claims := validClaims()
			delete(claims, field)
			_, err := svc.Issue(ctx, claims)
			require.Error(t, err)
			assert.Equal(t, derrors.CodeInvalidInput, derrors.CodeOf(err))
		})
	}
}

func TestIssueIdempotentRecording(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// Issuing equal claims twice records the same hash twice; the second
	// recording is a no-op success, not an error.
	c1, err := svc.Issue(ctx, validClaims())
	require.NoError(t, err)
	c2, err := svc.Issue(ctx, validClaims())
	require.NoError(t, err)
	assert.Equal(t, c1.ContentHash, c2.ContentHash, "fixed clock, equal claims, equal hash")
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc, ledger := newTestService(t)

	cred, err := svc.Issue(ctx, validClaims())
	require.NoError(t, err)

	conf, err := svc.Revoke(ctx, cred.ContentHash)
	require.NoError(t, err)
	assert.True(t, conf.Confirmed)

	revoked, err := ledger.IsCredentialRevoked(ctx, domain.NormalizeHash(cred.ContentHash))
	require.NoError(t, err)
	assert.True(t, revoked)

	t.Run("empty hash rejected", func(t *testing.T) {
		_, err := svc.Revoke(ctx, "")
		require.Error(t, err)
		assert.Equal(t, derrors.CodeInvalidInput, derrors.CodeOf(err))
	})
}

func TestIssueUnauthorizedWriter(t *testing.T) {
	ctx := context.Background()
	kp, err := keys.Generate()
	require.NoError(t, err)
	other, err := keys.Generate()
	require.NoError(t, err)

	// Ledger only accepts writes from a different account.
	ledger := registry.NewLedger(other.Address())
	svc, err := New(kp, ledger, ledger)
	require.NoError(t, err)

	_, err = svc.Issue(ctx, validClaims())
	require.Error(t, err)
	assert.Equal(t, derrors.CodeRegistry, derrors.CodeOf(err))
}
