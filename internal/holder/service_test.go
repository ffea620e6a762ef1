package holder

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credrelay/internal/domain"
	"credrelay/internal/issuer"
	"credrelay/internal/keys"
	"credrelay/internal/registry"
	"credrelay/internal/storage"
	derrors "credrelay/pkg/domain-errors"
)

// fixture wires an issuer, a shared ledger, and a holder with a fixed clock.
type fixture struct {
	issuer *issuer.Service
	holder *Service
	ledger *registry.Ledger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	issuerKeys, err := keys.Generate()
	require.NoError(t, err)
	holderKeys, err := keys.Generate()
	require.NoError(t, err)

	ledger := registry.NewLedger(issuerKeys.Address())
	iss, err := issuer.New(issuerKeys, ledger, ledger,
		issuer.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	require.NoError(t, iss.EnsureRegistered(context.Background()))

	hold, err := New(holderKeys, ledger,
		storage.NewInMemoryCredentialStore(),
		storage.NewInMemoryRequestStore(),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	return &fixture{issuer: iss, holder: hold, ledger: ledger, now: now}
}

func (f *fixture) issue(t *testing.T, claims domain.Claims) domain.Credential {
	t.Helper()
	cred, err := f.issuer.Issue(context.Background(), claims)
	require.NoError(t, err)
	return cred
}

func johnDoe() domain.Claims {
	return domain.Claims{
		domain.ClaimName: "John Doe",
		domain.ClaimDOB:  "1990-01-01",
		domain.ClaimPAN:  "ABCDE1234F",
	}
}

func TestAcceptPipeline(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credential accepted and stored idempotently", func(t *testing.T) {
		f := newFixture(t)
		cred := f.issue(t, johnDoe())
		require.NoError(t, f.holder.Accept(ctx, cred))
		require.NoError(t, f.holder.Accept(ctx, cred), "re-insertion of an identical credential")
	})

	t.Run("tampered claims fail on hash recomputation", func(t *testing.T) {
		f := newFixture(t)
		cred := f.issue(t, johnDoe())
		cred.Claims[domain.ClaimName] = "Jane Doe"
		err := f.holder.Accept(ctx, cred)
		assert.Equal(t, derrors.CodeHashMismatch, derrors.CodeOf(err))
	})

	t.Run("signature from a different key fails recovery comparison", func(t *testing.T) {
		f := newFixture(t)
		other := newFixture(t) // different issuer key
		cred := f.issue(t, johnDoe())
		forged := other.issue(t, johnDoe())
		cred.IssuerSignature = forged.IssuerSignature
		err := f.holder.Accept(ctx, cred)
		assert.Equal(t, derrors.CodeSignatureMismatch, derrors.CodeOf(err))
	})

	t.Run("untrusted issuer rejected", func(t *testing.T) {
		f := newFixture(t)
		// Issue against a ledger that trusts the issuer, then verify
		// against one that does not.
		cred := f.issue(t, johnDoe())
		strangerLedger := registry.NewLedger(f.issuer.Address())

		holderKeys, err := keys.Generate()
		require.NoError(t, err)
		isolated, err := New(holderKeys, strangerLedger,
			storage.NewInMemoryCredentialStore(), storage.NewInMemoryRequestStore())
		require.NoError(t, err)

		err = isolated.Accept(ctx, cred)
		assert.Equal(t, derrors.CodeUntrustedIssuer, derrors.CodeOf(err))
	})

	t.Run("unissued hash rejected", func(t *testing.T) {
		f := newFixture(t)
		cred := f.issue(t, johnDoe())

		// Trusted issuer, but the hash was never recorded in this ledger.
		fresh := registry.NewLedger(f.issuer.Address())
		_, err := fresh.RegisterIssuer(ctx, f.issuer.Address(), f.issuer.Address())
		require.NoError(t, err)

		holderKeys, err := keys.Generate()
		require.NoError(t, err)
		isolated, err := New(holderKeys, fresh,
			storage.NewInMemoryCredentialStore(), storage.NewInMemoryRequestStore())
		require.NoError(t, err)

		err = isolated.Accept(ctx, cred)
		assert.Equal(t, derrors.CodeNotIssued, derrors.CodeOf(err))
	})

	t.Run("revoked credential rejected", func(t *testing.T) {
		f := newFixture(t)
		cred := f.issue(t, johnDoe())
		_, err := f.issuer.Revoke(ctx, cred.ContentHash)
		require.NoError(t, err)

		err = f.holder.Accept(ctx, cred)
		assert.Equal(t, derrors.CodeRevoked, derrors.CodeOf(err))
	})
}

func TestRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cred := f.issue(t, johnDoe())
	require.NoError(t, f.holder.Accept(ctx, cred))

	req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrOver18, domain.AttrPANLast4}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, req.Status)
	assert.NotEmpty(t, req.ID)

	t.Run("listed while pending", func(t *testing.T) {
		pending, err := f.holder.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, req.ID, pending[0].ID)
	})

	t.Run("approval attaches presentation", func(t *testing.T) {
		resolved, err := f.holder.Respond(ctx, req.ID, true)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, resolved.Status)
		require.NotNil(t, resolved.Presentation)
		require.NotNil(t, resolved.ResolvedAt)

		p := resolved.Presentation
		assert.Equal(t, true, p.Disclosed[domain.AttrOver18])
		assert.Equal(t, "234F", p.Disclosed[domain.AttrPANLast4])
		assert.Equal(t, cred.ContentHash, p.ContentHash)
		assert.Equal(t, cred.IssuerSignature, p.IssuerSignature)
		assert.Equal(t, f.holder.ID(), p.RelayID)
		assert.Equal(t, req.ID, p.RequestID)
		assert.Equal(t, "acme-bank", p.VerifierID)
		assert.NotEmpty(t, p.RelaySignature)
	})

	t.Run("second resolution fails, terminal fields unchanged", func(t *testing.T) {
		first, err := f.holder.GetRequest(ctx, req.ID)
		require.NoError(t, err)

		_, err = f.holder.Respond(ctx, req.ID, false)
		require.Error(t, err)
		assert.Equal(t, derrors.CodeAlreadyResolved, derrors.CodeOf(err))

		after, err := f.holder.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Status, after.Status)
		assert.Equal(t, first.ResolvedAt, after.ResolvedAt)
		assert.Equal(t, first.Presentation, after.Presentation)
	})

	t.Run("unknown request id", func(t *testing.T) {
		_, err := f.holder.Respond(ctx, "no-such-request", true)
		assert.Equal(t, derrors.CodeNotFound, derrors.CodeOf(err))
	})
}

func TestRespondRejectIsUnconditional(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// No credential stored at all; rejection must still succeed.
	req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrOver18}, "")
	require.NoError(t, err)

	resolved, err := f.holder.Respond(ctx, req.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, resolved.Status)
	assert.Nil(t, resolved.Presentation)
}

func TestRespondApprovalFailuresLeavePending(t *testing.T) {
	ctx := context.Background()

	t.Run("no matching credential", func(t *testing.T) {
		f := newFixture(t)
		req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrOver18}, "")
		require.NoError(t, err)

		_, err = f.holder.Respond(ctx, req.ID, true)
		assert.Equal(t, derrors.CodeNoCredential, derrors.CodeOf(err))

		after, err := f.holder.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, after.Status, "failed approval must not consume the request")
	})

	t.Run("issuer filter excludes the only credential", func(t *testing.T) {
		f := newFixture(t)
		cred := f.issue(t, johnDoe())
		require.NoError(t, f.holder.Accept(ctx, cred))

		req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrOver18},
			"0x000000000000000000000000000000000000dEaD")
		require.NoError(t, err)

		_, err = f.holder.Respond(ctx, req.ID, true)
		assert.Equal(t, derrors.CodeNoCredential, derrors.CodeOf(err))
	})

	t.Run("revocation between acceptance and approval", func(t *testing.T) {
		f := newFixture(t)
		cred := f.issue(t, johnDoe())
		require.NoError(t, f.holder.Accept(ctx, cred))

		req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrOver18}, "")
		require.NoError(t, err)

		// Revoked after acceptance: the pre-sign re-check must catch it.
		_, err = f.issuer.Revoke(ctx, cred.ContentHash)
		require.NoError(t, err)

		_, err = f.holder.Respond(ctx, req.ID, true)
		assert.Equal(t, derrors.CodeRevoked, derrors.CodeOf(err))

		after, err := f.holder.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, after.Status, "revocation failure leaves the request pending")
	})
}

func TestIssuerFilterMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cred := f.issue(t, johnDoe())
	require.NoError(t, f.holder.Accept(ctx, cred))

	// Filter written in a different case still matches.
	req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrPANLast4},
		strings.ToLower(cred.IssuerID))
	require.NoError(t, err)

	resolved, err := f.holder.Respond(ctx, req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, resolved.Status)
}

func TestSelectionDeterministicOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.issue(t, domain.Claims{
		domain.ClaimName: "John Doe",
		domain.ClaimDOB:  "1990-01-01",
		domain.ClaimPAN:  "FIRST12345",
	})
	second := f.issue(t, domain.Claims{
		domain.ClaimName: "John Doe",
		domain.ClaimDOB:  "1990-01-01",
		domain.ClaimPAN:  "SECOND6789",
	})
	require.NoError(t, f.holder.Accept(ctx, first))
	require.NoError(t, f.holder.Accept(ctx, second))

	req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrPANLast4}, "")
	require.NoError(t, err)
	resolved, err := f.holder.Respond(ctx, req.ID, true)
	require.NoError(t, err)

	assert.Equal(t, "2345", resolved.Presentation.Disclosed[domain.AttrPANLast4],
		"insertion order decides between equally satisfying credentials")
}

func TestUnsupportedAttributeLeavesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// The credential satisfies presence checks for pan but carries no
	// "email" claim; the pass-through derivation must abort approval.
	cred := f.issue(t, johnDoe())
	require.NoError(t, f.holder.Accept(ctx, cred))

	req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{"email"}, "")
	require.NoError(t, err)

	_, err = f.holder.Respond(ctx, req.ID, true)
	assert.Equal(t, derrors.CodeNoCredential, derrors.CodeOf(err),
		"missing claim surfaces at selection, against a concrete store")

	after, err := f.holder.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, after.Status)
}

func TestDerivationFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// dob is present so selection succeeds, but it does not parse, so
	// derivation aborts after the credential has been chosen.
	cred := f.issue(t, domain.Claims{
		domain.ClaimName: "John Doe",
		domain.ClaimDOB:  "someday",
		domain.ClaimPAN:  "ABCDE1234F",
	})
	require.NoError(t, f.holder.Accept(ctx, cred))

	req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrOver18}, "")
	require.NoError(t, err)

	_, err = f.holder.Respond(ctx, req.ID, true)
	assert.Equal(t, derrors.CodeUnsupportedAttribute, derrors.CodeOf(err))

	after, err := f.holder.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, after.Status)
}

// TestConcurrentRespond races resolutions of one request; exactly one
// transition may commit, everyone else observes AlreadyResolved.
func TestConcurrentRespond(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cred := f.issue(t, johnDoe())
	require.NoError(t, f.holder.Accept(ctx, cred))

	req, err := f.holder.CreateRequest(ctx, "acme-bank", []string{domain.AttrOver18}, "")
	require.NoError(t, err)

	const goroutines = 20
	var wg sync.WaitGroup
	var successes, alreadyResolved atomic.Int32
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		approve := i%2 == 0
		go func(approve bool) {
			defer wg.Done()
			_, err := f.holder.Respond(ctx, req.ID, approve)
			if err == nil {
				successes.Add(1)
			} else if derrors.CodeOf(err) == derrors.CodeAlreadyResolved {
				alreadyResolved.Add(1)
			}
		}(approve)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(goroutines-1), alreadyResolved.Load())

	final, err := f.holder.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, final.Resolved())
}
