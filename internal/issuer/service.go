// Package issuer implements the credential authority: it attests claim
// sets, records their hashes in the trust registry, and revokes them.
package issuer

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"credrelay/internal/domain"
	"credrelay/internal/keys"
	"credrelay/internal/platform/metrics"
	"credrelay/internal/registry"
	"credrelay/pkg/platform/audit"
	derrors "credrelay/pkg/domain-errors"
)

// AuditPublisher is the slice of the audit publisher the issuer needs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// DefaultRequiredClaims are the subject facts every issued credential must
// carry.
var DefaultRequiredClaims = []string{domain.ClaimName, domain.ClaimDOB, domain.ClaimPAN}

type Service struct {
	keys     *keys.KeyPair
	registry registry.TrustRegistry
	writer   registry.Writer
	required []string
	logger   *slog.Logger
	auditPub AuditPublisher
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(pub AuditPublisher) Option {
	return func(s *Service) { s.auditPub = pub }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithRequiredClaims(required []string) Option {
	return func(s *Service) { s.required = required }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(kp *keys.KeyPair, reg registry.TrustRegistry, writer registry.Writer, opts ...Option) (*Service, error) {
	if kp == nil {
		return nil, derrors.New(derrors.CodeInternal, "issuer keypair is required")
	}
	if reg == nil || writer == nil {
		return nil, derrors.New(derrors.CodeInternal, "trust registry is required")
	}
	s := &Service{
		keys:     kp,
		registry: reg,
		writer:   writer,
		required: DefaultRequiredClaims,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the issuer's public identifier.
func (s *Service) ID() string { return s.keys.ID() }

// EnsureRegistered makes the issuer trusted in the registry, once. Called
// at process start, not per request.
func (s *Service) EnsureRegistered(ctx context.Context) error {
	trusted, err := s.registry.IsIssuerTrusted(ctx, s.keys.Address())
	if err != nil {
		return derrors.Wrap(err, derrors.CodeRegistry, "issuer trust lookup failed")
	}
	if trusted {
		return nil
	}
	conf, err := s.writer.RegisterIssuer(ctx, s.keys.Address(), s.keys.Address())
	if err != nil {
		return derrors.Wrap(err, derrors.CodeRegistry, "issuer registration failed")
	}
	if !conf.Confirmed {
		return derrors.New(derrors.CodeRegistry, "issuer registration did not confirm")
	}
	s.logger.Info("issuer registered in trust registry", "issuer", s.ID())
	return nil
}

// Issue attests the claims: stamps the issuance timestamp, hashes the
// canonical claim encoding, signs the hash, and records it as issued.
// Recording an already-issued hash is a no-op success.
func (s *Service) Issue(ctx context.Context, claims domain.Claims) (domain.Credential, error) {
	for _, field := range s.required {
		if claims[field] == "" {
			return domain.Credential{}, derrors.Newf(derrors.CodeInvalidInput, "required claim %q is missing", field)
		}
	}

	attested := claims.Clone()
	attested[domain.ClaimIssuedAt] = s.now().UTC().Format(time.RFC3339)

	hash, err := attested.ContentHash()
	if err != nil {
		return domain.Credential{}, derrors.Wrap(err, derrors.CodeInvalidInput, "claims not serializable")
	}
	sig, err := s.keys.SignDigest(hash.Bytes())
	if err != nil {
		return domain.Credential{}, err
	}

	if _, err := s.writer.RecordCredential(ctx, s.keys.Address(), hash); err != nil {
		return domain.Credential{}, derrors.Wrap(err, derrors.CodeRegistry, "recording credential failed")
	}

	cred := domain.Credential{
		Claims:          attested,
		ContentHash:     hash.Hex(),
		IssuerID:        s.ID(),
		IssuerSignature: sig,
	}

	s.metrics.IncCredentialsIssued()
	s.emit(ctx, audit.Event{
		Action:  audit.ActionCredentialIssued,
		Actor:   s.ID(),
		Subject: cred.ContentHash,
	})
	s.logger.Info("credential issued", "hash", cred.ContentHash, "issuer", s.ID())
	return cred, nil
}

// Revoke marks a credential hash revoked. Monotonic: revoking again
// confirms without change.
func (s *Service) Revoke(ctx context.Context, contentHash string) (registry.Confirmation, error) {
	if contentHash == "" {
		return registry.Confirmation{}, derrors.New(derrors.CodeInvalidInput, "content hash is required")
	}
	hash := domain.NormalizeHash(contentHash)
	conf, err := s.writer.RevokeCredential(ctx, s.keys.Address(), hash)
	if err != nil {
		return registry.Confirmation{}, derrors.Wrap(err, derrors.CodeRegistry, "revocation failed")
	}
	if !conf.Confirmed {
		return registry.Confirmation{}, derrors.New(derrors.CodeRegistry, "revocation did not confirm")
	}

	s.emit(ctx, audit.Event{
		Action:  audit.ActionCredentialRevoked,
		Actor:   s.ID(),
		Subject: hash.Hex(),
	})
	s.logger.Info("credential revoked", "hash", hash.Hex(), "issuer", s.ID())
	return conf, nil
}

// Address returns the issuer's account address.
func (s *Service) Address() common.Address { return s.keys.Address() }

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPub == nil {
		return
	}
	_ = s.auditPub.Emit(ctx, event)
}
