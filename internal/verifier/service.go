// Package verifier implements the verification pipeline: given a
// presentation, re-derive the signed relay payload, recover both signer
// identities, and check the trust registry. The pipeline performs no
// mutation; re-verifying the same presentation yields the same result
// unless registry state changed in between.
package verifier

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"credrelay/internal/domain"
	"credrelay/internal/platform/metrics"
	"credrelay/internal/registry"
	"credrelay/pkg/platform/audit"
	derrors "credrelay/pkg/domain-errors"
)

// AuditPublisher is the slice of the audit publisher the verifier needs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Result is the structured accept outcome: the disclosed set, both
// recovered identities, and the raw registry booleans for audit display.
type Result struct {
	Disclosed     map[string]any  `json:"disclosed"`
	IssuerSigner  string          `json:"issuerSigner"`
	RelaySigner   string          `json:"relaySigner"`
	RegistryState registry.Checks `json:"registryState"`
}

type Service struct {
	registry registry.TrustRegistry
	logger   *slog.Logger
	auditPub AuditPublisher
	metrics  *metrics.Metrics
	tracer   trace.Tracer
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

func New(reg registry.TrustRegistry, opts ...Option) (*Service, error) {
	if reg == nil {
		return nil, derrors.New(derrors.CodeInternal, "trust registry is required")
	}
	s := &Service{
		registry: reg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("credrelay/verifier"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify runs the six checks in order, short-circuiting on the first
// failure:
//
//  1. structural completeness
//  2. relay signature recovers to the relay identity
//  3. issuer signature recovers to the issuer identity
//  4. issuer is trusted
//  5. credential hash is recorded issued
//  6. credential hash is not revoked
func (s *Service) Verify(ctx context.Context, presentation domain.Presentation) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "verifier.Verify")
	defer span.End()

	start := time.Now()
	result, err := s.verify(ctx, presentation)
	s.metrics.ObserveVerifyDuration(float64(time.Since(start).Microseconds()) / 1000.0)

	if err != nil {
		code := string(derrors.CodeOf(err))
		s.metrics.IncVerifications(code)
		s.emit(ctx, audit.Event{
			Action:  audit.ActionVerificationFailed,
			Subject: presentation.RequestID,
			Reason:  code,
		})
		s.logger.Warn("presentation rejected", "request", presentation.RequestID, "reason", code)
		return result, err
	}

	s.metrics.IncVerifications("ok")
	s.emit(ctx, audit.Event{
		Action:  audit.ActionVerificationPassed,
		Subject: presentation.RequestID,
		Actor:   result.RelaySigner,
	})
	s.logger.Info("presentation verified",
		"request", presentation.RequestID,
		"issuer", result.IssuerSigner,
		"relay", result.RelaySigner)
	return result, nil
}

func (s *Service) verify(ctx context.Context, p domain.Presentation) (Result, error) {
	var result Result

	if err := structuralCheck(p); err != nil {
		return result, err
	}

	digest, err := p.RelayDigest()
	if err != nil {
		return result, derrors.Wrap(err, derrors.CodeMalformedPresentation, "relay payload not reconstructable")
	}
	relaySigner, err := domain.RecoverSigner(digest, p.RelaySignature)
	if err != nil {
		return result, derrors.Wrap(err, derrors.CodeRelaySignatureMismatch, "relay signature not recoverable")
	}
	if !domain.SameIdentifier(relaySigner.Hex(), p.RelayID) {
		return result, derrors.New(derrors.CodeRelaySignatureMismatch, "relay signature recovers to a different identity")
	}
	result.RelaySigner = relaySigner.Hex()

	contentDigest := domain.NormalizeHash(p.ContentHash)
	issuerSigner, err := domain.RecoverSigner(contentDigest.Bytes(), p.IssuerSignature)
	if err != nil {
		return result, derrors.Wrap(err, derrors.CodeIssuerSignatureMismatch, "issuer signature not recoverable")
	}
	if !domain.SameIdentifier(issuerSigner.Hex(), p.IssuerID) {
		return result, derrors.New(derrors.CodeIssuerSignatureMismatch, "issuer signature recovers to a different identity")
	}
	result.IssuerSigner = issuerSigner.Hex()

	checks, err := registry.Check(ctx, s.registry, p.IssuerID, p.ContentHash)
	result.RegistryState = checks
	if err != nil {
		return result, err
	}

	result.Disclosed = p.Disclosed
	return result, nil
}

func structuralCheck(p domain.Presentation) error {
	switch {
	case len(p.Disclosed) == 0:
		return derrors.New(derrors.CodeMalformedPresentation, "disclosed attribute set is empty")
	case p.ContentHash == "":
		return derrors.New(derrors.CodeMalformedPresentation, "content hash is missing")
	case p.IssuerID == "":
		return derrors.New(derrors.CodeMalformedPresentation, "issuer id is missing")
	case p.IssuerSignature == "":
		return derrors.New(derrors.CodeMalformedPresentation, "issuer signature is missing")
	case p.RelayID == "":
		return derrors.New(derrors.CodeMalformedPresentation, "relay id is missing")
	case p.RelaySignature == "":
		return derrors.New(derrors.CodeMalformedPresentation, "relay signature is missing")
	case p.RelayTimestamp == 0:
		return derrors.New(derrors.CodeMalformedPresentation, "relay timestamp is missing")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPub == nil {
		return
	}
	_ = s.auditPub.Emit(ctx, event)
}
