// Package holder implements the wallet role: it validates and stores
// credentials, owns the proof-request lifecycle, and constructs signed
// presentations that disclose only what a request asks for.
package holder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"credrelay/internal/domain"
	"credrelay/internal/keys"
	"credrelay/internal/platform/metrics"
	"credrelay/internal/registry"
	"credrelay/internal/storage"
	derrors "credrelay/pkg/domain-errors"
	"credrelay/pkg/platform/audit"
	"credrelay/pkg/platform/sentinel"
	pstrings "credrelay/pkg/platform/strings"
)

// AuditPublisher is the slice of the audit publisher the holder needs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	keys     *keys.KeyPair
	registry registry.TrustRegistry
	creds    storage.CredentialStore
	requests storage.RequestStore
	logger   *slog.Logger
	auditPub AuditPublisher
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
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

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func New(kp *keys.KeyPair, reg registry.TrustRegistry, creds storage.CredentialStore, requests storage.RequestStore, opts ...Option) (*Service, error) {
	if kp == nil {
		return nil, derrors.New(derrors.CodeInternal, "holder keypair is required")
	}
	if reg == nil {
		return nil, derrors.New(derrors.CodeInternal, "trust registry is required")
	}
	if creds == nil || requests == nil {
		return nil, derrors.New(derrors.CodeInternal, "credential and request stores are required")
	}
	s := &Service{
		keys:     kp,
		registry: reg,
		creds:    creds,
		requests: requests,
		logger:   slog.Default(),
		tracer:   otel.Tracer("credrelay/holder"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the holder's public identifier.
func (s *Service) ID() string { return s.keys.ID() }

// Accept runs the full acceptance pipeline, in order, short-circuiting on
// the first failure: recompute hash, recover issuer signature, then the
// three registry checks. Only a credential that passes everything is
// stored; storage is idempotent under re-insertion.
func (s *Service) Accept(ctx context.Context, cred domain.Credential) error {
	if err := cred.VerifyContentHash(); err != nil {
		return s.rejected(ctx, cred, err)
	}
	if err := cred.VerifyIssuerSignature(); err != nil {
		return s.rejected(ctx, cred, err)
	}
	if _, err := registry.Check(ctx, s.registry, cred.IssuerID, cred.ContentHash); err != nil {
		return s.rejected(ctx, cred, err)
	}

	if err := s.creds.Put(ctx, cred); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "storing credential failed")
	}

	s.metrics.IncCredentialsAccepted()
	s.emit(ctx, audit.Event{
		Action:  audit.ActionCredentialAccepted,
		Actor:   s.ID(),
		Subject: cred.ContentHash,
	})
	s.logger.Info("credential accepted", "hash", cred.ContentHash, "issuer", cred.IssuerID)
	return nil
}

func (s *Service) rejected(ctx context.Context, cred domain.Credential, err error) error {
	code := string(derrors.CodeOf(err))
	s.metrics.IncCredentialsRejected(code)
	s.emit(ctx, audit.Event{
		Action:  audit.ActionCredentialRejected,
		Actor:   s.ID(),
		Subject: cred.ContentHash,
		Reason:  code,
	})
	s.logger.Warn("credential rejected", "hash", cred.ContentHash, "reason", code)
	return err
}

// CreateRequest records an inbound disclosure ask as a pending request.
// Attribute names are resolved to derivation rules here but not validated
// against any credential: satisfiability is judged at resolution time, so
// failures name a concrete credential choice.
func (s *Service) CreateRequest(ctx context.Context, verifierID string, attributes []string, issuerFilter string) (domain.ProofRequest, error) {
	attributes = pstrings.DedupeAndTrim(attributes)
	req, err := domain.NewProofRequest(s.newID(), verifierID, attributes, issuerFilter, s.now().UTC())
	if err != nil {
		return domain.ProofRequest{}, err
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return domain.ProofRequest{}, derrors.Wrap(err, derrors.CodeInternal, "storing request failed")
	}

	s.metrics.IncRequestsCreated()
	s.emit(ctx, audit.Event{
		Action:  audit.ActionRequestCreated,
		Actor:   verifierID,
		Subject: req.ID,
	})
	s.logger.Info("proof request created", "request", req.ID, "verifier", verifierID)
	return req, nil
}

// ListPending returns unresolved requests in creation order.
func (s *Service) ListPending(ctx context.Context) ([]domain.ProofRequest, error) {
	return s.requests.ListPending(ctx)
}

// GetRequest fetches one request by id.
func (s *Service) GetRequest(ctx context.Context, id string) (domain.ProofRequest, error) {
	req, err := s.requests.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.ProofRequest{}, derrors.Newf(derrors.CodeNotFound, "request %q not found", id)
	}
	if err != nil {
		return domain.ProofRequest{}, derrors.Wrap(err, derrors.CodeInternal, "loading request failed")
	}
	return req, nil
}

// Respond resolves a pending request. Rejection is unconditional; approval
// is conditional on a satisfiable, currently-valid credential — on any
// selection or construction failure the request stays pending and the
// caller gets the specific error.
//
// Registry checks run between reading the request and committing the
// transition, with no store lock held; the store's Resolve re-checks that
// the status is still pending when committing, so concurrent resolutions of
// the same request serialize to exactly one winner.
func (s *Service) Respond(ctx context.Context, requestID string, approve bool) (domain.ProofRequest, error) {
	ctx, span := s.tracer.Start(ctx, "holder.Respond")
	defer span.End()

	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return domain.ProofRequest{}, err
	}
	if req.Resolved() {
		return domain.ProofRequest{}, derrors.Newf(derrors.CodeAlreadyResolved, "request %q is already %s", requestID, req.Status)
	}

	if !approve {
		return s.commit(ctx, requestID, domain.StatusRejected, nil)
	}

	cred, err := s.selectCredential(ctx, req)
	if err != nil {
		return domain.ProofRequest{}, err
	}
	presentation, err := s.buildPresentation(ctx, req, cred)
	if err != nil {
		return domain.ProofRequest{}, err
	}
	return s.commit(ctx, requestID, domain.StatusApproved, &presentation)
}

func (s *Service) commit(ctx context.Context, requestID string, status domain.RequestStatus, presentation *domain.Presentation) (domain.ProofRequest, error) {
	resolved, err := s.requests.Resolve(ctx, requestID, status, presentation, s.now().UTC())
	if errors.Is(err, sentinel.ErrConflict) {
		return domain.ProofRequest{}, derrors.Newf(derrors.CodeAlreadyResolved, "request %q is already %s", requestID, resolved.Status)
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.ProofRequest{}, derrors.Newf(derrors.CodeNotFound, "request %q not found", requestID)
	}
	if err != nil {
		return domain.ProofRequest{}, derrors.Wrap(err, derrors.CodeInternal, "committing resolution failed")
	}

	action := audit.ActionRequestRejected
	if status == domain.StatusApproved {
		action = audit.ActionRequestApproved
	}
	s.metrics.IncRequestsResolved(string(status))
	s.emit(ctx, audit.Event{
		Action:  action,
		Actor:   s.ID(),
		Subject: requestID,
	})
	s.logger.Info("proof request resolved", "request", requestID, "status", string(status))
	return resolved, nil
}

// buildPresentation re-checks trust/issuance/revocation immediately before
// signing — a credential accepted hours ago may have been revoked since —
// then derives the requested attributes and signs the relay envelope.
// Hash and signature are not re-verified here: they cannot change after
// acceptance.
func (s *Service) buildPresentation(ctx context.Context, req domain.ProofRequest, cred domain.Credential) (domain.Presentation, error) {
	if _, err := registry.Check(ctx, s.registry, cred.IssuerID, cred.ContentHash); err != nil {
		return domain.Presentation{}, err
	}

	disclosed, err := domain.Derive(cred, req.Attributes, s.now())
	if err != nil {
		return domain.Presentation{}, err
	}

	presentation := domain.Presentation{
		Disclosed:       disclosed,
		ContentHash:     cred.ContentHash,
		IssuerID:        cred.IssuerID,
		IssuerSignature: cred.IssuerSignature,
		RelayID:         s.ID(),
		RelayTimestamp:  s.now().UTC().Unix(),
		RequestID:       req.ID,
		VerifierID:      req.VerifierID,
	}
	digest, err := presentation.RelayDigest()
	if err != nil {
		return domain.Presentation{}, derrors.Wrap(err, derrors.CodeInternal, "relay payload not serializable")
	}
	sig, err := s.keys.SignDigest(digest)
	if err != nil {
		return domain.Presentation{}, err
	}
	presentation.RelaySignature = sig
	return presentation, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPub == nil {
		return
	}
	_ = s.auditPub.Emit(ctx, event)
}
