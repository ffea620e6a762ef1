package httptransport

import (
	"context"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"credrelay/internal/domain"
	"credrelay/internal/registry"
	derrors "credrelay/pkg/domain-errors"
)

// IssuerService is the slice of the issuer the transport needs.
type IssuerService interface {
	Issue(ctx context.Context, claims domain.Claims) (domain.Credential, error)
	Revoke(ctx context.Context, contentHash string) (registry.Confirmation, error)
	ID() string
}

type IssuerHandler struct {
	issuer IssuerService
}

func NewIssuerHandler(issuer IssuerService) *IssuerHandler {
	return &IssuerHandler{issuer: issuer}
}

func (h *IssuerHandler) Register(r chi.Router) {
	r.Post("/credentials", h.handleIssue)
	r.Post("/credentials/{hash}/revoke", h.handleRevoke)
}

type issueRequest struct {
	Claims domain.Claims `json:"claims"`
}

func (h *IssuerHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateClaims(req.Claims); err != nil {
		writeError(w, err)
		return
	}

	cred, err := h.issuer.Issue(r.Context(), req.Claims)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cred)
}

type revokeResponse struct {
	Revoked bool   `json:"revoked"`
	Ref     string `json:"ref"`
}

func (h *IssuerHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if !govalidator.IsHexadecimal(trimHexPrefix(hash)) {
		writeError(w, derrors.New(derrors.CodeInvalidInput, "content hash must be hex encoded"))
		return
	}

	conf, err := h.issuer.Revoke(r.Context(), hash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revokeResponse{Revoked: conf.Confirmed, Ref: conf.Ref})
}

func validateClaims(claims domain.Claims) error {
	if len(claims) == 0 {
		return derrors.New(derrors.CodeInvalidInput, "claims are required")
	}
	for key, value := range claims {
		if !govalidator.StringLength(key, "1", "64") {
			return derrors.New(derrors.CodeInvalidInput, "claim name must be 1-64 characters")
		}
		if !govalidator.StringLength(value, "1", "512") {
			return derrors.Newf(derrors.CodeInvalidInput, "claim %q must be 1-512 characters", key)
		}
	}
	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
