package httptransport

import (
	"context"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"credrelay/internal/domain"
	derrors "credrelay/pkg/domain-errors"
)

// WalletService is the slice of the holder the transport needs.
type WalletService interface {
	Accept(ctx context.Context, cred domain.Credential) error
	CreateRequest(ctx context.Context, verifierID string, attributes []string, issuerFilter string) (domain.ProofRequest, error)
	ListPending(ctx context.Context) ([]domain.ProofRequest, error)
	GetRequest(ctx context.Context, id string) (domain.ProofRequest, error)
	Respond(ctx context.Context, requestID string, approve bool) (domain.ProofRequest, error)
	ID() string
}

type WalletHandler struct {
	wallet WalletService
}

func NewWalletHandler(wallet WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

func (h *WalletHandler) Register(r chi.Router) {
	r.Post("/wallet/credentials", h.handleAccept)
	r.Post("/wallet/requests", h.handleCreateRequest)
	r.Get("/wallet/requests/pending", h.handleListPending)
	r.Get("/wallet/requests/{id}", h.handleGetRequest)
	r.Post("/wallet/requests/{id}/resolve", h.handleResolve)
}

func (h *WalletHandler) handleAccept(w http.ResponseWriter, r *http.Request) {
	var cred domain.Credential
	if err := decodeBody(r, &cred); err != nil {
		writeError(w, err)
		return
	}
	if err := h.wallet.Accept(r.Context(), cred); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"contentHash": cred.ContentHash,
		"holder":      h.wallet.ID(),
	})
}

type createRequestBody struct {
	VerifierID   string   `json:"verifierId"`
	Attributes   []string `json:"attributes"`
	IssuerFilter string   `json:"issuerFilter"`
}

func (h *WalletHandler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := validateCreateRequest(body); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.wallet.CreateRequest(r.Context(), body.VerifierID, body.Attributes, body.IssuerFilter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *WalletHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.wallet.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if pending == nil {
		pending = []domain.ProofRequest{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *WalletHandler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.wallet.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type resolveBody struct {
	Approve bool `json:"approve"`
}

func (h *WalletHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body resolveBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	resolved, err := h.wallet.Respond(r.Context(), chi.URLParam(r, "id"), body.Approve)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func validateCreateRequest(body createRequestBody) error {
	if !govalidator.StringLength(body.VerifierID, "1", "128") {
		return derrors.New(derrors.CodeInvalidInput, "verifierId must be 1-128 characters")
	}
	if len(body.Attributes) == 0 {
		return derrors.New(derrors.CodeInvalidInput, "attributes are required")
	}
	for _, attr := range body.Attributes {
		if strings.TrimSpace(attr) == "" {
			return derrors.New(derrors.CodeInvalidInput, "attributes contain empty value")
		}
	}
	if body.IssuerFilter != "" && !govalidator.IsHexadecimal(trimHexPrefix(body.IssuerFilter)) {
		return derrors.New(derrors.CodeInvalidInput, "issuerFilter must be a hex address")
	}
	return nil
}
