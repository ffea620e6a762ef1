package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credrelay/internal/domain"
	"credrelay/internal/verifier"
)

// VerifierService is the slice of the verifier the transport needs.
type VerifierService interface {
	Verify(ctx context.Context, presentation domain.Presentation) (verifier.Result, error)
}

type VerifierHandler struct {
	verifier VerifierService
}

func NewVerifierHandler(v VerifierService) *VerifierHandler {
	return &VerifierHandler{verifier: v}
}

func (h *VerifierHandler) Register(r chi.Router) {
	r.Post("/presentations/verify", h.handleVerify)
}

type verifyResponse struct {
	Valid bool `json:"valid"`
	verifier.Result
}

func (h *VerifierHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var presentation domain.Presentation
	if err := decodeBody(r, &presentation); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.verifier.Verify(r.Context(), presentation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, Result: result})
}
