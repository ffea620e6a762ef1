// Package httptransport is the thin HTTP layer. Handlers delegate to the
// role services without embedding protocol logic so transport concerns stay
// isolated.
package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credrelay/internal/platform/middleware"
	derrors "credrelay/pkg/domain-errors"
)

// NewRouter wires the public endpoints of all three protocol roles behind a
// shared middleware chain.
func NewRouter(logger *slog.Logger, issuer *IssuerHandler, wallet *WalletHandler, verifier *VerifierHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	issuer.Register(r)
	wallet.Register(r)
	verifier.Register(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every endpoint returns
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	message := "internal error"
	var de *derrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	writeJSON(w, derrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}

func decodeBody(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return derrors.New(derrors.CodeInvalidInput, "invalid request body")
	}
	return nil
}
