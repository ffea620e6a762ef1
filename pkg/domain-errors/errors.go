// Package derrors defines the coded errors the protocol surfaces to callers.
//
// Codes are stable identifiers, not messages: transports map them to status
// codes, tests assert on them, and audit events record them. Infrastructure
// layers return pkg/platform/sentinel errors; services translate those into
// coded errors at the boundary.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	// Caller-supplied data is missing or malformed. Never retried.
	CodeInvalidInput Code = "invalid_input"

	// Cryptographic integrity failures. Always fatal to the operation.
	CodeHashMismatch            Code = "hash_mismatch"
	CodeSignatureMismatch       Code = "signature_mismatch"
	CodeIssuerSignatureMismatch Code = "issuer_signature_mismatch"
	CodeRelaySignatureMismatch  Code = "relay_signature_mismatch"
	CodeMalformedPresentation   Code = "malformed_presentation"

	// Trust-registry policy outcomes. Fatal to the operation, but expected
	// business results rather than bugs.
	CodeUntrustedIssuer Code = "untrusted_issuer"
	CodeNotIssued       Code = "not_issued"
	CodeRevoked         Code = "revoked"

	// A requested disclosure cannot be derived from the chosen credential.
	CodeUnsupportedAttribute Code = "unsupported_attribute"

	// No stored credential can satisfy the request.
	CodeNoCredential Code = "no_credential"

	// Request state-machine misuse.
	CodeNotFound        Code = "not_found"
	CodeAlreadyResolved Code = "already_resolved"

	// The registry call itself failed or did not confirm. Transient; the
	// operation performed no partial state change.
	CodeRegistry Code = "registry_error"

	CodeInternal Code = "internal"
)

// Error carries a stable code alongside a human-readable message and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, walking the wrap chain. Unknown errors
// report CodeInternal so transports never leak raw failures as 4xx.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is lets errors.Is match two coded errors by code alone.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.Code == de.Code
	}
	return false
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer returns.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeMalformedPresentation:
		return http.StatusBadRequest
	case CodeHashMismatch, CodeSignatureMismatch,
		CodeIssuerSignatureMismatch, CodeRelaySignatureMismatch:
		return http.StatusUnprocessableEntity
	case CodeUntrustedIssuer, CodeNotIssued, CodeRevoked:
		return http.StatusForbidden
	case CodeUnsupportedAttribute, CodeNoCredential:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyResolved:
		return http.StatusConflict
	case CodeRegistry:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
