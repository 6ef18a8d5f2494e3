package client

import (
	"errors"
	"fmt"
)

// Sentinel errors of the client. Every failure returned by this package
// either is one of them (checked with errors.Is) or a *RequestFailedError
// (checked with errors.As).
var (
	// ErrNetworkUnavailable means no HTTP response reached the client.
	ErrNetworkUnavailable = errors.New("serveur injoignable, vérifiez votre connexion")

	// ErrSessionExpired is returned for every 401 response. The token
	// store has already been cleared when the caller sees it.
	ErrSessionExpired = errors.New("session expirée, veuillez vous reconnecter")

	// ErrAuthenticationRejected means the login request reached the
	// backend but the credentials were refused.
	ErrAuthenticationRejected = errors.New("identifiants refusés")

	// ErrInvalidInput is a local validation failure; nothing was sent.
	ErrInvalidInput = errors.New("saisie invalide")

	// ErrResponseTooLarge means a successful answer exceeded the read
	// limit and was discarded.
	ErrResponseTooLarge = errors.New("réponse du serveur trop volumineuse")
)

// RequestFailedError is a non-2xx, non-401 answer from the backend.
type RequestFailedError struct {
	Status  int
	Message string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("requête échouée (HTTP %d): %s", e.Status, e.Message)
}

// Kind classifies an error for display.
type Kind int

const (
	KindNone Kind = iota
	KindNetworkUnavailable
	KindRequestFailed
	KindSessionExpired
	KindAuthenticationRejected
	KindInvalidInput
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindRequestFailed:
		return "request_failed"
	case KindSessionExpired:
		return "session_expired"
	case KindAuthenticationRejected:
		return "authentication_rejected"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// KindOf maps err onto the error taxonomy. A nil error is KindNone.
func KindOf(err error) Kind {
	var failed *RequestFailedError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	case errors.Is(err, ErrAuthenticationRejected):
		return KindAuthenticationRejected
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNetworkUnavailable):
		return KindNetworkUnavailable
	case errors.Is(err, ErrResponseTooLarge), errors.As(err, &failed):
		return KindRequestFailed
	default:
		return KindUnknown
	}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
