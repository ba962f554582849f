package checkout

import "errors"

var (
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrUnknownProduct  = errors.New("unknown product")

	// Client-side validation failures. Resolved locally, never sent upstream.
	ErrValidation        = errors.New("invalid buyer details")
	ErrInvalidCodeFormat = errors.New("verification code must be 6 digits")

	ErrInvalidTransition = errors.New("operation not allowed in current stage")
	ErrResendTooSoon     = errors.New("resend not available yet")
	ErrNotVerified       = errors.New("email not verified")
	ErrAlreadySubmitted  = errors.New("order already submitted")

	// ErrOperationInFlight guards against duplicate submissions while a
	// backend call for the same session is pending.
	ErrOperationInFlight = errors.New("another operation is in progress")

	// ErrSuperseded marks a response that arrived for an older session
	// sequence and was discarded.
	ErrSuperseded = errors.New("session state changed, result discarded")

	// ErrInvalidDiscountCode is the single outcome for a code that matches
	// neither the referral nor the coupon namespace.
	ErrInvalidDiscountCode = errors.New("invalid or expired code")

	ErrBackendUnavailable = errors.New("connection problem")
)

// BackendError carries a server-reported business failure. Detail is surfaced
// to the buyer verbatim.
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string { return e.Detail }
