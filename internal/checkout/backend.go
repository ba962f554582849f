package checkout

import "context"

// CodeValidation mirrors the validate-referral / validate-discount responses.
type CodeValidation struct {
	Valid           bool
	DiscountAmount  float64
	DiscountPercent float64
	Message         string
}

// RecoveredCart is the payload behind a recovery token.
type RecoveredCart struct {
	Name         string
	Surname      string
	Email        string
	DiscountCode string
}

type OrderRequest struct {
	BuyerName        string
	BuyerSurname     string
	BuyerEmail       string
	VerificationCode string
	ProductID        string
	DiscountCode     string
	DiscountType     string
	DiscountAmount   int
}

// OrderResult is consumed exactly once to build the gateway redirect form.
type OrderResult struct {
	PaymentURL string
	FormFields map[string]string
}

// Backend is the course backend consumed by the state machine. Business
// refusals come back as *BackendError; anything else is a transport failure.
type Backend interface {
	SendVerificationCode(ctx context.Context, email, name, surname string) error
	VerifyCode(ctx context.Context, email, code string) error
	ValidateReferral(ctx context.Context, code string) (CodeValidation, error)
	ValidateDiscount(ctx context.Context, code string) (CodeValidation, error)
	RecoverCart(ctx context.Context, token string) (RecoveredCart, error)
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
