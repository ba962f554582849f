package checkout

import "time"

const (
	// CodeTTLSeconds is the verification window communicated to the buyer.
	// The backend enforces actual expiry; the client never invalidates locally.
	CodeTTLSeconds = 300

	// ResendAfterSeconds gates how soon a new code may be requested.
	ResendAfterSeconds = 60

	// DefaultReferralDiscount applies when the referral endpoint validates a
	// code without stating an amount.
	DefaultReferralDiscount = 30
)

type BuyerInfo struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// VerificationSession tracks one issued code. The code itself never lives
// here; only the buyer types it back in.
type VerificationSession struct {
	Email         string    `json:"email"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpirySeconds int       `json:"expiry_seconds"`
	Consumed      bool      `json:"consumed"`
}

func (v *VerificationSession) Elapsed(now time.Time) int {
	return int(now.Sub(v.IssuedAt).Seconds())
}

func (v *VerificationSession) Remaining(now time.Time) int {
	r := v.ExpirySeconds - v.Elapsed(now)
	if r < 0 {
		return 0
	}
	return r
}

func (v *VerificationSession) ResendAllowed(now time.Time) bool {
	return v.Elapsed(now) >= ResendAfterSeconds
}

type DiscountType string

const (
	DiscountTypeReferral DiscountType = "referral"
	DiscountTypeCoupon   DiscountType = "discount"
)

// DiscountApplication is the single active discount on a session. Applying a
// new code replaces it wholesale; there is no stacking.
type DiscountApplication struct {
	Type    DiscountType `json:"type"`
	Code    string       `json:"code"`
	Amount  int          `json:"discount_amount"`
	Percent float64      `json:"discount_percent,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Session is the persisted checkout state. Seq increases on every operation
// that supersedes in-flight work (code issue, resend, going back), so late
// responses for an older sequence can be discarded.
type Session struct {
	ID            string               `json:"id"`
	ProductID     string               `json:"product_id"`
	Stage         Stage                `json:"stage"`
	Buyer         BuyerInfo            `json:"buyer"`
	Authenticated bool                 `json:"authenticated"`
	Verification  *VerificationSession `json:"verification,omitempty"`
	VerifiedEmail string               `json:"verified_email,omitempty"`
	VerifiedCode  string               `json:"verified_code,omitempty"`
	Discount      *DiscountApplication `json:"discount,omitempty"`
	Submitted     bool                 `json:"submitted"`
	Seq           uint64               `json:"seq"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// verified reports whether the current buyer email went through a consumed
// verification session. Changing the email invalidates prior verification.
func (s *Session) verified() bool {
	return s.Verification != nil && s.Verification.Consumed &&
		s.VerifiedEmail != "" && s.VerifiedEmail == s.Buyer.Email
}

func (s *Session) clone() *Session {
	c := *s
	if s.Verification != nil {
		v := *s.Verification
		c.Verification = &v
	}
	if s.Discount != nil {
		d := *s.Discount
		c.Discount = &d
	}
	return &c
}
