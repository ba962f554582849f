package checkout

import (
	"encoding/json"
	"time"
)

const TopicCheckoutFunnel = "checkout.funnel"

const (
	EventCheckoutStarted      = "CheckoutStarted"
	EventVerificationCodeSent = "VerificationCodeSent"
	EventEmailVerified        = "EmailVerified"
	EventDiscountApplied      = "DiscountApplied"
	EventDiscountRemoved      = "DiscountRemoved"
	EventOrderSubmitted       = "OrderSubmitted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // session id
	Payload       json.RawMessage `json:"payload"`
}

type CheckoutStartedPayload struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
	Recovered bool   `json:"recovered"`
}

type VerificationCodeSentPayload struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
	Resend    bool   `json:"resend"`
}

type EmailVerifiedPayload struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
}

type DiscountAppliedPayload struct {
	SessionID string       `json:"session_id"`
	Type      DiscountType `json:"type"`
	Code      string       `json:"code"`
	Amount    int          `json:"discount_amount"`
}

type DiscountRemovedPayload struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

type OrderSubmittedPayload struct {
	SessionID  string `json:"session_id"`
	ProductID  string `json:"product_id"`
	FinalPrice int    `json:"final_price"`
	Discounted bool   `json:"discounted"`
}

// Partition key = session id so one funnel's events stay ordered.
func PartitionKey(sessionID string) []byte { return []byte(sessionID) }

// EventSink is the funnel event publisher. Publishing is fire-and-forget:
// a nil or failing sink never affects a checkout operation.
type EventSink interface {
	Publish(key, value []byte)
}
