package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/videomaster/checkout-service/internal/catalog"
)

var (
	emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codeRx  = regexp.MustCompile(`^[0-9]{6}$`)
)

// ProductSource is the read-only catalog the machine prices against.
type ProductSource interface {
	Get(ctx context.Context, id string) (*catalog.Product, error)
}

type MachineConfig struct {
	Store    Store
	Backend  Backend
	Products ProductSource
	Events   EventSink // optional
	Logger   *slog.Logger
	Service  string
	Now      func() time.Time
}

// Machine orchestrates the checkout stages. Every mutating operation holds a
// per-session in-flight lock for its whole duration, so duplicate submits of
// the same button are rejected instead of queued, and re-checks the session
// sequence after each backend call to drop stale continuations.
type Machine struct {
	store    Store
	backend  Backend
	products ProductSource
	resolver *Resolver
	recovery *RecoveryLoader
	events   EventSink
	log      *slog.Logger
	service  string
	now      func() time.Time

	mu   sync.Mutex
	busy map[string]bool
}

func NewMachine(cfg MachineConfig) *Machine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	service := cfg.Service
	if service == "" {
		service = "checkout"
	}
	return &Machine{
		store:    cfg.Store,
		backend:  cfg.Backend,
		products: cfg.Products,
		resolver: NewResolver(cfg.Backend, log),
		recovery: NewRecoveryLoader(cfg.Backend, log),
		events:   cfg.Events,
		log:      log,
		service:  service,
		now:      now,
		busy:     make(map[string]bool),
	}
}

type SessionParams struct {
	ProductID     string
	Name          string
	Surname       string
	Email         string
	ReferralCode  string
	DiscountCode  string
	RecoveryToken string
}

// NewSession creates a session at the information stage. Profile fields in
// params win over recovery data; codes from the navigation context (recovered,
// then referral, then discount parameter) are tried until one validates, and
// failures here are silent because no user action triggered them.
func (m *Machine) NewSession(ctx context.Context, p SessionParams) (*Session, error) {
	product, err := m.products.Get(ctx, p.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, ErrUnknownProduct
		}
		return nil, err
	}

	now := m.now()
	sess := &Session{
		ID:            uuid.NewString(),
		ProductID:     product.ID,
		Stage:         StageInformation,
		Buyer:         BuyerInfo{Name: p.Name, Surname: p.Surname, Email: p.Email},
		Authenticated: p.Email != "",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	recovered := false
	var recoveredCode string
	if p.RecoveryToken != "" {
		recoveredCode = m.recovery.Load(ctx, p.RecoveryToken, &sess.Buyer)
		recovered = recoveredCode != "" || sess.Buyer.Email != p.Email ||
			sess.Buyer.Name != p.Name || sess.Buyer.Surname != p.Surname
	}

	for _, code := range []string{recoveredCode, p.ReferralCode, p.DiscountCode} {
		if code == "" {
			continue
		}
		app, err := m.resolver.Resolve(ctx, code, product.BasePrice)
		if err != nil {
			m.log.Debug("navigation discount code rejected", "code", code, "err", err)
			continue
		}
		sess.Discount = app
		break
	}

	if err := m.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(EventCheckoutStarted, sess.ID, CheckoutStartedPayload{
		SessionID: sess.ID, ProductID: sess.ProductID, Recovered: recovered,
	})
	return sess, nil
}

// EnterInformation validates the buyer, requests a verification code and moves
// to the verifying stage with a fresh 300s verification session.
func (m *Machine) EnterInformation(ctx context.Context, id string, b BuyerInfo) (*Session, error) {
	if err := m.begin(id); err != nil {
		return nil, err
	}
	defer m.end(id)

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Stage != StageInformation {
		return nil, ErrInvalidTransition
	}
	if err := validateBuyer(b); err != nil {
		return nil, err
	}

	seq := sess.Seq
	if err := m.backend.SendVerificationCode(ctx, b.Email, b.Name, b.Surname); err != nil {
		return nil, asCheckoutErr(err)
	}
	sess, err = m.reloadCurrent(ctx, id, seq)
	if err != nil {
		return nil, err
	}

	sess.Buyer = b
	sess.Verification = &VerificationSession{
		Email:         b.Email,
		IssuedAt:      m.now(),
		ExpirySeconds: CodeTTLSeconds,
	}
	sess.VerifiedEmail = ""
	sess.VerifiedCode = ""
	sess.Seq++
	if err := m.transition(sess, StageVerifying); err != nil {
		return nil, err
	}
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(EventVerificationCodeSent, sess.ID, VerificationCodeSentPayload{
		SessionID: sess.ID, Email: b.Email,
	})
	return sess, nil
}

// SubmitCode checks the 6-digit code with the backend and, on success, freezes
// the verification session and moves to the payment stage.
func (m *Machine) SubmitCode(ctx context.Context, id, code string) (*Session, error) {
	if err := m.begin(id); err != nil {
		return nil, err
	}
	defer m.end(id)

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Stage != StageVerifying || sess.Verification == nil {
		return nil, ErrInvalidTransition
	}
	if !codeRx.MatchString(code) {
		return nil, ErrInvalidCodeFormat
	}

	seq := sess.Seq
	if err := m.backend.VerifyCode(ctx, sess.Verification.Email, code); err != nil {
		return nil, asCheckoutErr(err)
	}
	sess, err = m.reloadCurrent(ctx, id, seq)
	if err != nil {
		return nil, err
	}

	sess.Verification.Consumed = true
	sess.VerifiedEmail = sess.Verification.Email
	sess.VerifiedCode = code
	if err := m.transition(sess, StagePayment); err != nil {
		return nil, err
	}
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(EventEmailVerified, sess.ID, EmailVerifiedPayload{
		SessionID: sess.ID, Email: sess.VerifiedEmail,
	})
	return sess, nil
}

// ResendCode re-issues the verification session once at least 60 seconds have
// elapsed, resetting the countdown to the full window.
func (m *Machine) ResendCode(ctx context.Context, id string) (*Session, error) {
	if err := m.begin(id); err != nil {
		return nil, err
	}
	defer m.end(id)

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Stage != StageVerifying || sess.Verification == nil {
		return nil, ErrInvalidTransition
	}
	if !sess.Verification.ResendAllowed(m.now()) {
		return nil, ErrResendTooSoon
	}

	seq := sess.Seq
	b := sess.Buyer
	if err := m.backend.SendVerificationCode(ctx, b.Email, b.Name, b.Surname); err != nil {
		return nil, asCheckoutErr(err)
	}
	sess, err = m.reloadCurrent(ctx, id, seq)
	if err != nil {
		return nil, err
	}

	sess.Verification = &VerificationSession{
		Email:         b.Email,
		IssuedAt:      m.now(),
		ExpirySeconds: CodeTTLSeconds,
	}
	sess.Seq++
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(EventVerificationCodeSent, sess.ID, VerificationCodeSentPayload{
		SessionID: sess.ID, Email: b.Email, Resend: true,
	})
	return sess, nil
}

// Back returns from verifying to information, discarding the verification
// session and superseding any in-flight verification result.
func (m *Machine) Back(ctx context.Context, id string) (*Session, error) {
	if err := m.begin(id); err != nil {
		return nil, err
	}
	defer m.end(id)

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Stage != StageVerifying {
		return nil, ErrInvalidTransition
	}
	sess.Verification = nil
	sess.VerifiedEmail = ""
	sess.VerifiedCode = ""
	sess.Seq++
	if err := m.transition(sess, StageInformation); err != nil {
		return nil, err
	}
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ApplyCode resolves and applies a discount code, replacing any active one
// atomically. A failed resolution leaves an already-applied discount alone.
func (m *Machine) ApplyCode(ctx context.Context, id, code string) (*Session, error) {
	if err := m.begin(id); err != nil {
		return nil, err
	}
	defer m.end(id)

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Submitted {
		return nil, ErrAlreadySubmitted
	}
	product, err := m.products.Get(ctx, sess.ProductID)
	if err != nil {
		return nil, err
	}

	app, err := m.resolver.Resolve(ctx, code, product.BasePrice)
	if err != nil {
		return nil, err
	}
	sess.Discount = app
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(EventDiscountApplied, sess.ID, DiscountAppliedPayload{
		SessionID: sess.ID, Type: app.Type, Code: app.Code, Amount: app.Amount,
	})
	return sess, nil
}

// RemoveCode clears the active discount. Removal is an explicit user action,
// distinct from a failed validation.
func (m *Machine) RemoveCode(ctx context.Context, id string) (*Session, error) {
	if err := m.begin(id); err != nil {
		return nil, err
	}
	defer m.end(id)

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Discount == nil {
		return sess, nil
	}
	code := sess.Discount.Code
	sess.Discount = nil
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(EventDiscountRemoved, sess.ID, DiscountRemovedPayload{
		SessionID: sess.ID, Code: code,
	})
	return sess, nil
}

// SubmitPayment assembles the order and performs the backend handoff. It is
// one-shot: once an order was created for the session, further submissions are
// refused; a failed creation releases the guard so the buyer can retry.
func (m *Machine) SubmitPayment(ctx context.Context, id string) (*OrderResult, error) {
	if err := m.begin(id); err != nil {
		return nil, err
	}
	defer m.end(id)

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Stage != StagePayment {
		return nil, ErrInvalidTransition
	}
	if !sess.verified() {
		return nil, ErrNotVerified
	}
	if sess.Submitted {
		return nil, ErrAlreadySubmitted
	}
	product, err := m.products.Get(ctx, sess.ProductID)
	if err != nil {
		return nil, err
	}

	ok, err := m.store.MarkSubmitted(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadySubmitted
	}

	req := OrderRequest{
		BuyerName:        sess.Buyer.Name,
		BuyerSurname:     sess.Buyer.Surname,
		BuyerEmail:       sess.Buyer.Email,
		VerificationCode: sess.VerifiedCode,
		ProductID:        sess.ProductID,
	}
	if d := sess.Discount; d != nil {
		req.DiscountCode = d.Code
		req.DiscountType = string(d.Type)
		req.DiscountAmount = d.Amount
	}

	res, err := m.backend.CreateOrder(ctx, req)
	if err != nil {
		if clearErr := m.store.ClearSubmitted(ctx, sess.ID); clearErr != nil {
			m.log.Error("clearing submit guard failed", "session_id", sess.ID, "err", clearErr)
		}
		return nil, asCheckoutErr(err)
	}

	sess.Submitted = true
	if err := m.save(ctx, sess); err != nil {
		m.log.Error("persisting submitted session failed", "session_id", sess.ID, "err", err)
	}
	m.publish(EventOrderSubmitted, sess.ID, OrderSubmittedPayload{
		SessionID:  sess.ID,
		ProductID:  sess.ProductID,
		FinalPrice: FinalPrice(product.BasePrice, sess.Discount),
		Discounted: sess.Discount != nil,
	})
	return &res, nil
}

// View is the read model served to the front.
type View struct {
	Session       *Session
	Product       *catalog.Product
	FinalPrice    int
	CodeRemaining int
	ResendIn      int
}

func (m *Machine) View(ctx context.Context, id string) (*View, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	product, err := m.products.Get(ctx, sess.ProductID)
	if err != nil {
		return nil, err
	}
	v := &View{
		Session:    sess,
		Product:    product,
		FinalPrice: FinalPrice(product.BasePrice, sess.Discount),
	}
	if vs := sess.Verification; vs != nil && !vs.Consumed {
		now := m.now()
		v.CodeRemaining = vs.Remaining(now)
		if wait := ResendAfterSeconds - vs.Elapsed(now); wait > 0 {
			v.ResendIn = wait
		}
	}
	return v, nil
}

func (m *Machine) transition(s *Session, to Stage) error {
	if !CanTransition(s.Stage, to) {
		return ErrInvalidTransition
	}
	s.Stage = to
	return nil
}

func (m *Machine) save(ctx context.Context, s *Session) error {
	s.UpdatedAt = m.now()
	return m.store.Put(ctx, s)
}

// reloadCurrent re-reads the session after a backend call and discards the
// continuation if the sequence moved on (resend, back, a competing instance).
func (m *Machine) reloadCurrent(ctx context.Context, id string, seq uint64) (*Session, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Seq != seq {
		return nil, ErrSuperseded
	}
	return sess, nil
}

func (m *Machine) begin(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy[id] {
		return ErrOperationInFlight
	}
	m.busy[id] = true
	return nil
}

func (m *Machine) end(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, id)
}

func (m *Machine) publish(eventType, sessionID string, payload any) {
	if m.events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		m.log.Error("marshal event payload", "event_type", eventType, "err", err)
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    m.now().UTC(),
		Producer:      m.service,
		CorrelationID: sessionID,
		Payload:       body,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		m.log.Error("marshal event envelope", "event_type", eventType, "err", err)
		return
	}
	m.events.Publish(PartitionKey(sessionID), value)
}

func validateBuyer(b BuyerInfo) error {
	switch {
	case strings.TrimSpace(b.Name) == "":
		return fmt.Errorf("%w: name required", ErrValidation)
	case strings.TrimSpace(b.Surname) == "":
		return fmt.Errorf("%w: surname required", ErrValidation)
	case strings.TrimSpace(b.Email) == "":
		return fmt.Errorf("%w: email required", ErrValidation)
	case !emailRx.MatchString(b.Email):
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	return nil
}

// asCheckoutErr keeps server-reported business errors verbatim and maps
// everything else to the generic connection failure.
func asCheckoutErr(err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
