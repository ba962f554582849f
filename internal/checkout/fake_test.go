package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/videomaster/checkout-service/internal/catalog"
)

// fakeBackend mimics the course backend the way the real endpoints behave:
// the referral endpoint answers 200 with valid:false for unknown codes, the
// discount endpoint answers 404 with a detail message.
type fakeBackend struct {
	mu sync.Mutex

	referrals map[string]CodeValidation
	coupons   map[string]CodeValidation
	recovered map[string]RecoveredCart

	sendErr     error
	verifyErr   error
	orderErr    error
	referralErr error
	couponErr   error

	orderResult OrderResult

	sendCalls     int
	verifyCalls   int
	orderCalls    int
	lastOrder     OrderRequest
	lastSendEmail string

	onSend func() // runs before SendVerificationCode returns
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		referrals: map[string]CodeValidation{},
		coupons:   map[string]CodeValidation{},
		recovered: map[string]RecoveredCart{},
		orderResult: OrderResult{
			PaymentURL: "https://gateway.example/pay",
			FormFields: map[string]string{"a": "1", "b": "2"},
		},
	}
}

func (f *fakeBackend) SendVerificationCode(_ context.Context, email, _, _ string) error {
	f.mu.Lock()
	f.sendCalls++
	f.lastSendEmail = email
	hook := f.onSend
	err := f.sendErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeBackend) VerifyCode(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	return f.verifyErr
}

func (f *fakeBackend) ValidateReferral(_ context.Context, code string) (CodeValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.referralErr != nil {
		return CodeValidation{}, f.referralErr
	}
	if v, ok := f.referrals[code]; ok {
		return v, nil
	}
	return CodeValidation{Valid: false, Message: "Geçersiz referans kodu"}, nil
}

func (f *fakeBackend) ValidateDiscount(_ context.Context, code string) (CodeValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.couponErr != nil {
		return CodeValidation{}, f.couponErr
	}
	if v, ok := f.coupons[code]; ok {
		return v, nil
	}
	return CodeValidation{}, &BackendError{Status: 404, Detail: "Geçersiz indirim kodu"}
}

func (f *fakeBackend) RecoverCart(_ context.Context, token string) (RecoveredCart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.recovered[token]; ok {
		return rec, nil
	}
	return RecoveredCart{}, &BackendError{Status: 404, Detail: "not found"}
}

func (f *fakeBackend) CreateOrder(_ context.Context, req OrderRequest) (OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls++
	f.lastOrder = req
	if f.orderErr != nil {
		return OrderResult{}, f.orderErr
	}
	return f.orderResult, nil
}

type fakeProducts struct {
	products map[string]*catalog.Product
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{products: map[string]*catalog.Product{
		"ustalik-sinifi": {
			ID:            "ustalik-sinifi",
			Name:          "Video Editörlüğü Ustalık Sınıfı",
			BasePrice:     199,
			OriginalPrice: 5000,
		},
	}}
}

func (f *fakeProducts) Get(_ context.Context, id string) (*catalog.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSink struct {
	mu     sync.Mutex
	events [][]byte
}

func (s *fakeSink) Publish(_, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, value)
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newTestMachine(backend *fakeBackend, clock *fakeClock) *Machine {
	return NewMachine(MachineConfig{
		Store:    NewMemoryStore(),
		Backend:  backend,
		Products: newFakeProducts(),
		Now:      clock.Now,
	})
}
