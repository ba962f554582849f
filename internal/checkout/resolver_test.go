package checkout

import (
	"context"
	"errors"
	"testing"
)

func TestResolverReferralWinsOverCoupon(t *testing.T) {
	backend := newFakeBackend()
	backend.referrals["BOTH01"] = CodeValidation{Valid: true, DiscountAmount: 30, Message: "referans kodu geçerli"}
	backend.coupons["BOTH01"] = CodeValidation{Valid: true, DiscountAmount: 50}
	r := NewResolver(backend, nil)

	app, err := r.Resolve(context.Background(), "both01", 199)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if app.Type != DiscountTypeReferral {
		t.Errorf("Type = %s, want referral", app.Type)
	}
	if app.Code != "BOTH01" {
		t.Errorf("Code = %q, want normalized BOTH01", app.Code)
	}
	if app.Amount != 30 {
		t.Errorf("Amount = %d, want 30", app.Amount)
	}
}

func TestResolverFallsBackToCoupon(t *testing.T) {
	backend := newFakeBackend()
	backend.coupons["KUPON10"] = CodeValidation{Valid: true, DiscountAmount: 10, Message: "İndirim kodu uygulandı!"}
	r := NewResolver(backend, nil)

	app, err := r.Resolve(context.Background(), "kupon10", 199)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if app.Type != DiscountTypeCoupon {
		t.Errorf("Type = %s, want discount", app.Type)
	}
	if app.Amount != 10 {
		t.Errorf("Amount = %d, want 10", app.Amount)
	}
}

func TestResolverConvertsPercentToAmount(t *testing.T) {
	backend := newFakeBackend()
	backend.coupons["YUZDE20"] = CodeValidation{Valid: true, DiscountPercent: 20}
	r := NewResolver(backend, nil)

	app, err := r.Resolve(context.Background(), "YUZDE20", 199)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// 20% of 199, rounded
	if app.Amount != 40 {
		t.Errorf("Amount = %d, want 40", app.Amount)
	}
	if app.Percent != 20 {
		t.Errorf("Percent = %v, want 20", app.Percent)
	}
}

func TestResolverDefaultReferralAmount(t *testing.T) {
	backend := newFakeBackend()
	backend.referrals["REF001"] = CodeValidation{Valid: true}
	r := NewResolver(backend, nil)

	app, err := r.Resolve(context.Background(), "REF001", 199)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if app.Amount != DefaultReferralDiscount {
		t.Errorf("Amount = %d, want default %d", app.Amount, DefaultReferralDiscount)
	}
}

func TestResolverUnknownCodeIsSingleFailure(t *testing.T) {
	backend := newFakeBackend()
	r := NewResolver(backend, nil)

	_, err := r.Resolve(context.Background(), "ABC123", 199)
	if !errors.Is(err, ErrInvalidDiscountCode) {
		t.Errorf("Resolve() error = %v, want ErrInvalidDiscountCode", err)
	}
}

func TestResolverEmptyCode(t *testing.T) {
	r := NewResolver(newFakeBackend(), nil)
	if _, err := r.Resolve(context.Background(), "   ", 199); !errors.Is(err, ErrInvalidDiscountCode) {
		t.Errorf("Resolve() error = %v, want ErrInvalidDiscountCode", err)
	}
}

func TestResolverTransportFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.referralErr = errors.New("dial tcp: connection refused")
	backend.couponErr = errors.New("dial tcp: connection refused")
	r := NewResolver(backend, nil)

	_, err := r.Resolve(context.Background(), "ABC123", 199)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrBackendUnavailable", err)
	}
}

func TestResolverTransportOnReferralStillTriesCoupon(t *testing.T) {
	backend := newFakeBackend()
	backend.referralErr = errors.New("timeout")
	backend.coupons["KUPON10"] = CodeValidation{Valid: true, DiscountAmount: 10}
	r := NewResolver(backend, nil)

	app, err := r.Resolve(context.Background(), "KUPON10", 199)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if app.Type != DiscountTypeCoupon || app.Amount != 10 {
		t.Errorf("got %+v, want coupon amount 10", app)
	}
}
