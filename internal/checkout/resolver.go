package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Resolver turns a raw code into a DiscountApplication. Resolution order is a
// business rule: referral first, then coupon, first match wins. The two
// lookups are never exposed separately to the buyer.
type Resolver struct {
	backend Backend
	log     *slog.Logger
}

func NewResolver(backend Backend, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{backend: backend, log: log}
}

// Resolve validates code against the referral namespace, then the coupon
// namespace. basePrice is needed to convert percent-only coupons into an
// absolute amount so that FinalPrice stays pure.
func (r *Resolver) Resolve(ctx context.Context, code string, basePrice int) (*DiscountApplication, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInvalidDiscountCode
	}

	transport := false

	ref, err := r.backend.ValidateReferral(ctx, code)
	switch {
	case err == nil && ref.Valid:
		amount := int(math.Round(ref.DiscountAmount))
		if amount == 0 {
			amount = DefaultReferralDiscount
		}
		return &DiscountApplication{
			Type:    DiscountTypeReferral,
			Code:    code,
			Amount:  amount,
			Message: ref.Message,
		}, nil
	case err != nil && !isBusinessError(err):
		transport = true
		r.log.Warn("referral validation unreachable", "code", code, "err", err)
	}

	cpn, err := r.backend.ValidateDiscount(ctx, code)
	switch {
	case err == nil && cpn.Valid:
		amount := int(math.Round(cpn.DiscountAmount))
		if amount == 0 && cpn.DiscountPercent > 0 {
			amount = int(math.Round(float64(basePrice) * cpn.DiscountPercent / 100))
		}
		return &DiscountApplication{
			Type:    DiscountTypeCoupon,
			Code:    code,
			Amount:  amount,
			Percent: cpn.DiscountPercent,
			Message: cpn.Message,
		}, nil
	case err != nil && !isBusinessError(err):
		transport = true
		r.log.Warn("discount validation unreachable", "code", code, "err", err)
	}

	if transport {
		return nil, fmt.Errorf("%w: discount lookup failed", ErrBackendUnavailable)
	}
	return nil, ErrInvalidDiscountCode
}

func isBusinessError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
