package checkout

import (
	"context"
	"log/slog"
)

// RecoveryLoader pre-fills a fresh session from an abandoned-checkout token.
// Failure is silent: the buyer just starts from an empty information stage.
type RecoveryLoader struct {
	backend Backend
	log     *slog.Logger
}

func NewRecoveryLoader(backend Backend, log *slog.Logger) *RecoveryLoader {
	if log == nil {
		log = slog.Default()
	}
	return &RecoveryLoader{backend: backend, log: log}
}

// Load merges recovered buyer data into b, never overwriting fields that are
// already set (an authenticated profile wins over recovery data). Returns the
// recovered discount code, if any, for the resolver to try.
func (l *RecoveryLoader) Load(ctx context.Context, token string, b *BuyerInfo) string {
	rec, err := l.backend.RecoverCart(ctx, token)
	if err != nil {
		l.log.Debug("cart recovery failed", "err", err)
		return ""
	}
	if b.Name == "" {
		b.Name = rec.Name
	}
	if b.Surname == "" {
		b.Surname = rec.Surname
	}
	if b.Email == "" {
		b.Email = rec.Email
	}
	return rec.DiscountCode
}
