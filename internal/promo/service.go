package promo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-promo/internal/cache"
	"github.com/noah-isme/backend-promo/internal/engine"
	"github.com/noah-isme/backend-promo/internal/obs"
	"github.com/noah-isme/backend-promo/internal/store"
)

// Querier captures the repository methods required by the promotion
// service. *store.Coupons satisfies it; tests provide stubs.
type Querier interface {
	GetByCode(ctx context.Context, code string) (engine.Coupon, error)
	List(ctx context.Context, limit, offset int32) ([]engine.Coupon, int64, error)
	ListRedeemable(ctx context.Context, now time.Time) ([]engine.Coupon, error)
	Create(ctx context.Context, c engine.Coupon) (engine.Coupon, error)
	Update(ctx context.Context, c engine.Coupon) (engine.Coupon, error)
	Delete(ctx context.Context, code string) error
	ConsumeUsage(ctx context.Context, id uuid.UUID) error
}

// Service evaluates, quotes and applies coupons against cart snapshots. The
// clock is injectable so evaluation stays deterministic under test; when nil
// it falls back to time.Now.
type Service struct {
	Q     Querier
	Cache *cache.Coupons
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Lookup loads a coupon by code, consulting the cache first.
func (s *Service) Lookup(ctx context.Context, code string) (engine.Coupon, error) {
	if s == nil || s.Q == nil {
		return engine.Coupon{}, errors.New("promo service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return engine.Coupon{}, store.ErrNotFound
	}
	key := cache.Key(trimmed)
	if s.Cache != nil {
		var cached engine.Coupon
		if found, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && found {
			obs.IncCouponCacheLookup("hit")
			return cached, nil
		}
		obs.IncCouponCacheLookup("miss")
	}
	coupon, err := s.Q.GetByCode(ctx, trimmed)
	if err != nil {
		return engine.Coupon{}, err
	}
	_ = s.Cache.SetJSON(ctx, key, coupon)
	return coupon, nil
}

// Invalidate drops the cached entry for a coupon code after a write.
func (s *Service) Invalidate(ctx context.Context, code string) {
	_ = s.Cache.Invalidate(ctx, cache.Key(code))
}

// Evaluate reports whether the named coupon applies to the cart.
func (s *Service) Evaluate(ctx context.Context, code string, cart engine.Cart) (engine.Evaluation, error) {
	coupon, err := s.Lookup(ctx, code)
	if err != nil {
		return engine.Evaluation{}, err
	}
	return engine.Evaluate(coupon, cart, s.now()), nil
}

// Quote computes the discount the named coupon yields for the cart without
// applying it or touching usage counters.
func (s *Service) Quote(ctx context.Context, code string, cart engine.Cart) (engine.DiscountResult, error) {
	coupon, err := s.Lookup(ctx, code)
	if err != nil {
		return engine.DiscountResult{}, err
	}
	return engine.Calculate(coupon, cart, s.now()), nil
}

// Apply folds the coupon's discount into an annotated cart copy and, on
// success, records the usage through the repository's atomic conditional
// increment. The engine itself never touches the counter; this is the
// external bookkeeping step that follows a successful application.
func (s *Service) Apply(ctx context.Context, code string, cart engine.Cart) (engine.AppliedCart, engine.DiscountResult, error) {
	coupon, err := s.Lookup(ctx, code)
	if err != nil {
		return engine.AppliedCart{}, engine.DiscountResult{}, err
	}
	applied, result, err := engine.Apply(coupon, cart, s.now())
	if err != nil {
		return engine.AppliedCart{}, result, err
	}
	if err := s.Q.ConsumeUsage(ctx, coupon.ID); err != nil {
		if errors.Is(err, store.ErrUsageExhausted) {
			return engine.AppliedCart{}, engine.DiscountResult{}, &engine.ApplicationError{Reason: "usage limit reached"}
		}
		return engine.AppliedCart{}, engine.DiscountResult{}, err
	}
	s.Invalidate(ctx, coupon.Code)
	return applied, result, nil
}

// Best ranks every currently redeemable coupon against the cart, best
// discount first. Zero-discount coupons are dropped.
func (s *Service) Best(ctx context.Context, cart engine.Cart) ([]engine.Ranked, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("promo service not configured")
	}
	now := s.now()
	coupons, err := s.Q.ListRedeemable(ctx, now)
	if err != nil {
		return nil, err
	}
	return engine.Rank(coupons, cart, now), nil
}
