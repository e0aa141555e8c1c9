package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-promo/internal/engine"
)

// ErrNotFound indicates the requested coupon does not exist.
var ErrNotFound = errors.New("coupon not found")

// ErrDuplicateCode indicates a coupon with the same code already exists.
var ErrDuplicateCode = errors.New("coupon code already exists")

// ErrUsageExhausted indicates the usage counter could not be advanced
// because the limit was already reached.
var ErrUsageExhausted = errors.New("coupon usage limit reached")

// Coupons is the pgx-backed coupon repository.
type Coupons struct {
	Pool *pgxpool.Pool
}

// NewCoupons constructs the coupon repository.
func NewCoupons(pool *pgxpool.Pool) *Coupons {
	return &Coupons{Pool: pool}
}

const couponColumns = `id, code, type, discount_kind, discount_value, min_cart_value,
	max_discount, products, buy_items, get_items, repetition_limit,
	expires_at, active, usage_limit, used_count`

// GetByCode loads a single coupon by its unique code.
func (r *Coupons) GetByCode(ctx context.Context, code string) (engine.Coupon, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	coupon, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Coupon{}, ErrNotFound
		}
		return engine.Coupon{}, err
	}
	return coupon, nil
}

// List returns a page of coupons ordered by creation time plus the total
// count.
func (r *Coupons) List(ctx context.Context, limit, offset int32) ([]engine.Coupon, int64, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	coupons, err := collectCoupons(rows)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}

// ListRedeemable returns every coupon whose own predicate (active, not
// expired, usage remaining) holds at the provided instant, in creation
// order so ranking ties stay deterministic.
func (r *Coupons) ListRedeemable(ctx context.Context, now time.Time) ([]engine.Coupon, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons
		 WHERE active
		   AND (expires_at IS NULL OR expires_at >= $1)
		   AND (usage_limit IS NULL OR used_count < usage_limit)
		 ORDER BY created_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCoupons(rows)
}

// Create inserts a new coupon and returns the stored record.
func (r *Coupons) Create(ctx context.Context, c engine.Coupon) (engine.Coupon, error) {
	buyItems, getItems, err := marshalRequirements(c)
	if err != nil {
		return engine.Coupon{}, err
	}
	row := r.Pool.QueryRow(ctx,
		`INSERT INTO coupons (code, type, discount_kind, discount_value, min_cart_value,
			max_discount, products, buy_items, get_items, repetition_limit,
			expires_at, active, usage_limit)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+couponColumns,
		c.Code, string(c.Type), string(c.DiscountKind), c.DiscountValue, c.MinCartValue,
		nullableInt8(c.MaxDiscount), c.Products, buyItems, getItems, c.RepetitionLimit,
		nullableTime(c.ExpiresAt), c.Active, nullableInt4(c.UsageLimit))
	created, err := scanCoupon(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return engine.Coupon{}, ErrDuplicateCode
		}
		return engine.Coupon{}, err
	}
	return created, nil
}

// Update replaces a coupon's rule fields by code, leaving the usage counter
// untouched.
func (r *Coupons) Update(ctx context.Context, c engine.Coupon) (engine.Coupon, error) {
	buyItems, getItems, err := marshalRequirements(c)
	if err != nil {
		return engine.Coupon{}, err
	}
	row := r.Pool.QueryRow(ctx,
		`UPDATE coupons SET type = $2, discount_kind = $3, discount_value = $4,
			min_cart_value = $5, max_discount = $6, products = $7, buy_items = $8,
			get_items = $9, repetition_limit = $10, expires_at = $11, active = $12,
			usage_limit = $13, updated_at = now()
		 WHERE code = $1
		 RETURNING `+couponColumns,
		c.Code, string(c.Type), string(c.DiscountKind), c.DiscountValue,
		c.MinCartValue, nullableInt8(c.MaxDiscount), c.Products, buyItems,
		getItems, c.RepetitionLimit, nullableTime(c.ExpiresAt), c.Active,
		nullableInt4(c.UsageLimit))
	updated, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Coupon{}, ErrNotFound
		}
		return engine.Coupon{}, err
	}
	return updated, nil
}

// Delete removes a coupon by code.
func (r *Coupons) Delete(ctx context.Context, code string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM coupons WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeUsage advances the usage counter with a conditional increment so a
// concurrent racer can never push it past the limit. Zero affected rows
// means either the coupon vanished or the quota was already exhausted.
func (r *Coupons) ConsumeUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		 WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
		pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageExhausted
	}
	return nil
}

func collectCoupons(rows pgx.Rows) ([]engine.Coupon, error) {
	var out []engine.Coupon
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, coupon)
	}
	return out, rows.Err()
}

func scanCoupon(row pgx.Row) (engine.Coupon, error) {
	var (
		c           engine.Coupon
		id          pgtype.UUID
		typ, kind   string
		maxDiscount pgtype.Int8
		buyItems    []byte
		getItems    []byte
		expiresAt   pgtype.Timestamptz
		usageLimit  pgtype.Int4
	)
	err := row.Scan(&id, &c.Code, &typ, &kind, &c.DiscountValue, &c.MinCartValue,
		&maxDiscount, &c.Products, &buyItems, &getItems, &c.RepetitionLimit,
		&expiresAt, &c.Active, &usageLimit, &c.UsedCount)
	if err != nil {
		return engine.Coupon{}, err
	}
	if id.Valid {
		c.ID = uuid.UUID(id.Bytes)
	}
	c.Type = engine.Type(typ)
	c.DiscountKind = engine.DiscountKind(kind)
	if maxDiscount.Valid {
		v := maxDiscount.Int64
		c.MaxDiscount = &v
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	if usageLimit.Valid {
		v := usageLimit.Int32
		c.UsageLimit = &v
	}
	if len(buyItems) > 0 {
		if err := json.Unmarshal(buyItems, &c.BuyItems); err != nil {
			return engine.Coupon{}, fmt.Errorf("decode buy items: %w", err)
		}
	}
	if len(getItems) > 0 {
		if err := json.Unmarshal(getItems, &c.GetItems); err != nil {
			return engine.Coupon{}, fmt.Errorf("decode get items: %w", err)
		}
	}
	return c, nil
}

func marshalRequirements(c engine.Coupon) ([]byte, []byte, error) {
	var buyItems, getItems []byte
	var err error
	if len(c.BuyItems) > 0 {
		if buyItems, err = json.Marshal(c.BuyItems); err != nil {
			return nil, nil, fmt.Errorf("encode buy items: %w", err)
		}
	}
	if len(c.GetItems) > 0 {
		if getItems, err = json.Marshal(c.GetItems); err != nil {
			return nil, nil, fmt.Errorf("encode get items: %w", err)
		}
	}
	return buyItems, getItems, nil
}

func nullableInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func nullableInt4(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}

func nullableTime(v *time.Time) pgtype.Timestamptz {
	if v == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *v, Valid: true}
}
