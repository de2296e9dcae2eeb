package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/models"
)

const promoColumns = `id, code, owner_email, discount_percent, valid_until, reusability_times, created_at`

func scanPromoCode(row interface{ Scan(...any) error }) (*models.PromoCode, error) {
	p := &models.PromoCode{}
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.OwnerEmail,
		&p.DiscountPercent,
		&p.ValidUntil,
		&p.ReusabilityTimes,
		&p.CreatedAt,
	)
	return p, err
}

// CreatePromoCode inserts a new code. A duplicate code surfaces as a unique
// violation the caller can detect with database.IsUniqueViolation.
func CreatePromoCode(ctx context.Context, db DBTX, code, ownerEmail string, discountPercent int, validUntil time.Time, reusabilityTimes int) (*models.PromoCode, error) {
	query := `
		INSERT INTO promo_codes (code, owner_email, discount_percent, valid_until, reusability_times, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + promoColumns

	p, err := scanPromoCode(db.QueryRowContext(ctx, query,
		code, ownerEmail, discountPercent, validUntil.Format(time.DateOnly), reusabilityTimes))
	if err != nil {
		return nil, fmt.Errorf("create promo code: %w", err)
	}

	return p, nil
}

func GetPromoCode(ctx context.Context, db DBTX, code string) (*models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`

	p, err := scanPromoCode(db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrPromoNotFound
		}
		return nil, fmt.Errorf("get promo code: %w", err)
	}

	return p, nil
}

// RedeemPromoCode takes one use off the code. The decrement and its guards are
// a single statement, so concurrent redemptions of the last use cannot both
// succeed and the counter never drops below zero. The returned code carries
// the remaining uses.
func RedeemPromoCode(ctx context.Context, db DBTX, code string) (*models.PromoCode, error) {
	query := `
		UPDATE promo_codes
		SET reusability_times = reusability_times - 1
		WHERE code = $1
		  AND reusability_times > 0
		  AND valid_until >= CURRENT_DATE
		RETURNING ` + promoColumns

	p, err := scanPromoCode(db.QueryRowContext(ctx, query, code))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("redeem promo code: %w", err)
	}

	var expired bool
	var remaining int
	err = db.QueryRowContext(ctx,
		`SELECT valid_until < CURRENT_DATE, reusability_times
		 FROM promo_codes WHERE code = $1`,
		code).Scan(&expired, &remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrPromoNotFound
		}
		return nil, fmt.Errorf("classify promo code: %w", err)
	}

	if expired {
		return nil, database.ErrPromoExpired
	}
	return nil, database.ErrPromoExhausted
}
