package promo

import (
	"context"
	"time"

	"github.com/CopperGroup/bytecraft/internal/models"
)

type Repository interface {
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	// RedeemPromoCode must decrement atomically and never below zero.
	RedeemPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	CreatePromoCode(ctx context.Context, code, ownerEmail string, discountPercent int, validUntil time.Time, reusabilityTimes int) (*models.PromoCode, error)
}

type Mailer interface {
	SendThankYouForReview(ctx context.Context, to, name, productName string, code *models.PromoCode) error
	SendWelcome(ctx context.Context, to string, code *models.PromoCode) error
}
