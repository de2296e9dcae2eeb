package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidPromo = errors.New("invalid promo code parameters")

const (
	generateAttempts = 5

	reviewRewardDays    = 30
	reviewRewardUses    = 1
	reviewRewardPercent = 5

	signupRewardDays    = 30
	signupRewardUses    = 1
	signupRewardPercent = 10
)

type Quote struct {
	Code            string          `json:"code"`
	DiscountPercent int             `json:"discount_percent"`
	CartTotal       decimal.Decimal `json:"cart_total"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	RemainingUses   int             `json:"remaining_uses"`
}

type Engine struct {
	repo   Repository
	mailer Mailer
	log    *slog.Logger
	now    func() time.Time
}

func NewEngine(repo Repository, mailer Mailer, log *slog.Logger) *Engine {
	return &Engine{repo: repo, mailer: mailer, log: log, now: time.Now}
}

// Normalize is the canonical form codes are stored and looked up in.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a code against the cart without consuming a use.
func (e *Engine) Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*Quote, error) {
	code = Normalize(code)
	if code == "" {
		return nil, database.ErrPromoNotFound
	}

	p, err := e.repo.GetPromoCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if p.Expired(e.now()) {
		return nil, database.ErrPromoExpired
	}
	if p.ReusabilityTimes <= 0 {
		return nil, database.ErrPromoExhausted
	}

	total := ApplyPercent(cartTotal, p.DiscountPercent)
	return &Quote{
		Code:            p.Code,
		DiscountPercent: p.DiscountPercent,
		CartTotal:       cartTotal.Round(2),
		Discount:        cartTotal.Round(2).Sub(total),
		Total:           total,
		RemainingUses:   p.ReusabilityTimes,
	}, nil
}

// Apply consumes one use of the code.
func (e *Engine) Apply(ctx context.Context, code string) (*models.PromoCode, error) {
	p, err := e.repo.RedeemPromoCode(ctx, Normalize(code))
	if err != nil {
		return nil, err
	}
	e.log.InfoContext(ctx, "promo code redeemed", "code", p.Code, "remaining_uses", p.ReusabilityTimes)
	return p, nil
}

type GenerateParams struct {
	OwnerEmail       string
	ValidityDays     int
	ReusabilityTimes int
	DiscountPercent  int
}

func (p GenerateParams) validate() error {
	var errs []error
	if p.ValidityDays < 1 {
		errs = append(errs, fmt.Errorf("validity days must be at least 1, got %d", p.ValidityDays))
	}
	if p.ReusabilityTimes < 1 {
		errs = append(errs, fmt.Errorf("reusability times must be at least 1, got %d", p.ReusabilityTimes))
	}
	if p.DiscountPercent < 1 || p.DiscountPercent > 100 {
		errs = append(errs, fmt.Errorf("discount percent must be within 1..100, got %d", p.DiscountPercent))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPromo, err)
	}
	return nil
}

func newCode() string {
	return "BC" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Generate creates a fresh code valid through today plus ValidityDays.
func (e *Engine) Generate(ctx context.Context, params GenerateParams) (*models.PromoCode, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	validUntil := e.now().AddDate(0, 0, params.ValidityDays)

	for attempt := 1; ; attempt++ {
		p, err := e.repo.CreatePromoCode(ctx, newCode(), strings.TrimSpace(params.OwnerEmail),
			params.DiscountPercent, validUntil, params.ReusabilityTimes)
		if err == nil {
			e.log.InfoContext(ctx, "promo code generated", "code", p.Code, "discount_percent", p.DiscountPercent)
			return p, nil
		}
		if !database.IsUniqueViolation(err) || attempt >= generateAttempts {
			return nil, err
		}
	}
}

// RewardReview issues the thank-you code for a product review and mails it.
// The code is returned even when the email fails.
func (e *Engine) RewardReview(ctx context.Context, email, name, productName string) (*models.PromoCode, error) {
	p, err := e.Generate(ctx, GenerateParams{
		OwnerEmail:       email,
		ValidityDays:     reviewRewardDays,
		ReusabilityTimes: reviewRewardUses,
		DiscountPercent:  reviewRewardPercent,
	})
	if err != nil {
		return nil, err
	}

	if err := e.mailer.SendThankYouForReview(ctx, email, name, productName, p); err != nil {
		return p, fmt.Errorf("promo code %s created, thank-you email failed: %w", p.Code, err)
	}
	return p, nil
}

// RewardSignup issues the welcome code and mails it.
func (e *Engine) RewardSignup(ctx context.Context, email string) (*models.PromoCode, error) {
	p, err := e.Generate(ctx, GenerateParams{
		OwnerEmail:       email,
		ValidityDays:     signupRewardDays,
		ReusabilityTimes: signupRewardUses,
		DiscountPercent:  signupRewardPercent,
	})
	if err != nil {
		return nil, err
	}

	if err := e.mailer.SendWelcome(ctx, email, p); err != nil {
		return p, fmt.Errorf("promo code %s created, welcome email failed: %w", p.Code, err)
	}
	return p, nil
}
