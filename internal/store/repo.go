package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/shopspring/decimal"
)

// OrderRepo binds the order functions to a connection pool for the service
// layer.
type OrderRepo struct {
	DB *sql.DB
}

func (r OrderRepo) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	return CreateOrder(ctx, r.DB, req)
}

// GetOrder reads the order row and its items from the same snapshot.
func (r OrderRepo) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order *models.Order
	err := database.WithRetry(ctx, r.DB, database.SnapshotTxOptions(), func(tx *sql.Tx) error {
		var err error
		order, err = GetOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r OrderRepo) ListOrders(ctx context.Context, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersCursor(ctx, r.DB, cursor, limit)
}

func (r OrderRepo) SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	return SetPaymentStatus(ctx, r.DB, id, status)
}

func (r OrderRepo) SetDeliveryStatus(ctx context.Context, id int64, status models.DeliveryStatus) error {
	return SetDeliveryStatus(ctx, r.DB, id, status)
}

func (r OrderRepo) SaveInvoice(ctx context.Context, id int64, invoice *models.Invoice) error {
	return SaveInvoice(ctx, r.DB, id, invoice)
}

func (r OrderRepo) MarkEmailSent(ctx context.Context, id int64, kind models.EmailKind) (bool, error) {
	return MarkEmailSent(ctx, r.DB, id, kind)
}

type PromoRepo struct {
	DB *sql.DB
}

func (r PromoRepo) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	return GetPromoCode(ctx, r.DB, code)
}

func (r PromoRepo) RedeemPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	return RedeemPromoCode(ctx, r.DB, code)
}

func (r PromoRepo) CreatePromoCode(ctx context.Context, code, ownerEmail string, discountPercent int, validUntil time.Time, reusabilityTimes int) (*models.PromoCode, error) {
	return CreatePromoCode(ctx, r.DB, code, ownerEmail, discountPercent, validUntil, reusabilityTimes)
}

// CatalogRepo serves the account and product records behind the admin API.
type CatalogRepo struct {
	DB *sql.DB
}

func (r CatalogRepo) CreateUser(ctx context.Context, email, name, surname, phone string) (*models.User, error) {
	return CreateUser(ctx, r.DB, email, name, surname, phone)
}

func (r CatalogRepo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return GetUser(ctx, r.DB, id)
}

func (r CatalogRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return GetUserByEmail(ctx, r.DB, email)
}

func (r CatalogRepo) UpdateUser(ctx context.Context, id int64, email, name, surname, phone string) (*models.User, error) {
	return UpdateUser(ctx, r.DB, id, email, name, surname, phone)
}

func (r CatalogRepo) CreateProduct(ctx context.Context, sku, name string, price, weightKg decimal.Decimal) (*models.Product, error) {
	return CreateProduct(ctx, r.DB, sku, name, price, weightKg)
}

func (r CatalogRepo) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return GetProduct(ctx, r.DB, id)
}
