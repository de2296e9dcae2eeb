package orders

import (
	"context"

	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/CopperGroup/bytecraft/internal/store"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, cursor string, limit int) (*store.CursorPage, error)
	SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error
	SetDeliveryStatus(ctx context.Context, id int64, status models.DeliveryStatus) error
	// MarkEmailSent reports whether this call set the flag.
	MarkEmailSent(ctx context.Context, id int64, kind models.EmailKind) (bool, error)
}

type Mailer interface {
	SendAskForReview(ctx context.Context, order *models.Order) error
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}
