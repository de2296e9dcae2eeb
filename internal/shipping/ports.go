package shipping

import (
	"context"

	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/CopperGroup/bytecraft/internal/novaposhta"
	"github.com/shopspring/decimal"
)

// Carrier is the subset of the Nova Poshta client the workflow drives.
type Carrier interface {
	CreateCounterparty(ctx context.Context, firstName, lastName, email, phone string) (string, error)
	CreateCounterpartyContact(ctx context.Context, counterpartyRef, firstName, lastName, phone string) (string, error)
	CalculateDeliveryCost(ctx context.Context, senderCityRef, recipientCityRef string, weight, declaredValue decimal.Decimal) (decimal.Decimal, error)
	GenerateInvoice(ctx context.Context, req novaposhta.InvoiceRequest) (*novaposhta.InvoiceSnapshot, error)
	GetInvoiceDetails(ctx context.Context, trackingNumber, phone string) (*novaposhta.InvoiceDetail, error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	// SaveInvoice must refuse to replace an existing invoice.
	SaveInvoice(ctx context.Context, id int64, invoice *models.Invoice) error
}
