package shipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CopperGroup/bytecraft/internal/config"
	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/events"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/CopperGroup/bytecraft/internal/novaposhta"
	"github.com/shopspring/decimal"
)

type Service struct {
	carrier Carrier
	orders  OrderStore
	events  events.Publisher
	log     *slog.Logger
	cfg     config.CarrierConfig
	now     func() time.Time
}

func NewService(carrier Carrier, orders OrderStore, publisher events.Publisher, log *slog.Logger, cfg config.CarrierConfig) *Service {
	return &Service{
		carrier: carrier,
		orders:  orders,
		events:  publisher,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// ParcelWeight sums item weights in kilograms. Items without a catalog
// weight count as defaultItem; the total never drops below minimum.
func ParcelWeight(items []models.OrderItem, defaultItem, minimum decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		w := item.WeightKg
		if !w.IsPositive() {
			w = defaultItem
		}
		total = total.Add(w.Mul(decimal.NewFromInt(int64(item.Amount))))
	}
	if total.LessThan(minimum) {
		total = minimum
	}
	return total.Round(3)
}

func checkDeliveryAddress(c models.Customer) error {
	if c.CityRef == "" {
		return fmt.Errorf("%w: order has no carrier city", novaposhta.ErrInvalidArgument)
	}
	if c.WarehouseRef == "" && (c.Address == "" || c.BuildingNumber == "") {
		return fmt.Errorf("%w: order has neither a warehouse nor a street address", novaposhta.ErrInvalidArgument)
	}
	return nil
}

// GenerateInvoiceForOrder runs the four carrier steps in order and stores the
// resulting invoice on the order. Nothing is written to the order unless
// every step succeeds. A failure after the counterparty exists is returned as
// *PartialFailureError.
func (s *Service) GenerateInvoiceForOrder(ctx context.Context, orderID int64) (*models.Invoice, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.HasInvoice() {
		return nil, database.ErrInvoiceAlreadyGenerated
	}

	c := order.Customer
	if err := checkDeliveryAddress(c); err != nil {
		return nil, err
	}
	phone := novaposhta.NormalizePhone(c.PhoneNumber)
	log := s.log.With("order_id", orderID, "order_number", order.OrderNumber)

	counterpartyRef, err := s.carrier.CreateCounterparty(ctx, c.Name, c.Surname, c.Email, phone)
	if err != nil {
		return nil, fmt.Errorf("create counterparty: %w", err)
	}
	log.InfoContext(ctx, "counterparty created", "counterparty_ref", counterpartyRef)

	partial := &PartialFailureError{OrderID: orderID, CounterpartyRef: counterpartyRef}
	fail := func(step Step, err error) error {
		partial.Step = step
		partial.Err = err
		log.ErrorContext(ctx, "invoice workflow stopped after carrier records were created",
			"step", step.String(),
			"counterparty_ref", partial.CounterpartyRef,
			"contact_ref", partial.ContactRef,
			"tracking_number", partial.TrackingNumber,
			"error", err,
		)
		return partial
	}

	contactRef, err := s.carrier.CreateCounterpartyContact(ctx, counterpartyRef, c.Name, c.Surname, phone)
	if err != nil {
		return nil, fail(StepContact, err)
	}
	partial.ContactRef = contactRef

	weight := ParcelWeight(order.Items,
		decimal.NewFromFloat(s.cfg.DefaultItemWeight),
		decimal.NewFromFloat(s.cfg.MinWeight))

	quoted, err := s.carrier.CalculateDeliveryCost(ctx, s.cfg.SenderCityRef, c.CityRef, weight, order.Value)
	if err != nil {
		return nil, fail(StepDeliveryCost, err)
	}
	log.InfoContext(ctx, "delivery cost quoted", "weight_kg", weight.String(), "cost", quoted.String())

	snap, err := s.carrier.GenerateInvoice(ctx, novaposhta.InvoiceRequest{
		Sender: novaposhta.Sender{
			Ref:        s.cfg.SenderRef,
			ContactRef: s.cfg.SenderContactRef,
			AddressRef: s.cfg.SenderAddressRef,
			CityRef:    s.cfg.SenderCityRef,
			Phone:      s.cfg.SenderPhone,
		},
		Recipient: novaposhta.Recipient{
			Ref:          counterpartyRef,
			ContactRef:   contactRef,
			Phone:        phone,
			CityRef:      c.CityRef,
			WarehouseRef: c.WarehouseRef,
			CityName:     c.City,
			Street:       c.Address,
			House:        c.BuildingNumber,
			Flat:         c.Apartment,
		},
		Weight:        weight,
		DeclaredValue: order.Value,
		Description:   s.cfg.CargoDescription,
		SeatsAmount:   1,
		Date:          s.now(),
	})
	if err != nil {
		return nil, fail(StepInvoice, err)
	}
	partial.TrackingNumber = snap.TrackingNumber

	invoice := &models.Invoice{
		TrackingNumber:        snap.TrackingNumber,
		Ref:                   snap.Ref,
		Cost:                  snap.Cost,
		QuotedCost:            quoted,
		EstimatedDeliveryDate: snap.EstimatedDeliveryDate,
		Recipient:             strings.TrimSpace(c.Surname + " " + c.Name),
		RecipientPhone:        phone,
		Sender:                s.cfg.SenderRef,
		CreatedAt:             s.now().UTC(),
		Raw:                   snap.Raw,
	}

	if err := s.orders.SaveInvoice(ctx, orderID, invoice); err != nil {
		if errors.Is(err, database.ErrInvoiceAlreadyGenerated) {
			// A concurrent run won; this run's document stays orphaned upstream.
			return nil, fail(StepPersist, err)
		}
		return nil, fail(StepPersist, fmt.Errorf("save invoice: %w", err))
	}

	log.InfoContext(ctx, "invoice generated", "tracking_number", invoice.TrackingNumber)
	events.Emit(ctx, s.events, s.log, events.New(events.TypeInvoiceGenerated, orderID, map[string]any{
		"tracking_number": invoice.TrackingNumber,
		"cost":            invoice.Cost.String(),
	}))

	return invoice, nil
}

// GetInvoiceDetails asks the carrier for the live state of the order's
// invoice. It never writes.
func (s *Service) GetInvoiceDetails(ctx context.Context, orderID int64) (*novaposhta.InvoiceDetail, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasInvoice() {
		return nil, ErrNoInvoice
	}

	phone := order.Invoice.RecipientPhone
	if phone == "" {
		phone = novaposhta.NormalizePhone(order.Customer.PhoneNumber)
	}
	return s.carrier.GetInvoiceDetails(ctx, order.Invoice.TrackingNumber, phone)
}
