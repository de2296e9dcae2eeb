package orders

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/CopperGroup/bytecraft/internal/events"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/CopperGroup/bytecraft/internal/promo"
	"github.com/CopperGroup/bytecraft/internal/store"
)

var ErrInvalidCheckout = errors.New("invalid checkout")

type CheckoutItem struct {
	ProductID int64 `json:"product_id"`
	Amount    int   `json:"amount"`
}

type CheckoutRequest struct {
	UserID    *int64          `json:"user_id,omitempty"`
	Customer  models.Customer `json:"customer"`
	Items     []CheckoutItem  `json:"items"`
	Promocode string          `json:"promocode,omitempty"`
}

func trimCustomer(c models.Customer) models.Customer {
	for _, f := range []*string{
		&c.Name, &c.Surname, &c.PhoneNumber, &c.Email, &c.PaymentType, &c.DeliveryMethod,
		&c.City, &c.Address, &c.PostalCode, &c.BuildingNumber, &c.Apartment, &c.Comment,
		&c.CityRef, &c.WarehouseRef, &c.WarehouseIndex, &c.StreetRef,
	} {
		*f = strings.TrimSpace(*f)
	}
	return c
}

func (r CheckoutRequest) validate() error {
	c := r.Customer
	var errs []error

	if utf8.RuneCountInString(c.Name) < 2 {
		errs = append(errs, errors.New("name must be at least 2 characters"))
	}
	if utf8.RuneCountInString(c.Surname) < 2 {
		errs = append(errs, errors.New("surname must be at least 2 characters"))
	}
	if len(c.PhoneNumber) < 10 {
		errs = append(errs, errors.New("phone number is too short"))
	}
	if _, err := mail.ParseAddress(c.Email); err != nil || c.Email == "" {
		errs = append(errs, errors.New("email is invalid"))
	}
	if c.PaymentType == "" {
		errs = append(errs, errors.New("payment type is required"))
	}
	if c.DeliveryMethod == "" {
		errs = append(errs, errors.New("delivery method is required"))
	}
	if c.City == "" || c.CityRef == "" {
		errs = append(errs, errors.New("city is required"))
	}
	if len(r.Items) == 0 {
		errs = append(errs, errors.New("order has no items"))
	}
	for i, item := range r.Items {
		if item.Amount < 1 {
			errs = append(errs, fmt.Errorf("item %d: amount must be at least 1, got %d", i, item.Amount))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCheckout, err)
	}
	return nil
}

// Checkout validates the order form and creates the order. Product prices
// come from the catalog, never from the request. The promo code, when given,
// is consumed in the same transaction as the insert. The confirmation email
// is best effort: a failed send leaves the flag unset for a later retry.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	req.Customer = trimCustomer(req.Customer)
	req.Promocode = promo.Normalize(req.Promocode)
	if err := req.validate(); err != nil {
		return nil, err
	}

	items := make([]store.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, store.OrderItemRequest{ProductID: item.ProductID, Amount: item.Amount})
	}

	order, err := s.store.CreateOrder(ctx, store.CreateOrderRequest{
		UserID:    req.UserID,
		Customer:  req.Customer,
		Items:     items,
		Promocode: req.Promocode,
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"value", order.Value.String(),
		"promocode", order.Promocode,
	)
	events.Emit(ctx, s.events, s.log, events.New(events.TypeOrderCreated, order.ID, map[string]any{
		"order_number": order.OrderNumber,
		"value":        order.Value.String(),
	}))

	sent, err := s.SendConfirmation(ctx, order.ID)
	if err != nil {
		s.log.WarnContext(ctx, "order confirmation not sent", "order_id", order.ID, "error", err)
	}
	order.Emails.Confirmation = sent

	return order, nil
}
