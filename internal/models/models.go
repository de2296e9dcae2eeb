package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

type Product struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	WeightKg  decimal.Decimal `json:"weight_kg"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentDeclined PaymentStatus = "Declined"
	PaymentSuccess  PaymentStatus = "Success"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentDeclined, PaymentSuccess:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryProceeding DeliveryStatus = "Proceeding"
	DeliveryIndelivery DeliveryStatus = "Indelivery"
	DeliveryCanceled   DeliveryStatus = "Canceled"
	DeliveryFulfilled  DeliveryStatus = "Fulfilled"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryProceeding, DeliveryIndelivery, DeliveryCanceled, DeliveryFulfilled:
		return true
	}
	return false
}

// Customer is the contact and delivery data copied onto an order at checkout.
// It is never refreshed from the users table.
type Customer struct {
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	PhoneNumber    string `json:"phone_number"`
	Email          string `json:"email"`
	PaymentType    string `json:"payment_type"`
	DeliveryMethod string `json:"delivery_method"`
	City           string `json:"city"`
	Address        string `json:"address,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	BuildingNumber string `json:"building_number,omitempty"`
	Apartment      string `json:"apartment,omitempty"`
	Comment        string `json:"comment,omitempty"`

	CityRef        string `json:"city_ref"`
	WarehouseRef   string `json:"warehouse_ref,omitempty"`
	WarehouseIndex string `json:"warehouse_index,omitempty"`
	StreetRef      string `json:"street_ref,omitempty"`
}

type EmailFlags struct {
	AskForReview bool `json:"ask_for_review"`
	Confirmation bool `json:"confirmation"`
}

type Order struct {
	ID             int64            `json:"id"`
	OrderNumber    string           `json:"order_number"`
	UserID         *int64           `json:"user_id,omitempty"`
	Items          []OrderItem      `json:"items"`
	Customer       Customer         `json:"customer"`
	Value          decimal.Decimal  `json:"value"`
	Discount       *decimal.Decimal `json:"discount,omitempty"`
	Promocode      string           `json:"promocode,omitempty"`
	PaymentStatus  PaymentStatus    `json:"payment_status"`
	DeliveryStatus DeliveryStatus   `json:"delivery_status"`
	Invoice        *Invoice         `json:"invoice,omitempty"`
	Emails         EmailFlags       `json:"emails"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// HasInvoice reports whether a shipping invoice was generated for the order.
func (o *Order) HasInvoice() bool {
	return o.Invoice != nil
}

type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Amount    int             `json:"amount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	WeightKg  decimal.Decimal `json:"weight_kg"`
}

// Invoice is the stored snapshot of a successful carrier invoice response.
// Raw keeps the carrier's document as returned; the typed fields are the ones
// the workflow reads back.
type Invoice struct {
	TrackingNumber        string          `json:"tracking_number"`
	Ref                   string          `json:"ref"`
	Cost                  decimal.Decimal `json:"cost"`
	QuotedCost            decimal.Decimal `json:"quoted_cost"`
	EstimatedDeliveryDate string          `json:"estimated_delivery_date,omitempty"`
	Recipient             string          `json:"recipient,omitempty"`
	RecipientPhone        string          `json:"recipient_phone,omitempty"`
	Sender                string          `json:"sender,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	Raw                   json.RawMessage `json:"raw,omitempty"`
}

type PromoCode struct {
	ID               int64     `json:"id"`
	Code             string    `json:"code"`
	OwnerEmail       string    `json:"owner_email,omitempty"`
	DiscountPercent  int       `json:"discount_percent"`
	ValidUntil       time.Time `json:"valid_until"`
	ReusabilityTimes int       `json:"reusability_times"`
	CreatedAt        time.Time `json:"created_at"`
}

// Expired compares calendar dates: a code is usable through the whole of its
// ValidUntil day.
func (p *PromoCode) Expired(now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	vy, vm, vd := p.ValidUntil.Date()
	until := time.Date(vy, vm, vd, 0, 0, 0, 0, time.UTC)
	return today.After(until)
}

// EmailKind names a once-only transactional email tracked on the order.
type EmailKind string

const (
	EmailAskForReview EmailKind = "ask_for_review"
	EmailConfirmation EmailKind = "confirmation"
)

func (k EmailKind) Sent(flags EmailFlags) bool {
	switch k {
	case EmailAskForReview:
		return flags.AskForReview
	case EmailConfirmation:
		return flags.Confirmation
	}
	return false
}
