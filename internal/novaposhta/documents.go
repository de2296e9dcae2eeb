package novaposhta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ServiceWarehouseWarehouse = "WarehouseWarehouse"
	ServiceWarehouseDoors     = "WarehouseDoors"

	cargoParcel = "Parcel"
	dateLayout  = "02.01.2006"
)

// CalculateDeliveryCost quotes a warehouse-to-warehouse parcel of the given
// weight in kilograms and declared value.
func (c *Client) CalculateDeliveryCost(ctx context.Context, senderCityRef, recipientCityRef string, weight, declaredValue decimal.Decimal) (decimal.Decimal, error) {
	if senderCityRef == "" || recipientCityRef == "" {
		return decimal.Zero, fmt.Errorf("%w: sender and recipient city are required", ErrInvalidArgument)
	}
	if !weight.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: weight must be positive", ErrInvalidArgument)
	}

	props := map[string]string{
		"CitySender":    senderCityRef,
		"CityRecipient": recipientCityRef,
		"Weight":        weight.String(),
		"ServiceType":   ServiceWarehouseWarehouse,
		"Cost":          declaredValue.StringFixed(2),
		"CargoType":     cargoParcel,
		"SeatsAmount":   "1",
	}

	var items []struct {
		Cost number `json:"Cost"`
	}
	if err := c.call(ctx, "InternetDocument", "getDocumentPrice", props, &items); err != nil {
		return decimal.Zero, err
	}
	if len(items) == 0 {
		return decimal.Zero, &APIError{Method: "InternetDocument.getDocumentPrice", Messages: []string{"empty response data"}}
	}
	return items[0].Cost.Decimal(), nil
}

type Sender struct {
	Ref        string
	ContactRef string
	AddressRef string
	CityRef    string
	Phone      string
}

// Recipient is delivered to a branch when WarehouseRef is set, otherwise to
// the door at CityName/Street/House/Flat.
type Recipient struct {
	Ref          string
	ContactRef   string
	Phone        string
	CityRef      string
	WarehouseRef string

	CityName string
	Street   string
	House    string
	Flat     string
}

type InvoiceRequest struct {
	Sender        Sender
	Recipient     Recipient
	Weight        decimal.Decimal
	DeclaredValue decimal.Decimal
	Description   string
	SeatsAmount   int
	Date          time.Time
}

func (r InvoiceRequest) validate() error {
	var errs []error
	if r.Sender.Ref == "" || r.Sender.ContactRef == "" || r.Sender.AddressRef == "" || r.Sender.CityRef == "" {
		errs = append(errs, errors.New("sender refs are required"))
	}
	if r.Recipient.Ref == "" || r.Recipient.ContactRef == "" || r.Recipient.CityRef == "" {
		errs = append(errs, errors.New("recipient refs are required"))
	}
	if r.Recipient.Phone == "" {
		errs = append(errs, errors.New("recipient phone is required"))
	}
	if r.Recipient.WarehouseRef == "" && (r.Recipient.Street == "" || r.Recipient.House == "") {
		errs = append(errs, errors.New("door delivery needs street and house"))
	}
	if !r.Weight.IsPositive() {
		errs = append(errs, errors.New("weight must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

func (r InvoiceRequest) properties() map[string]string {
	seats := r.SeatsAmount
	if seats < 1 {
		seats = 1
	}
	date := r.Date
	if date.IsZero() {
		date = time.Now()
	}

	props := map[string]string{
		"PayerType":        "Recipient",
		"PaymentMethod":    "Cash",
		"DateTime":         date.Format(dateLayout),
		"CargoType":        cargoParcel,
		"Weight":           r.Weight.String(),
		"SeatsAmount":      fmt.Sprint(seats),
		"Description":      r.Description,
		"Cost":             r.DeclaredValue.StringFixed(2),
		"CitySender":       r.Sender.CityRef,
		"Sender":           r.Sender.Ref,
		"SenderAddress":    r.Sender.AddressRef,
		"ContactSender":    r.Sender.ContactRef,
		"SendersPhone":     r.Sender.Phone,
		"CityRecipient":    r.Recipient.CityRef,
		"Recipient":        r.Recipient.Ref,
		"ContactRecipient": r.Recipient.ContactRef,
		"RecipientsPhone":  r.Recipient.Phone,
	}

	if r.Recipient.WarehouseRef != "" {
		props["ServiceType"] = ServiceWarehouseWarehouse
		props["RecipientAddress"] = r.Recipient.WarehouseRef
		return props
	}

	props["ServiceType"] = ServiceWarehouseDoors
	props["NewAddress"] = "1"
	props["RecipientCityName"] = r.Recipient.CityName
	props["RecipientAddressName"] = r.Recipient.Street
	props["RecipientHouse"] = r.Recipient.House
	props["RecipientFlat"] = r.Recipient.Flat
	return props
}

// InvoiceSnapshot is the carrier's answer to a created shipping document.
type InvoiceSnapshot struct {
	TrackingNumber        string
	Ref                   string
	Cost                  decimal.Decimal
	EstimatedDeliveryDate string
	TypeDocument          string
	Raw                   json.RawMessage
}

// GenerateInvoice creates the shipping document. It is not idempotent: a
// repeated call creates a second document.
func (c *Client) GenerateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceSnapshot, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := c.call(ctx, "InternetDocument", "save", req.properties(), &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &APIError{Method: "InternetDocument.save", Messages: []string{"empty response data"}}
	}

	var doc struct {
		Ref                   string `json:"Ref"`
		CostOnSite            number `json:"CostOnSite"`
		EstimatedDeliveryDate string `json:"EstimatedDeliveryDate"`
		IntDocNumber          string `json:"IntDocNumber"`
		TypeDocument          string `json:"TypeDocument"`
	}
	if err := json.Unmarshal(raw[0], &doc); err != nil {
		return nil, &APIError{Method: "InternetDocument.save", Err: fmt.Errorf("decode document: %w", err)}
	}
	if doc.IntDocNumber == "" {
		return nil, &APIError{Method: "InternetDocument.save", Messages: []string{"document number missing"}}
	}

	return &InvoiceSnapshot{
		TrackingNumber:        doc.IntDocNumber,
		Ref:                   doc.Ref,
		Cost:                  doc.CostOnSite.Decimal(),
		EstimatedDeliveryDate: doc.EstimatedDeliveryDate,
		TypeDocument:          doc.TypeDocument,
		Raw:                   raw[0],
	}, nil
}

// InvoiceDetail is the live tracking state of a shipping document.
type InvoiceDetail struct {
	Number                string          `json:"number"`
	StatusCode            string          `json:"status_code"`
	Status                string          `json:"status"`
	WarehouseRecipient    string          `json:"warehouse_recipient,omitempty"`
	RecipientFullName     string          `json:"recipient_full_name,omitempty"`
	RecipientPhone        string          `json:"recipient_phone,omitempty"`
	SenderFullName        string          `json:"sender_full_name,omitempty"`
	CitySender            string          `json:"city_sender,omitempty"`
	CityRecipient         string          `json:"city_recipient,omitempty"`
	Weight                decimal.Decimal `json:"weight"`
	DeclaredValue         decimal.Decimal `json:"declared_value"`
	ScheduledDeliveryDate string          `json:"scheduled_delivery_date,omitempty"`
	ActualDeliveryDate    string          `json:"actual_delivery_date,omitempty"`
	RecipientDateTime     string          `json:"recipient_date_time,omitempty"`
}

// statusNotFound is the tracking status for a number the carrier does not know.
const statusNotFound = "3"

// GetInvoiceDetails fetches the tracking status. Supplying the recipient
// phone unlocks the full recipient and sender blocks.
func (c *Client) GetInvoiceDetails(ctx context.Context, trackingNumber, phone string) (*InvoiceDetail, error) {
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: tracking number is required", ErrInvalidArgument)
	}

	props := map[string]any{
		"Documents": []map[string]string{
			{"DocumentNumber": trackingNumber, "Phone": phone},
		},
	}

	var items []struct {
		Number                string `json:"Number"`
		StatusCode            string `json:"StatusCode"`
		Status                string `json:"Status"`
		WarehouseRecipient    string `json:"WarehouseRecipient"`
		RecipientFullName     string `json:"RecipientFullName"`
		PhoneRecipient        string `json:"PhoneRecipient"`
		SenderFullNameEW      string `json:"SenderFullNameEW"`
		CitySender            string `json:"CitySender"`
		CityRecipient         string `json:"CityRecipient"`
		DocumentWeight        number `json:"DocumentWeight"`
		DocumentCost          number `json:"DocumentCost"`
		ScheduledDeliveryDate string `json:"ScheduledDeliveryDate"`
		ActualDeliveryDate    string `json:"ActualDeliveryDate"`
		RecipientDateTime     string `json:"RecipientDateTime"`
	}
	if err := c.call(ctx, "TrackingDocument", "getStatusDocuments", props, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 || items[0].StatusCode == statusNotFound {
		return nil, fmt.Errorf("tracking number %s: %w", trackingNumber, ErrNotFound)
	}

	it := items[0]
	return &InvoiceDetail{
		Number:                it.Number,
		StatusCode:            it.StatusCode,
		Status:                it.Status,
		WarehouseRecipient:    it.WarehouseRecipient,
		RecipientFullName:     it.RecipientFullName,
		RecipientPhone:        it.PhoneRecipient,
		SenderFullName:        it.SenderFullNameEW,
		CitySender:            it.CitySender,
		CityRecipient:         it.CityRecipient,
		Weight:                it.DocumentWeight.Decimal(),
		DeclaredValue:         it.DocumentCost.Decimal(),
		ScheduledDeliveryDate: it.ScheduledDeliveryDate,
		ActualDeliveryDate:    it.ActualDeliveryDate,
		RecipientDateTime:     it.RecipientDateTime,
	}, nil
}
