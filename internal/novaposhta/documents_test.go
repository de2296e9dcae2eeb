package novaposhta

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCounterpartyAndContact(t *testing.T) {
	fc, client := newFakeCarrier(t)
	fc.on("CounterpartyGeneral.save", func(props map[string]any) (int, any) {
		return http.StatusOK, success([]map[string]string{{"Ref": "cp-1"}})
	})
	fc.on("ContactPerson.save", func(props map[string]any) (int, any) {
		return http.StatusOK, success([]map[string]string{{"Ref": "contact-1"}})
	})

	ref, err := client.CreateCounterparty(context.Background(), "Олена", "Коваль", "olena@example.com", "380501112233")
	require.NoError(t, err)
	assert.Equal(t, "cp-1", ref)

	contact, err := client.CreateCounterpartyContact(context.Background(), ref, "Олена", "Коваль", "380501112233")
	require.NoError(t, err)
	assert.Equal(t, "contact-1", contact)

	calls := fc.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "PrivatePerson", calls[0].Properties["CounterpartyType"])
	assert.Equal(t, "Recipient", calls[0].Properties["CounterpartyProperty"])
	assert.Equal(t, "", calls[0].Properties["MiddleName"])
	assert.Equal(t, "cp-1", calls[1].Properties["CounterpartyRef"])
}

func TestCreateCounterpartyEmptyData(t *testing.T) {
	fc, client := newFakeCarrier(t)
	fc.on("CounterpartyGeneral.save", func(map[string]any) (int, any) {
		return http.StatusOK, success([]any{})
	})

	_, err := client.CreateCounterparty(context.Background(), "A", "B", "", "380501112233")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCalculateDeliveryCost(t *testing.T) {
	fc, client := newFakeCarrier(t)
	fc.on("InternetDocument.getDocumentPrice", func(props map[string]any) (int, any) {
		return http.StatusOK, success([]map[string]any{{"Cost": 85, "AssessedCost": 1000}})
	})

	cost, err := client.CalculateDeliveryCost(context.Background(), "city-sender", "city-recipient",
		decimal.RequireFromString("1.5"), decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.NewFromInt(85)), "got %s", cost)

	props := fc.recorded()[0].Properties
	assert.Equal(t, "1.5", props["Weight"])
	assert.Equal(t, "1000.00", props["Cost"])
	assert.Equal(t, ServiceWarehouseWarehouse, props["ServiceType"])
}

func TestCalculateDeliveryCostRejectsZeroWeight(t *testing.T) {
	fc, client := newFakeCarrier(t)

	_, err := client.CalculateDeliveryCost(context.Background(), "a", "b", decimal.Zero, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, fc.recorded())
}

func invoiceRequest() InvoiceRequest {
	return InvoiceRequest{
		Sender: Sender{Ref: "s", ContactRef: "sc", AddressRef: "sa", CityRef: "scity", Phone: "380671234567"},
		Recipient: Recipient{
			Ref: "r", ContactRef: "rc", Phone: "380501112233", CityRef: "rcity", WarehouseRef: "wh-1",
		},
		Weight:        decimal.RequireFromString("0.5"),
		DeclaredValue: decimal.NewFromInt(950),
		Description:   "Комп'ютерна периферія",
		Date:          time.Date(2025, 2, 7, 10, 0, 0, 0, time.UTC),
	}
}

func TestGenerateInvoiceToWarehouse(t *testing.T) {
	fc, client := newFakeCarrier(t)
	fc.on("InternetDocument.save", func(map[string]any) (int, any) {
		return http.StatusOK, success([]map[string]any{{
			"Ref":                   "doc-ref",
			"CostOnSite":            70,
			"EstimatedDeliveryDate": "09.02.2025",
			"IntDocNumber":          "20450000000001",
			"TypeDocument":          "InternetDocument",
		}})
	})

	snap, err := client.GenerateInvoice(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, "20450000000001", snap.TrackingNumber)
	assert.Equal(t, "doc-ref", snap.Ref)
	assert.True(t, snap.Cost.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, "09.02.2025", snap.EstimatedDeliveryDate)
	assert.Contains(t, string(snap.Raw), "20450000000001")

	props := fc.recorded()[0].Properties
	assert.Equal(t, ServiceWarehouseWarehouse, props["ServiceType"])
	assert.Equal(t, "wh-1", props["RecipientAddress"])
	assert.Equal(t, "07.02.2025", props["DateTime"])
	assert.Equal(t, "Recipient", props["PayerType"])
	assert.Equal(t, "Cash", props["PaymentMethod"])
	assert.Equal(t, "950.00", props["Cost"])
	assert.NotContains(t, props, "NewAddress")
}

func TestGenerateInvoiceToDoor(t *testing.T) {
	fc, client := newFakeCarrier(t)
	fc.on("InternetDocument.save", func(map[string]any) (int, any) {
		return http.StatusOK, success([]map[string]any{{"Ref": "doc", "CostOnSite": "95", "IntDocNumber": "20450000000002"}})
	})

	req := invoiceRequest()
	req.Recipient.WarehouseRef = ""
	req.Recipient.CityName = "Київ"
	req.Recipient.Street = "Хрещатик"
	req.Recipient.House = "1"
	req.Recipient.Flat = "12"

	snap, err := client.GenerateInvoice(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, snap.Cost.Equal(decimal.NewFromInt(95)))

	props := fc.recorded()[0].Properties
	assert.Equal(t, ServiceWarehouseDoors, props["ServiceType"])
	assert.Equal(t, "1", props["NewAddress"])
	assert.Equal(t, "Хрещатик", props["RecipientAddressName"])
	assert.Equal(t, "12", props["RecipientFlat"])
}

func TestGenerateInvoiceValidates(t *testing.T) {
	fc, client := newFakeCarrier(t)

	req := invoiceRequest()
	req.Recipient.Ref = ""
	req.Weight = decimal.Zero

	_, err := client.GenerateInvoice(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "recipient refs")
	assert.Contains(t, err.Error(), "weight")
	assert.Empty(t, fc.recorded())
}

func TestGetInvoiceDetails(t *testing.T) {
	fc, client := newFakeCarrier(t)
	fc.on("TrackingDocument.getStatusDocuments", func(props map[string]any) (int, any) {
		return http.StatusOK, success([]map[string]any{{
			"Number":                "20450000000001",
			"StatusCode":            "9",
			"Status":                "Відправлення отримано",
			"WarehouseRecipient":    "Відділення №1",
			"RecipientFullName":     "Коваль Олена",
			"CitySender":            "Київ",
			"CityRecipient":         "Львів",
			"DocumentWeight":        0.5,
			"DocumentCost":          "70",
			"ScheduledDeliveryDate": "09.02.2025 13:00:00",
			"RecipientDateTime":     "09.02.2025 15:42:10",
		}})
	})

	detail, err := client.GetInvoiceDetails(context.Background(), "20450000000001", "380501112233")
	require.NoError(t, err)
	assert.Equal(t, "9", detail.StatusCode)
	assert.Equal(t, "Коваль Олена", detail.RecipientFullName)
	assert.True(t, detail.Weight.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, detail.DeclaredValue.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, "09.02.2025 15:42:10", detail.RecipientDateTime)

	docs, ok := fc.recorded()[0].Properties["Documents"].([]any)
	require.True(t, ok)
	require.Len(t, docs, 1)
	assert.Equal(t, "20450000000001", docs[0].(map[string]any)["DocumentNumber"])
}

func TestGetInvoiceDetailsUnknownNumber(t *testing.T) {
	fc, client := newFakeCarrier(t)
	fc.on("TrackingDocument.getStatusDocuments", func(map[string]any) (int, any) {
		return http.StatusOK, success([]map[string]any{{"Number": "1", "StatusCode": "3", "Status": "Номер не знайдено"}})
	})

	_, err := client.GetInvoiceDetails(context.Background(), "1", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
