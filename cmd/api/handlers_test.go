package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/logger"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/CopperGroup/bytecraft/internal/novaposhta"
	"github.com/CopperGroup/bytecraft/internal/orders"
	"github.com/CopperGroup/bytecraft/internal/promo"
	"github.com/CopperGroup/bytecraft/internal/shipping"
	"github.com/CopperGroup/bytecraft/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCarrier struct {
	streetCalls int
	warehouses  []novaposhta.Warehouse
	err         error
}

func (f *fakeCarrier) ListCities(context.Context) ([]novaposhta.City, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []novaposhta.City{{Description: "Київ", Ref: "city-kyiv"}}, nil
}

func (f *fakeCarrier) FindStreets(_ context.Context, cityRef, _ string) ([]novaposhta.Street, error) {
	if cityRef == "" {
		return nil, fmt.Errorf("%w: city reference is required", novaposhta.ErrInvalidArgument)
	}
	f.streetCalls++
	return []novaposhta.Street{{Description: "Хрещатик", Ref: "street-1"}}, nil
}

func (f *fakeCarrier) ListWarehouses(_ context.Context, _ string, kind novaposhta.WarehouseKind) ([]novaposhta.Warehouse, error) {
	return novaposhta.FilterWarehouses(f.warehouses, kind), nil
}

func (f *fakeCarrier) CreateCounterparty(_ context.Context, _, _, _, phone string) (string, error) {
	return "cp-" + phone, nil
}

type fakeOrders struct {
	order    *models.Order
	err      error
	payment  models.PaymentStatus
	delivery models.DeliveryStatus
}

func (f *fakeOrders) Checkout(_ context.Context, req orders.CheckoutRequest) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{ID: 1, Customer: req.Customer, Value: decimal.NewFromInt(950)}, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, database.ErrOrderNotFound
	}
	return f.order, nil
}

func (f *fakeOrders) ListOrders(_ context.Context, _ string, limit int) (*store.CursorPage, error) {
	return &store.CursorPage{Items: []models.Order{}, NextCursor: fmt.Sprint(limit)}, nil
}

func (f *fakeOrders) SetPaymentStatus(_ context.Context, _ int64, status models.PaymentStatus) error {
	if !status.Valid() {
		return orders.ErrInvalidStatus
	}
	f.payment = status
	return nil
}

func (f *fakeOrders) SetDeliveryStatus(_ context.Context, _ int64, status models.DeliveryStatus) error {
	if !status.Valid() {
		return orders.ErrInvalidStatus
	}
	f.delivery = status
	return nil
}

func (f *fakeOrders) RequestReview(context.Context, int64) (bool, error) {
	return true, nil
}

type fakeInvoices struct {
	err error
}

func (f *fakeInvoices) GenerateInvoiceForOrder(_ context.Context, _ int64) (*models.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Invoice{TrackingNumber: "20450000000001"}, nil
}

func (f *fakeInvoices) GetInvoiceDetails(context.Context, int64) (*novaposhta.InvoiceDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &novaposhta.InvoiceDetail{Number: "20450000000001", Status: "Прибув у відділення"}, nil
}

type fakePromos struct {
	err       error
	rewardErr error
}

func (f *fakePromos) Validate(_ context.Context, code string, total decimal.Decimal) (*promo.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &promo.Quote{Code: code, DiscountPercent: 5, CartTotal: total, Total: promo.ApplyPercent(total, 5)}, nil
}

func (f *fakePromos) Apply(_ context.Context, code string) (*models.PromoCode, error) {
	if code != "SPRING5" {
		return nil, database.ErrPromoExhausted
	}
	return &models.PromoCode{Code: code, ReusabilityTimes: 0}, nil
}

func (f *fakePromos) Generate(_ context.Context, p promo.GenerateParams) (*models.PromoCode, error) {
	if p.DiscountPercent < 1 {
		return nil, promo.ErrInvalidPromo
	}
	return &models.PromoCode{Code: "BC12345678", DiscountPercent: p.DiscountPercent}, nil
}

func (f *fakePromos) RewardReview(_ context.Context, email, _, _ string) (*models.PromoCode, error) {
	return &models.PromoCode{Code: "BCREVIEW1", OwnerEmail: email}, f.rewardErr
}

func (f *fakePromos) RewardSignup(_ context.Context, email string) (*models.PromoCode, error) {
	return &models.PromoCode{Code: "BCWELCOME", OwnerEmail: email}, f.rewardErr
}

type fakeCatalog struct{}

func (fakeCatalog) CreateUser(_ context.Context, email, name, surname, phone string) (*models.User, error) {
	return &models.User{ID: 7, Email: email, Name: name, Surname: surname, PhoneNumber: phone}, nil
}

func (fakeCatalog) GetUser(_ context.Context, id int64) (*models.User, error) {
	return nil, database.ErrUserNotFound
}

func (fakeCatalog) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return &models.User{ID: 7, Email: email}, nil
}

func (fakeCatalog) UpdateUser(_ context.Context, id int64, email, name, surname, phone string) (*models.User, error) {
	return &models.User{ID: id, Email: email, Name: name}, nil
}

func (fakeCatalog) CreateProduct(_ context.Context, sku, name string, price, weight decimal.Decimal) (*models.Product, error) {
	return &models.Product{ID: 3, SKU: sku, Name: name, Price: price, WeightKg: weight}, nil
}

func (fakeCatalog) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	return &models.Product{ID: id}, nil
}

type testServer struct {
	carrier  *fakeCarrier
	orders   *fakeOrders
	invoices *fakeInvoices
	promos   *fakePromos
	pingErr  error
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		carrier:  &fakeCarrier{},
		orders:   &fakeOrders{order: &models.Order{ID: 1, OrderNumber: "BC-250301-ABCDEF12"}},
		invoices: &fakeInvoices{},
		promos:   &fakePromos{},
	}
	srv := &server{
		log:      logger.Discard(),
		carrier:  ts.carrier,
		orders:   ts.orders,
		invoices: ts.invoices,
		promos:   ts.promos,
		catalog:  fakeCatalog{},
		ping:     func(context.Context) error { return ts.pingErr },
	}
	ts.handler = srv.routes(func(_ string, h http.Handler) http.Handler { return h })
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestCarrierRoutesAreNotCached(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/carrier/cities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store, max-age=0", rec.Header().Get("Cache-Control"))

	var cities []novaposhta.City
	decodeBody(t, rec, &cities)
	require.Len(t, cities, 1)
	assert.Equal(t, "city-kyiv", cities[0].Ref)
}

func TestStreetsRequireCity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/carrier/streets", `{"cityRef":"  ","searchString":"Хрещ"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ts.carrier.streetCalls)

	rec = ts.do(http.MethodPost, "/carrier/streets", `{"cityRef":"city-kyiv","searchString":"Хрещ"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.carrier.streetCalls)
}

func TestWarehousesFilterByType(t *testing.T) {
	ts := newTestServer(t)
	ts.carrier.warehouses = []novaposhta.Warehouse{
		{Ref: "w1", Description: "Відділення №1", CategoryOfWarehouse: "Branch"},
		{Ref: "w2", Description: "Поштомат №5", CategoryOfWarehouse: ""},
	}

	rec := ts.do(http.MethodPost, "/carrier/warehouses", `{"cityRef":"city-kyiv","type":"Postomat"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []novaposhta.Warehouse
	decodeBody(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "w2", got[0].Ref)

	rec = ts.do(http.MethodPost, "/carrier/warehouses", `{"cityRef":"city-kyiv","type":"Drone"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCounterpartyNormalizesPhone(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/carrier/counterparty",
		`{"firstName":"Олена","lastName":"Коваль","email":"o@example.com","phone":"0501112233"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "cp-380501112233", body["ref"])
}

func TestOrderRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var order models.Order
	decodeBody(t, rec, &order)
	assert.Equal(t, "BC-250301-ABCDEF12", order.OrderNumber)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/orders/2", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/orders/abc", "").Code)

	rec = ts.do(http.MethodGet, "/orders?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page store.CursorPage
	decodeBody(t, rec, &page)
	assert.Equal(t, "5", page.NextCursor)
}

func TestCheckoutRoute(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/orders", `{"customer":{"name":"Олена"},"items":[{"product_id":1,"amount":1}]}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	ts.orders.err = fmt.Errorf("%w: name too short", orders.ErrInvalidCheckout)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/orders", `{}`).Code)

	ts.orders.err = database.ErrPromoExhausted
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/orders", `{}`).Code)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/orders", `{not json`).Code)
}

func TestStatusRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPut, "/orders/1/payment-status", `{"status":"Success"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PaymentSuccess, ts.orders.payment)

	rec = ts.do(http.MethodPut, "/orders/1/delivery-status", `{"status":"Fulfilled"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DeliveryFulfilled, ts.orders.delivery)

	rec = ts.do(http.MethodPut, "/orders/1/delivery-status", `{"status":"Lost"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/orders/1/review-request", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	decodeBody(t, rec, &body)
	assert.True(t, body["sent"])
}

func TestInvoiceRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/orders/1/invoice", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "no-store, max-age=0", rec.Header().Get("Cache-Control"))

	rec = ts.do(http.MethodGet, "/orders/1/invoice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	ts.invoices.err = &shipping.PartialFailureError{
		OrderID:         1,
		Step:            shipping.StepInvoice,
		CounterpartyRef: "cp-1",
		ContactRef:      "ct-1",
		Err:             fmt.Errorf("%w: timeout", novaposhta.ErrUnavailable),
	}
	rec = ts.do(http.MethodPost, "/orders/1/invoice", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var partial partialFailureBody
	decodeBody(t, rec, &partial)
	assert.Equal(t, "generate invoice", partial.Step)
	assert.Equal(t, "cp-1", partial.CounterpartyRef)
	assert.Equal(t, "ct-1", partial.ContactRef)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"already generated", database.ErrInvoiceAlreadyGenerated, http.StatusConflict},
		{"lost invoice race", &shipping.PartialFailureError{Step: shipping.StepPersist, Err: database.ErrInvoiceAlreadyGenerated}, http.StatusConflict},
		{"carrier down", fmt.Errorf("create counterparty: %w", novaposhta.ErrUnavailable), http.StatusBadGateway},
		{"partial", &shipping.PartialFailureError{Step: shipping.StepContact, Err: errors.New("boom")}, http.StatusBadGateway},
		{"promo expired", database.ErrPromoExpired, http.StatusUnprocessableEntity},
		{"promo unknown", database.ErrPromoNotFound, http.StatusUnprocessableEntity},
		{"bad argument", novaposhta.ErrInvalidArgument, http.StatusBadRequest},
		{"bad promo params", promo.ErrInvalidPromo, http.StatusBadRequest},
		{"no invoice", shipping.ErrNoInvoice, http.StatusNotFound},
		{"carrier not found", novaposhta.ErrNotFound, http.StatusNotFound},
		{"order not found", database.ErrOrderNotFound, http.StatusNotFound},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	ts := newTestServer(t)
	ts.invoices.err = errors.New("pq: connection refused to 10.0.0.5")

	rec := ts.do(http.MethodGet, "/orders/1/invoice", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestPromoRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/promocodes/validate", `{"code":"SPRING5","cart_total":"1000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var quote promo.Quote
	decodeBody(t, rec, &quote)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(950)))

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/promocodes/SPRING5/apply", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/promocodes/OLD/apply", "").Code)

	rec = ts.do(http.MethodPost, "/promocodes", `{"validity_days":30,"reusability_times":1,"discount_percent":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/promocodes", `{"validity_days":30,"reusability_times":1,"discount_percent":15}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRewardReviewKeepsCodeWhenEmailFails(t *testing.T) {
	ts := newTestServer(t)
	ts.promos.rewardErr = errors.New("smtp down")

	rec := ts.do(http.MethodPost, "/promocodes/rewards/review",
		`{"email":"o@example.com","name":"Олена","product_name":"Клавіатура"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body rewardResponse
	decodeBody(t, rec, &body)
	require.NotNil(t, body.PromoCode)
	assert.Equal(t, "BCREVIEW1", body.PromoCode.Code)
	assert.False(t, body.EmailSent)

	rec = ts.do(http.MethodPost, "/promocodes/rewards/review", `{"name":"Олена"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserIssuesWelcomeCode(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/users", `{"email":" new@example.com ","name":"Олена"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		User      models.User       `json:"user"`
		PromoCode *models.PromoCode `json:"promocode"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "new@example.com", body.User.Email)
	require.NotNil(t, body.PromoCode)
	assert.Equal(t, "new@example.com", body.PromoCode.OwnerEmail)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/users", `{"name":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/users/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/users", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/users?email=a@example.com", "").Code)
}

func TestProductRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/products", `{"sku":"KB-1","name":"Клавіатура","price":"1299.00","weight_kg":"0.9"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var product models.Product
	decodeBody(t, rec, &product)
	assert.True(t, product.Price.Equal(decimal.RequireFromString("1299")))

	rec = ts.do(http.MethodPost, "/products", `{"sku":"KB-2","name":"x","price":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", "").Code)

	ts.pingErr = errors.New("down")
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/healthz", "").Code)
}
