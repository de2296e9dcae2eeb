package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/CopperGroup/bytecraft/internal/novaposhta"
	"github.com/CopperGroup/bytecraft/internal/orders"
	"github.com/CopperGroup/bytecraft/internal/promo"
	"github.com/CopperGroup/bytecraft/internal/shipping"
	"github.com/CopperGroup/bytecraft/internal/store"
	"github.com/shopspring/decimal"
)

type carrierAPI interface {
	ListCities(ctx context.Context) ([]novaposhta.City, error)
	FindStreets(ctx context.Context, cityRef, search string) ([]novaposhta.Street, error)
	ListWarehouses(ctx context.Context, cityRef string, kind novaposhta.WarehouseKind) ([]novaposhta.Warehouse, error)
	CreateCounterparty(ctx context.Context, firstName, lastName, email, phone string) (string, error)
}

type orderService interface {
	Checkout(ctx context.Context, req orders.CheckoutRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, cursor string, limit int) (*store.CursorPage, error)
	SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error
	SetDeliveryStatus(ctx context.Context, id int64, status models.DeliveryStatus) error
	RequestReview(ctx context.Context, id int64) (bool, error)
}

type invoiceService interface {
	GenerateInvoiceForOrder(ctx context.Context, orderID int64) (*models.Invoice, error)
	GetInvoiceDetails(ctx context.Context, orderID int64) (*novaposhta.InvoiceDetail, error)
}

type promoService interface {
	Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*promo.Quote, error)
	Apply(ctx context.Context, code string) (*models.PromoCode, error)
	Generate(ctx context.Context, params promo.GenerateParams) (*models.PromoCode, error)
	RewardReview(ctx context.Context, email, name, productName string) (*models.PromoCode, error)
	RewardSignup(ctx context.Context, email string) (*models.PromoCode, error)
}

type catalog interface {
	CreateUser(ctx context.Context, email, name, surname, phone string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, email, name, surname, phone string) (*models.User, error)
	CreateProduct(ctx context.Context, sku, name string, price, weightKg decimal.Decimal) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

type server struct {
	log      *slog.Logger
	carrier  carrierAPI
	orders   orderService
	invoices invoiceService
	promos   promoService
	catalog  catalog
	ping     func(context.Context) error
}

var errBadRequest = errors.New("bad request")

// routes registers every endpoint. wrap is applied to each handler under its
// route name.
func (s *server) routes(wrap func(name string, h http.Handler) http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, wrap(name, h))
	}

	handle("POST /carrier/cities", "carrier_cities", noStore(s.handleCities))
	handle("POST /carrier/streets", "carrier_streets", noStore(s.handleStreets))
	handle("POST /carrier/warehouses", "carrier_warehouses", noStore(s.handleWarehouses))
	handle("POST /carrier/counterparty", "carrier_counterparty", noStore(s.handleCounterparty))

	handle("POST /orders", "orders_checkout", s.handleCheckout)
	handle("GET /orders", "orders_list", s.handleListOrders)
	handle("GET /orders/{id}", "orders_get", s.handleGetOrder)
	handle("POST /orders/{id}/invoice", "orders_invoice_generate", noStore(s.handleGenerateInvoice))
	handle("GET /orders/{id}/invoice", "orders_invoice_details", noStore(s.handleInvoiceDetails))
	handle("PUT /orders/{id}/payment-status", "orders_payment_status", s.handlePaymentStatus)
	handle("PUT /orders/{id}/delivery-status", "orders_delivery_status", s.handleDeliveryStatus)
	handle("POST /orders/{id}/review-request", "orders_review_request", s.handleReviewRequest)

	handle("POST /promocodes/validate", "promocodes_validate", s.handleValidatePromo)
	handle("POST /promocodes/{code}/apply", "promocodes_apply", s.handleApplyPromo)
	handle("POST /promocodes", "promocodes_generate", s.handleGeneratePromo)
	handle("POST /promocodes/rewards/review", "promocodes_reward_review", s.handleRewardReview)

	handle("POST /users", "users_create", s.handleCreateUser)
	handle("GET /users", "users_find", s.handleFindUser)
	handle("GET /users/{id}", "users_get", s.handleGetUser)
	handle("PUT /users/{id}", "users_update", s.handleUpdateUser)
	handle("POST /products", "products_create", s.handleCreateProduct)
	handle("GET /products/{id}", "products_get", s.handleGetProduct)

	handle("GET /healthz", "healthz", s.handleHealth)

	return mux
}

// noStore marks carrier-backed responses as never cacheable.
func noStore(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, max-age=0")
		next(w, r)
	}
}

func (s *server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.carrier.ListCities(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cities)
}

func (s *server) handleStreets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CityRef      string `json:"cityRef"`
		SearchString string `json:"searchString"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	streets, err := s.carrier.FindStreets(r.Context(), strings.TrimSpace(req.CityRef), strings.TrimSpace(req.SearchString))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, streets)
}

func (s *server) handleWarehouses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CityRef string `json:"cityRef"`
		Type    string `json:"type"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	kind, err := novaposhta.ParseWarehouseKind(req.Type)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	warehouses, err := s.carrier.ListWarehouses(r.Context(), strings.TrimSpace(req.CityRef), kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, warehouses)
}

func (s *server) handleCounterparty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ref, err := s.carrier.CreateCounterparty(r.Context(),
		strings.TrimSpace(req.FirstName),
		strings.TrimSpace(req.LastName),
		strings.TrimSpace(req.Email),
		novaposhta.NormalizePhone(req.Phone))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"ref": ref})
}

func (s *server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req orders.CheckoutRequest
	if !s.decode(w, r, &req) {
		return
	}

	order, err := s.orders.Checkout(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := s.orders.ListOrders(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *server) handleGenerateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	invoice, err := s.invoices.GenerateInvoiceForOrder(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, invoice)
}

func (s *server) handleInvoiceDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	detail, err := s.invoices.GetInvoiceDetails(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.orders.SetPaymentStatus(r.Context(), id, models.PaymentStatus(req.Status)); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"payment_status": req.Status})
}

func (s *server) handleDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.orders.SetDeliveryStatus(r.Context(), id, models.DeliveryStatus(req.Status)); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"delivery_status": req.Status})
}

func (s *server) handleReviewRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	sent, err := s.orders.RequestReview(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"sent": sent})
}

func (s *server) handleValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string          `json:"code"`
		CartTotal decimal.Decimal `json:"cart_total"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	quote, err := s.promos.Validate(r.Context(), req.Code, req.CartTotal)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// handleApplyPromo redeems one use outside checkout, for codes settled by
// hand in the back office.
func (s *server) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	code, err := s.promos.Apply(r.Context(), r.PathValue("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, code)
}

func (s *server) handleGeneratePromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerEmail       string `json:"owner_email"`
		ValidityDays     int    `json:"validity_days"`
		ReusabilityTimes int    `json:"reusability_times"`
		DiscountPercent  int    `json:"discount_percent"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	code, err := s.promos.Generate(r.Context(), promo.GenerateParams{
		OwnerEmail:       req.OwnerEmail,
		ValidityDays:     req.ValidityDays,
		ReusabilityTimes: req.ReusabilityTimes,
		DiscountPercent:  req.DiscountPercent,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, code)
}

type rewardResponse struct {
	PromoCode *models.PromoCode `json:"promocode"`
	EmailSent bool              `json:"email_sent"`
}

func (s *server) handleRewardReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Name        string `json:"name"`
		ProductName string `json:"product_name"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.fail(w, r, fmt.Errorf("%w: email is required", errBadRequest))
		return
	}

	code, err := s.promos.RewardReview(r.Context(), strings.TrimSpace(req.Email), req.Name, req.ProductName)
	if err != nil && code == nil {
		s.fail(w, r, err)
		return
	}
	if err != nil {
		s.log.WarnContext(r.Context(), "review reward email failed", "code", code.Code, "error", err)
	}
	respondJSON(w, http.StatusCreated, rewardResponse{PromoCode: code, EmailSent: err == nil})
}

type userRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	PhoneNumber string `json:"phone_number"`
}

func (u userRequest) validate() error {
	if strings.TrimSpace(u.Email) == "" || strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: email and name are required", errBadRequest)
	}
	return nil
}

// handleCreateUser registers the account and issues the welcome promo code.
// The account stands even when the reward fails.
func (s *server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	user, err := s.catalog.CreateUser(ctx, strings.TrimSpace(req.Email), strings.TrimSpace(req.Name),
		strings.TrimSpace(req.Surname), strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	code, err := s.promos.RewardSignup(ctx, user.Email)
	if err != nil {
		s.log.WarnContext(ctx, "signup reward incomplete", "user_id", user.ID, "error", err)
	}

	respondJSON(w, http.StatusCreated, struct {
		User      *models.User      `json:"user"`
		PromoCode *models.PromoCode `json:"promocode,omitempty"`
	}{user, code})
}

func (s *server) handleFindUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		s.fail(w, r, fmt.Errorf("%w: email query parameter is required", errBadRequest))
		return
	}

	user, err := s.catalog.GetUserByEmail(r.Context(), email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	user, err := s.catalog.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req userRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.catalog.UpdateUser(r.Context(), id, strings.TrimSpace(req.Email), strings.TrimSpace(req.Name),
		strings.TrimSpace(req.Surname), strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU      string          `json:"sku"`
		Name     string          `json:"name"`
		Price    decimal.Decimal `json:"price"`
		WeightKg decimal.Decimal `json:"weight_kg"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.SKU == "" || req.Name == "" || req.Price.IsNegative() || req.WeightKg.IsNegative() {
		s.fail(w, r, fmt.Errorf("%w: sku, name and a non-negative price are required", errBadRequest))
		return
	}

	product, err := s.catalog.CreateProduct(r.Context(), req.SKU, req.Name, req.Price, req.WeightKg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (s *server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	product, err := s.catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ping(r.Context()); err != nil {
		s.log.ErrorContext(r.Context(), "health check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}

// statusFor maps service errors to HTTP status codes. Order matters: an
// invoice race lost after carrier calls is still a conflict, and any other
// partial workflow failure is reported as a gateway error.
func statusFor(err error) int {
	var partial *shipping.PartialFailureError
	switch {
	case errors.Is(err, database.ErrInvoiceAlreadyGenerated),
		database.IsUniqueViolation(err):
		return http.StatusConflict
	case errors.As(err, &partial),
		errors.Is(err, novaposhta.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, database.ErrPromoNotFound),
		errors.Is(err, database.ErrPromoExpired),
		errors.Is(err, database.ErrPromoExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, novaposhta.ErrInvalidArgument),
		errors.Is(err, orders.ErrInvalidCheckout),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, promo.ErrInvalidPromo):
		return http.StatusBadRequest
	case errors.Is(err, novaposhta.ErrNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, shipping.ErrNoInvoice):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type partialFailureBody struct {
	Error           string `json:"error"`
	Step            string `json:"step"`
	CounterpartyRef string `json:"counterparty_ref"`
	ContactRef      string `json:"contact_ref,omitempty"`
	TrackingNumber  string `json:"tracking_number,omitempty"`
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var partial *shipping.PartialFailureError
	if errors.As(err, &partial) {
		respondJSON(w, status, partialFailureBody{
			Error:           err.Error(),
			Step:            partial.Step.String(),
			CounterpartyRef: partial.CounterpartyRef,
			ContactRef:      partial.ContactRef,
			TrackingNumber:  partial.TrackingNumber,
		})
		return
	}

	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, status, "Internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
