package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/CopperGroup/bytecraft/internal/promo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	UserID    *int64
	Customer  models.Customer
	Items     []OrderItemRequest
	Promocode string
}

type OrderItemRequest struct {
	ProductID int64
	Amount    int
}

const orderColumns = `id, order_number, user_id,
	name, surname, phone_number, email, payment_type, delivery_method, city,
	address, postal_code, building_number, apartment, comment,
	city_ref, warehouse_ref, warehouse_index, street_ref,
	value, discount, promocode, payment_status, delivery_status, invoice,
	email_ask_for_review, email_confirmation, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	order := &models.Order{}
	var (
		userID   sql.NullInt64
		discount decimal.NullDecimal
		invoice  []byte
	)

	c := &order.Customer
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&userID,
		&c.Name,
		&c.Surname,
		&c.PhoneNumber,
		&c.Email,
		&c.PaymentType,
		&c.DeliveryMethod,
		&c.City,
		&c.Address,
		&c.PostalCode,
		&c.BuildingNumber,
		&c.Apartment,
		&c.Comment,
		&c.CityRef,
		&c.WarehouseRef,
		&c.WarehouseIndex,
		&c.StreetRef,
		&order.Value,
		&discount,
		&order.Promocode,
		&order.PaymentStatus,
		&order.DeliveryStatus,
		&invoice,
		&order.Emails.AskForReview,
		&order.Emails.Confirmation,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		order.UserID = &userID.Int64
	}
	if discount.Valid {
		order.Discount = &discount.Decimal
	}
	if invoice != nil {
		order.Invoice = &models.Invoice{}
		if err := json.Unmarshal(invoice, order.Invoice); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
	}

	return order, nil
}

func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("BC-%s-%s", time.Now().UTC().Format("060102"), suffix)
}

// CreateOrder prices the cart from the products table, redeems the optional
// promo code and inserts the order with its items. Everything happens in one
// serializable transaction, so a rejected promo code leaves no order behind and
// a failed insert gives the code its use back.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, errors.New("order has no items")
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Amount < 1 {
			return nil, fmt.Errorf("product %d: amount must be at least 1", item.ProductID)
		}
		ids = append(ids, item.ProductID)
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.CheckoutTxOptions(), func(tx *sql.Tx) error {
		products, err := GetProductsForOrder(ctx, tx, ids)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, item := range req.Items {
			price := products[item.ProductID].Price
			total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Amount))))
		}

		value := total
		var discount decimal.NullDecimal
		if req.Promocode != "" {
			code, err := RedeemPromoCode(ctx, tx, req.Promocode)
			if err != nil {
				return err
			}
			value = promo.ApplyPercent(total, code.DiscountPercent)
			discount = decimal.NewNullDecimal(decimal.NewFromInt(int64(code.DiscountPercent)))
		}

		var userID sql.NullInt64
		if req.UserID != nil {
			userID = sql.NullInt64{Int64: *req.UserID, Valid: true}
		}

		c := req.Customer
		query := `
			INSERT INTO orders (
				order_number, user_id,
				name, surname, phone_number, email, payment_type, delivery_method, city,
				address, postal_code, building_number, apartment, comment,
				city_ref, warehouse_ref, warehouse_index, street_ref,
				value, discount, promocode, payment_status, delivery_status,
				created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, NOW(), NOW()
			)
			RETURNING ` + orderColumns

		order, err = scanOrder(tx.QueryRowContext(ctx, query,
			generateOrderNumber(), userID,
			c.Name, c.Surname, c.PhoneNumber, c.Email, c.PaymentType, c.DeliveryMethod, c.City,
			c.Address, c.PostalCode, c.BuildingNumber, c.Apartment, c.Comment,
			c.CityRef, c.WarehouseRef, c.WarehouseIndex, c.StreetRef,
			value, discount, req.Promocode, models.PaymentPending, models.DeliveryProceeding,
		))
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		order.Items = make([]models.OrderItem, 0, len(req.Items))
		for position, item := range req.Items {
			product := products[item.ProductID]

			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, position, product_id, amount, unit_price)
				 VALUES ($1, $2, $3, $4, $5)`,
				order.ID, position, item.ProductID, item.Amount, product.Price)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			order.Items = append(order.Items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Amount:    item.Amount,
				UnitPrice: product.Price,
				WeightKg:  product.WeightKg,
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrder(ctx context.Context, db DBTX, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsQuery := `
		SELECT oi.product_id, p.name, oi.amount, oi.unit_price, p.weight_kg
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.position`

	rows, err := db.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ProductID,
			&item.Name,
			&item.Amount,
			&item.UnitPrice,
			&item.WeightKg,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	order.Items = items

	return order, nil
}

// SetPaymentStatus writes only the payment column. Any status may follow any
// other.
func SetPaymentStatus(ctx context.Context, db DBTX, id int64, status models.PaymentStatus) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	return requireRow(result)
}

// SetDeliveryStatus writes only the delivery column. Any status may follow any
// other.
func SetDeliveryStatus(ctx context.Context, db DBTX, id int64, status models.DeliveryStatus) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders SET delivery_status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("set delivery status: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}
	return nil
}

// SaveInvoice stores the carrier snapshot only while the order has none. A
// second writer gets ErrInvoiceAlreadyGenerated and the first invoice stays.
func SaveInvoice(ctx context.Context, db DBTX, id int64, invoice *models.Invoice) error {
	data, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET invoice = $1, updated_at = NOW()
		 WHERE id = $2
		   AND invoice IS NULL`,
		string(data), id)
	if err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	exists, err := orderExists(ctx, db, id)
	if err != nil {
		return err
	}
	if !exists {
		return database.ErrOrderNotFound
	}
	return database.ErrInvoiceAlreadyGenerated
}

func emailColumn(kind models.EmailKind) (string, error) {
	switch kind {
	case models.EmailAskForReview:
		return "email_ask_for_review", nil
	case models.EmailConfirmation:
		return "email_confirmation", nil
	}
	return "", fmt.Errorf("unknown email kind %q", kind)
}

// MarkEmailSent sets the flag for kind and reports whether this call flipped
// it. false means another caller recorded the send first.
func MarkEmailSent(ctx context.Context, db DBTX, id int64, kind models.EmailKind) (bool, error) {
	column, err := emailColumn(kind)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE orders SET `+column+` = TRUE, updated_at = NOW()
		 WHERE id = $1 AND NOT `+column,
		id)
	if err != nil {
		return false, fmt.Errorf("mark email sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return true, nil
	}

	exists, err := orderExists(ctx, db, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, database.ErrOrderNotFound
	}
	return false, nil
}

func orderExists(ctx context.Context, db DBTX, id int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)",
		id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check order exists: %w", err)
	}
	return exists, nil
}

// ListOrdersCursor pages through orders newest first. Items are not loaded.
func ListOrdersCursor(ctx context.Context, db DBTX, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE (created_at, id) < ($1, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	rows, err := db.QueryContext(ctx, query, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
