package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, name, price, weight_kg, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Price,
		&product.WeightKg,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	return product, err
}

func CreateProduct(ctx context.Context, db DBTX, sku, name string, price, weightKg decimal.Decimal) (*models.Product, error) {
	query := `
		INSERT INTO products (sku, name, price, weight_kg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query, sku, name, price, weightKg))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db DBTX, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProductsForOrder loads every referenced product with a shared lock so
// prices cannot change under an in-flight checkout. A missing id fails the
// whole lookup.
func GetProductsForOrder(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) FOR SHARE`

	rows, err := tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]*models.Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, fmt.Errorf("product %d: %w", id, database.ErrProductNotFound)
		}
	}

	return products, nil
}
