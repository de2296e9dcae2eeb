package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CopperGroup/bytecraft/internal/database"
	"github.com/CopperGroup/bytecraft/internal/models"
)

const userColumns = `id, email, name, surname, phone_number, created_at, updated_at, version`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Surname,
		&user.PhoneNumber,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	return user, err
}

func CreateUser(ctx context.Context, db DBTX, email, name, surname, phone string) (*models.User, error) {
	query := `
		INSERT INTO users (email, name, surname, phone_number, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	user, err := scanUser(db.QueryRowContext(ctx, query, email, name, surname, phone))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db DBTX, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db DBTX, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

// UpdateUser edits the account record only. Orders keep the customer data
// they were created with.
func UpdateUser(ctx context.Context, db DBTX, id int64, email, name, surname, phone string) (*models.User, error) {
	query := `
		UPDATE users
		SET email = $2, name = $3, surname = $4, phone_number = $5,
		    updated_at = NOW(), version = version + 1
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(db.QueryRowContext(ctx, query, id, email, name, surname, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}
