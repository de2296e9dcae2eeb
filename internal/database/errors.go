package database

import (
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

func ClassifyError(err error) ErrorClass {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ErrorClassPermanent
	}

	switch pqErr.Code {
	case codeSerializationFailure:
		return ErrorClassSerialization
	case codeDeadlockDetected:
		return ErrorClassDeadlock
	case codeLockNotAvailable:
		return ErrorClassTransient
	}
	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvoiceAlreadyGenerated = errors.New("invoice already generated")
	ErrPromoNotFound           = errors.New("promo code not found")
	ErrPromoExpired            = errors.New("promo code expired")
	ErrPromoExhausted          = errors.New("promo code exhausted")
)
