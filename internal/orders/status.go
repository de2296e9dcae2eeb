package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/CopperGroup/bytecraft/internal/events"
	"github.com/CopperGroup/bytecraft/internal/models"
)

var ErrInvalidStatus = errors.New("invalid status")

// SetPaymentStatus overwrites the payment status. There is no transition
// table: any status may follow any other, and delivery status is untouched.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: payment status %q", ErrInvalidStatus, status)
	}
	if err := s.store.SetPaymentStatus(ctx, orderID, status); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "payment status changed", "order_id", orderID, "status", status)
	events.Emit(ctx, s.events, s.log, events.New(events.TypePaymentStatusChanged, orderID, map[string]any{
		"status": string(status),
	}))
	return nil
}

// SetDeliveryStatus overwrites the delivery status. Moving to Fulfilled asks
// the customer for a review once the status is stored; a failed email does
// not undo the status change.
func (s *Service) SetDeliveryStatus(ctx context.Context, orderID int64, status models.DeliveryStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: delivery status %q", ErrInvalidStatus, status)
	}
	if err := s.store.SetDeliveryStatus(ctx, orderID, status); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "delivery status changed", "order_id", orderID, "status", status)
	events.Emit(ctx, s.events, s.log, events.New(events.TypeDeliveryStatusChanged, orderID, map[string]any{
		"status": string(status),
	}))

	if status != models.DeliveryFulfilled {
		return nil
	}
	if _, err := s.RequestReview(ctx, orderID); err != nil {
		return fmt.Errorf("delivery status saved, review request failed: %w", err)
	}
	return nil
}

// RequestReview sends the ask-for-review email at most once per order. It
// reports false when the email had already gone out.
func (s *Service) RequestReview(ctx context.Context, orderID int64) (bool, error) {
	return s.sendOnce(ctx, orderID, models.EmailAskForReview, s.mailer.SendAskForReview, events.TypeReviewRequested)
}

// SendConfirmation sends the order confirmation email at most once.
func (s *Service) SendConfirmation(ctx context.Context, orderID int64) (bool, error) {
	return s.sendOnce(ctx, orderID, models.EmailConfirmation, s.mailer.SendOrderConfirmation, "")
}

// sendOnce checks the flag, sends, then records the flag. The flag is written
// only after a successful send, so a failed send can be retried. Concurrent
// calls for the same order and kind in this process share one attempt and its
// result.
func (s *Service) sendOnce(ctx context.Context, orderID int64, kind models.EmailKind, send func(context.Context, *models.Order) error, eventType string) (bool, error) {
	key := string(kind) + ":" + strconv.FormatInt(orderID, 10)

	v, err, _ := s.emails.Do(key, func() (any, error) {
		order, err := s.store.GetOrder(ctx, orderID)
		if err != nil {
			return false, err
		}
		if kind.Sent(order.Emails) {
			return false, nil
		}

		if err := send(ctx, order); err != nil {
			s.log.WarnContext(ctx, "email send failed", "order_id", orderID, "email", kind, "error", err)
			return false, fmt.Errorf("send %s email: %w", kind, err)
		}

		flipped, err := s.store.MarkEmailSent(ctx, orderID, kind)
		if err != nil {
			s.log.ErrorContext(ctx, "email sent but flag not recorded", "order_id", orderID, "email", kind, "error", err)
			return true, fmt.Errorf("record %s email: %w", kind, err)
		}
		if !flipped {
			s.log.WarnContext(ctx, "email flag already set by another sender", "order_id", orderID, "email", kind)
		}

		s.log.InfoContext(ctx, "email sent", "order_id", orderID, "email", kind)
		if eventType != "" {
			events.Emit(ctx, s.events, s.log, events.New(eventType, orderID, nil))
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
