package orders

import (
	"context"
	"log/slog"

	"github.com/CopperGroup/bytecraft/internal/events"
	"github.com/CopperGroup/bytecraft/internal/models"
	"github.com/CopperGroup/bytecraft/internal/store"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Service struct {
	store  OrderStore
	mailer Mailer
	events events.Publisher
	log    *slog.Logger

	emails singleflight.Group
}

func NewService(orderStore OrderStore, mailer Mailer, publisher events.Publisher, log *slog.Logger) *Service {
	return &Service{
		store:  orderStore,
		mailer: mailer,
		events: publisher,
		log:    log,
	}
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.store.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, cursor string, limit int) (*store.CursorPage, error) {
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	return s.store.ListOrders(ctx, cursor, limit)
}
