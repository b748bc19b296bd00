package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"powerx/internal/models"
	"powerx/internal/repository"
)

// SettlementService rolls filled orders into daily settlement rows. One row
// per filled order; amount = price * quantity.
type SettlementService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// GenerateDaily settles the owner's orders filled on the given local day.
// Already-settled orders are skipped, so the job is safe to rerun.
func (s *SettlementService) GenerateDaily(ctx context.Context, ownerID uint64, day time.Time, loc *time.Location) (int, error) {
	if loc == nil {
		loc = time.UTC
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	existing, err := s.Repo.ListSettlements(ctx, repository.ListSettlementsParams{
		OwnerID: &ownerID,
		Day:     &dayStart,
		Limit:   1000,
	})
	if err != nil {
		return 0, err
	}
	settled := make(map[uint64]bool, len(existing))
	for _, item := range existing {
		settled[item.OrderID] = true
	}

	status := models.OrderStatusFilled
	orders, err := s.Repo.ListOrders(ctx, repository.ListOrdersParams{
		OwnerID: &ownerID,
		Status:  &status,
		Limit:   1000,
	})
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range orders {
		order := &orders[i]
		if settled[order.ID] {
			continue
		}
		if order.FilledAt == nil || order.FilledAt.Before(dayStart) || !order.FilledAt.Before(dayEnd) {
			continue
		}
		item := &models.Settlement{
			OwnerID:       order.OwnerID,
			OrderID:       order.ID,
			Province:      order.Province,
			SettlementDay: dayStart,
			Quantity:      order.Quantity,
			AvgPrice:      order.Price,
			Amount:        order.Price.Mul(order.Quantity).Round(2),
			Status:        "settled",
		}
		if err := s.Repo.InsertSettlement(ctx, item); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("settlement insert failed", zap.Uint64("order_id", order.ID), zap.Error(err))
			}
			continue
		}
		created++
	}
	if s.Logger != nil && created > 0 {
		s.Logger.Info("settlements generated",
			zap.Uint64("owner_id", ownerID), zap.Int("count", created))
	}
	return created, nil
}
