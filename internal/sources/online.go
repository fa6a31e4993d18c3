package sources

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/resto/services/kitchen/internal/kitchen"
	"example.com/resto/services/kitchen/internal/models"
)

// OnlineSource serves online orders from the Postgres order table.
// Reads go to the read-only connection, status writes to the primary.
type OnlineSource struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewOnlineSource creates the online order source.
func NewOnlineSource(db, readOnlyDB *gorm.DB) *OnlineSource {
	return &OnlineSource{db: db, readOnlyDB: readOnlyDB}
}

// Kind identifies this as the online source.
func (s *OnlineSource) Kind() kitchen.OrderSource {
	return kitchen.SourceOnline
}

// FetchOrders returns all non-completed online orders adapted to the
// unified shape. Rows carrying a status outside the known vocabulary
// fail the fetch: a new status must be mapped before it can be shown.
func (s *OnlineSource) FetchOrders(ctx context.Context) ([]kitchen.UnifiedOrder, error) {
	var rows []models.OnlineOrder
	err := s.readOnlyDB.WithContext(ctx).
		Where("status <> ?", "completed").
		Order("placed_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query online orders")
	}

	orders := make([]kitchen.UnifiedOrder, 0, len(rows))
	for _, row := range rows {
		var items []kitchen.ItemLine
		if len(row.Items) > 0 {
			if err := json.Unmarshal(row.Items, &items); err != nil {
				return nil, errors.Wrapf(err, "failed to decode items on online order %s", row.ID)
			}
		}

		order, err := kitchen.AdaptOnlineOrder(kitchen.OnlineOrderRecord{
			ID:           row.ID.String(),
			Status:       row.Status,
			OrderType:    row.OrderType,
			CustomerName: row.CustomerName,
			Items:        items,
			CreatedAt:    row.PlacedAt,
			ScheduledFor: row.ScheduledFor,
		})
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, nil
}

// UpdateStatus translates the shared status back to the online
// vocabulary and patches the row.
func (s *OnlineSource) UpdateStatus(ctx context.Context, orderID string, status kitchen.Status) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return errors.Wrapf(err, "invalid online order id %q", orderID)
	}

	native, err := kitchen.TranslateOnlineStatus(status)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&models.OnlineOrder{}).
		Where("id = ?", id).
		Update("status", native)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update online order status")
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("online order %s not found", orderID)
	}

	return nil
}
