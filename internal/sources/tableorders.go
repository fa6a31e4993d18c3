package sources

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/resto/services/kitchen/internal/kitchen"
	"example.com/resto/services/kitchen/internal/models"
)

// TableOrderSource serves in-store orders from the table session rows in
// Postgres. This is the default POS backing store.
type TableOrderSource struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewTableOrderSource creates the Postgres-backed POS source.
func NewTableOrderSource(db, readOnlyDB *gorm.DB) *TableOrderSource {
	return &TableOrderSource{db: db, readOnlyDB: readOnlyDB}
}

// Kind identifies this as the POS source.
func (s *TableOrderSource) Kind() kitchen.OrderSource {
	return kitchen.SourcePOS
}

// FetchOrders aggregates every order on an open table session into a
// unified kitchen order. Orders whose items are all served or cancelled
// are filtered out before adaptation.
func (s *TableOrderSource) FetchOrders(ctx context.Context) ([]kitchen.UnifiedOrder, error) {
	var sessions []models.TableSession
	err := s.readOnlyDB.WithContext(ctx).
		Preload("Orders.Items").
		Where("closed_at IS NULL").
		Find(&sessions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query table sessions")
	}

	var orders []kitchen.UnifiedOrder
	for _, session := range sessions {
		for _, tableOrder := range session.Orders {
			record := kitchen.TableOrderRecord{
				ID:          tableOrder.ID.String(),
				TableNumber: session.TableNumber,
				WaitingArea: session.WaitingArea,
				CreatedAt:   tableOrder.CreatedAt,
			}
			for _, item := range tableOrder.Items {
				record.Items = append(record.Items, kitchen.TableOrderItem{
					Name:     item.Name,
					Quantity: item.Quantity,
					Status:   item.Status,
					Notes:    item.Notes,
				})
			}

			order, err := kitchen.AdaptTableOrder(record)
			if err != nil {
				if errors.Is(err, kitchen.ErrNoActiveItems) {
					continue
				}
				return nil, err
			}
			orders = append(orders, order)
		}
	}

	return orders, nil
}

// UpdateStatus rewrites the non-terminal line items of the order to the
// POS vocabulary equivalent of the new status.
func (s *TableOrderSource) UpdateStatus(ctx context.Context, orderID string, status kitchen.Status) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return errors.Wrapf(err, "invalid table order id %q", orderID)
	}

	native, err := kitchen.TranslateItemStatus(status)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&models.TableOrderItem{}).
		Where("order_id = ? AND status NOT IN ?", id, []string{"served", "cancelled"}).
		Update("status", native)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update table order items")
	}

	return nil
}
