package sources

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"example.com/resto/services/kitchen/internal/cache"
	"example.com/resto/services/kitchen/internal/kitchen"
)

// TableState is one table's serialized state as written to redis by the
// front of house. This is the raw-state POS backing, selectable instead
// of the Postgres table rows via pos.backend.
type TableState struct {
	TableNumber int               `json:"table_number"`
	WaitingArea bool              `json:"waiting_area"`
	Orders      []TableStateOrder `json:"orders"`
}

// TableStateOrder is one fired order inside a serialized table state.
type TableStateOrder struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Items     []TableStateItem `json:"items"`
}

// TableStateItem is a line item with its POS item-level status.
type TableStateItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
}

// RedisStateSource serves in-store orders from the serialized table
// state in redis.
type RedisStateSource struct {
	redis *cache.RedisClient
}

// NewRedisStateSource creates the redis-backed POS source.
func NewRedisStateSource(redis *cache.RedisClient) *RedisStateSource {
	return &RedisStateSource{redis: redis}
}

// Kind identifies this as the POS source.
func (s *RedisStateSource) Kind() kitchen.OrderSource {
	return kitchen.SourcePOS
}

// FetchOrders scans every table state key and adapts each order with
// active items.
func (s *RedisStateSource) FetchOrders(ctx context.Context) ([]kitchen.UnifiedOrder, error) {
	keys, err := s.redis.Keys(ctx, "pos:table:*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list table state keys")
	}

	var orders []kitchen.UnifiedOrder
	for _, key := range keys {
		var state TableState
		if err := s.redis.GetJSON(ctx, key, &state); err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				// Key expired between the scan and the read.
				continue
			}
			return nil, errors.Wrapf(err, "failed to read table state %s", key)
		}

		for _, record := range stateToRecords(state) {
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

// UpdateStatus finds the table state containing the order, rewrites its
// non-terminal item statuses and writes the state back.
func (s *RedisStateSource) UpdateStatus(ctx context.Context, orderID string, status kitchen.Status) error {
	native, err := kitchen.TranslateItemStatus(status)
	if err != nil {
		return err
	}

	keys, err := s.redis.Keys(ctx, "pos:table:*")
	if err != nil {
		return errors.Wrap(err, "failed to list table state keys")
	}

	for _, key := range keys {
		var state TableState
		if err := s.redis.GetJSON(ctx, key, &state); err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				continue
			}
			return errors.Wrapf(err, "failed to read table state %s", key)
		}

		if !rewriteOrderStatus(&state, orderID, native) {
			continue
		}

		if err := s.redis.SetJSON(ctx, key, state, 0); err != nil {
			return errors.Wrapf(err, "failed to write table state %s", key)
		}
		return nil
	}

	return errors.Errorf("table order %s not found in any table state", orderID)
}

// stateToRecords converts a serialized table state into adapter input.
func stateToRecords(state TableState) []kitchen.TableOrderRecord {
	records := make([]kitchen.TableOrderRecord, 0, len(state.Orders))
	for _, o := range state.Orders {
		record := kitchen.TableOrderRecord{
			ID:          o.ID,
			TableNumber: state.TableNumber,
			WaitingArea: state.WaitingArea,
			CreatedAt:   o.CreatedAt,
		}
		for _, it := range o.Items {
			record.Items = append(record.Items, kitchen.TableOrderItem{
				Name:     it.Name,
				Quantity: it.Quantity,
				Status:   it.Status,
				Notes:    it.Notes,
			})
		}
		records = append(records, record)
	}
	return records
}

// rewriteOrderStatus patches the item statuses of the named order inside
// the state. Returns false when the order is not on this table.
func rewriteOrderStatus(state *TableState, orderID, native string) bool {
	for i := range state.Orders {
		if state.Orders[i].ID != orderID {
			continue
		}
		for j := range state.Orders[i].Items {
			st := state.Orders[i].Items[j].Status
			if st == "served" || st == "cancelled" {
				continue
			}
			state.Orders[i].Items[j].Status = native
		}
		return true
	}
	return false
}
