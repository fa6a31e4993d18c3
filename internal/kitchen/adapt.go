package kitchen

import (
	"time"

	"github.com/pkg/errors"
)

// TableOrderRecord is the source-native shape of an in-store order: one
// order on a table session, holding line items with per-item statuses.
type TableOrderRecord struct {
	ID          string
	TableNumber int
	WaitingArea bool
	Items       []TableOrderItem
	CreatedAt   time.Time
}

// TableOrderItem is a single line item on a table order. Item statuses
// use the POS vocabulary: "ordered", "preparing", "ready", "served",
// "cancelled".
type TableOrderItem struct {
	Name     string
	Quantity int
	Status   string
	Notes    string
}

// OnlineOrderRecord is the source-native shape of a row in the remote
// online order table.
type OnlineOrderRecord struct {
	ID           string
	Status       string
	OrderType    string
	CustomerName string
	Items        []ItemLine
	CreatedAt    time.Time
	ScheduledFor *time.Time
}

// onlineStatusIn translates the online source's status vocabulary into
// the shared one. The map must stay exhaustive over the remote enum:
// adaptation fails loudly on anything missing here, because a silent
// default would hide the order from staff.
var onlineStatusIn = map[string]Status{
	"confirmed": StatusPending,
	"preparing": StatusPreparing,
	"ready":     StatusReady,
	"delayed":   StatusDelayed,
	"completed": StatusCompleted,
}

// onlineStatusOut is the reverse map, used when writing a status change
// through to the online order table.
var onlineStatusOut = map[Status]string{
	StatusPending:   "confirmed",
	StatusPreparing: "preparing",
	StatusReady:     "ready",
	StatusDelayed:   "delayed",
	StatusCompleted: "completed",
}

// itemStatusIn maps POS per-item statuses to the shared vocabulary.
var itemStatusIn = map[string]Status{
	"ordered":   StatusPending,
	"preparing": StatusPreparing,
	"ready":     StatusReady,
	"served":    StatusCompleted,
}

// itemStatusOut maps a shared status back to the POS per-item
// vocabulary for write-through.
var itemStatusOut = map[Status]string{
	StatusPending:   "ordered",
	StatusPreparing: "preparing",
	StatusReady:     "ready",
	StatusDelayed:   "preparing",
	StatusCompleted: "served",
}

// TranslateOnlineStatus maps a shared status to the online vocabulary.
func TranslateOnlineStatus(s Status) (string, error) {
	native, ok := onlineStatusOut[s]
	if !ok {
		return "", errors.Errorf("no online status mapping for %q", s)
	}
	return native, nil
}

// TranslateItemStatus maps a shared status to the POS item vocabulary.
func TranslateItemStatus(s Status) (string, error) {
	native, ok := itemStatusOut[s]
	if !ok {
		return "", errors.Errorf("no item status mapping for %q", s)
	}
	return native, nil
}

// AdaptTableOrder maps a table order into the unified shape. Cancelled
// and served items are dropped; an order whose items are all terminal is
// not a kitchen order anymore, so the caller filters on ErrNoActiveItems.
//
// The aggregate order status is the least advanced status across active
// items: the kitchen treats the order as done only when everything is.
func AdaptTableOrder(order TableOrderRecord) (UnifiedOrder, error) {
	var items []ItemLine
	aggregate := StatusCompleted

	for _, it := range order.Items {
		if it.Status == "cancelled" || it.Status == "served" {
			continue
		}
		st, ok := itemStatusIn[it.Status]
		if !ok {
			return UnifiedOrder{}, errors.Errorf("unknown item status %q on table order %s", it.Status, order.ID)
		}
		items = append(items, ItemLine{Name: it.Name, Quantity: it.Quantity, Notes: it.Notes})
		if statusRank(st) < statusRank(aggregate) {
			aggregate = st
		}
	}

	if len(items) == 0 {
		return UnifiedOrder{}, ErrNoActiveItems
	}

	orderType := TypeDineIn
	if order.WaitingArea {
		orderType = TypeWaiting
	}

	return UnifiedOrder{
		ID:          order.ID,
		Source:      SourcePOS,
		Type:        orderType,
		Status:      aggregate,
		TableNumber: order.TableNumber,
		Items:       items,
		CreatedAt:   order.CreatedAt,
	}, nil
}

// AdaptOnlineOrder maps a remote order row into the unified shape.
// Unknown statuses and order types are hard errors.
func AdaptOnlineOrder(row OnlineOrderRecord) (UnifiedOrder, error) {
	status, ok := onlineStatusIn[row.Status]
	if !ok {
		return UnifiedOrder{}, errors.Errorf("unknown online order status %q on order %s", row.Status, row.ID)
	}

	var orderType OrderType
	switch row.OrderType {
	case "collection":
		orderType = TypeCollection
	case "delivery":
		orderType = TypeDelivery
	default:
		return UnifiedOrder{}, errors.Errorf("unknown online order type %q on order %s", row.OrderType, row.ID)
	}

	return UnifiedOrder{
		ID:           row.ID,
		Source:       SourceOnline,
		Type:         orderType,
		Status:       status,
		CustomerName: row.CustomerName,
		Items:        row.Items,
		CreatedAt:    row.CreatedAt,
		ScheduledFor: row.ScheduledFor,
	}, nil
}

// ErrNoActiveItems marks a table order with nothing left for the
// kitchen; such orders are filtered out before adaptation.
var ErrNoActiveItems = errors.New("table order has no active items")

// statusRank orders statuses by kitchen progress for aggregation.
func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusDelayed:
		return 1
	case StatusPreparing:
		return 2
	case StatusReady:
		return 3
	case StatusCompleted:
		return 4
	}
	return 0
}
