package kitchen

import (
	"time"
)

// OrderSource identifies which backing system owns an order. It is set
// once during adaptation and never changes afterwards; status writes are
// routed to the owning source.
type OrderSource string

const (
	SourcePOS    OrderSource = "POS"
	SourceOnline OrderSource = "ONLINE"
)

// OrderType influences priority computation on the kitchen display.
type OrderType string

const (
	TypeDineIn     OrderType = "DINE_IN"
	TypeCollection OrderType = "COLLECTION"
	TypeDelivery   OrderType = "DELIVERY"
	TypeWaiting    OrderType = "WAITING"
)

// Status is the shared kitchen status vocabulary. Each source keeps its
// own native vocabulary; the adapters translate in both directions.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusDelayed   Status = "DELAYED"
	StatusCompleted Status = "COMPLETED"
)

// StatusColor is a display token consumed by the kitchen board.
type StatusColor string

const (
	ColorRed    StatusColor = "red"
	ColorGreen  StatusColor = "green"
	ColorOrange StatusColor = "orange"
	ColorAmber  StatusColor = "amber"
	ColorGray   StatusColor = "gray"
)

// ItemLine is one aggregated line on a kitchen order.
type ItemLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

// UnifiedOrder is the merged representation of an order from either
// source, materialized fresh on every load and consumed by the kitchen
// display. Only Status is mutable; the trailing fields are derived by
// Enrich and never persisted.
type UnifiedOrder struct {
	ID           string      `json:"id"`
	Source       OrderSource `json:"order_source"`
	Type         OrderType   `json:"order_type"`
	Status       Status      `json:"status"`
	TableNumber  int         `json:"table_number,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	Items        []ItemLine  `json:"items"`
	CreatedAt    time.Time   `json:"created_at"`
	ScheduledFor *time.Time  `json:"scheduled_for,omitempty"`

	WaitingTime int         `json:"waiting_time"`
	IsPriority  bool        `json:"is_priority"`
	StatusColor StatusColor `json:"status_color"`
	TimeDisplay string      `json:"time_display"`
}

// validTransitions is the explicit status state machine. The terminal
// COMPLETED state can only be reopened to PREPARING, which lets staff
// correct an accidental bump without reviving finished orders as fresh.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusDelayed, StatusCompleted},
	StatusPreparing: {StatusReady, StatusDelayed, StatusPending},
	StatusReady:     {StatusCompleted, StatusPreparing},
	StatusDelayed:   {StatusPreparing, StatusReady, StatusCompleted},
	StatusCompleted: {StatusPreparing},
}

// CanTransition reports whether a status write from one status to
// another is allowed. Writing the current status again is always a no-op
// level transition and allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status removes the order from the active
// kitchen board.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}
