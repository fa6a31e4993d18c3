package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// OnlineOrder is a row in the remote online order table. Rows are
// created and updated by the ingest worker from ordering-platform
// events; the kitchen board only ever patches Status.
type OnlineOrder struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	ExternalRef  string         `gorm:"not null;uniqueIndex" json:"external_ref"`
	Status       string         `gorm:"not null;index" json:"status"`
	OrderType    string         `gorm:"not null" json:"order_type"`
	CustomerName string         `gorm:"not null" json:"customer_name"`
	Items        []byte         `gorm:"type:jsonb;not null" json:"items"`
	TotalAmount  int32          `gorm:"not null;default:0" json:"total_amount"`
	PlacedAt     time.Time      `gorm:"not null" json:"placed_at"`
	ScheduledFor *time.Time     `json:"scheduled_for"`
}

// TableSession is one seated party at a table. Orders placed against it
// are the POS side of the kitchen feed.
type TableSession struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	TableNumber int            `gorm:"not null;index" json:"table_number"`
	WaitingArea bool           `gorm:"not null;default:false" json:"waiting_area"`
	ClosedAt    *time.Time     `json:"closed_at"`
	Orders      []TableOrder   `gorm:"foreignKey:SessionID" json:"-"`
}

// TableOrder is one order fired to the kitchen from a table session.
type TableOrder struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt   `gorm:"index" json:"-"`
	SessionID uuid.UUID        `gorm:"type:uuid;not null;index" json:"session_id"`
	Session   TableSession     `gorm:"foreignKey:SessionID" json:"-"`
	Items     []TableOrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// TableOrderItem is a line item on a table order with an item-level
// status in the POS vocabulary (ordered, preparing, ready, served,
// cancelled).
type TableOrderItem struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	Name     string     `gorm:"not null" json:"name"`
	Quantity int        `gorm:"not null;default:1" json:"quantity"`
	Status   string     `gorm:"not null" json:"status"`
	Notes    string     `json:"notes"`
	Order    TableOrder `gorm:"foreignKey:OrderID" json:"-"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&OnlineOrder{},
		&TableSession{},
		&TableOrder{},
		&TableOrderItem{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
