package model

import (
	"time"

	"github.com/google/uuid"
)

// StockStatus Enum Simulation
const (
	StockStatusAvailable = "AVAILABLE"
	StockStatusEmpty     = "EMPTY"
)

// Stock represents one discrete batch of received inventory. EntryDate is the
// FIFO ordering key; RemainingStock is mutated only by the costing flow
// (allocation on sale, credit on cancellation).
type Stock struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StockCode      string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"stock_code"`
	CrabID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"crab_id"`
	Crab           *Crab      `gorm:"foreignKey:CrabID" json:"crab,omitempty"`
	EntryDate      time.Time  `gorm:"not null;index" json:"entry_date"`
	EntryQuantity  float64    `gorm:"type:decimal(12,3);not null" json:"entry_quantity"`
	RemainingStock float64    `gorm:"type:decimal(12,3);not null" json:"remaining_stock"`
	PurchasePrice  float64    `gorm:"type:decimal(12,2);not null" json:"purchase_price"`
	TotalCost      float64    `gorm:"type:decimal(14,2);not null" json:"total_cost"` // entry_quantity * purchase_price, fixed at creation
	StockStatus    string     `gorm:"type:varchar(20);not null;default:'AVAILABLE';index" json:"stock_status"`
	Supplier       string     `gorm:"type:varchar(255)" json:"supplier,omitempty"`
	Notes          string     `gorm:"type:text" json:"notes,omitempty"`
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User           *User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
