package model

import (
	"time"

	"github.com/google/uuid"
)

// SaleStatus constants
const (
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCancelled = "CANCELLED"
)

// PaymentMethod constants
const (
	PaymentCash     = "CASH"
	PaymentTransfer = "TRANSFER"
)

// Sale represents one sale transaction (header)
type Sale struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SaleNumber    string       `gorm:"type:varchar(100);uniqueIndex;not null" json:"sale_number"`
	SaleDate      time.Time    `gorm:"not null;index" json:"sale_date"`
	CustomerID    *uuid.UUID   `gorm:"type:uuid;index" json:"customer_id"`
	Customer      *Customer    `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	BuyerName     string       `gorm:"type:varchar(255)" json:"buyer_name,omitempty"`
	TotalPrice    float64      `gorm:"type:decimal(14,2);not null" json:"total_price"`
	TotalCOGS     float64      `gorm:"column:total_cogs;type:decimal(14,2);not null" json:"total_cogs"`
	GrossProfit   float64      `gorm:"type:decimal(14,2);not null" json:"gross_profit"`
	PaymentMethod string       `gorm:"type:varchar(20);not null" json:"payment_method"`
	SaleStatus    string       `gorm:"type:varchar(20);not null;default:'COMPLETED';index" json:"sale_status"`
	Notes         string       `gorm:"type:text" json:"notes,omitempty"`
	UserID        *uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User          *User        `gorm:"foreignKey:UserID" json:"-"`
	Details       []SaleDetail `gorm:"foreignKey:SaleID" json:"details,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// SaleDetail is one line of a sale: a crab product, the quantity sold, and the
// FIFO-derived cost basis for that quantity.
type SaleDetail struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SaleID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"sale_id"`
	CrabID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"crab_id"`
	Crab        *Crab            `gorm:"foreignKey:CrabID" json:"crab,omitempty"`
	Quantity    float64          `gorm:"type:decimal(12,3);not null" json:"quantity"`
	UnitPrice   float64          `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal    float64          `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	TotalCOGS   float64          `gorm:"column:total_cogs;type:decimal(14,2);not null" json:"total_cogs"`
	GrossProfit float64          `gorm:"type:decimal(14,2);not null" json:"gross_profit"`
	StockOuts   []StockOutDetail `gorm:"foreignKey:SaleDetailID" json:"stock_outs,omitempty"`
}

// StockOutDetail records one draw against one stock batch. Rows are retained
// after cancellation as the audit trail of which batches funded which sale.
type StockOutDetail struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SaleDetailID      uuid.UUID `gorm:"type:uuid;not null;index" json:"sale_detail_id"`
	StockID           uuid.UUID `gorm:"type:uuid;not null;index" json:"stock_id"`
	Stock             *Stock    `gorm:"foreignKey:StockID" json:"stock,omitempty"`
	QuantityOut       float64   `gorm:"type:decimal(12,3);not null" json:"quantity_out"`
	UnitPurchasePrice float64   `gorm:"type:decimal(12,2);not null" json:"unit_purchase_price"`
	TotalPurchaseCost float64   `gorm:"type:decimal(14,2);not null" json:"total_purchase_cost"`
	CreatedAt         time.Time `json:"created_at"`
}
