package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Crab represents a sellable crab product (species/grade)
type Crab struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CrabCode    string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"crab_code"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	SellPrice   float64        `gorm:"type:decimal(12,2);not null" json:"sell_price"`
	Unit        string         `gorm:"type:varchar(20);default:'kg'" json:"unit"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Customer represents a registered buyer
type Customer struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Phone     string         `gorm:"type:varchar(20)" json:"phone"`
	Address   string         `gorm:"type:text" json:"address"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
