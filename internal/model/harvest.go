package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Weather is reference data: a weather condition with its ordinal numeric code
// used as the regression predictor (e.g. 1 = sunny ... 5 = storm).
type Weather struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	NumericValue float64   `gorm:"type:decimal(6,2);not null" json:"numeric_value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HarvestRecord is one observed harvest: the regression training row
// (weather code, production cost) -> harvest amount.
type HarvestRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Date           time.Time      `gorm:"not null;index" json:"date"`
	WeatherID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"weather_id"`
	Weather        *Weather       `gorm:"foreignKey:WeatherID" json:"weather,omitempty"`
	ProductionCost float64        `gorm:"type:decimal(14,2);not null" json:"production_cost"`
	HarvestAmount  float64        `gorm:"type:decimal(12,3);not null" json:"harvest_amount"`
	Notes          string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
