package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultModelName is the single model name the harvest predictor trains under.
const DefaultModelName = "harvest_prediction_model"

// RegressionModel stores the fitted coefficients and fit metrics of one trained
// model. Exactly one row exists per model name (upsert on train); prediction
// reads the most recently trained active row.
type RegressionModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ModelName           string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"model_name"`
	Intercept           float64   `gorm:"type:double precision;not null" json:"intercept"`
	WeatherCoeff        float64   `gorm:"type:double precision;not null" json:"weather_coeff"`
	ProductionCostCoeff float64   `gorm:"type:double precision;not null" json:"production_cost_coeff"`
	RSquared            float64   `gorm:"type:double precision;not null" json:"r_squared"`
	RMSE                float64   `gorm:"column:rmse;type:double precision;not null" json:"rmse"`
	MAPE                float64   `gorm:"column:mape;type:double precision;not null" json:"mape"`
	PE                  float64   `gorm:"column:pe;type:double precision;not null" json:"pe"`
	TrainingDataCount   int       `gorm:"type:int;not null" json:"training_data_count"`
	TrainedAt           time.Time `gorm:"not null" json:"trained_at"`
	IsActive            bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
