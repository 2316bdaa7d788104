package repository

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegressionRepository interface {
	// Upsert writes the model as a single INSERT ... ON CONFLICT statement
	// keyed on model_name, so readers either see the previous coefficient set
	// or the complete new one, never a mix.
	Upsert(ctx context.Context, m *model.RegressionModel) error
	FindActive(ctx context.Context, modelName string) (*model.RegressionModel, error)
}

type regressionRepository struct {
	db *gorm.DB
}

func NewRegressionRepository(db *gorm.DB) RegressionRepository {
	return &regressionRepository{db: db}
}

func (r *regressionRepository) Upsert(ctx context.Context, m *model.RegressionModel) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "model_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"intercept", "weather_coeff", "production_cost_coeff",
			"r_squared", "rmse", "mape", "pe",
			"training_data_count", "trained_at", "is_active", "updated_at",
		}),
	}).Create(m).Error
}

func (r *regressionRepository) FindActive(ctx context.Context, modelName string) (*model.RegressionModel, error) {
	var m model.RegressionModel
	err := GetDB(ctx, r.db).
		Where("model_name = ? AND is_active = ?", modelName, true).
		Order("trained_at desc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
