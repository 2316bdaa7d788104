package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WeatherRepository interface {
	Create(ctx context.Context, weather *model.Weather) error
	Update(ctx context.Context, weather *model.Weather) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Weather, error)
	List(ctx context.Context) ([]model.Weather, error)
}

type weatherRepository struct {
	db *gorm.DB
}

func NewWeatherRepository(db *gorm.DB) WeatherRepository {
	return &weatherRepository{db: db}
}

func (r *weatherRepository) Create(ctx context.Context, weather *model.Weather) error {
	return GetDB(ctx, r.db).Create(weather).Error
}

func (r *weatherRepository) Update(ctx context.Context, weather *model.Weather) error {
	return GetDB(ctx, r.db).Save(weather).Error
}

func (r *weatherRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Weather{}).Error
}

func (r *weatherRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Weather, error) {
	var weather model.Weather
	if err := GetDB(ctx, r.db).First(&weather, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &weather, nil
}

func (r *weatherRepository) List(ctx context.Context) ([]model.Weather, error) {
	var weathers []model.Weather
	if err := GetDB(ctx, r.db).Order("numeric_value asc").Find(&weathers).Error; err != nil {
		return nil, err
	}
	return weathers, nil
}

type HarvestRepository interface {
	Create(ctx context.Context, record *model.HarvestRecord) error
	Update(ctx context.Context, record *model.HarvestRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.HarvestRecord, error)
	List(ctx context.Context, page, limit int, startDate, endDate *time.Time) ([]model.HarvestRecord, int64, error)
	// AllWithWeather returns every record joined with its weather reference,
	// ascending by date. This is the regression training/evaluation dataset.
	AllWithWeather(ctx context.Context, startDate, endDate *time.Time) ([]model.HarvestRecord, error)
}

type harvestRepository struct {
	db *gorm.DB
}

func NewHarvestRepository(db *gorm.DB) HarvestRepository {
	return &harvestRepository{db: db}
}

func (r *harvestRepository) Create(ctx context.Context, record *model.HarvestRecord) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *harvestRepository) Update(ctx context.Context, record *model.HarvestRecord) error {
	return GetDB(ctx, r.db).Save(record).Error
}

func (r *harvestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.HarvestRecord{}).Error
}

func (r *harvestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.HarvestRecord, error) {
	var record model.HarvestRecord
	if err := GetDB(ctx, r.db).Preload("Weather").First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *harvestRepository) List(ctx context.Context, page, limit int, startDate, endDate *time.Time) ([]model.HarvestRecord, int64, error) {
	var records []model.HarvestRecord
	var total int64

	db := GetDB(ctx, r.db).Model(&model.HarvestRecord{})
	if startDate != nil && endDate != nil {
		db = db.Where("date >= ? AND date <= ?", *startDate, *endDate)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Weather").Order("date asc").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *harvestRepository) AllWithWeather(ctx context.Context, startDate, endDate *time.Time) ([]model.HarvestRecord, error) {
	var records []model.HarvestRecord

	db := GetDB(ctx, r.db).Preload("Weather").Order("date asc")
	if startDate != nil && endDate != nil {
		db = db.Where("date >= ? AND date <= ?", *startDate, *endDate)
	}

	if err := db.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
