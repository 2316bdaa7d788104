package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CrabRepository interface {
	Create(ctx context.Context, crab *model.Crab) error
	Update(ctx context.Context, crab *model.Crab) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Crab, error)
	FindByCode(ctx context.Context, code string) (*model.Crab, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Crab, int64, error)
}

type crabRepository struct {
	db *gorm.DB
}

func NewCrabRepository(db *gorm.DB) CrabRepository {
	return &crabRepository{db: db}
}

func (r *crabRepository) Create(ctx context.Context, crab *model.Crab) error {
	return GetDB(ctx, r.db).Create(crab).Error
}

func (r *crabRepository) Update(ctx context.Context, crab *model.Crab) error {
	return GetDB(ctx, r.db).Save(crab).Error
}

func (r *crabRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Crab{}).Error
}

func (r *crabRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Crab, error) {
	var crab model.Crab
	if err := GetDB(ctx, r.db).First(&crab, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &crab, nil
}

func (r *crabRepository) FindByCode(ctx context.Context, code string) (*model.Crab, error) {
	var crab model.Crab
	if err := GetDB(ctx, r.db).Where("crab_code = ?", code).First(&crab).Error; err != nil {
		return nil, err
	}
	return &crab, nil
}

func (r *crabRepository) List(ctx context.Context, page, limit int, search string) ([]model.Crab, int64, error) {
	var crabs []model.Crab
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Crab{})
	if search != "" {
		db = db.Where("name ILIKE ?", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&crabs).Error; err != nil {
		return nil, 0, err
	}

	return crabs, total, nil
}
