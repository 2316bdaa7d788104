package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockFilter narrows List results
type StockFilter struct {
	CrabID      *uuid.UUID
	StockStatus string
}

type StockRepository interface {
	Create(ctx context.Context, stock *model.Stock) error
	Update(ctx context.Context, stock *model.Stock) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Stock, error)
	FindByCode(ctx context.Context, code string) (*model.Stock, error)
	List(ctx context.Context, page, limit int, filter StockFilter) ([]model.Stock, int64, error)
	// FindAvailableFIFO returns AVAILABLE batches with remaining stock for one
	// crab, oldest entry first (created_at breaks entry-date ties), locked
	// FOR UPDATE so concurrent allocations serialize on the same rows.
	FindAvailableFIFO(ctx context.Context, crabID uuid.UUID) ([]model.Stock, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Stock, error)
	// UpdateAllocation writes the remaining quantity and status computed by the
	// costing engine. Nothing else may touch these two columns.
	UpdateAllocation(ctx context.Context, id uuid.UUID, remaining float64, status string) error
	CountStockOutRefs(ctx context.Context, stockID uuid.UUID) (int64, error)
	SummaryByCrab(ctx context.Context) ([]model.StockSummary, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) Create(ctx context.Context, stock *model.Stock) error {
	return GetDB(ctx, r.db).Create(stock).Error
}

func (r *stockRepository) Update(ctx context.Context, stock *model.Stock) error {
	return GetDB(ctx, r.db).Save(stock).Error
}

func (r *stockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Stock{}).Error
}

func (r *stockRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Stock, error) {
	var stock model.Stock
	if err := GetDB(ctx, r.db).Preload("Crab").First(&stock, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepository) FindByCode(ctx context.Context, code string) (*model.Stock, error) {
	var stock model.Stock
	if err := GetDB(ctx, r.db).Where("stock_code = ?", code).First(&stock).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepository) List(ctx context.Context, page, limit int, filter StockFilter) ([]model.Stock, int64, error) {
	var stocks []model.Stock
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Stock{})
	if filter.CrabID != nil {
		db = db.Where("crab_id = ?", *filter.CrabID)
	}
	if filter.StockStatus != "" {
		db = db.Where("stock_status = ?", filter.StockStatus)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Crab").
		Order("entry_date asc, created_at asc").
		Offset(offset).Limit(limit).
		Find(&stocks).Error; err != nil {
		return nil, 0, err
	}

	return stocks, total, nil
}

func (r *stockRepository) FindAvailableFIFO(ctx context.Context, crabID uuid.UUID) ([]model.Stock, error) {
	var stocks []model.Stock
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("crab_id = ? AND stock_status = ? AND remaining_stock > 0", crabID, model.StockStatusAvailable).
		Order("entry_date asc, created_at asc").
		Find(&stocks).Error
	if err != nil {
		return nil, err
	}
	return stocks, nil
}

func (r *stockRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Stock, error) {
	var stock model.Stock
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&stock).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepository) UpdateAllocation(ctx context.Context, id uuid.UUID, remaining float64, status string) error {
	return GetDB(ctx, r.db).Model(&model.Stock{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"remaining_stock": remaining,
			"stock_status":    status,
		}).Error
}

func (r *stockRepository) CountStockOutRefs(ctx context.Context, stockID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.StockOutDetail{}).
		Where("stock_id = ?", stockID).Count(&count).Error
	return count, err
}

func (r *stockRepository) SummaryByCrab(ctx context.Context) ([]model.StockSummary, error) {
	var summaries []model.StockSummary
	err := GetDB(ctx, r.db).Table("stocks").
		Select("crabs.id as crab_id, crabs.name as crab_name, crabs.crab_code as crab_code, SUM(stocks.remaining_stock) as total_remaining, COUNT(stocks.id) as batch_count").
		Joins("JOIN crabs ON crabs.id = stocks.crab_id").
		Where("stocks.stock_status = ?", model.StockStatusAvailable).
		Group("crabs.id, crabs.name, crabs.crab_code").
		Order("crabs.name asc").
		Scan(&summaries).Error
	return summaries, err
}
