package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaleFilter narrows List results
type SaleFilter struct {
	CustomerID *uuid.UUID
	SaleStatus string
	StartDate  *time.Time
	EndDate    *time.Time
}

type SaleRepository interface {
	Create(ctx context.Context, sale *model.Sale) error
	CreateDetail(ctx context.Context, detail *model.SaleDetail) error
	CreateStockOut(ctx context.Context, out *model.StockOutDetail) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindBySaleNumber(ctx context.Context, saleNumber string) (*model.Sale, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page, limit int, filter SaleFilter) ([]model.Sale, int64, error)
	Summary(ctx context.Context, startDate, endDate time.Time) (model.SalesSummary, error)
}

type saleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(ctx context.Context, sale *model.Sale) error {
	return GetDB(ctx, r.db).Create(sale).Error
}

func (r *saleRepository) CreateDetail(ctx context.Context, detail *model.SaleDetail) error {
	return GetDB(ctx, r.db).Create(detail).Error
}

func (r *saleRepository) CreateStockOut(ctx context.Context, out *model.StockOutDetail) error {
	return GetDB(ctx, r.db).Create(out).Error
}

func (r *saleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepository) FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).
		Preload("Customer").
		Preload("Details").
		Preload("Details.Crab").
		Preload("Details.StockOuts").
		Preload("Details.StockOuts.Stock").
		First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepository) FindBySaleNumber(ctx context.Context, saleNumber string) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).Where("sale_number = ?", saleNumber).First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// UpdateStatus transitions a sale to the given status. The update only touches
// rows not already in that status, so two racing cancellations cannot both
// succeed; the loser gets gorm.ErrRecordNotFound.
func (r *saleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := GetDB(ctx, r.db).Model(&model.Sale{}).
		Where("id = ?", id).
		Where("sale_status <> ?", status).
		Update("sale_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *saleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Sale{}).Error
}

func (r *saleRepository) List(ctx context.Context, page, limit int, filter SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Sale{})
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.SaleStatus != "" {
		db = db.Where("sale_status = ?", filter.SaleStatus)
	}
	if filter.StartDate != nil && filter.EndDate != nil {
		db = db.Where("sale_date >= ? AND sale_date <= ?", *filter.StartDate, *filter.EndDate)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.
		Preload("Customer").
		Preload("Details").
		Preload("Details.Crab").
		Order("sale_date desc").
		Offset(offset).Limit(limit).
		Find(&sales).Error; err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

func (r *saleRepository) Summary(ctx context.Context, startDate, endDate time.Time) (model.SalesSummary, error) {
	var summary model.SalesSummary
	summary.TimeRangeStartDate = startDate
	summary.TimeRangeEndDate = endDate

	db := GetDB(ctx, r.db)

	var totals struct {
		Revenue float64
		COGS    float64
		Profit  float64
	}
	if err := db.Table("sales").
		Select("COALESCE(SUM(total_price), 0) as revenue, COALESCE(SUM(total_cogs), 0) as cogs, COALESCE(SUM(gross_profit), 0) as profit").
		Where("sale_status = ? AND sale_date >= ? AND sale_date <= ?", model.SaleStatusCompleted, startDate, endDate).
		Scan(&totals).Error; err != nil {
		return summary, err
	}
	summary.TotalRevenue = totals.Revenue
	summary.TotalCOGS = totals.COGS
	summary.TotalGrossProfit = totals.Profit

	if err := db.Model(&model.Sale{}).
		Where("sale_status = ? AND sale_date >= ? AND sale_date <= ?", model.SaleStatusCompleted, startDate, endDate).
		Count(&summary.TransactionCount).Error; err != nil {
		return summary, err
	}

	var rankings []model.CrabRanking
	if err := db.Table("sale_details").
		Select("crabs.id as crab_id, crabs.name as crab_name, crabs.crab_code as crab_code, SUM(sale_details.quantity) as total_quantity, SUM(sale_details.subtotal) as total_value").
		Joins("JOIN crabs ON crabs.id = sale_details.crab_id").
		Joins("JOIN sales ON sales.id = sale_details.sale_id").
		Where("sales.sale_status = ? AND sales.sale_date >= ? AND sales.sale_date <= ?", model.SaleStatusCompleted, startDate, endDate).
		Group("crabs.id, crabs.name, crabs.crab_code").
		Order("total_quantity DESC").
		Limit(5).
		Scan(&rankings).Error; err != nil {
		return summary, err
	}
	summary.TopSellingCrabs = rankings

	return summary, nil
}
