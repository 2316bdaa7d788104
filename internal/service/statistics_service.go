package service

import (
	"context"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
)

type StatisticsService interface {
	GetDashboard(ctx context.Context, startDate, endDate time.Time) (model.SalesSummary, error)
}

type statisticsService struct {
	saleRepo  repository.SaleRepository
	stockRepo repository.StockRepository
}

func NewStatisticsService(saleRepo repository.SaleRepository, stockRepo repository.StockRepository) StatisticsService {
	return &statisticsService{saleRepo: saleRepo, stockRepo: stockRepo}
}

// GetDashboard aggregates completed-sale totals and current stock availability
// for the requested period
func (s *statisticsService) GetDashboard(ctx context.Context, startDate, endDate time.Time) (model.SalesSummary, error) {
	summary, err := s.saleRepo.Summary(ctx, startDate, endDate)
	if err != nil {
		return summary, err
	}

	stockTotals, err := s.stockRepo.SummaryByCrab(ctx)
	if err != nil {
		return summary, err
	}
	summary.StockTotals = stockTotals

	return summary, nil
}
