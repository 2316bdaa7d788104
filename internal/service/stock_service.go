package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/costing"
	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrStockNotFound   = errors.New("stock batch not found")
	ErrStockReferenced = errors.New("stock batch has been used in sales and cannot be deleted")
)

// DTOs
type CreateStockRequest struct {
	StockCode     string    `json:"stock_code" binding:"required"`
	CrabID        string    `json:"crab_id" binding:"required"`
	EntryDate     time.Time `json:"entry_date" binding:"required"`
	EntryQuantity float64   `json:"entry_quantity" binding:"required,gt=0"`
	PurchasePrice float64   `json:"purchase_price" binding:"required,min=0"`
	Supplier      string    `json:"supplier"`
	Notes         string    `json:"notes"`
}

type UpdateStockRequest struct {
	EntryDate     time.Time `json:"entry_date" binding:"required"`
	EntryQuantity float64   `json:"entry_quantity" binding:"required,gt=0"`
	PurchasePrice float64   `json:"purchase_price" binding:"required,min=0"`
	Supplier      string    `json:"supplier"`
	Notes         string    `json:"notes"`
}

type StockResponse struct {
	ID             string    `json:"id"`
	StockCode      string    `json:"stock_code"`
	CrabID         string    `json:"crab_id"`
	CrabName       string    `json:"crab_name,omitempty"`
	EntryDate      time.Time `json:"entry_date"`
	EntryQuantity  float64   `json:"entry_quantity"`
	RemainingStock float64   `json:"remaining_stock"`
	PurchasePrice  float64   `json:"purchase_price"`
	TotalCost      float64   `json:"total_cost"`
	StockStatus    string    `json:"stock_status"`
	Supplier       string    `json:"supplier,omitempty"`
	Notes          string    `json:"notes,omitempty"`
}

type StockService interface {
	CreateStock(ctx context.Context, userID string, req CreateStockRequest) (*StockResponse, error)
	UpdateStock(ctx context.Context, userID string, id string, req UpdateStockRequest) (*StockResponse, error)
	DeleteStock(ctx context.Context, userID string, id string) error
	GetStock(ctx context.Context, id string) (*StockResponse, error)
	ListStocks(ctx context.Context, page, limit int, filter repository.StockFilter) ([]StockResponse, int64, error)
	StockSummary(ctx context.Context) ([]model.StockSummary, error)
}

type stockService struct {
	stockRepo repository.StockRepository
	crabRepo  repository.CrabRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	hub       *ws.Hub
}

func NewStockService(
	stockRepo repository.StockRepository,
	crabRepo repository.CrabRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) StockService {
	return &stockService{
		stockRepo: stockRepo,
		crabRepo:  crabRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		hub:       hub,
	}
}

func mapStockResponse(stock *model.Stock) *StockResponse {
	res := &StockResponse{
		ID:             stock.ID.String(),
		StockCode:      stock.StockCode,
		CrabID:         stock.CrabID.String(),
		EntryDate:      stock.EntryDate,
		EntryQuantity:  stock.EntryQuantity,
		RemainingStock: stock.RemainingStock,
		PurchasePrice:  stock.PurchasePrice,
		TotalCost:      round2(stock.TotalCost),
		StockStatus:    stock.StockStatus,
		Supplier:       stock.Supplier,
		Notes:          stock.Notes,
	}
	if stock.Crab != nil {
		res.CrabName = stock.Crab.Name
	}
	return res
}

func (s *stockService) CreateStock(ctx context.Context, userID string, req CreateStockRequest) (*StockResponse, error) {
	if _, err := s.stockRepo.FindByCode(ctx, req.StockCode); err == nil {
		return nil, fmt.Errorf("stock code %s is already registered", req.StockCode)
	}

	crabID, err := uuid.Parse(req.CrabID)
	if err != nil {
		return nil, fmt.Errorf("invalid crab id: %w", err)
	}
	crab, err := s.crabRepo.FindByID(ctx, crabID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("crab product not found")
		}
		return nil, fmt.Errorf("failed to find crab: %w", err)
	}

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	stock := model.Stock{
		StockCode:      req.StockCode,
		CrabID:         crab.ID,
		EntryDate:      req.EntryDate,
		EntryQuantity:  req.EntryQuantity,
		RemainingStock: req.EntryQuantity, // initially the whole batch is available
		PurchasePrice:  req.PurchasePrice,
		TotalCost:      req.EntryQuantity * req.PurchasePrice,
		StockStatus:    model.StockStatusAvailable,
		Supplier:       req.Supplier,
		Notes:          req.Notes,
		UserID:         uid,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.stockRepo.Create(txCtx, &stock); err != nil {
			return fmt.Errorf("failed to create stock: %w", err)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionCreateStock,
			EntityID:   stock.ID.String(),
			EntityName: stock.StockCode,
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return nil, err
	}

	s.broadcastStock(stock.ID.String())

	stock.Crab = crab
	return mapStockResponse(&stock), nil
}

// UpdateStock edits a batch's metadata. Remaining stock is re-derived from the
// new entry quantity minus what has already been consumed, so edits cannot
// fabricate or destroy allocated quantity. Status is recomputed from remaining.
func (s *stockService) UpdateStock(ctx context.Context, userID string, id string, req UpdateStockRequest) (*StockResponse, error) {
	stockID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid stock id: %w", err)
	}

	stock, err := s.stockRepo.FindByID(ctx, stockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}

	consumed := stock.EntryQuantity - stock.RemainingStock
	if req.EntryQuantity < consumed {
		return nil, fmt.Errorf("entry quantity %.3f is below the %.3f already consumed from this batch", req.EntryQuantity, consumed)
	}

	stock.EntryDate = req.EntryDate
	stock.EntryQuantity = req.EntryQuantity
	stock.RemainingStock = req.EntryQuantity - consumed
	stock.PurchasePrice = req.PurchasePrice
	stock.TotalCost = req.EntryQuantity * req.PurchasePrice
	stock.StockStatus = costing.StatusFor(stock.RemainingStock)
	stock.Supplier = req.Supplier
	stock.Notes = req.Notes

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.stockRepo.Update(txCtx, stock); err != nil {
			return fmt.Errorf("failed to update stock: %w", err)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionUpdateStock,
			EntityID:   stock.ID.String(),
			EntityName: stock.StockCode,
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return nil, err
	}

	s.broadcastStock(stock.ID.String())
	return mapStockResponse(stock), nil
}

// DeleteStock removes a batch only if no sale ever drew from it; referenced
// batches are part of the costing audit trail and must survive.
func (s *stockService) DeleteStock(ctx context.Context, userID string, id string) error {
	stockID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid stock id: %w", err)
	}

	stock, err := s.stockRepo.FindByID(ctx, stockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStockNotFound
		}
		return fmt.Errorf("failed to load stock: %w", err)
	}

	refs, err := s.stockRepo.CountStockOutRefs(ctx, stockID)
	if err != nil {
		return fmt.Errorf("failed to check stock usage: %w", err)
	}
	if refs > 0 {
		return ErrStockReferenced
	}

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.stockRepo.Delete(txCtx, stockID); err != nil {
			return fmt.Errorf("failed to delete stock: %w", err)
		}

		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionDeleteStock,
			EntityID:   stock.ID.String(),
			EntityName: stock.StockCode,
			Details:    `{"deleted": true}`,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
}

func (s *stockService) GetStock(ctx context.Context, id string) (*StockResponse, error) {
	stockID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid stock id: %w", err)
	}

	stock, err := s.stockRepo.FindByID(ctx, stockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}

	return mapStockResponse(stock), nil
}

func (s *stockService) ListStocks(ctx context.Context, page, limit int, filter repository.StockFilter) ([]StockResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	stocks, total, err := s.stockRepo.List(ctx, page, limit, filter)
	if err != nil {
		return nil, 0, err
	}

	res := make([]StockResponse, 0, len(stocks))
	for i := range stocks {
		res = append(res, *mapStockResponse(&stocks[i]))
	}
	return res, total, nil
}

func (s *stockService) StockSummary(ctx context.Context) ([]model.StockSummary, error) {
	return s.stockRepo.SummaryByCrab(ctx)
}

func (s *stockService) broadcastStock(stockID string) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"event": "stock_update",
		"data":  map[string]string{"stock_id": stockID},
	})
	s.hub.Broadcast <- payload
}
