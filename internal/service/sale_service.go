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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sale errors surfaced to the request layer
var (
	ErrSaleNotFound     = errors.New("sale not found")
	ErrAlreadyCancelled = errors.New("sale has already been cancelled")
	ErrBatchMissing     = errors.New("stock batch referenced by the sale no longer exists")
)

// DTOs
type SaleItemRequest struct {
	CrabID    string  `json:"crab_id" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" binding:"required,gt=0"`
}

type CreateSaleRequest struct {
	SaleNumber    string            `json:"sale_number" binding:"required"`
	SaleDate      time.Time         `json:"sale_date" binding:"required"`
	CustomerID    string            `json:"customer_id"`
	BuyerName     string            `json:"buyer_name"`
	PaymentMethod string            `json:"payment_method" binding:"required,oneof=CASH TRANSFER"`
	Notes         string            `json:"notes"`
	Items         []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
}

type StockOutResponse struct {
	StockID           string  `json:"stock_id"`
	StockCode         string  `json:"stock_code,omitempty"`
	QuantityOut       float64 `json:"quantity_out"`
	UnitPurchasePrice float64 `json:"unit_purchase_price"`
	TotalPurchaseCost float64 `json:"total_purchase_cost"`
}

type SaleDetailResponse struct {
	CrabID      string             `json:"crab_id"`
	CrabName    string             `json:"crab_name,omitempty"`
	Quantity    float64            `json:"quantity"`
	UnitPrice   float64            `json:"unit_price"`
	Subtotal    float64            `json:"subtotal"`
	TotalCOGS   float64            `json:"total_cogs"`
	GrossProfit float64            `json:"gross_profit"`
	StockOuts   []StockOutResponse `json:"stock_outs,omitempty"`
}

type SaleResponse struct {
	ID            string               `json:"id"`
	SaleNumber    string               `json:"sale_number"`
	SaleDate      time.Time            `json:"sale_date"`
	CustomerID    string               `json:"customer_id,omitempty"`
	BuyerName     string               `json:"buyer_name,omitempty"`
	TotalPrice    float64              `json:"total_price"`
	TotalCOGS     float64              `json:"total_cogs"`
	GrossProfit   float64              `json:"gross_profit"`
	PaymentMethod string               `json:"payment_method"`
	SaleStatus    string               `json:"sale_status"`
	Notes         string               `json:"notes,omitempty"`
	Details       []SaleDetailResponse `json:"details,omitempty"`
}

type SaleService interface {
	CreateSale(ctx context.Context, userID string, req CreateSaleRequest) (*SaleResponse, error)
	CancelSale(ctx context.Context, userID string, id string) error
	DeleteSale(ctx context.Context, userID string, id string) error
	GetSale(ctx context.Context, id string) (*SaleResponse, error)
	ListSales(ctx context.Context, page, limit int, filter repository.SaleFilter) ([]SaleResponse, int64, error)
}

type saleService struct {
	saleRepo     repository.SaleRepository
	stockRepo    repository.StockRepository
	crabRepo     repository.CrabRepository
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	hub          *ws.Hub
}

func NewSaleService(
	saleRepo repository.SaleRepository,
	stockRepo repository.StockRepository,
	crabRepo repository.CrabRepository,
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) SaleService {
	return &saleService{
		saleRepo:     saleRepo,
		stockRepo:    stockRepo,
		crabRepo:     crabRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		hub:          hub,
	}
}

// round2 rounds a monetary amount for the response payload. Allocation itself
// runs on raw float64; rounding happens only here at the presentation boundary.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// CreateSale runs the full FIFO costing flow for one sale. The batch reads
// (FOR UPDATE), batch updates, and all sale/detail/stock-out inserts happen in
// one transaction: either everything commits or nothing does. Row locks on the
// batches make concurrent allocations against the same crab serialize, so two
// sales can never together over-draw a batch.
func (s *saleService) CreateSale(ctx context.Context, userID string, req CreateSaleRequest) (*SaleResponse, error) {
	if _, err := s.saleRepo.FindBySaleNumber(ctx, req.SaleNumber); err == nil {
		return nil, fmt.Errorf("sale number %s is already registered", req.SaleNumber)
	}

	var customerID *uuid.UUID
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("invalid customer id: %w", err)
		}
		if _, err := s.customerRepo.FindByID(ctx, cid); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.New("customer not found")
			}
			return nil, fmt.Errorf("failed to find customer: %w", err)
		}
		customerID = &cid
	}

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	sale := model.Sale{
		SaleNumber:    req.SaleNumber,
		SaleDate:      req.SaleDate,
		CustomerID:    customerID,
		BuyerName:     req.BuyerName,
		PaymentMethod: req.PaymentMethod,
		SaleStatus:    model.SaleStatusCompleted,
		Notes:         req.Notes,
		UserID:        uid,
	}
	var detailResponses []SaleDetailResponse

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		type plannedItem struct {
			crab *model.Crab
			req  SaleItemRequest
			plan *costing.Plan
		}
		var planned []plannedItem

		// 1. Lock batches per item and let the engine plan the draws.
		for _, item := range req.Items {
			crabID, parseErr := uuid.Parse(item.CrabID)
			if parseErr != nil {
				return fmt.Errorf("invalid crab id: %w", parseErr)
			}
			crab, findErr := s.crabRepo.FindByID(txCtx, crabID)
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return fmt.Errorf("crab product not found: %s", item.CrabID)
				}
				return fmt.Errorf("failed to find crab %s: %w", item.CrabID, findErr)
			}

			stocks, stockErr := s.stockRepo.FindAvailableFIFO(txCtx, crabID)
			if stockErr != nil {
				return fmt.Errorf("failed to load available stock: %w", stockErr)
			}

			batches := make([]costing.Batch, 0, len(stocks))
			for _, st := range stocks {
				batches = append(batches, costing.Batch{
					StockID:       st.ID,
					EntryDate:     st.EntryDate,
					EntryQuantity: st.EntryQuantity,
					Remaining:     st.RemainingStock,
					UnitPrice:     st.PurchasePrice,
				})
			}

			plan, allocErr := costing.Allocate(batches, item.Quantity)
			if allocErr != nil {
				return fmt.Errorf("allocation failed for %s: %w", crab.Name, allocErr)
			}

			planned = append(planned, plannedItem{crab: crab, req: item, plan: plan})
		}

		// 2. Totals for the sale header.
		for _, p := range planned {
			subtotal := p.req.Quantity * p.req.UnitPrice
			sale.TotalPrice += subtotal
			sale.TotalCOGS += p.plan.TotalCOGS
		}
		sale.GrossProfit = sale.TotalPrice - sale.TotalCOGS

		if err := s.saleRepo.Create(txCtx, &sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		// 3. Details, stock-out rows, and batch mutations.
		for _, p := range planned {
			subtotal := p.req.Quantity * p.req.UnitPrice
			detail := model.SaleDetail{
				SaleID:      sale.ID,
				CrabID:      p.crab.ID,
				Quantity:    p.req.Quantity,
				UnitPrice:   p.req.UnitPrice,
				Subtotal:    subtotal,
				TotalCOGS:   p.plan.TotalCOGS,
				GrossProfit: subtotal - p.plan.TotalCOGS,
			}
			if err := s.saleRepo.CreateDetail(txCtx, &detail); err != nil {
				return fmt.Errorf("failed to create sale detail: %w", err)
			}

			detailRes := SaleDetailResponse{
				CrabID:      p.crab.ID.String(),
				CrabName:    p.crab.Name,
				Quantity:    p.req.Quantity,
				UnitPrice:   p.req.UnitPrice,
				Subtotal:    round2(subtotal),
				TotalCOGS:   round2(p.plan.TotalCOGS),
				GrossProfit: round2(subtotal - p.plan.TotalCOGS),
			}

			for _, alloc := range p.plan.Allocations {
				out := model.StockOutDetail{
					SaleDetailID:      detail.ID,
					StockID:           alloc.StockID,
					QuantityOut:       alloc.Quantity,
					UnitPurchasePrice: alloc.UnitPrice,
					TotalPurchaseCost: alloc.Cost,
				}
				if err := s.saleRepo.CreateStockOut(txCtx, &out); err != nil {
					return fmt.Errorf("failed to create stock out detail: %w", err)
				}

				if err := s.stockRepo.UpdateAllocation(txCtx, alloc.StockID, alloc.NewRemaining, alloc.NewStatus); err != nil {
					return fmt.Errorf("failed to update stock batch: %w", err)
				}

				detailRes.StockOuts = append(detailRes.StockOuts, StockOutResponse{
					StockID:           alloc.StockID.String(),
					QuantityOut:       alloc.Quantity,
					UnitPurchasePrice: alloc.UnitPrice,
					TotalPurchaseCost: round2(alloc.Cost),
				})
			}

			detailResponses = append(detailResponses, detailRes)
		}

		// 4. Audit trail.
		details, _ := json.Marshal(map[string]interface{}{
			"sale_number": req.SaleNumber,
			"total_price": sale.TotalPrice,
			"total_cogs":  sale.TotalCOGS,
			"items":       len(req.Items),
		})
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionCreateSale,
			EntityID:   sale.ID.String(),
			EntityName: sale.SaleNumber,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	s.broadcast("sale_created", sale.ID.String())

	return &SaleResponse{
		ID:            sale.ID.String(),
		SaleNumber:    sale.SaleNumber,
		SaleDate:      sale.SaleDate,
		CustomerID:    req.CustomerID,
		BuyerName:     sale.BuyerName,
		TotalPrice:    round2(sale.TotalPrice),
		TotalCOGS:     round2(sale.TotalCOGS),
		GrossProfit:   round2(sale.GrossProfit),
		PaymentMethod: sale.PaymentMethod,
		SaleStatus:    sale.SaleStatus,
		Notes:         sale.Notes,
		Details:       detailResponses,
	}, nil
}

// CancelSale reverses a completed sale: every recorded draw is credited back
// to its batch and the sale is marked CANCELLED. The stock-out rows survive as
// the audit trail. A second cancellation is rejected, not silently re-credited.
func (s *saleService) CancelSale(ctx context.Context, userID string, id string) error {
	saleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid sale id: %w", err)
	}

	sale, err := s.saleRepo.FindByIDWithDetails(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSaleNotFound
		}
		return fmt.Errorf("failed to load sale: %w", err)
	}

	if sale.SaleStatus == model.SaleStatusCancelled {
		return ErrAlreadyCancelled
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// The guarded update is the real gate: the status check above ran
		// outside this transaction, so a concurrent cancellation may have won
		// the race since then. Zero rows touched means the sale is already
		// cancelled and nothing must be credited back.
		if err := s.saleRepo.UpdateStatus(txCtx, sale.ID, model.SaleStatusCancelled); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlreadyCancelled
			}
			return fmt.Errorf("failed to update sale status: %w", err)
		}

		for _, detail := range sale.Details {
			for _, out := range detail.StockOuts {
				stock, findErr := s.stockRepo.FindByIDForUpdate(txCtx, out.StockID)
				if findErr != nil {
					if errors.Is(findErr, gorm.ErrRecordNotFound) {
						return ErrBatchMissing
					}
					return fmt.Errorf("failed to load stock batch: %w", findErr)
				}

				newRemaining, newStatus := costing.Restore(stock.RemainingStock, out.QuantityOut)
				if err := s.stockRepo.UpdateAllocation(txCtx, stock.ID, newRemaining, newStatus); err != nil {
					return fmt.Errorf("failed to restore stock batch: %w", err)
				}
			}
		}

		var uid *uuid.UUID
		if parsed, err := uuid.Parse(userID); err == nil {
			uid = &parsed
		}
		details, _ := json.Marshal(map[string]interface{}{"sale_number": sale.SaleNumber})
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionCancelSale,
			EntityID:   sale.ID.String(),
			EntityName: sale.SaleNumber,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}

		return nil
	})

	if err != nil {
		return err
	}

	s.broadcast("sale_cancelled", sale.ID.String())
	return nil
}

// DeleteSale removes a sale that never went through (cancelled sales only);
// completed sales must be cancelled first so stock is restored.
func (s *saleService) DeleteSale(ctx context.Context, userID string, id string) error {
	saleID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid sale id: %w", err)
	}

	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSaleNotFound
		}
		return fmt.Errorf("failed to load sale: %w", err)
	}

	if sale.SaleStatus == model.SaleStatusCompleted {
		return errors.New("cannot delete a completed sale, cancel it instead")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.saleRepo.Delete(txCtx, saleID); err != nil {
			return fmt.Errorf("failed to delete sale: %w", err)
		}

		var uid *uuid.UUID
		if parsed, err := uuid.Parse(userID); err == nil {
			uid = &parsed
		}
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionDeleteSale,
			EntityID:   sale.ID.String(),
			EntityName: sale.SaleNumber,
			Details:    `{"deleted": true}`,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
}

func (s *saleService) GetSale(ctx context.Context, id string) (*SaleResponse, error) {
	saleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid sale id: %w", err)
	}

	sale, err := s.saleRepo.FindByIDWithDetails(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to load sale: %w", err)
	}

	return mapSaleResponse(sale), nil
}

func (s *saleService) ListSales(ctx context.Context, page, limit int, filter repository.SaleFilter) ([]SaleResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	sales, total, err := s.saleRepo.List(ctx, page, limit, filter)
	if err != nil {
		return nil, 0, err
	}

	res := make([]SaleResponse, 0, len(sales))
	for i := range sales {
		res = append(res, *mapSaleResponse(&sales[i]))
	}
	return res, total, nil
}

func mapSaleResponse(sale *model.Sale) *SaleResponse {
	res := &SaleResponse{
		ID:            sale.ID.String(),
		SaleNumber:    sale.SaleNumber,
		SaleDate:      sale.SaleDate,
		BuyerName:     sale.BuyerName,
		TotalPrice:    round2(sale.TotalPrice),
		TotalCOGS:     round2(sale.TotalCOGS),
		GrossProfit:   round2(sale.GrossProfit),
		PaymentMethod: sale.PaymentMethod,
		SaleStatus:    sale.SaleStatus,
		Notes:         sale.Notes,
	}
	if sale.CustomerID != nil {
		res.CustomerID = sale.CustomerID.String()
	}

	for _, d := range sale.Details {
		detail := SaleDetailResponse{
			CrabID:      d.CrabID.String(),
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			Subtotal:    round2(d.Subtotal),
			TotalCOGS:   round2(d.TotalCOGS),
			GrossProfit: round2(d.GrossProfit),
		}
		if d.Crab != nil {
			detail.CrabName = d.Crab.Name
		}
		for _, out := range d.StockOuts {
			outRes := StockOutResponse{
				StockID:           out.StockID.String(),
				QuantityOut:       out.QuantityOut,
				UnitPurchasePrice: out.UnitPurchasePrice,
				TotalPurchaseCost: round2(out.TotalPurchaseCost),
			}
			if out.Stock != nil {
				outRes.StockCode = out.Stock.StockCode
			}
			detail.StockOuts = append(detail.StockOuts, outRes)
		}
		res.Details = append(res.Details, detail)
	}

	return res
}

func (s *saleService) broadcast(event, saleID string) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  map[string]string{"sale_id": saleID},
	})
	s.hub.Broadcast <- payload
}
