package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DTOs
type CreateCrabRequest struct {
	CrabCode    string  `json:"crab_code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	SellPrice   float64 `json:"sell_price" binding:"required,min=0"`
	Unit        string  `json:"unit"`
}

type UpdateCrabRequest struct {
	CrabCode    string  `json:"crab_code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	SellPrice   float64 `json:"sell_price" binding:"required,min=0"`
	Unit        string  `json:"unit"`
}

type CrabResponse struct {
	ID          string  `json:"id"`
	CrabCode    string  `json:"crab_code"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	SellPrice   float64 `json:"sell_price"`
	Unit        string  `json:"unit"`
}

type CrabService interface {
	CreateCrab(ctx context.Context, userID string, req CreateCrabRequest) (*CrabResponse, error)
	UpdateCrab(ctx context.Context, userID string, id string, req UpdateCrabRequest) (*CrabResponse, error)
	DeleteCrab(ctx context.Context, userID string, id string) error
	GetCrab(ctx context.Context, id string) (*CrabResponse, error)
	ListCrabs(ctx context.Context, page, limit int, search string) ([]CrabResponse, int64, error)
}

type crabService struct {
	crabRepo  repository.CrabRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewCrabService(
	crabRepo repository.CrabRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) CrabService {
	return &crabService{crabRepo: crabRepo, auditRepo: auditRepo, txManager: txManager}
}

func mapCrabResponse(crab *model.Crab) *CrabResponse {
	return &CrabResponse{
		ID:          crab.ID.String(),
		CrabCode:    crab.CrabCode,
		Name:        crab.Name,
		Description: crab.Description,
		SellPrice:   crab.SellPrice,
		Unit:        crab.Unit,
	}
}

func (s *crabService) CreateCrab(ctx context.Context, userID string, req CreateCrabRequest) (*CrabResponse, error) {
	if _, err := s.crabRepo.FindByCode(ctx, req.CrabCode); err == nil {
		return nil, fmt.Errorf("crab code %s is already registered", req.CrabCode)
	}

	crab := model.Crab{
		CrabCode:    req.CrabCode,
		Name:        req.Name,
		Description: req.Description,
		SellPrice:   req.SellPrice,
		Unit:        req.Unit,
	}
	if crab.Unit == "" {
		crab.Unit = "kg"
	}

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.crabRepo.Create(txCtx, &crab); err != nil {
			return fmt.Errorf("failed to create crab: %w", err)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionCreateCrab,
			EntityID:   crab.ID.String(),
			EntityName: crab.Name,
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return nil, err
	}

	return mapCrabResponse(&crab), nil
}

func (s *crabService) UpdateCrab(ctx context.Context, userID string, id string, req UpdateCrabRequest) (*CrabResponse, error) {
	crabID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid crab id: %w", err)
	}

	crab, err := s.crabRepo.FindByID(ctx, crabID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("crab product not found")
		}
		return nil, fmt.Errorf("failed to load crab: %w", err)
	}

	crab.CrabCode = req.CrabCode
	crab.Name = req.Name
	crab.Description = req.Description
	crab.SellPrice = req.SellPrice
	if req.Unit != "" {
		crab.Unit = req.Unit
	}

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.crabRepo.Update(txCtx, crab); err != nil {
			return fmt.Errorf("failed to update crab: %w", err)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionUpdateCrab,
			EntityID:   crab.ID.String(),
			EntityName: crab.Name,
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return nil, err
	}

	return mapCrabResponse(crab), nil
}

func (s *crabService) DeleteCrab(ctx context.Context, userID string, id string) error {
	crabID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid crab id: %w", err)
	}

	crab, err := s.crabRepo.FindByID(ctx, crabID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("crab product not found")
		}
		return fmt.Errorf("failed to load crab: %w", err)
	}

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.crabRepo.Delete(txCtx, crabID); err != nil {
			return fmt.Errorf("failed to delete crab: %w", err)
		}

		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionDeleteCrab,
			EntityID:   crab.ID.String(),
			EntityName: crab.Name,
			Details:    `{"deleted": true}`,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
}

func (s *crabService) GetCrab(ctx context.Context, id string) (*CrabResponse, error) {
	crabID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid crab id: %w", err)
	}

	crab, err := s.crabRepo.FindByID(ctx, crabID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("crab product not found")
		}
		return nil, fmt.Errorf("failed to load crab: %w", err)
	}

	return mapCrabResponse(crab), nil
}

func (s *crabService) ListCrabs(ctx context.Context, page, limit int, search string) ([]CrabResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	crabs, total, err := s.crabRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]CrabResponse, 0, len(crabs))
	for i := range crabs {
		res = append(res, *mapCrabResponse(&crabs[i]))
	}
	return res, total, nil
}
