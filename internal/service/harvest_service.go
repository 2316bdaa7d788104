package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DTOs
type WeatherRequest struct {
	Name         string  `json:"name" binding:"required"`
	NumericValue float64 `json:"numeric_value" binding:"min=0"`
}

type WeatherResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	NumericValue float64 `json:"numeric_value"`
}

type HarvestRequest struct {
	Date           time.Time `json:"date" binding:"required"`
	WeatherID      string    `json:"weather_id" binding:"required"`
	ProductionCost float64   `json:"production_cost" binding:"required,min=0"`
	HarvestAmount  float64   `json:"harvest_amount" binding:"min=0"`
	Notes          string    `json:"notes"`
}

type HarvestResponse struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	WeatherID      string    `json:"weather_id"`
	WeatherName    string    `json:"weather_name,omitempty"`
	WeatherValue   float64   `json:"weather_value"`
	ProductionCost float64   `json:"production_cost"`
	HarvestAmount  float64   `json:"harvest_amount"`
	Notes          string    `json:"notes,omitempty"`
}

type HarvestService interface {
	CreateWeather(ctx context.Context, req WeatherRequest) (*WeatherResponse, error)
	ListWeathers(ctx context.Context) ([]WeatherResponse, error)
	CreateHarvest(ctx context.Context, userID string, req HarvestRequest) (*HarvestResponse, error)
	UpdateHarvest(ctx context.Context, userID string, id string, req HarvestRequest) (*HarvestResponse, error)
	DeleteHarvest(ctx context.Context, userID string, id string) error
	ListHarvests(ctx context.Context, page, limit int, startDate, endDate *time.Time) ([]HarvestResponse, int64, error)
}

type harvestService struct {
	harvestRepo repository.HarvestRepository
	weatherRepo repository.WeatherRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewHarvestService(
	harvestRepo repository.HarvestRepository,
	weatherRepo repository.WeatherRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) HarvestService {
	return &harvestService{
		harvestRepo: harvestRepo,
		weatherRepo: weatherRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

func (s *harvestService) CreateWeather(ctx context.Context, req WeatherRequest) (*WeatherResponse, error) {
	weather := model.Weather{
		Name:         req.Name,
		NumericValue: req.NumericValue,
	}
	if err := s.weatherRepo.Create(ctx, &weather); err != nil {
		return nil, fmt.Errorf("failed to create weather: %w", err)
	}
	return &WeatherResponse{
		ID:           weather.ID.String(),
		Name:         weather.Name,
		NumericValue: weather.NumericValue,
	}, nil
}

func (s *harvestService) ListWeathers(ctx context.Context) ([]WeatherResponse, error) {
	weathers, err := s.weatherRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]WeatherResponse, 0, len(weathers))
	for _, w := range weathers {
		res = append(res, WeatherResponse{
			ID:           w.ID.String(),
			Name:         w.Name,
			NumericValue: w.NumericValue,
		})
	}
	return res, nil
}

func mapHarvestResponse(rec *model.HarvestRecord) *HarvestResponse {
	res := &HarvestResponse{
		ID:             rec.ID.String(),
		Date:           rec.Date,
		WeatherID:      rec.WeatherID.String(),
		ProductionCost: rec.ProductionCost,
		HarvestAmount:  rec.HarvestAmount,
		Notes:          rec.Notes,
	}
	if rec.Weather != nil {
		res.WeatherName = rec.Weather.Name
		res.WeatherValue = rec.Weather.NumericValue
	}
	return res
}

func (s *harvestService) CreateHarvest(ctx context.Context, userID string, req HarvestRequest) (*HarvestResponse, error) {
	weatherID, err := uuid.Parse(req.WeatherID)
	if err != nil {
		return nil, fmt.Errorf("invalid weather id: %w", err)
	}
	weather, err := s.weatherRepo.FindByID(ctx, weatherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("weather reference not found")
		}
		return nil, fmt.Errorf("failed to find weather: %w", err)
	}

	record := model.HarvestRecord{
		Date:           req.Date,
		WeatherID:      weather.ID,
		ProductionCost: req.ProductionCost,
		HarvestAmount:  req.HarvestAmount,
		Notes:          req.Notes,
	}

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.harvestRepo.Create(txCtx, &record); err != nil {
			return fmt.Errorf("failed to create harvest record: %w", err)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionCreateHarvest,
			EntityID:   record.ID.String(),
			EntityName: record.Date.Format("2006-01-02"),
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return nil, err
	}

	record.Weather = weather
	return mapHarvestResponse(&record), nil
}

func (s *harvestService) UpdateHarvest(ctx context.Context, userID string, id string, req HarvestRequest) (*HarvestResponse, error) {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid harvest id: %w", err)
	}

	record, err := s.harvestRepo.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("harvest record not found")
		}
		return nil, fmt.Errorf("failed to load harvest record: %w", err)
	}

	weatherID, err := uuid.Parse(req.WeatherID)
	if err != nil {
		return nil, fmt.Errorf("invalid weather id: %w", err)
	}
	weather, err := s.weatherRepo.FindByID(ctx, weatherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("weather reference not found")
		}
		return nil, fmt.Errorf("failed to find weather: %w", err)
	}

	record.Date = req.Date
	record.WeatherID = weather.ID
	record.Weather = weather
	record.ProductionCost = req.ProductionCost
	record.HarvestAmount = req.HarvestAmount
	record.Notes = req.Notes

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.harvestRepo.Update(txCtx, record); err != nil {
			return fmt.Errorf("failed to update harvest record: %w", err)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionUpdateHarvest,
			EntityID:   record.ID.String(),
			EntityName: record.Date.Format("2006-01-02"),
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return nil, err
	}

	return mapHarvestResponse(record), nil
}

func (s *harvestService) DeleteHarvest(ctx context.Context, userID string, id string) error {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid harvest id: %w", err)
	}

	record, err := s.harvestRepo.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("harvest record not found")
		}
		return fmt.Errorf("failed to load harvest record: %w", err)
	}

	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.harvestRepo.Delete(txCtx, recordID); err != nil {
			return fmt.Errorf("failed to delete harvest record: %w", err)
		}

		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionDeleteHarvest,
			EntityID:   record.ID.String(),
			EntityName: record.Date.Format("2006-01-02"),
			Details:    `{"deleted": true}`,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
}

func (s *harvestService) ListHarvests(ctx context.Context, page, limit int, startDate, endDate *time.Time) ([]HarvestResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	records, total, err := s.harvestRepo.List(ctx, page, limit, startDate, endDate)
	if err != nil {
		return nil, 0, err
	}

	res := make([]HarvestResponse, 0, len(records))
	for i := range records {
		res = append(res, *mapHarvestResponse(&records[i]))
	}
	return res, total, nil
}
