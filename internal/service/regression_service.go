package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"backend/internal/mlr"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Regression errors surfaced to the request layer
var (
	ErrNoActiveModel = errors.New("no trained model is active, train the model first")
	ErrInvalidInput  = errors.New("weather value and production cost must be finite non-negative numbers")
)

// DTOs
type TrainingResponse struct {
	ModelName           string  `json:"model_name"`
	Intercept           float64 `json:"intercept"`
	WeatherCoeff        float64 `json:"weather_coeff"`
	ProductionCostCoeff float64 `json:"production_cost_coeff"`
	RSquared            float64 `json:"r_squared"`
	RMSE                float64 `json:"rmse"`
	MAPE                float64 `json:"mape"`
	PE                  float64 `json:"pe"`
	TrainingDataCount   int     `json:"training_data_count"`
	TrainedAt           time.Time `json:"trained_at"`
}

type PredictionRequest struct {
	WeatherValue   float64 `json:"weather_value" binding:"min=0"`
	ProductionCost float64 `json:"production_cost" binding:"min=0"`
}

type PredictionResponse struct {
	WeatherValue     float64 `json:"weather_value"`
	ProductionCost   float64 `json:"production_cost"`
	PredictedHarvest float64 `json:"predicted_harvest"`
}

type ModelInfoResponse struct {
	TrainingResponse
	IsActive bool `json:"is_active"`
}

// EvaluationRow is one diagnostic row of the model-vs-actual view
type EvaluationRow struct {
	Date           time.Time `json:"date"`
	Weather        string    `json:"weather"`
	WeatherValue   float64   `json:"weather_value"`
	ProductionCost float64   `json:"production_cost"`
	ActualHarvest  float64   `json:"actual_harvest"`
	Predicted      float64   `json:"predicted"`
	Error          float64   `json:"error"`
	AbsError       float64   `json:"abs_error"`
	ErrorSquared   float64   `json:"error_squared"`
	PE             float64   `json:"pe"`
}

type EvaluationResponse struct {
	ModelName       string          `json:"model_name"`
	Rows            []EvaluationRow `json:"rows"`
	RMSE            float64         `json:"rmse"`
	MAPE            float64         `json:"mape"`
	TotalDataPoints int             `json:"total_data_points"`
}

type RegressionService interface {
	Train(ctx context.Context, userID string) (*TrainingResponse, error)
	Predict(ctx context.Context, req PredictionRequest) (*PredictionResponse, error)
	// PredictBatch validates every input before computing anything: one invalid
	// row fails the whole batch, matching the single-predict contract. Result
	// order matches input order.
	PredictBatch(ctx context.Context, reqs []PredictionRequest) ([]PredictionResponse, error)
	GetActiveModel(ctx context.Context) (*ModelInfoResponse, error)
	Evaluate(ctx context.Context, startDate, endDate *time.Time) (*EvaluationResponse, error)
}

type regressionService struct {
	harvestRepo    repository.HarvestRepository
	regressionRepo repository.RegressionRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
}

func NewRegressionService(
	harvestRepo repository.HarvestRepository,
	regressionRepo repository.RegressionRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) RegressionService {
	return &regressionService{
		harvestRepo:    harvestRepo,
		regressionRepo: regressionRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
	}
}

// Train fits the model on every harvest record that has a weather reference
// and upserts the coefficients under the fixed model name. A failed fit leaves
// the previously active model untouched.
func (s *regressionService) Train(ctx context.Context, userID string) (*TrainingResponse, error) {
	records, err := s.harvestRepo.AllWithWeather(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load training data: %w", err)
	}

	rows := make([]mlr.TrainingRow, 0, len(records))
	for _, rec := range records {
		if rec.Weather == nil {
			continue
		}
		rows = append(rows, mlr.TrainingRow{
			Weather: rec.Weather.NumericValue,
			Cost:    rec.ProductionCost,
			Actual:  rec.HarvestAmount,
		})
	}

	result, err := mlr.Train(rows)
	if err != nil {
		return nil, err
	}

	regModel := &model.RegressionModel{
		ModelName:           model.DefaultModelName,
		Intercept:           result.Model.Intercept,
		WeatherCoeff:        result.Model.WeatherCoeff,
		ProductionCostCoeff: result.Model.ProductionCostCoeff,
		RSquared:            result.Metrics.RSquared,
		RMSE:                result.Metrics.RMSE,
		MAPE:                result.Metrics.MAPE,
		PE:                  result.Metrics.PE,
		TrainingDataCount:   result.SampleCount,
		TrainedAt:           time.Now(),
		IsActive:            true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.regressionRepo.Upsert(txCtx, regModel); err != nil {
			return fmt.Errorf("failed to store model: %w", err)
		}

		var uid *uuid.UUID
		if parsed, err := uuid.Parse(userID); err == nil {
			uid = &parsed
		}
		details, _ := json.Marshal(map[string]interface{}{
			"r_squared":    result.Metrics.RSquared,
			"rmse":         result.Metrics.RMSE,
			"sample_count": result.SampleCount,
		})
		audit := &model.AuditLog{
			UserID:     uid,
			Action:     model.ActionTrainModel,
			EntityID:   model.DefaultModelName,
			EntityName: model.DefaultModelName,
			Details:    string(details),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return nil, err
	}

	return &TrainingResponse{
		ModelName:           regModel.ModelName,
		Intercept:           regModel.Intercept,
		WeatherCoeff:        regModel.WeatherCoeff,
		ProductionCostCoeff: regModel.ProductionCostCoeff,
		RSquared:            regModel.RSquared,
		RMSE:                regModel.RMSE,
		MAPE:                regModel.MAPE,
		PE:                  regModel.PE,
		TrainingDataCount:   regModel.TrainingDataCount,
		TrainedAt:           regModel.TrainedAt,
	}, nil
}

func validatePredictionInput(req PredictionRequest) error {
	for _, v := range []float64{req.WeatherValue, req.ProductionCost} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrInvalidInput
		}
	}
	return nil
}

func (s *regressionService) activeModel(ctx context.Context) (mlr.Model, error) {
	stored, err := s.regressionRepo.FindActive(ctx, model.DefaultModelName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mlr.Model{}, ErrNoActiveModel
		}
		return mlr.Model{}, fmt.Errorf("failed to load active model: %w", err)
	}
	return mlr.Model{
		Intercept:           stored.Intercept,
		WeatherCoeff:        stored.WeatherCoeff,
		ProductionCostCoeff: stored.ProductionCostCoeff,
	}, nil
}

func (s *regressionService) Predict(ctx context.Context, req PredictionRequest) (*PredictionResponse, error) {
	if err := validatePredictionInput(req); err != nil {
		return nil, err
	}

	m, err := s.activeModel(ctx)
	if err != nil {
		return nil, err
	}

	return &PredictionResponse{
		WeatherValue:     req.WeatherValue,
		ProductionCost:   req.ProductionCost,
		PredictedHarvest: round2(m.Predict(req.WeatherValue, req.ProductionCost)),
	}, nil
}

func (s *regressionService) PredictBatch(ctx context.Context, reqs []PredictionRequest) ([]PredictionResponse, error) {
	if len(reqs) == 0 {
		return nil, errors.New("at least one prediction input is required")
	}

	// All inputs are validated before any output is computed.
	for i, req := range reqs {
		if err := validatePredictionInput(req); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}

	m, err := s.activeModel(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]PredictionResponse, 0, len(reqs))
	for _, req := range reqs {
		res = append(res, PredictionResponse{
			WeatherValue:     req.WeatherValue,
			ProductionCost:   req.ProductionCost,
			PredictedHarvest: round2(m.Predict(req.WeatherValue, req.ProductionCost)),
		})
	}
	return res, nil
}

func (s *regressionService) GetActiveModel(ctx context.Context) (*ModelInfoResponse, error) {
	stored, err := s.regressionRepo.FindActive(ctx, model.DefaultModelName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveModel
		}
		return nil, fmt.Errorf("failed to load active model: %w", err)
	}

	return &ModelInfoResponse{
		TrainingResponse: TrainingResponse{
			ModelName:           stored.ModelName,
			Intercept:           stored.Intercept,
			WeatherCoeff:        stored.WeatherCoeff,
			ProductionCostCoeff: stored.ProductionCostCoeff,
			RSquared:            stored.RSquared,
			RMSE:                stored.RMSE,
			MAPE:                stored.MAPE,
			PE:                  stored.PE,
			TrainingDataCount:   stored.TrainingDataCount,
			TrainedAt:           stored.TrainedAt,
		},
		IsActive: stored.IsActive,
	}, nil
}

// Evaluate applies the active model over harvest records and returns the
// per-row diagnostic table plus aggregate RMSE/MAPE for the selected period.
func (s *regressionService) Evaluate(ctx context.Context, startDate, endDate *time.Time) (*EvaluationResponse, error) {
	m, err := s.activeModel(ctx)
	if err != nil {
		return nil, err
	}

	records, err := s.harvestRepo.AllWithWeather(ctx, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load harvest records: %w", err)
	}

	res := &EvaluationResponse{ModelName: model.DefaultModelName}
	var totalSquaredError, totalAbsPctError float64
	var pctCount int

	for _, rec := range records {
		if rec.Weather == nil {
			continue
		}

		predicted := m.Predict(rec.Weather.NumericValue, rec.ProductionCost)
		diff := rec.HarvestAmount - predicted
		row := EvaluationRow{
			Date:           rec.Date,
			Weather:        rec.Weather.Name,
			WeatherValue:   rec.Weather.NumericValue,
			ProductionCost: rec.ProductionCost,
			ActualHarvest:  rec.HarvestAmount,
			Predicted:      round2(predicted),
			Error:          diff,
			AbsError:       math.Abs(diff),
			ErrorSquared:   diff * diff,
		}
		if rec.HarvestAmount != 0 {
			row.PE = (predicted - rec.HarvestAmount) / rec.HarvestAmount * 100
			totalAbsPctError += math.Abs(diff / rec.HarvestAmount)
			pctCount++
		}

		totalSquaredError += diff * diff
		res.Rows = append(res.Rows, row)
	}

	res.TotalDataPoints = len(res.Rows)
	if res.TotalDataPoints > 0 {
		res.RMSE = math.Sqrt(totalSquaredError / float64(res.TotalDataPoints))
	}
	if pctCount > 0 {
		res.MAPE = totalAbsPctError / float64(pctCount) * 100
	}

	return res, nil
}
