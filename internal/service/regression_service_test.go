package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/mlr"
	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeHarvestRepo struct {
	records []model.HarvestRecord
}

func (f *fakeHarvestRepo) Create(ctx context.Context, record *model.HarvestRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeHarvestRepo) Update(ctx context.Context, record *model.HarvestRecord) error {
	for i := range f.records {
		if f.records[i].ID == record.ID {
			f.records[i] = *record
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeHarvestRepo) Delete(ctx context.Context, id uuid.UUID) error {
	for i := range f.records {
		if f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeHarvestRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.HarvestRecord, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			copied := f.records[i]
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeHarvestRepo) List(ctx context.Context, page, limit int, startDate, endDate *time.Time) ([]model.HarvestRecord, int64, error) {
	return f.records, int64(len(f.records)), nil
}

func (f *fakeHarvestRepo) AllWithWeather(ctx context.Context, startDate, endDate *time.Time) ([]model.HarvestRecord, error) {
	var out []model.HarvestRecord
	for _, r := range f.records {
		if startDate != nil && r.Date.Before(*startDate) {
			continue
		}
		if endDate != nil && r.Date.After(*endDate) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeRegressionRepo struct {
	models map[string]*model.RegressionModel
}

func newFakeRegressionRepo() *fakeRegressionRepo {
	return &fakeRegressionRepo{models: make(map[string]*model.RegressionModel)}
}

func (f *fakeRegressionRepo) Upsert(ctx context.Context, m *model.RegressionModel) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	copied := *m
	f.models[m.ModelName] = &copied
	return nil
}

func (f *fakeRegressionRepo) FindActive(ctx context.Context, modelName string) (*model.RegressionModel, error) {
	if m, ok := f.models[modelName]; ok && m.IsActive {
		copied := *m
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type regressionFixture struct {
	service        RegressionService
	harvestRepo    *fakeHarvestRepo
	regressionRepo *fakeRegressionRepo
	auditRepo      *fakeAuditRepo
}

func newRegressionFixture(t *testing.T) *regressionFixture {
	t.Helper()
	harvestRepo := &fakeHarvestRepo{}
	regressionRepo := newFakeRegressionRepo()
	auditRepo := &fakeAuditRepo{}
	svc := NewRegressionService(harvestRepo, regressionRepo, auditRepo, &fakeTxManager{})
	return &regressionFixture{
		service:        svc,
		harvestRepo:    harvestRepo,
		regressionRepo: regressionRepo,
		auditRepo:      auditRepo,
	}
}

func (fx *regressionFixture) addRecord(day int, weatherValue, cost, amount float64) {
	fx.harvestRepo.records = append(fx.harvestRepo.records, model.HarvestRecord{
		ID:             uuid.New(),
		Date:           time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		Weather:        &model.Weather{Name: "sunny", NumericValue: weatherValue},
		ProductionCost: cost,
		HarvestAmount:  amount,
	})
}

// Records on the plane amount = 5 + 2*weather + 0.01*cost, with enough spread
// that the predictors are not collinear.
func (fx *regressionFixture) seedPlane() {
	points := []struct{ w, c float64 }{
		{1, 100}, {2, 300}, {3, 150}, {4, 500}, {2, 700},
	}
	for i, p := range points {
		fx.addRecord(i+1, p.w, p.c, 5+2*p.w+0.01*p.c)
	}
}

func TestTrainStoresActiveModel(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()

	res, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	assert.Equal(t, model.DefaultModelName, res.ModelName)
	assert.InDelta(t, 5.0, res.Intercept, 1e-6)
	assert.InDelta(t, 2.0, res.WeatherCoeff, 1e-6)
	assert.InDelta(t, 0.01, res.ProductionCostCoeff, 1e-6)
	assert.InDelta(t, 1.0, res.RSquared, 1e-9)
	assert.InDelta(t, 0.0, res.RMSE, 1e-6)
	assert.Equal(t, 5, res.TrainingDataCount)

	stored, err := fx.regressionRepo.FindActive(context.Background(), model.DefaultModelName)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.InDelta(t, 2.0, stored.WeatherCoeff, 1e-6)
}

func TestTrainWritesAuditLog(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()

	userID := uuid.New()
	_, err := fx.service.Train(context.Background(), userID.String())
	require.NoError(t, err)

	require.Len(t, fx.auditRepo.entries, 1)
	assert.Equal(t, model.ActionTrainModel, fx.auditRepo.entries[0].Action)
	require.NotNil(t, fx.auditRepo.entries[0].UserID)
	assert.Equal(t, userID, *fx.auditRepo.entries[0].UserID)
}

func TestTrainWithTooFewRecords(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.addRecord(1, 1, 100, 10)
	fx.addRecord(2, 2, 200, 12)

	_, err := fx.service.Train(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, mlr.ErrInsufficientTrainingData)

	_, err = fx.regressionRepo.FindActive(context.Background(), model.DefaultModelName)
	assert.Error(t, err)
}

func TestTrainFailureKeepsPreviousModel(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()

	_, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	// Replace the dataset with constant predictors: the fit must fail and the
	// previously stored model must survive.
	fx.harvestRepo.records = nil
	for day := 1; day <= 4; day++ {
		fx.addRecord(day, 3, 100, float64(10+day))
	}

	_, err = fx.service.Train(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, mlr.ErrSingularDesignMatrix)

	stored, err := fx.regressionRepo.FindActive(context.Background(), model.DefaultModelName)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, stored.WeatherCoeff, 1e-6)
}

func TestTrainSkipsRecordsWithoutWeather(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()
	fx.harvestRepo.records = append(fx.harvestRepo.records, model.HarvestRecord{
		ID:            uuid.New(),
		Date:          time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		HarvestAmount: 99,
	})

	res, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, 5, res.TrainingDataCount)
}

func TestPredictUsesActiveModel(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()

	_, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	res, err := fx.service.Predict(context.Background(), PredictionRequest{WeatherValue: 3, ProductionCost: 400})
	require.NoError(t, err)
	assert.InDelta(t, 5+2*3+0.01*400, res.PredictedHarvest, 1e-6)
	assert.Equal(t, 3.0, res.WeatherValue)
	assert.Equal(t, 400.0, res.ProductionCost)
}

func TestPredictWithoutModel(t *testing.T) {
	fx := newRegressionFixture(t)

	_, err := fx.service.Predict(context.Background(), PredictionRequest{WeatherValue: 1, ProductionCost: 100})
	require.ErrorIs(t, err, ErrNoActiveModel)
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()
	_, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	_, err = fx.service.Predict(context.Background(), PredictionRequest{WeatherValue: -1, ProductionCost: 100})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestPredictBatchPreservesOrder(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()
	_, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	reqs := []PredictionRequest{
		{WeatherValue: 1, ProductionCost: 100},
		{WeatherValue: 4, ProductionCost: 900},
		{WeatherValue: 2, ProductionCost: 50},
	}
	results, err := fx.service.PredictBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, req := range reqs {
		assert.Equal(t, req.WeatherValue, results[i].WeatherValue)
		assert.InDelta(t, 5+2*req.WeatherValue+0.01*req.ProductionCost, results[i].PredictedHarvest, 1e-6)
	}
}

func TestPredictBatchOneBadInputFailsAll(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()
	_, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	_, err = fx.service.PredictBatch(context.Background(), []PredictionRequest{
		{WeatherValue: 1, ProductionCost: 100},
		{WeatherValue: -2, ProductionCost: 100},
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "input 1")
}

func TestPredictBatchEmpty(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()
	_, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	_, err = fx.service.PredictBatch(context.Background(), nil)
	require.Error(t, err)
}

func TestGetActiveModel(t *testing.T) {
	fx := newRegressionFixture(t)

	_, err := fx.service.GetActiveModel(context.Background())
	require.ErrorIs(t, err, ErrNoActiveModel)

	fx.seedPlane()
	_, err = fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	info, err := fx.service.GetActiveModel(context.Background())
	require.NoError(t, err)
	assert.True(t, info.IsActive)
	assert.Equal(t, model.DefaultModelName, info.ModelName)
	assert.Equal(t, 5, info.TrainingDataCount)
}

func TestEvaluatePerfectFit(t *testing.T) {
	fx := newRegressionFixture(t)
	fx.seedPlane()
	_, err := fx.service.Train(context.Background(), uuid.NewString())
	require.NoError(t, err)

	eval, err := fx.service.Evaluate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, eval.TotalDataPoints)
	assert.InDelta(t, 0.0, eval.RMSE, 1e-6)
	assert.InDelta(t, 0.0, eval.MAPE, 1e-6)
	require.Len(t, eval.Rows, 5)
	for _, row := range eval.Rows {
		assert.InDelta(t, row.ActualHarvest, row.Predicted, 1e-6)
	}
}
