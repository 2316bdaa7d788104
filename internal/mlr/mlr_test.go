package mlr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainRecoversExactPlane(t *testing.T) {
	// Points lying exactly on y = 5 + 2*w + 0.001*c.
	plane := func(w, c float64) float64 { return 5 + 2*w + 0.001*c }

	var rows []TrainingRow
	for _, p := range [][2]float64{
		{1, 100}, {2, 250}, {3, 400}, {1, 900}, {4, 120}, {5, 777},
	} {
		rows = append(rows, TrainingRow{Weather: p[0], Cost: p[1], Actual: plane(p[0], p[1])})
	}

	res, err := Train(rows)
	require.NoError(t, err)

	assert.InDelta(t, 5.0, res.Model.Intercept, 1e-6)
	assert.InDelta(t, 2.0, res.Model.WeatherCoeff, 1e-6)
	assert.InDelta(t, 0.001, res.Model.ProductionCostCoeff, 1e-6)
	assert.InDelta(t, 1.0, res.Metrics.RSquared, 1e-9)
	assert.InDelta(t, 0.0, res.Metrics.RMSE, 1e-6)
	assert.Equal(t, len(rows), res.SampleCount)
}

func TestTrainPerfectlyLinearInCost(t *testing.T) {
	// y = 50 + 0*w + 1*c for rows (1,100,150), (2,200,250), (3,300,350).
	// Weather and cost are collinear here (c = 100*w), so the individual
	// coefficients are not identifiable even though the fit is perfect; add a
	// fourth point off that line to pin them down.
	rows := []TrainingRow{
		{Weather: 1, Cost: 100, Actual: 150},
		{Weather: 2, Cost: 200, Actual: 250},
		{Weather: 3, Cost: 300, Actual: 350},
		{Weather: 2, Cost: 500, Actual: 550},
	}

	res, err := Train(rows)
	require.NoError(t, err)

	assert.InDelta(t, 50.0, res.Model.Intercept, 1e-6)
	assert.InDelta(t, 0.0, res.Model.WeatherCoeff, 1e-6)
	assert.InDelta(t, 1.0, res.Model.ProductionCostCoeff, 1e-6)
	assert.InDelta(t, 1.0, res.Metrics.RSquared, 1e-9)
	assert.InDelta(t, 0.0, res.Metrics.RMSE, 1e-6)
}

func TestTrainInsufficientData(t *testing.T) {
	rows := []TrainingRow{
		{Weather: 1, Cost: 100, Actual: 150},
		{Weather: 2, Cost: 200, Actual: 250},
	}

	_, err := Train(rows)
	assert.ErrorIs(t, err, ErrInsufficientTrainingData)
}

func TestTrainSingularDesignMatrix(t *testing.T) {
	// Constant weather and constant cost across all rows: no unique solution.
	rows := []TrainingRow{
		{Weather: 2, Cost: 300, Actual: 100},
		{Weather: 2, Cost: 300, Actual: 110},
		{Weather: 2, Cost: 300, Actual: 120},
	}

	_, err := Train(rows)
	assert.ErrorIs(t, err, ErrSingularDesignMatrix)
}

func TestTrainConstantTargetHasRSquaredOne(t *testing.T) {
	rows := []TrainingRow{
		{Weather: 1, Cost: 100, Actual: 40},
		{Weather: 2, Cost: 220, Actual: 40},
		{Weather: 3, Cost: 150, Actual: 40},
		{Weather: 4, Cost: 90, Actual: 40},
	}

	res, err := Train(rows)
	require.NoError(t, err)

	// SS_total is zero; a constant target reports R^2 = 1.
	assert.Equal(t, 1.0, res.Metrics.RSquared)
	assert.InDelta(t, 0.0, res.Metrics.RMSE, 1e-9)
}

func TestMetricsSkipZeroActuals(t *testing.T) {
	// Cost must not be a scalar multiple of weather here, or Train rejects
	// the rows as singular before the metrics are ever computed.
	rows := []TrainingRow{
		{Weather: 1, Cost: 10, Actual: 0},
		{Weather: 2, Cost: 20, Actual: 100},
		{Weather: 3, Cost: 30, Actual: 200},
		{Weather: 4, Cost: 35, Actual: 300},
	}

	res, err := Train(rows)
	require.NoError(t, err)

	// The zero-actual row must not blow up MAPE/PE with a division by zero.
	assert.False(t, res.Metrics.MAPE != res.Metrics.MAPE) // NaN check
	assert.False(t, res.Metrics.PE != res.Metrics.PE)
}

func TestMetricsAllZeroActuals(t *testing.T) {
	predictions := []float64{1, 2, 3}
	rows := []TrainingRow{
		{Weather: 1, Cost: 10, Actual: 0},
		{Weather: 2, Cost: 20, Actual: 0},
		{Weather: 3, Cost: 30, Actual: 0},
	}

	m := computeMetrics(rows, predictions)
	assert.Equal(t, 0.0, m.MAPE)
	assert.Equal(t, 0.0, m.PE)
}

func TestPEIsSigned(t *testing.T) {
	rows := []TrainingRow{
		{Weather: 1, Cost: 10, Actual: 100},
		{Weather: 2, Cost: 20, Actual: 100},
	}
	// Uniform over-prediction by 10%.
	predictions := []float64{110, 110}

	m := computeMetrics(rows, predictions)
	assert.InDelta(t, 10.0, m.MAPE, 1e-9)
	assert.InDelta(t, 10.0, m.PE, 1e-9)

	// Uniform under-prediction flips PE's sign but not MAPE's.
	predictions = []float64{90, 90}
	m = computeMetrics(rows, predictions)
	assert.InDelta(t, 10.0, m.MAPE, 1e-9)
	assert.InDelta(t, -10.0, m.PE, 1e-9)
}

func TestPredictIsPure(t *testing.T) {
	m := Model{Intercept: 5, WeatherCoeff: 2, ProductionCostCoeff: 0.001}

	first := m.Predict(3, 1000)
	second := m.Predict(3, 1000)
	assert.Equal(t, first, second)
	assert.InDelta(t, 12.0, first, 1e-9)
}
