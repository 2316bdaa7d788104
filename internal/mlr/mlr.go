// Package mlr fits and applies the harvest prediction model: a two-predictor
// ordinary-least-squares regression yhat = b0 + b1*weather + b2*cost, solved
// in closed form via the normal equations.
package mlr

import (
	"errors"
	"math"
)

var (
	// ErrInsufficientTrainingData means fewer than MinSamples usable rows were supplied.
	ErrInsufficientTrainingData = errors.New("mlr: at least 3 training samples are required")
	// ErrSingularDesignMatrix means the normal equations have no unique solution
	// (e.g. weather and cost are each constant across all rows).
	ErrSingularDesignMatrix = errors.New("mlr: design matrix is singular, coefficients are not identifiable")
)

// MinSamples is the smallest training set that determines a 3-parameter model.
const MinSamples = 3

// TrainingRow is one observation: predictors and the actual harvest amount.
type TrainingRow struct {
	Weather float64
	Cost    float64
	Actual  float64
}

// Metrics are the in-sample fit diagnostics. MAPE and PE are computed only
// over rows whose actual value is non-zero; PE keeps the sign of the error
// (positive = over-prediction) while MAPE takes the absolute value.
type Metrics struct {
	RMSE     float64
	RSquared float64
	MAPE     float64
	PE       float64
}

// Model holds fitted coefficients. Predict is a pure function of these.
type Model struct {
	Intercept           float64
	WeatherCoeff        float64
	ProductionCostCoeff float64
}

// Predict evaluates yhat = b0 + b1*weather + b2*cost.
func (m Model) Predict(weather, cost float64) float64 {
	return m.Intercept + m.WeatherCoeff*weather + m.ProductionCostCoeff*cost
}

// Result is the output of one training run.
type Result struct {
	Model       Model
	Predictions []float64 // in-sample, index-aligned with the input rows
	Metrics     Metrics
	SampleCount int
}

// Train solves (XtX) beta = Xty for beta = [b0, b1, b2] where X has an implicit
// leading column of ones. The solve is exact OLS: deterministic given the data,
// no iteration, no learning rate.
func Train(rows []TrainingRow) (*Result, error) {
	if len(rows) < MinSamples {
		return nil, ErrInsufficientTrainingData
	}

	n := float64(len(rows))

	// XtX is symmetric, so nine entries come from six sums.
	var sw, sc, sww, swc, scc float64
	var sy, swy, scy float64
	for _, r := range rows {
		sw += r.Weather
		sc += r.Cost
		sww += r.Weather * r.Weather
		swc += r.Weather * r.Cost
		scc += r.Cost * r.Cost
		sy += r.Actual
		swy += r.Weather * r.Actual
		scy += r.Cost * r.Actual
	}

	xtx := [3][3]float64{
		{n, sw, sc},
		{sw, sww, swc},
		{sc, swc, scc},
	}
	xty := [3]float64{sy, swy, scy}

	beta, err := solve3(xtx, xty)
	if err != nil {
		return nil, err
	}

	model := Model{
		Intercept:           beta[0],
		WeatherCoeff:        beta[1],
		ProductionCostCoeff: beta[2],
	}

	predictions := make([]float64, len(rows))
	for i, r := range rows {
		predictions[i] = model.Predict(r.Weather, r.Cost)
	}

	return &Result{
		Model:       model,
		Predictions: predictions,
		Metrics:     computeMetrics(rows, predictions),
		SampleCount: len(rows),
	}, nil
}

// solve3 performs Gaussian elimination with partial pivoting on a 3x3 system.
func solve3(a [3][3]float64, b [3]float64) ([3]float64, error) {
	const eps = 1e-12

	for col := 0; col < 3; col++ {
		// Pick the largest remaining pivot in this column.
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < eps {
			return [3]float64{}, ErrSingularDesignMatrix
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			b[col], b[pivot] = b[pivot], b[col]
		}

		for row := col + 1; row < 3; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < 3; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	var x [3]float64
	for row := 2; row >= 0; row-- {
		x[row] = b[row]
		for k := row + 1; k < 3; k++ {
			x[row] -= a[row][k] * x[k]
		}
		x[row] /= a[row][row]
	}

	if math.IsNaN(x[0]) || math.IsNaN(x[1]) || math.IsNaN(x[2]) {
		return [3]float64{}, ErrSingularDesignMatrix
	}

	return x, nil
}

func computeMetrics(rows []TrainingRow, predictions []float64) Metrics {
	n := float64(len(rows))

	var ssResidual, yMean float64
	for i, r := range rows {
		diff := r.Actual - predictions[i]
		ssResidual += diff * diff
		yMean += r.Actual
	}
	yMean /= n

	var ssTotal float64
	for _, r := range rows {
		d := r.Actual - yMean
		ssTotal += d * d
	}

	rSquared := 1.0
	if ssTotal != 0 {
		rSquared = 1 - ssResidual/ssTotal
	}

	// Percentage errors only make sense for non-zero actuals.
	var mapeSum, peSum float64
	var valid int
	for i, r := range rows {
		if r.Actual == 0 {
			continue
		}
		mapeSum += math.Abs((r.Actual - predictions[i]) / r.Actual)
		peSum += (predictions[i] - r.Actual) / r.Actual
		valid++
	}

	var mape, pe float64
	if valid > 0 {
		mape = mapeSum / float64(valid) * 100
		pe = peSum / float64(valid) * 100
	}

	return Metrics{
		RMSE:     math.Sqrt(ssResidual / n),
		RSquared: rSquared,
		MAPE:     mape,
		PE:       pe,
	}
}
