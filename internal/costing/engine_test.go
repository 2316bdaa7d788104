package costing

import (
	"testing"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC)
}

func batch(entryDay int, remaining, price float64) Batch {
	return Batch{
		StockID:       uuid.New(),
		EntryDate:     day(entryDay),
		EntryQuantity: remaining,
		Remaining:     remaining,
		UnitPrice:     price,
	}
}

func TestAllocateSpansBatchesOldestFirst(t *testing.T) {
	a := batch(1, 10, 100)
	b := batch(2, 10, 120)

	plan, err := Allocate([]Batch{b, a}, 15) // deliberately out of order
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)

	first, second := plan.Allocations[0], plan.Allocations[1]
	assert.Equal(t, a.StockID, first.StockID)
	assert.Equal(t, 10.0, first.Quantity)
	assert.Equal(t, 1000.0, first.Cost)
	assert.Equal(t, 0.0, first.NewRemaining)
	assert.Equal(t, model.StockStatusEmpty, first.NewStatus)

	assert.Equal(t, b.StockID, second.StockID)
	assert.Equal(t, 5.0, second.Quantity)
	assert.Equal(t, 600.0, second.Cost)
	assert.Equal(t, 5.0, second.NewRemaining)
	assert.Equal(t, model.StockStatusAvailable, second.NewStatus)

	assert.Equal(t, 1600.0, plan.TotalCOGS)
}

func TestAllocateNeverTouchesLaterBatchWhileEarlierHasStock(t *testing.T) {
	a := batch(1, 20, 100)
	b := batch(5, 30, 90)

	plan, err := Allocate([]Batch{a, b}, 12)
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, a.StockID, plan.Allocations[0].StockID)
	assert.Equal(t, 8.0, plan.Allocations[0].NewRemaining)
}

func TestAllocateConservation(t *testing.T) {
	batches := []Batch{batch(1, 3.5, 80), batch(2, 4.25, 85), batch(3, 10, 90)}

	need := 9.75
	plan, err := Allocate(batches, need)
	require.NoError(t, err)

	var drawn float64
	for _, al := range plan.Allocations {
		drawn += al.Quantity
	}
	assert.InDelta(t, need, drawn, 1e-9)
}

func TestAllocateInsufficientStock(t *testing.T) {
	batches := []Batch{batch(1, 5, 100), batch(2, 3, 110)}

	plan, err := Allocate(batches, 10)
	require.Error(t, err)
	assert.Nil(t, plan)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 8.0, insufficient.Available)
	assert.Equal(t, 10.0, insufficient.Requested)
}

func TestAllocateRejectsNonPositiveQuantity(t *testing.T) {
	_, err := Allocate([]Batch{batch(1, 5, 100)}, 0)
	assert.Error(t, err)

	_, err = Allocate([]Batch{batch(1, 5, 100)}, -2)
	assert.Error(t, err)
}

func TestAllocateExactDrain(t *testing.T) {
	a := batch(1, 5, 100)

	plan, err := Allocate([]Batch{a}, 5)
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, 0.0, plan.Allocations[0].NewRemaining)
	assert.Equal(t, model.StockStatusEmpty, plan.Allocations[0].NewStatus)
}

func TestAllocateSkipsDrainedBatches(t *testing.T) {
	empty := batch(1, 0, 100)
	live := batch(2, 10, 120)

	plan, err := Allocate([]Batch{empty, live}, 4)
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, live.StockID, plan.Allocations[0].StockID)
}

func TestAllocateTiesBrokenByInsertionOrder(t *testing.T) {
	a := batch(1, 5, 100)
	b := batch(1, 5, 110) // same entry date, inserted after a

	plan, err := Allocate([]Batch{a, b}, 6)
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, a.StockID, plan.Allocations[0].StockID)
	assert.Equal(t, b.StockID, plan.Allocations[1].StockID)
}

func TestRestoreIsInverseOfAllocate(t *testing.T) {
	a := batch(1, 10, 100)
	b := batch(2, 10, 120)

	plan, err := Allocate([]Batch{a, b}, 15)
	require.NoError(t, err)

	// Apply the plan, then credit every draw back.
	state := map[uuid.UUID]float64{
		a.StockID: a.Remaining,
		b.StockID: b.Remaining,
	}
	for _, al := range plan.Allocations {
		state[al.StockID] = al.NewRemaining
	}
	for _, al := range plan.Allocations {
		restored, status := Restore(state[al.StockID], al.Quantity)
		state[al.StockID] = restored
		assert.Equal(t, model.StockStatusAvailable, status)
	}

	assert.Equal(t, 10.0, state[a.StockID])
	assert.Equal(t, 10.0, state[b.StockID])
}

func TestRestoreRecomputesStatusFromRemaining(t *testing.T) {
	remaining, status := Restore(0, 0)
	assert.Equal(t, 0.0, remaining)
	assert.Equal(t, model.StockStatusEmpty, status)

	remaining, status = Restore(0, 2.5)
	assert.Equal(t, 2.5, remaining)
	assert.Equal(t, model.StockStatusAvailable, status)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, model.StockStatusAvailable, StatusFor(0.001))
	assert.Equal(t, model.StockStatusEmpty, StatusFor(0))
}
