package costing

import (
	"fmt"
	"sort"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
)

// Batch is an in-memory snapshot of one stock batch, taken under row lock
// before allocation. The engine never touches storage itself.
type Batch struct {
	StockID       uuid.UUID
	EntryDate     time.Time
	EntryQuantity float64
	Remaining     float64
	UnitPrice     float64
}

// Allocation is one draw against one batch, including the post-draw state the
// caller must persist alongside it.
type Allocation struct {
	StockID      uuid.UUID
	Quantity     float64
	UnitPrice    float64
	Cost         float64
	NewRemaining float64
	NewStatus    string
}

// Plan is the full result of allocating one requested quantity: the ordered
// draws (oldest batch first) and their summed cost.
type Plan struct {
	Allocations []Allocation
	TotalCOGS   float64
}

// InsufficientStockError reports that the requested quantity exceeds the total
// remaining stock across all available batches.
type InsufficientStockError struct {
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %.3f, requested %.3f", e.Available, e.Requested)
}

// SortFIFO orders batches oldest entry date first. The sort is stable so equal
// entry dates keep their input (insertion) order, which makes allocation
// deterministic.
func SortFIFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].EntryDate.Before(batches[j].EntryDate)
	})
}

// Allocate walks the batches oldest-first and draws min(remaining, still
// needed) from each until the request is satisfied. Batches after the
// satisfying one are untouched. If the total remaining across batches is less
// than the request, no allocation is produced at all.
//
// Quantities and prices stay as raw float64 throughout; monetary rounding
// belongs at the response boundary, not here.
func Allocate(batches []Batch, quantityNeeded float64) (*Plan, error) {
	if quantityNeeded <= 0 {
		return nil, fmt.Errorf("quantity needed must be positive, got %.3f", quantityNeeded)
	}

	SortFIFO(batches)

	var totalAvailable float64
	for _, b := range batches {
		totalAvailable += b.Remaining
	}

	if totalAvailable < quantityNeeded {
		return nil, &InsufficientStockError{Available: totalAvailable, Requested: quantityNeeded}
	}

	plan := &Plan{}
	stillNeeded := quantityNeeded

	for _, b := range batches {
		if stillNeeded <= 0 {
			break
		}
		if b.Remaining <= 0 {
			continue
		}

		draw := b.Remaining
		if stillNeeded < draw {
			draw = stillNeeded
		}

		newRemaining := b.Remaining - draw
		plan.Allocations = append(plan.Allocations, Allocation{
			StockID:      b.StockID,
			Quantity:     draw,
			UnitPrice:    b.UnitPrice,
			Cost:         draw * b.UnitPrice,
			NewRemaining: newRemaining,
			NewStatus:    StatusFor(newRemaining),
		})
		plan.TotalCOGS += draw * b.UnitPrice
		stillNeeded -= draw
	}

	return plan, nil
}

// Restore computes the post-reversal state of a batch after crediting back one
// recorded draw. Status is recomputed from the new remaining quantity rather
// than hardcoded to AVAILABLE, so a zero-quantity credit cannot resurrect an
// empty batch.
func Restore(currentRemaining, quantityOut float64) (newRemaining float64, newStatus string) {
	newRemaining = currentRemaining + quantityOut
	return newRemaining, StatusFor(newRemaining)
}

// StatusFor derives batch status from its remaining quantity.
func StatusFor(remaining float64) string {
	if remaining > 0 {
		return model.StockStatusAvailable
	}
	return model.StockStatusEmpty
}
