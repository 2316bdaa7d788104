package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/costing"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- in-memory fakes ---

type fakeTxManager struct{}

func (f *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeStockRepo struct {
	stocks map[uuid.UUID]*model.Stock
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{stocks: make(map[uuid.UUID]*model.Stock)}
}

func (f *fakeStockRepo) add(stock *model.Stock) *model.Stock {
	if stock.ID == uuid.Nil {
		stock.ID = uuid.New()
	}
	f.stocks[stock.ID] = stock
	return stock
}

func (f *fakeStockRepo) Create(ctx context.Context, stock *model.Stock) error {
	f.add(stock)
	return nil
}

func (f *fakeStockRepo) Update(ctx context.Context, stock *model.Stock) error {
	f.stocks[stock.ID] = stock
	return nil
}

func (f *fakeStockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.stocks, id)
	return nil
}

func (f *fakeStockRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Stock, error) {
	if s, ok := f.stocks[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStockRepo) FindByCode(ctx context.Context, code string) (*model.Stock, error) {
	for _, s := range f.stocks {
		if s.StockCode == code {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStockRepo) List(ctx context.Context, page, limit int, filter repository.StockFilter) ([]model.Stock, int64, error) {
	var out []model.Stock
	for _, s := range f.stocks {
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStockRepo) FindAvailableFIFO(ctx context.Context, crabID uuid.UUID) ([]model.Stock, error) {
	var out []model.Stock
	for _, s := range f.stocks {
		if s.CrabID == crabID && s.StockStatus == model.StockStatusAvailable && s.RemainingStock > 0 {
			out = append(out, *s)
		}
	}
	// Sort oldest entry first, mirroring the repository's ORDER BY.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].EntryDate.Before(out[i].EntryDate) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStockRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Stock, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeStockRepo) UpdateAllocation(ctx context.Context, id uuid.UUID, remaining float64, status string) error {
	s, ok := f.stocks[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.RemainingStock = remaining
	s.StockStatus = status
	return nil
}

func (f *fakeStockRepo) CountStockOutRefs(ctx context.Context, id uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeStockRepo) SummaryByCrab(ctx context.Context) ([]model.StockSummary, error) {
	return nil, nil
}

type fakeSaleRepo struct {
	sales     map[uuid.UUID]*model.Sale
	details   []model.SaleDetail
	stockOuts []model.StockOutDetail

	// afterFindWithDetails, when set, runs after FindByIDWithDetails has built
	// its result. Tests use it to interleave a competing writer between a read
	// and the update that follows it.
	afterFindWithDetails func()
}

func newFakeSaleRepo() *fakeSaleRepo {
	return &fakeSaleRepo{sales: make(map[uuid.UUID]*model.Sale)}
}

func (f *fakeSaleRepo) Create(ctx context.Context, sale *model.Sale) error {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	copied := *sale
	f.sales[sale.ID] = &copied
	return nil
}

func (f *fakeSaleRepo) CreateDetail(ctx context.Context, detail *model.SaleDetail) error {
	if detail.ID == uuid.Nil {
		detail.ID = uuid.New()
	}
	f.details = append(f.details, *detail)
	return nil
}

func (f *fakeSaleRepo) CreateStockOut(ctx context.Context, out *model.StockOutDetail) error {
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	f.stockOuts = append(f.stockOuts, *out)
	return nil
}

func (f *fakeSaleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	if s, ok := f.sales[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSaleRepo) FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	sale, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, d := range f.details {
		if d.SaleID != id {
			continue
		}
		detail := d
		for _, out := range f.stockOuts {
			if out.SaleDetailID == d.ID {
				detail.StockOuts = append(detail.StockOuts, out)
			}
		}
		sale.Details = append(sale.Details, detail)
	}
	if f.afterFindWithDetails != nil {
		f.afterFindWithDetails()
	}
	return sale, nil
}

func (f *fakeSaleRepo) FindBySaleNumber(ctx context.Context, saleNumber string) (*model.Sale, error) {
	for _, s := range f.sales {
		if s.SaleNumber == saleNumber {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSaleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s, ok := f.sales[id]
	if !ok || s.SaleStatus == status {
		// Mirrors the guarded UPDATE: a row already in the target status is
		// not touched.
		return gorm.ErrRecordNotFound
	}
	s.SaleStatus = status
	return nil
}

func (f *fakeSaleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.sales, id)
	return nil
}

func (f *fakeSaleRepo) List(ctx context.Context, page, limit int, filter repository.SaleFilter) ([]model.Sale, int64, error) {
	var out []model.Sale
	for _, s := range f.sales {
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

func (f *fakeSaleRepo) Summary(ctx context.Context, startDate, endDate time.Time) (model.SalesSummary, error) {
	return model.SalesSummary{}, nil
}

type fakeCrabRepo struct {
	crabs map[uuid.UUID]*model.Crab
}

func newFakeCrabRepo() *fakeCrabRepo {
	return &fakeCrabRepo{crabs: make(map[uuid.UUID]*model.Crab)}
}

func (f *fakeCrabRepo) add(crab *model.Crab) *model.Crab {
	if crab.ID == uuid.Nil {
		crab.ID = uuid.New()
	}
	f.crabs[crab.ID] = crab
	return crab
}

func (f *fakeCrabRepo) Create(ctx context.Context, crab *model.Crab) error {
	f.add(crab)
	return nil
}

func (f *fakeCrabRepo) Update(ctx context.Context, crab *model.Crab) error {
	f.crabs[crab.ID] = crab
	return nil
}

func (f *fakeCrabRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.crabs, id)
	return nil
}

func (f *fakeCrabRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Crab, error) {
	if c, ok := f.crabs[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCrabRepo) FindByCode(ctx context.Context, code string) (*model.Crab, error) {
	for _, c := range f.crabs {
		if c.CrabCode == code {
			copied := *c
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCrabRepo) List(ctx context.Context, page, limit int, search string) ([]model.Crab, int64, error) {
	var out []model.Crab
	for _, c := range f.crabs {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

type fakeCustomerRepo struct {
	customers map[uuid.UUID]*model.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*model.Customer)}
}

func (f *fakeCustomerRepo) Create(ctx context.Context, customer *model.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	f.customers[customer.ID] = customer
	return nil
}

func (f *fakeCustomerRepo) Update(ctx context.Context, customer *model.Customer) error {
	f.customers[customer.ID] = customer
	return nil
}

func (f *fakeCustomerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.customers, id)
	return nil
}

func (f *fakeCustomerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	if c, ok := f.customers[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCustomerRepo) List(ctx context.Context, page, limit int, search string) ([]model.Customer, int64, error) {
	var out []model.Customer
	for _, c := range f.customers {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

type fakeAuditRepo struct {
	entries []model.AuditLog
}

func (f *fakeAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, page, limit int, action string) ([]model.AuditLog, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

// --- test fixture ---

type saleFixture struct {
	service   SaleService
	saleRepo  *fakeSaleRepo
	stockRepo *fakeStockRepo
	crabRepo  *fakeCrabRepo
	custRepo  *fakeCustomerRepo
	auditRepo *fakeAuditRepo
	crab      *model.Crab
}

func newSaleFixture(t *testing.T) *saleFixture {
	t.Helper()
	saleRepo := newFakeSaleRepo()
	stockRepo := newFakeStockRepo()
	crabRepo := newFakeCrabRepo()
	custRepo := newFakeCustomerRepo()
	auditRepo := &fakeAuditRepo{}

	crab := crabRepo.add(&model.Crab{CrabCode: "CRB-001", Name: "Mud Crab", SellPrice: 250, Unit: "kg"})

	svc := NewSaleService(saleRepo, stockRepo, crabRepo, custRepo, auditRepo, &fakeTxManager{}, nil)
	return &saleFixture{
		service:   svc,
		saleRepo:  saleRepo,
		stockRepo: stockRepo,
		crabRepo:  crabRepo,
		custRepo:  custRepo,
		auditRepo: auditRepo,
		crab:      crab,
	}
}

func (fx *saleFixture) addBatch(entryDate time.Time, qty, price float64) *model.Stock {
	return fx.stockRepo.add(&model.Stock{
		CrabID:         fx.crab.ID,
		EntryDate:      entryDate,
		EntryQuantity:  qty,
		RemainingStock: qty,
		PurchasePrice:  price,
		TotalCost:      qty * price,
		StockStatus:    model.StockStatusAvailable,
	})
}

func saleRequest(saleNumber string, items ...SaleItemRequest) CreateSaleRequest {
	return CreateSaleRequest{
		SaleNumber:    saleNumber,
		SaleDate:      time.Now(),
		PaymentMethod: model.PaymentCash,
		Items:         items,
	}
}

// --- tests ---

func TestCreateSaleDrawsOldestBatchesFirst(t *testing.T) {
	fx := newSaleFixture(t)
	day := 24 * time.Hour
	old := fx.addBatch(time.Now().Add(-3*day), 10, 100)
	newer := fx.addBatch(time.Now().Add(-1*day), 10, 120)

	res, err := fx.service.CreateSale(context.Background(), uuid.NewString(), saleRequest("S-001", SaleItemRequest{
		CrabID:    fx.crab.ID.String(),
		Quantity:  15,
		UnitPrice: 200,
	}))
	require.NoError(t, err)

	// 10 kg at 100 + 5 kg at 120
	assert.Equal(t, 1600.0, res.TotalCOGS)
	assert.Equal(t, 3000.0, res.TotalPrice)
	assert.Equal(t, 1400.0, res.GrossProfit)

	assert.Equal(t, 0.0, fx.stockRepo.stocks[old.ID].RemainingStock)
	assert.Equal(t, model.StockStatusEmpty, fx.stockRepo.stocks[old.ID].StockStatus)
	assert.Equal(t, 5.0, fx.stockRepo.stocks[newer.ID].RemainingStock)
	assert.Equal(t, model.StockStatusAvailable, fx.stockRepo.stocks[newer.ID].StockStatus)

	require.Len(t, res.Details, 1)
	require.Len(t, res.Details[0].StockOuts, 2)
	assert.Equal(t, old.ID.String(), res.Details[0].StockOuts[0].StockID)
	assert.Equal(t, newer.ID.String(), res.Details[0].StockOuts[1].StockID)
}

func TestCreateSaleInsufficientStockLeavesNothingBehind(t *testing.T) {
	fx := newSaleFixture(t)
	batch := fx.addBatch(time.Now().Add(-24*time.Hour), 5, 100)

	_, err := fx.service.CreateSale(context.Background(), uuid.NewString(), saleRequest("S-002", SaleItemRequest{
		CrabID:    fx.crab.ID.String(),
		Quantity:  8,
		UnitPrice: 200,
	}))
	require.Error(t, err)

	var insufficient *costing.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5.0, insufficient.Available)
	assert.Equal(t, 8.0, insufficient.Requested)

	// Nothing persisted, batch untouched.
	assert.Empty(t, fx.saleRepo.sales)
	assert.Empty(t, fx.saleRepo.stockOuts)
	assert.Equal(t, 5.0, fx.stockRepo.stocks[batch.ID].RemainingStock)
}

func TestCreateSaleOneShortItemFailsWholeSale(t *testing.T) {
	fx := newSaleFixture(t)
	fx.addBatch(time.Now().Add(-24*time.Hour), 20, 100)

	secondCrab := fx.crabRepo.add(&model.Crab{CrabCode: "CRB-002", Name: "Blue Crab", SellPrice: 180, Unit: "kg"})
	fx.stockRepo.add(&model.Stock{
		CrabID:         secondCrab.ID,
		EntryDate:      time.Now().Add(-24 * time.Hour),
		EntryQuantity:  2,
		RemainingStock: 2,
		PurchasePrice:  90,
		StockStatus:    model.StockStatusAvailable,
	})

	_, err := fx.service.CreateSale(context.Background(), uuid.NewString(), saleRequest("S-003",
		SaleItemRequest{CrabID: fx.crab.ID.String(), Quantity: 5, UnitPrice: 200},
		SaleItemRequest{CrabID: secondCrab.ID.String(), Quantity: 10, UnitPrice: 150},
	))
	require.Error(t, err)

	// The first item could have been covered but the sale is all-or-nothing.
	assert.Empty(t, fx.saleRepo.sales)
	assert.Empty(t, fx.saleRepo.details)
	for _, s := range fx.stockRepo.stocks {
		assert.Equal(t, s.EntryQuantity, s.RemainingStock)
	}
}

func TestCreateSaleRejectsDuplicateSaleNumber(t *testing.T) {
	fx := newSaleFixture(t)
	fx.addBatch(time.Now().Add(-24*time.Hour), 20, 100)

	req := saleRequest("S-004", SaleItemRequest{CrabID: fx.crab.ID.String(), Quantity: 5, UnitPrice: 200})
	_, err := fx.service.CreateSale(context.Background(), uuid.NewString(), req)
	require.NoError(t, err)

	_, err = fx.service.CreateSale(context.Background(), uuid.NewString(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestCancelSaleRestoresBatchesExactly(t *testing.T) {
	fx := newSaleFixture(t)
	day := 24 * time.Hour
	old := fx.addBatch(time.Now().Add(-3*day), 10, 100)
	newer := fx.addBatch(time.Now().Add(-1*day), 10, 120)

	res, err := fx.service.CreateSale(context.Background(), uuid.NewString(), saleRequest("S-005", SaleItemRequest{
		CrabID:    fx.crab.ID.String(),
		Quantity:  15,
		UnitPrice: 200,
	}))
	require.NoError(t, err)

	err = fx.service.CancelSale(context.Background(), uuid.NewString(), res.ID)
	require.NoError(t, err)

	// Both batches back to their pre-sale state, drained one AVAILABLE again.
	assert.Equal(t, 10.0, fx.stockRepo.stocks[old.ID].RemainingStock)
	assert.Equal(t, model.StockStatusAvailable, fx.stockRepo.stocks[old.ID].StockStatus)
	assert.Equal(t, 10.0, fx.stockRepo.stocks[newer.ID].RemainingStock)

	saleID := uuid.MustParse(res.ID)
	assert.Equal(t, model.SaleStatusCancelled, fx.saleRepo.sales[saleID].SaleStatus)
}

func TestCancelSaleTwiceIsRejected(t *testing.T) {
	fx := newSaleFixture(t)
	fx.addBatch(time.Now().Add(-24*time.Hour), 10, 100)

	res, err := fx.service.CreateSale(context.Background(), uuid.NewString(), saleRequest("S-006", SaleItemRequest{
		CrabID:    fx.crab.ID.String(),
		Quantity:  4,
		UnitPrice: 200,
	}))
	require.NoError(t, err)

	require.NoError(t, fx.service.CancelSale(context.Background(), uuid.NewString(), res.ID))

	err = fx.service.CancelSale(context.Background(), uuid.NewString(), res.ID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	// The batch was credited exactly once.
	for _, s := range fx.stockRepo.stocks {
		assert.Equal(t, 10.0, s.RemainingStock)
	}
}

func TestCancelSaleLosesRaceToConcurrentCancel(t *testing.T) {
	fx := newSaleFixture(t)
	batch := fx.addBatch(time.Now().Add(-24*time.Hour), 10, 100)

	res, err := fx.service.CreateSale(context.Background(), uuid.NewString(), saleRequest("S-010", SaleItemRequest{
		CrabID:    fx.crab.ID.String(),
		Quantity:  4,
		UnitPrice: 200,
	}))
	require.NoError(t, err)
	saleID := uuid.MustParse(res.ID)

	// A competing request cancels the sale after ours has read it but before
	// the guarded status update runs.
	fx.saleRepo.afterFindWithDetails = func() {
		fx.saleRepo.afterFindWithDetails = nil
		require.NoError(t, fx.service.CancelSale(context.Background(), uuid.NewString(), res.ID))
	}

	err = fx.service.CancelSale(context.Background(), uuid.NewString(), res.ID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	// The winning cancellation credited the batch exactly once.
	assert.Equal(t, 10.0, fx.stockRepo.stocks[batch.ID].RemainingStock)
	assert.Equal(t, model.SaleStatusCancelled, fx.saleRepo.sales[saleID].SaleStatus)
}

func TestCancelSaleUnknownID(t *testing.T) {
	fx := newSaleFixture(t)

	err := fx.service.CancelSale(context.Background(), uuid.NewString(), uuid.NewString())
	require.ErrorIs(t, err, ErrSaleNotFound)
}

func TestDeleteSaleRefusesCompletedSale(t *testing.T) {
	fx := newSaleFixture(t)
	fx.addBatch(time.Now().Add(-24*time.Hour), 10, 100)

	res, err := fx.service.CreateSale(context.Background(), uuid.NewString(), saleRequest("S-007", SaleItemRequest{
		CrabID:    fx.crab.ID.String(),
		Quantity:  4,
		UnitPrice: 200,
	}))
	require.NoError(t, err)

	err = fx.service.DeleteSale(context.Background(), uuid.NewString(), res.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancel it instead")

	require.NoError(t, fx.service.CancelSale(context.Background(), uuid.NewString(), res.ID))
	require.NoError(t, fx.service.DeleteSale(context.Background(), uuid.NewString(), res.ID))
	assert.Empty(t, fx.saleRepo.sales)
}

func TestCreateSaleWritesAuditLog(t *testing.T) {
	fx := newSaleFixture(t)
	fx.addBatch(time.Now().Add(-24*time.Hour), 10, 100)

	userID := uuid.New()
	_, err := fx.service.CreateSale(context.Background(), userID.String(), saleRequest("S-008", SaleItemRequest{
		CrabID:    fx.crab.ID.String(),
		Quantity:  4,
		UnitPrice: 200,
	}))
	require.NoError(t, err)

	require.Len(t, fx.auditRepo.entries, 1)
	entry := fx.auditRepo.entries[0]
	assert.Equal(t, model.ActionCreateSale, entry.Action)
	assert.Equal(t, "S-008", entry.EntityName)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, userID, *entry.UserID)
}
