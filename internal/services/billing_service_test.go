package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/orderstack/pos-ledger/internal/invoice"
	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/internal/repository"
	"github.com/orderstack/pos-ledger/internal/tax"
)

type MockSaleStore struct {
	mock.Mock
}

// echoRecorded makes the mock hand back whatever transaction the service
// built, the way the real repository does on a fresh insert.
var echoRecorded = &model.SalesTransaction{}

func (m *MockSaleStore) Record(ctx context.Context, tx *model.SalesTransaction) (*model.SalesTransaction, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if args.Get(0) == echoRecorded {
		return tx, args.Error(1)
	}
	return args.Get(0).(*model.SalesTransaction), args.Error(1)
}

func (m *MockSaleStore) Get(ctx context.Context, tenantID, invoiceNumber string) (*model.SalesTransaction, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SalesTransaction), args.Error(1)
}

func (m *MockSaleStore) UpdatePaymentMethod(ctx context.Context, tenantID, invoiceNumber string, method model.PaymentMethod) error {
	args := m.Called(ctx, tenantID, invoiceNumber, method)
	return args.Error(0)
}

func (m *MockSaleStore) Query(ctx context.Context, f model.SaleFilter) ([]*model.SalesTransaction, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.SalesTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockSaleStore) PurgeSyncedBefore(ctx context.Context, tenantID string, horizon time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, horizon)
	return args.Get(0).(int64), args.Error(1)
}

type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) Next(ctx context.Context, tenantID string) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockAllocator) ConfirmIssued(ctx context.Context, tenantID string) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

func defaultTaxConfig() tax.Config {
	return tax.Config{
		CGSTRate:        2.5,
		SGSTRate:        2.5,
		RoundOffEnabled: true,
	}
}

func dineInRequest() model.SaleCreateRequest {
	return model.SaleCreateRequest{
		OrderType:     model.OrderTypeDineIn,
		TableNumber:   "T4",
		PaymentMethod: model.PaymentUPI,
		Items: []model.LineItem{
			{Name: "Paneer Tikka", Quantity: 2, Price: 300},
			{Name: "Butter Naan", Quantity: 4, Price: 100},
		},
	}
}

func TestBillingService_RecordSale_ComputesTotals(t *testing.T) {
	sales := new(MockSaleStore)
	invoices := new(MockAllocator)
	ctx := context.Background()

	service := NewBillingService(sales, invoices, "tenant-1", defaultTaxConfig())

	invoices.On("Next", ctx, "tenant-1").Return("INV-2508-000042", nil)
	invoices.On("ConfirmIssued", ctx, "tenant-1").Return("INV-2508-000042", nil)
	sales.On("Record", ctx, mock.AnythingOfType("*model.SalesTransaction")).
		Return(echoRecorded, nil)

	sale, err := service.RecordSale(ctx, dineInRequest())
	require.NoError(t, err)

	// 2x300 + 4x100 = 1000, 2.5% + 2.5% GST
	assert.Equal(t, "INV-2508-000042", sale.InvoiceNumber)
	assert.Equal(t, "tenant-1", sale.TenantID)
	assert.InDelta(t, 1000.0, sale.Subtotal, 1e-9)
	assert.InDelta(t, 25.0, sale.CGST, 1e-9)
	assert.InDelta(t, 25.0, sale.SGST, 1e-9)
	assert.InDelta(t, 1050.0, sale.GrandTotal, 1e-9)
	assert.InDelta(t, 0.0, sale.RoundOff, 1e-9)
	assert.Equal(t, model.SourcePOS, sale.Source)
	assert.Equal(t, model.PaymentStatusPaid, sale.PaymentStatus)
	assert.NotEmpty(t, sale.ID)
	assert.Nil(t, sale.SyncedAt)

	sales.AssertExpectations(t)
	invoices.AssertExpectations(t)
}

func TestBillingService_RecordSale_DiscountAndPackingBeforeRounding(t *testing.T) {
	sales := new(MockSaleStore)
	invoices := new(MockAllocator)
	ctx := context.Background()

	service := NewBillingService(sales, invoices, "tenant-1", defaultTaxConfig())

	invoices.On("Next", ctx, "tenant-1").Return("INV-2508-000001", nil)
	invoices.On("ConfirmIssued", ctx, "tenant-1").Return("INV-2508-000001", nil)
	sales.On("Record", ctx, mock.AnythingOfType("*model.SalesTransaction")).
		Return(echoRecorded, nil)

	req := dineInRequest()
	req.OrderType = model.OrderTypeDelivery
	req.Discount = 50.40
	req.PackingCharge = 20

	sale, err := service.RecordSale(ctx, req)
	require.NoError(t, err)

	// 1050 + 20 - 50.40 = 1019.60, rounds up to 1020
	assert.InDelta(t, 1020.0, sale.GrandTotal, 1e-9)
	assert.InDelta(t, 0.40, sale.RoundOff, 1e-9)
	assert.InDelta(t, 50.40, sale.Discount, 1e-9)
	assert.InDelta(t, 20.0, sale.PackingCharge, 1e-9)
}

func TestBillingService_RecordSale_DefaultsToPendingPayment(t *testing.T) {
	sales := new(MockSaleStore)
	invoices := new(MockAllocator)
	ctx := context.Background()

	service := NewBillingService(sales, invoices, "tenant-1", defaultTaxConfig())

	invoices.On("Next", ctx, "tenant-1").Return("INV-2508-000002", nil)
	invoices.On("ConfirmIssued", ctx, "tenant-1").Return("INV-2508-000002", nil)
	sales.On("Record", ctx, mock.AnythingOfType("*model.SalesTransaction")).
		Return(echoRecorded, nil)

	req := dineInRequest()
	req.PaymentMethod = ""

	sale, err := service.RecordSale(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, sale.PaymentMethod)
	assert.Equal(t, model.PaymentStatusPending, sale.PaymentStatus)
}

func TestBillingService_RecordSale_RejectsEmptyItems(t *testing.T) {
	sales := new(MockSaleStore)
	invoices := new(MockAllocator)

	service := NewBillingService(sales, invoices, "tenant-1", defaultTaxConfig())

	req := dineInRequest()
	req.Items = nil

	sale, err := service.RecordSale(context.Background(), req)
	assert.Error(t, err)
	assert.Nil(t, sale)
	sales.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	invoices.AssertNotCalled(t, "ConfirmIssued", mock.Anything, mock.Anything)
}

// raceLedger behaves like the real repository: inserts are idempotent on
// (tenant, invoice), a duplicate hands back the already-stored row. The
// write itself takes a while, so overlapping finalizations would collide
// on a shared preview number if they were not serialized.
type raceLedger struct {
	MockSaleStore
	mu    sync.Mutex
	delay time.Duration
	rows  map[string]*model.SalesTransaction
}

func (l *raceLedger) Record(ctx context.Context, tx *model.SalesTransaction) (*model.SalesTransaction, error) {
	time.Sleep(l.delay)
	l.mu.Lock()
	defer l.mu.Unlock()
	key := tx.TenantID + "/" + tx.InvoiceNumber
	if existing, ok := l.rows[key]; ok {
		return existing, nil
	}
	l.rows[key] = tx
	return tx, nil
}

type seqCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *seqCounter) Current(ctx context.Context, tenantID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, nil
}

func (c *seqCounter) Advance(ctx context.Context, tenantID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n, nil
}

func TestBillingService_RecordSale_ConcurrentFinalizationsKeepBothSales(t *testing.T) {
	ledger := &raceLedger{delay: 10 * time.Millisecond, rows: map[string]*model.SalesTransaction{}}
	allocator := invoice.NewAllocator(&seqCounter{}, "INV")
	service := NewBillingService(ledger, allocator, "tenant-1", defaultTaxConfig())

	reqA := dineInRequest()
	reqA.TableNumber = "T1"
	reqB := dineInRequest()
	reqB.TableNumber = "T2"

	var wg sync.WaitGroup
	results := make([]*model.SalesTransaction, 2)
	errs := make([]error, 2)
	for i, req := range []model.SaleCreateRequest{reqA, reqB} {
		wg.Add(1)
		go func(i int, req model.SaleCreateRequest) {
			defer wg.Done()
			results[i], errs[i] = service.RecordSale(context.Background(), req)
		}(i, req)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// a successful return must mean this call's sale is the durable one
	assert.Equal(t, reqA.TableNumber, results[0].TableNumber)
	assert.Equal(t, reqB.TableNumber, results[1].TableNumber)
	assert.NotEqual(t, results[0].InvoiceNumber, results[1].InvoiceNumber)
	assert.Len(t, ledger.rows, 2)
}

func TestBillingService_RecordSale_CounterNotAdvancedWhenPersistFails(t *testing.T) {
	sales := new(MockSaleStore)
	invoices := new(MockAllocator)
	ctx := context.Background()

	service := NewBillingService(sales, invoices, "tenant-1", defaultTaxConfig())

	invoices.On("Next", ctx, "tenant-1").Return("INV-2508-000003", nil)
	sales.On("Record", ctx, mock.AnythingOfType("*model.SalesTransaction")).
		Return(nil, assert.AnError)

	sale, err := service.RecordSale(ctx, dineInRequest())
	assert.Error(t, err)
	assert.Nil(t, sale)
	invoices.AssertNotCalled(t, "ConfirmIssued", mock.Anything, mock.Anything)
}

func TestBillingService_SettlePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("settles pending payment", func(t *testing.T) {
		sales := new(MockSaleStore)
		service := NewBillingService(sales, new(MockAllocator), "tenant-1", defaultTaxConfig())

		sales.On("UpdatePaymentMethod", ctx, "tenant-1", "INV-2508-000001", model.PaymentCard).
			Return(nil)

		require.NoError(t, service.SettlePayment(ctx, "INV-2508-000001", model.PaymentCard))
		sales.AssertExpectations(t)
	})

	t.Run("already settled", func(t *testing.T) {
		sales := new(MockSaleStore)
		service := NewBillingService(sales, new(MockAllocator), "tenant-1", defaultTaxConfig())

		sales.On("UpdatePaymentMethod", ctx, "tenant-1", "INV-2508-000001", model.PaymentCash).
			Return(repository.ErrPaymentAlreadySet)

		err := service.SettlePayment(ctx, "INV-2508-000001", model.PaymentCash)
		assert.ErrorIs(t, err, ErrPaymentAlreadySettled)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		sales := new(MockSaleStore)
		service := NewBillingService(sales, new(MockAllocator), "tenant-1", defaultTaxConfig())

		sales.On("UpdatePaymentMethod", ctx, "tenant-1", "INV-2508-999999", model.PaymentUPI).
			Return(repository.ErrNotFound)

		err := service.SettlePayment(ctx, "INV-2508-999999", model.PaymentUPI)
		assert.ErrorIs(t, err, ErrSaleNotFound)
	})

	t.Run("pending is not a settlement", func(t *testing.T) {
		sales := new(MockSaleStore)
		service := NewBillingService(sales, new(MockAllocator), "tenant-1", defaultTaxConfig())

		err := service.SettlePayment(ctx, "INV-2508-000001", model.PaymentPending)
		assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
		sales.AssertNotCalled(t, "UpdatePaymentMethod", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBillingService_List_ScopesToTenant(t *testing.T) {
	sales := new(MockSaleStore)
	ctx := context.Background()
	service := NewBillingService(sales, new(MockAllocator), "tenant-1", defaultTaxConfig())

	sales.On("Query", ctx, mock.MatchedBy(func(f model.SaleFilter) bool {
		return f.TenantID == "tenant-1" && f.Search == "T4"
	})).Return([]*model.SalesTransaction{{InvoiceNumber: "INV-2508-000001"}}, int64(1), nil)

	results, total, err := service.List(ctx, model.SaleFilter{TenantID: "someone-else", Search: "T4"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, results, 1)
	sales.AssertExpectations(t)
}

func TestBillingService_PurgeSynced(t *testing.T) {
	sales := new(MockSaleStore)
	ctx := context.Background()
	service := NewBillingService(sales, new(MockAllocator), "tenant-1", defaultTaxConfig())
	service.now = func() time.Time { return time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC) }

	wantHorizon := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	sales.On("PurgeSyncedBefore", ctx, "tenant-1", wantHorizon).Return(int64(7), nil)

	purged, err := service.PurgeSynced(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), purged)
	sales.AssertExpectations(t)
}
