package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/internal/repository"
	"github.com/orderstack/pos-ledger/internal/tax"
	"github.com/orderstack/pos-ledger/pkg/logger"
)

var (
	ErrSaleNotFound          = errors.New("sale not found")
	ErrPaymentAlreadySettled = errors.New("payment method already settled")
	ErrInvalidPaymentMethod  = fmt.Errorf("invalid payment method")
)

type SaleStore interface {
	Record(ctx context.Context, tx *model.SalesTransaction) (*model.SalesTransaction, error)
	Get(ctx context.Context, tenantID, invoiceNumber string) (*model.SalesTransaction, error)
	UpdatePaymentMethod(ctx context.Context, tenantID, invoiceNumber string, method model.PaymentMethod) error
	Query(ctx context.Context, f model.SaleFilter) ([]*model.SalesTransaction, int64, error) // results, totalCount
	PurgeSyncedBefore(ctx context.Context, tenantID string, horizon time.Time) (int64, error)
}

type InvoiceAllocator interface {
	Next(ctx context.Context, tenantID string) (string, error)
	ConfirmIssued(ctx context.Context, tenantID string) (string, error)
}

type BillingService struct {
	sales    SaleStore
	invoices InvoiceAllocator
	tenantID string
	taxCfg   tax.Config
	now      func() time.Time

	// finalizeMu serializes allocate->persist->confirm. Without it two
	// concurrent finalizations preview the same invoice number and the
	// second insert collapses onto the first row via the idempotent
	// upsert, losing a sale.
	finalizeMu sync.Mutex
}

func NewBillingService(sales SaleStore, invoices InvoiceAllocator, tenantID string, taxCfg tax.Config) *BillingService {
	return &BillingService{
		sales:    sales,
		invoices: invoices,
		tenantID: tenantID,
		taxCfg:   taxCfg,
		now:      time.Now,
	}
}

// RecordSale finalizes a bill: computes the tax breakdown and grand total,
// allocates the invoice number and persists the transaction. It never blocks
// on anything network-side; the outbox pushes the row later.
func (s *BillingService) RecordSale(ctx context.Context, p model.SaleCreateRequest) (*model.SalesTransaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.Source == "" {
		p.Source = model.SourcePOS
	}

	var subtotal float64
	items := make([]model.LineItem, len(p.Items))
	for i, it := range p.Items {
		it.Name = strings.TrimSpace(it.Name)
		it.Subtotal = it.Price * float64(it.Quantity)
		items[i] = it
		subtotal += it.Subtotal
	}

	b, err := tax.ComputeRaw(subtotal, s.taxCfg)
	if err != nil {
		return nil, err
	}

	// discount and packing are applied after taxes, then the composed total
	// is rounded once so the printed bill carries a single round-off line
	grand := b.GrandTotal + p.PackingCharge - p.Discount
	var roundOff float64
	if s.taxCfg.RoundOffEnabled {
		rounded := tax.RoundHalfUp(grand)
		roundOff = rounded - grand
		grand = rounded
	}

	method := p.PaymentMethod
	if method == "" {
		method = model.PaymentPending
	}
	status := model.PaymentStatusPaid
	if method == model.PaymentPending {
		status = model.PaymentStatusPending
	}

	completedAt := p.CompletedAt
	if completedAt.IsZero() {
		completedAt = s.now()
	}

	s.finalizeMu.Lock()
	defer s.finalizeMu.Unlock()

	invoiceNumber, err := s.invoices.Next(ctx, s.tenantID)
	if err != nil {
		return nil, err
	}

	sale := &model.SalesTransaction{
		ID:            uuid.NewString(),
		TenantID:      s.tenantID,
		InvoiceNumber: invoiceNumber,
		OrderNumber:   p.OrderNumber,
		OrderType:     p.OrderType,
		TableNumber:   p.TableNumber,
		Source:        p.Source,
		Subtotal:      subtotal,
		ServiceCharge: b.ServiceCharge,
		CGST:          b.CGST,
		SGST:          b.SGST,
		Discount:      p.Discount,
		RoundOff:      roundOff,
		PackingCharge: p.PackingCharge,
		GrandTotal:    grand,
		PaymentMethod: method,
		PaymentStatus: status,
		Items:         items,
		CashierName:   p.CashierName,
		StaffID:       p.StaffID,
		CreatedAt:     s.now(),
		CompletedAt:   completedAt,
	}

	recorded, err := s.sales.Record(ctx, sale)
	if err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}

	// advance the counter only after the row is durable; a crash between the
	// two leaves a gap in the sequence, never a duplicate
	if _, err := s.invoices.ConfirmIssued(ctx, s.tenantID); err != nil {
		logger.Error("invoice counter confirm failed after persist",
			"tenant", s.tenantID, "invoice", recorded.InvoiceNumber, "error", err)
	}

	return recorded, nil
}

// SettlePayment moves a pending transaction to its final payment method. This
// is the only mutation a recorded sale supports.
func (s *BillingService) SettlePayment(ctx context.Context, invoiceNumber string, method model.PaymentMethod) error {
	switch method {
	case model.PaymentCash, model.PaymentCard, model.PaymentUPI, model.PaymentWallet, model.PaymentCoupon:
	default:
		return ErrInvalidPaymentMethod
	}

	err := s.sales.UpdatePaymentMethod(ctx, s.tenantID, invoiceNumber, method)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrSaleNotFound
	case errors.Is(err, repository.ErrPaymentAlreadySet):
		return ErrPaymentAlreadySettled
	}
	return err
}

func (s *BillingService) Get(ctx context.Context, invoiceNumber string) (*model.SalesTransaction, error) {
	sale, err := s.sales.Get(ctx, s.tenantID, invoiceNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSaleNotFound
	}
	return sale, err
}

func (s *BillingService) List(ctx context.Context, f model.SaleFilter) ([]*model.SalesTransaction, int64, error) {
	f.TenantID = s.tenantID
	return s.sales.Query(ctx, f)
}

// PreviewInvoiceNumber returns the number the next finalized bill will carry,
// for display on the order screen. It does not reserve anything.
func (s *BillingService) PreviewInvoiceNumber(ctx context.Context) (string, error) {
	return s.invoices.Next(ctx, s.tenantID)
}

// PurgeSynced removes synced rows older than the retention horizon. Rows the
// cloud has not acknowledged are never deleted, whatever their age.
func (s *BillingService) PurgeSynced(ctx context.Context, retention time.Duration) (int64, error) {
	horizon := s.now().Add(-retention)
	purged, err := s.sales.PurgeSyncedBefore(ctx, s.tenantID, horizon)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		logger.Info("purged synced ledger rows", "tenant", s.tenantID, "purged", purged, "horizon", horizon)
	}
	return purged, nil
}
