package cloudingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orderstack/pos-ledger/internal/cloud"
	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/pkg/logger"
)

// Service implements the ingest contract the device sync engine talks to.
//
// Acceptance is strictly in submission order and stops at the first item that
// fails: the response's synced count is then always a prefix length, which is
// exactly what the device-side marking logic assumes. An item the store has
// already seen counts as accepted, so a device that crashed before marking a
// batch can resubmit it wholesale.
type Service struct {
	store  *Store
	dedupe *DedupeCache
	now    func() time.Time
}

func NewService(store *Store, dedupe *DedupeCache) *Service {
	return &Service{
		store:  store,
		dedupe: dedupe,
		now:    time.Now,
	}
}

func (s *Service) Ingest(ctx context.Context, tenantID string, payloads []cloud.TransactionPayload) *cloud.SyncResponse {
	resp := &cloud.SyncResponse{}

	for i, p := range payloads {
		if err := s.ingestOne(ctx, tenantID, p); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("item %d (%s): %v", i, p.InvoiceNumber, err))
			// stop here so the accepted set stays a prefix. A payload that
			// fails validation on every retry blocks the rows queued behind
			// it until it is fixed on the device; the error string above is
			// what surfaces through /sync/status.
			break
		}
		resp.Synced++
	}

	resp.Success = resp.Synced == len(payloads)
	if !resp.Success {
		logger.Warn("ingest batch partially accepted",
			"tenant", tenantID, "submitted", len(payloads), "accepted", resp.Synced)
	}
	return resp
}

func (s *Service) ingestOne(ctx context.Context, tenantID string, p cloud.TransactionPayload) error {
	if err := validatePayload(p); err != nil {
		return err
	}

	if s.dedupe.Seen(tenantID, p.InvoiceNumber) {
		return nil
	}

	row, err := toRow(tenantID, p, s.now())
	if err != nil {
		return err
	}
	if err := s.store.Upsert(ctx, row); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	s.dedupe.MarkSeen(tenantID, p.InvoiceNumber)
	return nil
}

func validatePayload(p cloud.TransactionPayload) error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	if p.InvoiceNumber == "" {
		return fmt.Errorf("missing invoiceNumber")
	}
	if p.GrandTotal < 0 {
		return fmt.Errorf("negative grandTotal")
	}
	if p.CompletedAt == "" {
		return fmt.Errorf("missing completedAt")
	}
	return nil
}

func toRow(tenantID string, p cloud.TransactionPayload, ingestedAt time.Time) (*IngestedSale, error) {
	completedAt, err := time.Parse(cloud.TimeLayout, p.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("unparseable completedAt %q", p.CompletedAt)
	}
	createdAt := completedAt
	if p.CreatedAt != "" {
		if t, err := time.Parse(cloud.TimeLayout, p.CreatedAt); err == nil {
			createdAt = t
		}
	}

	itemsJSON, err := json.Marshal(p.Items)
	if err != nil {
		itemsJSON = []byte("[]")
	}

	return &IngestedSale{
		ID:            p.ID,
		TenantID:      tenantID,
		InvoiceNumber: p.InvoiceNumber,
		OrderNumber:   p.OrderNumber,
		OrderType:     p.OrderType,
		TableNumber:   p.TableNumber,
		Source:        p.Source,
		Subtotal:      p.Subtotal,
		ServiceCharge: p.ServiceCharge,
		CGST:          p.CGST,
		SGST:          p.SGST,
		Discount:      p.Discount,
		RoundOff:      p.RoundOff,
		PackingCharge: p.PackingCharge,
		GrandTotal:    p.GrandTotal,
		PaymentMethod: p.PaymentMethod,
		PaymentStatus: p.PaymentStatus,
		ItemsJSON:     string(itemsJSON),
		CashierName:   p.CashierName,
		StaffID:       p.StaffID,
		CreatedAt:     createdAt,
		CompletedAt:   completedAt,
		IngestedAt:    ingestedAt,
	}, nil
}

// Summary folds the tenant's ingested rows for one UTC day window into a
// channel summary, the server-side sibling of the device report.
func (s *Service) Summary(ctx context.Context, tenantID string, from, to time.Time) (*model.ChannelSummary, error) {
	rows, err := s.store.Window(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	var summary model.ChannelSummary
	for _, row := range rows {
		summary.TotalSales += row.GrandTotal
		summary.OrderCount++
		summary.TaxTotal += row.CGST + row.SGST
		summary.DiscountTotal += row.Discount
		summary.ServiceCharge += row.ServiceCharge
	}
	if summary.OrderCount > 0 {
		summary.AverageOrderValue = summary.TotalSales / float64(summary.OrderCount)
	}
	return &summary, nil
}
