package invoice

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CounterStore is the durable per-tenant sequence behind the allocator.
type CounterStore interface {
	Current(ctx context.Context, tenantID string) (int64, error)
	Advance(ctx context.Context, tenantID string) (int64, error)
}

// Allocator issues tenant-scoped invoice numbers like INV-2508-000123.
//
// Allocation is two-phase: Next previews the number for display on the bill,
// ConfirmIssued advances the durable counter once the transaction has been
// persisted. A crash between the two leaks the previewed number; the sequence
// stays gap-free under normal operation and merely skips under crash, which
// is accepted rather than paying for a durable reservation log.
//
// The allocator is safe for exactly one writer process per tenant. Two
// terminals sharing a tenant can collide; only the cloud's unique-key upsert
// stands behind that case.
type Allocator struct {
	counters CounterStore
	prefix   string
	now      func() time.Time

	mu sync.Mutex
}

func NewAllocator(counters CounterStore, prefix string) *Allocator {
	if prefix == "" {
		prefix = "INV"
	}
	return &Allocator{
		counters: counters,
		prefix:   prefix,
		now:      time.Now,
	}
}

// Next returns the invoice number the next recorded sale will carry. It does
// not advance the counter; calling Next repeatedly without a confirm returns
// the same number.
func (a *Allocator) Next(ctx context.Context, tenantID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.counters.Current(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("read invoice counter: %w", err)
	}
	return a.format(current + 1), nil
}

// ConfirmIssued durably advances the counter after the transaction carrying
// the previewed number has been persisted, and returns the issued number.
func (a *Allocator) ConfirmIssued(ctx context.Context, tenantID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.counters.Advance(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("advance invoice counter: %w", err)
	}
	return a.format(n), nil
}

func (a *Allocator) format(n int64) string {
	return fmt.Sprintf("%s-%s-%06d", a.prefix, a.now().Format("0601"), n)
}
