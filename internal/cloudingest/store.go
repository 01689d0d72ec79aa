package cloudingest

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/orderstack/pos-ledger/pkg/db"
)

type Store struct {
	*db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{DB: database}
}

// Upsert writes one ingested row. A replay of an already-stored invoice is a
// no-op that still reports success; the unique key keeps exactly one row per
// (tenant, invoice) whatever the device resubmits.
func (s *Store) Upsert(ctx context.Context, row *IngestedSale) error {
	return s.Conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "invoice_number"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (s *Store) Get(ctx context.Context, tenantID, invoiceNumber string) (*IngestedSale, error) {
	var row IngestedSale
	err := s.Conn(ctx).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) CountForTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := s.Conn(ctx).
		Model(&IngestedSale{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

// Window returns the tenant's rows completed inside [from, to], oldest first,
// for the server-side reporting projections.
func (s *Store) Window(ctx context.Context, tenantID string, from, to time.Time) ([]*IngestedSale, error) {
	var rows []*IngestedSale
	err := s.Conn(ctx).
		Where("tenant_id = ? AND completed_at >= ? AND completed_at <= ?", tenantID, from, to).
		Order("completed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
