package repository

import (
	"context"
	"errors"
	"time"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a transaction does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrPaymentAlreadySet is returned when the one-shot payment method
	// update is attempted a second time.
	ErrPaymentAlreadySet = errors.New("payment method already set")
)

// SaleRepository is the durable on-device ledger of completed sales. Rows are
// append-mostly: inserted once, then touched only to confirm the payment
// method and to stamp synced_at.
type SaleRepository struct {
	*db.DB
	loc *time.Location
}

// NewSaleRepository builds a ledger over the given store. loc is the tenant's
// local timezone; all calendar-day filters are resolved against it.
func NewSaleRepository(store *db.DB, loc *time.Location) *SaleRepository {
	if loc == nil {
		loc = time.Local
	}
	return &SaleRepository{DB: store, loc: loc}
}

// Record persists a finalized sale. It is idempotent with respect to
// (tenant, invoice): replaying the same transaction never creates a second
// row, the existing row is returned instead.
func (r *SaleRepository) Record(ctx context.Context, tx *model.SalesTransaction) (*model.SalesTransaction, error) {
	entity := toSaleEntity(tx)

	res := r.Conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "invoice_number"}},
		DoNothing: true,
	}).Create(entity)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		return r.Get(ctx, tx.TenantID, tx.InvoiceNumber)
	}
	return toSaleModel(entity), nil
}

// Get fetches one transaction by its tenant-scoped invoice number.
func (r *SaleRepository) Get(ctx context.Context, tenantID, invoiceNumber string) (*model.SalesTransaction, error) {
	var entity SaleEntity
	err := r.Conn(ctx).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toSaleModel(&entity), nil
}

// Exists reports whether an invoice has already been recorded for the tenant.
func (r *SaleRepository) Exists(ctx context.Context, tenantID, invoiceNumber string) (bool, error) {
	var count int64
	err := r.Conn(ctx).Model(&SaleEntity{}).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		Count(&count).Error
	return count > 0, err
}

// UpdatePaymentMethod confirms the payment method chosen after the bill was
// printed. The transition is allowed exactly once, away from "pending".
func (r *SaleRepository) UpdatePaymentMethod(ctx context.Context, tenantID, invoiceNumber string, method model.PaymentMethod) error {
	if method == model.PaymentPending || method == "" {
		return errors.New("payment method must be a settled method")
	}

	res := r.Conn(ctx).Model(&SaleEntity{}).
		Where("tenant_id = ? AND invoice_number = ? AND payment_method = ?",
			tenantID, invoiceNumber, string(model.PaymentPending)).
		Updates(map[string]interface{}{
			"payment_method": string(method),
			"payment_status": string(model.PaymentStatusPaid),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		exists, err := r.Exists(ctx, tenantID, invoiceNumber)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrPaymentAlreadySet
	}
	return nil
}

// Query lists transactions for reporting and search. Calendar-day bounds are
// converted to absolute timestamps in the tenant's timezone here, at the
// query boundary.
func (r *SaleRepository) Query(ctx context.Context, f model.SaleFilter) ([]*model.SalesTransaction, int64, error) {
	q := r.Conn(ctx).Model(&SaleEntity{}).Where("tenant_id = ?", f.TenantID)

	if f.Date != nil {
		start, end := r.dayBounds(*f.Date)
		q = q.Where("completed_at >= ? AND completed_at <= ?", start, end)
	} else {
		if f.From != nil {
			start, _ := r.dayBounds(*f.From)
			q = q.Where("completed_at >= ?", start)
		}
		if f.To != nil {
			_, end := r.dayBounds(*f.To)
			q = q.Where("completed_at <= ?", end)
		}
	}
	if f.Search != "" {
		q = q.Where("invoice_number LIKE ? OR table_number = ?", "%"+f.Search+"%", f.Search)
	}
	if f.Source != nil {
		q = q.Where("source = ?", string(*f.Source))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "completed_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*SaleEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toSaleModels(entities), total, nil
}

// Unsynced returns up to limit rows still pending cloud push, oldest first so
// the cloud receives them in chronological order.
func (r *SaleRepository) Unsynced(ctx context.Context, tenantID string, limit int) ([]*model.SalesTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var entities []*SaleEntity
	err := r.Conn(ctx).
		Where("tenant_id = ? AND synced_at IS NULL", tenantID).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toSaleModels(entities), nil
}

// MarkSynced stamps synced_at on the given rows. Rows already stamped are
// left untouched: the marker only ever moves from null to a timestamp.
func (r *SaleRepository) MarkSynced(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.Conn(ctx).Model(&SaleEntity{}).
		Where("id IN ? AND synced_at IS NULL", ids).
		Update("synced_at", at).Error
}

// SyncCounts reports total and synced row counts for the tenant.
func (r *SaleRepository) SyncCounts(ctx context.Context, tenantID string) (total, synced int64, err error) {
	if err = r.Conn(ctx).Model(&SaleEntity{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = r.Conn(ctx).Model(&SaleEntity{}).
		Where("tenant_id = ? AND synced_at IS NOT NULL", tenantID).
		Count(&synced).Error; err != nil {
		return 0, 0, err
	}
	return total, synced, nil
}

// PurgeSyncedBefore deletes synced rows whose sale completed before the
// horizon. Unsynced rows are never purged regardless of age.
func (r *SaleRepository) PurgeSyncedBefore(ctx context.Context, tenantID string, horizon time.Time) (int64, error) {
	res := r.Conn(ctx).
		Where("tenant_id = ? AND synced_at IS NOT NULL AND completed_at < ?", tenantID, horizon).
		Delete(&SaleEntity{})
	return res.RowsAffected, res.Error
}

// dayBounds expands a calendar day to [00:00:00.000, 23:59:59.999] in the
// tenant's local timezone.
func (r *SaleRepository) dayBounds(day time.Time) (time.Time, time.Time) {
	local := day.In(r.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	end := start.Add(24*time.Hour - time.Millisecond)
	return start, end
}
