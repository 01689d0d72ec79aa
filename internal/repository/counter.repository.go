package repository

import (
	"context"
	"errors"
	"time"

	"github.com/orderstack/pos-ledger/pkg/db"
	"gorm.io/gorm"
)

// CounterEntity holds the per-tenant invoice sequence. It lives next to
// tenant configuration, not inside the ledger table. There is no protection
// against two devices sharing one tenant counter; the cloud's unique-key
// upsert is the only safety net for that case.
type CounterEntity struct {
	TenantID  string    `gorm:"primaryKey;column:tenant_id"`
	Counter   int64     `gorm:"column:counter;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CounterEntity) TableName() string {
	return "tenant_counters"
}

// CounterRepository persists the invoice sequence for the single local writer.
type CounterRepository struct {
	*db.DB
}

func NewCounterRepository(store *db.DB) *CounterRepository {
	return &CounterRepository{store}
}

// Current returns the last issued sequence value, zero if none yet.
func (r *CounterRepository) Current(ctx context.Context, tenantID string) (int64, error) {
	var entity CounterEntity
	err := r.Conn(ctx).Where("tenant_id = ?", tenantID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entity.Counter, nil
}

// Advance durably increments the sequence and returns the new value.
func (r *CounterRepository) Advance(ctx context.Context, tenantID string) (int64, error) {
	var next int64
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity CounterEntity
		err := r.Conn(ctx).Where("tenant_id = ?", tenantID).First(&entity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entity = CounterEntity{TenantID: tenantID, Counter: 1}
			next = 1
			return r.Conn(ctx).Create(&entity).Error
		}
		if err != nil {
			return err
		}
		entity.Counter++
		next = entity.Counter
		return r.Conn(ctx).Save(&entity).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
