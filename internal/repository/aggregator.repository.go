package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/pkg/db"
	"gorm.io/gorm/clause"
)

// AggregatorRepository stores delivery-platform orders pushed to the device by
// the feed channel. Writes are upserts keyed by (tenant, order_id) so webhook
// replays converge on one row.
type AggregatorRepository struct {
	*db.DB
	loc *time.Location
}

func NewAggregatorRepository(store *db.DB, loc *time.Location) *AggregatorRepository {
	if loc == nil {
		loc = time.Local
	}
	return &AggregatorRepository{DB: store, loc: loc}
}

// Upsert inserts or replaces the order. The aggregator side may re-send an
// order when its status changes (e.g. delivered after placed); the newest
// payload wins.
func (r *AggregatorRepository) Upsert(ctx context.Context, o *model.AggregatorOrder) (*model.AggregatorOrder, error) {
	entity := toAggregatorEntity(o)
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if entity.ReceivedAt.IsZero() {
		entity.ReceivedAt = time.Now()
	}

	err := r.Conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"platform", "order_value", "commission", "taxes", "net_payout",
			"status", "items_json", "placed_at", "completed_at", "received_at",
		}),
	}).Create(entity).Error
	if err != nil {
		return nil, err
	}
	return toAggregatorModel(entity), nil
}

// List returns orders for the reporting window, oldest first.
func (r *AggregatorRepository) List(ctx context.Context, f model.AggregatorFilter) ([]*model.AggregatorOrder, int64, error) {
	q := r.Conn(ctx).Model(&AggregatorOrderEntity{}).Where("tenant_id = ?", f.TenantID)

	if f.From != nil {
		start, _ := r.dayBounds(*f.From)
		q = q.Where("completed_at >= ?", start)
	}
	if f.To != nil {
		_, end := r.dayBounds(*f.To)
		q = q.Where("completed_at <= ?", end)
	}
	if f.Platform != nil {
		q = q.Where("platform = ?", string(*f.Platform))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*AggregatorOrderEntity
	if err := q.Order("completed_at ASC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toAggregatorModels(entities), total, nil
}

func (r *AggregatorRepository) dayBounds(day time.Time) (time.Time, time.Time) {
	local := day.In(r.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	end := start.Add(24*time.Hour - time.Millisecond)
	return start, end
}
