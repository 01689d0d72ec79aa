package repository

import (
	"encoding/json"
	"time"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/pkg/logger"
)

// AggregatorOrderEntity mirrors one delivery-platform order on the device.
// The feed consumer owns the writes; everything else reads.
type AggregatorOrderEntity struct {
	ID          string    `gorm:"primaryKey;column:id"`
	TenantID    string    `gorm:"column:tenant_id;not null;uniqueIndex:idx_tenant_order;index:idx_tenant_agg_completed"`
	OrderID     string    `gorm:"column:order_id;not null;uniqueIndex:idx_tenant_order"`
	Platform    string    `gorm:"column:platform;not null"`
	OrderValue  float64   `gorm:"column:order_value;not null"`
	Commission  float64   `gorm:"column:commission;not null"`
	Taxes       float64   `gorm:"column:taxes;not null"`
	NetPayout   float64   `gorm:"column:net_payout;not null"`
	Status      string    `gorm:"column:status;not null"`
	ItemsJSON   string    `gorm:"column:items_json;type:text"`
	PlacedAt    time.Time `gorm:"column:placed_at;not null"`
	CompletedAt time.Time `gorm:"column:completed_at;not null;index:idx_tenant_agg_completed"`
	ReceivedAt  time.Time `gorm:"column:received_at;not null"`
}

func (AggregatorOrderEntity) TableName() string {
	return "aggregator_orders"
}

func toAggregatorEntity(o *model.AggregatorOrder) *AggregatorOrderEntity {
	if o == nil {
		return nil
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		itemsJSON = []byte("[]")
	}
	return &AggregatorOrderEntity{
		ID:          o.ID,
		TenantID:    o.TenantID,
		OrderID:     o.OrderID,
		Platform:    string(o.Platform),
		OrderValue:  o.OrderValue,
		Commission:  o.Commission,
		Taxes:       o.Taxes,
		NetPayout:   o.NetPayout,
		Status:      o.Status,
		ItemsJSON:   string(itemsJSON),
		PlacedAt:    o.PlacedAt,
		CompletedAt: o.CompletedAt,
		ReceivedAt:  o.ReceivedAt,
	}
}

func toAggregatorModel(e *AggregatorOrderEntity) *model.AggregatorOrder {
	if e == nil {
		return nil
	}
	var items []model.AggregatorItem
	if e.ItemsJSON != "" {
		if err := json.Unmarshal([]byte(e.ItemsJSON), &items); err != nil {
			logger.Warn("skipping unparseable aggregator items blob", "order_id", e.OrderID, "error", err)
			items = nil
		}
	}
	return &model.AggregatorOrder{
		ID:          e.ID,
		TenantID:    e.TenantID,
		OrderID:     e.OrderID,
		Platform:    model.SaleSource(e.Platform),
		OrderValue:  e.OrderValue,
		Commission:  e.Commission,
		Taxes:       e.Taxes,
		NetPayout:   e.NetPayout,
		Status:      e.Status,
		Items:       items,
		PlacedAt:    e.PlacedAt,
		CompletedAt: e.CompletedAt,
		ReceivedAt:  e.ReceivedAt,
	}
}

func toAggregatorModels(entities []*AggregatorOrderEntity) []*model.AggregatorOrder {
	if entities == nil {
		return nil
	}
	models := make([]*model.AggregatorOrder, len(entities))
	for i, e := range entities {
		models[i] = toAggregatorModel(e)
	}
	return models
}
