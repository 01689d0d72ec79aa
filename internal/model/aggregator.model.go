package model

import "time"

// AggregatorItem is the item shape delivered by the aggregator channel. It is
// structurally different from LineItem (ItemName/Count/Amount vs
// Name/Quantity/Subtotal); the reporter normalizes both into ReportItem
// before any aggregation.
type AggregatorItem struct {
	ItemName string  `json:"item_name"`
	Count    int     `json:"count"`
	Amount   float64 `json:"amount"`
}

// AggregatorOrder is one order ingested from a delivery platform. The rows are
// produced by the feed consumer and are read-only for the rest of the system;
// the reporter treats them as a peer channel to merge, never to own.
type AggregatorOrder struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"`
	OrderID     string           `json:"order_id"`
	Platform    SaleSource       `json:"platform"`
	OrderValue  float64          `json:"order_value"`
	Commission  float64          `json:"commission"`
	Taxes       float64          `json:"taxes"`
	NetPayout   float64          `json:"net_payout"`
	Status      string           `json:"status"`
	Items       []AggregatorItem `json:"items"`
	PlacedAt    time.Time        `json:"placed_at"`
	CompletedAt time.Time        `json:"completed_at"`
	ReceivedAt  time.Time        `json:"received_at"`
}

// AggregatorFilter controls aggregator-order reads for reporting.
type AggregatorFilter struct {
	TenantID string
	From     *time.Time
	To       *time.Time
	Platform *SaleSource
	Limit    int
	Offset   int
}
