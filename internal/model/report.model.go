package model

// ReportItem is the common projection both channels' item shapes fold into
// before ranking.
type ReportItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// ChannelSummary aggregates one source channel for a reporting window.
type ChannelSummary struct {
	TotalSales        float64 `json:"total_sales"`
	OrderCount        int64   `json:"order_count"`
	AverageOrderValue float64 `json:"average_order_value"`
	TaxTotal          float64 `json:"tax_total"`
	DiscountTotal     float64 `json:"discount_total"`
	ServiceCharge     float64 `json:"service_charge_total"`
}

// SalesSummary is the POS-channel report for a tenant and date window.
type SalesSummary struct {
	TenantID string `json:"tenant_id"`
	Date     string `json:"date"`

	ChannelSummary

	ByPaymentMethod map[string]ChannelSummary `json:"by_payment_method"`
	ByOrderType     map[string]ChannelSummary `json:"by_order_type"`
	ByHour          [24]ChannelSummary        `json:"by_hour"`
	TopItems        []ReportItem              `json:"top_items"`
}

// CombinedSummary merges the POS and aggregator channels while preserving the
// per-source breakdown exactly.
type CombinedSummary struct {
	TenantID string `json:"tenant_id"`
	Date     string `json:"date"`

	ChannelSummary

	POS        ChannelSummary `json:"pos"`
	Aggregator ChannelSummary `json:"aggregator"`
	TopItems   []ReportItem   `json:"top_items"`
}
