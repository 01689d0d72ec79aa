package model

import (
	"errors"
	"time"
)

// OrderType classifies how the order was served.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeout  OrderType = "takeout"
	OrderTypeDelivery OrderType = "delivery"
)

// SaleSource identifies the channel a transaction came from.
type SaleSource string

const (
	SourcePOS     SaleSource = "pos"
	SourceZomato  SaleSource = "zomato"
	SourceSwiggy  SaleSource = "swiggy"
	SourceWebsite SaleSource = "website"
)

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentUPI     PaymentMethod = "upi"
	PaymentWallet  PaymentMethod = "wallet"
	PaymentCoupon  PaymentMethod = "coupon"
	PaymentPending PaymentMethod = "pending"
)

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
)

// LineItem is one ordered item on a finalized bill. Items are immutable once
// the sale is recorded; the store keeps them as an opaque serialized blob.
type LineItem struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
	Subtotal  float64  `json:"subtotal"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// SalesTransaction is one completed sale, the unit of the local ledger.
//
// GrandTotal is computed once when the bill is finalized and is authoritative
// afterward, even if the tenant's tax configuration changes. SyncedAt is nil
// until the outbox engine has pushed the row to the cloud; it never reverts.
type SalesTransaction struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	InvoiceNumber string        `json:"invoice_number"`
	OrderNumber   string        `json:"order_number,omitempty"`
	OrderType     OrderType     `json:"order_type"`
	TableNumber   string        `json:"table_number,omitempty"`
	Source        SaleSource    `json:"source"`
	Subtotal      float64       `json:"subtotal"`
	ServiceCharge float64       `json:"service_charge"`
	CGST          float64       `json:"cgst"`
	SGST          float64       `json:"sgst"`
	Discount      float64       `json:"discount"`
	RoundOff      float64       `json:"round_off"`
	PackingCharge float64       `json:"packing_charges"`
	GrandTotal    float64       `json:"grand_total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Items         []LineItem    `json:"items"`
	CashierName   string        `json:"cashier_name,omitempty"`
	StaffID       string        `json:"staff_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	SyncedAt      *time.Time    `json:"synced_at,omitempty"`
}

// SaleCreateRequest is the input for finalizing a bill. Tax, round-off and the
// grand total are computed by the billing service, not supplied by the caller.
type SaleCreateRequest struct {
	OrderType     OrderType
	TableNumber   string
	OrderNumber   string
	Source        SaleSource
	Items         []LineItem
	Discount      float64
	PackingCharge float64
	PaymentMethod PaymentMethod
	CashierName   string
	StaffID       string
	CompletedAt   time.Time
}

func (p SaleCreateRequest) Validate() error {
	if len(p.Items) == 0 {
		return errors.New("at least one line item is required")
	}
	for _, it := range p.Items {
		if it.Name == "" {
			return errors.New("line item name is required")
		}
		if it.Quantity <= 0 {
			return errors.New("line item quantity must be positive")
		}
		if it.Price < 0 {
			return errors.New("line item price cannot be negative")
		}
	}
	if p.Discount < 0 {
		return errors.New("discount cannot be negative")
	}
	if p.PackingCharge < 0 {
		return errors.New("packing charges cannot be negative")
	}
	switch p.OrderType {
	case OrderTypeDineIn, OrderTypeTakeout, OrderTypeDelivery:
	default:
		return errors.New("unknown order type")
	}
	return nil
}

// SaleFilter controls ledger queries. Date bounds are interpreted in the
// tenant's local calendar; the repository converts them to absolute time at
// the query boundary.
type SaleFilter struct {
	TenantID string
	Date     *time.Time // single local calendar day
	From     *time.Time // inclusive local day range start
	To       *time.Time // inclusive local day range end
	Search   string     // matches invoice number or table number
	Source   *SaleSource
	Limit    int // default 50
	Offset   int
	Desc     bool // order by completed_at
}

// SyncStatus is the device-local view of outbox progress.
type SyncStatus struct {
	TenantID  string     `json:"tenant_id"`
	Total     int64      `json:"total"`
	Synced    int64      `json:"synced"`
	Pending   int64      `json:"pending"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastRun   *RunResult `json:"last_run,omitempty"`
}

// RunResult is the outcome of a single outbox run.
type RunResult struct {
	Synced int      `json:"synced"`
	Errors []string `json:"errors,omitempty"`
}
