package cloudingest

import (
	"time"
)

// IngestedSale is the cloud-side row for one synced transaction. The unique
// index on (tenant_id, invoice_number) is what makes device retries converge
// on a single row; (tenant_id, completed_at) serves the reporting reads.
type IngestedSale struct {
	ID            string    `gorm:"primaryKey;column:id"`
	TenantID      string    `gorm:"column:tenant_id;not null;uniqueIndex:idx_ingested_tenant_invoice;index:idx_ingested_tenant_completed"`
	InvoiceNumber string    `gorm:"column:invoice_number;not null;uniqueIndex:idx_ingested_tenant_invoice"`
	OrderNumber   string    `gorm:"column:order_number"`
	OrderType     string    `gorm:"column:order_type;not null"`
	TableNumber   string    `gorm:"column:table_number"`
	Source        string    `gorm:"column:source;not null"`
	Subtotal      float64   `gorm:"column:subtotal;not null"`
	ServiceCharge float64   `gorm:"column:service_charge;not null"`
	CGST          float64   `gorm:"column:cgst;not null"`
	SGST          float64   `gorm:"column:sgst;not null"`
	Discount      float64   `gorm:"column:discount;not null"`
	RoundOff      float64   `gorm:"column:round_off;not null"`
	PackingCharge float64   `gorm:"column:packing_charges;not null"`
	GrandTotal    float64   `gorm:"column:grand_total;not null"`
	PaymentMethod string    `gorm:"column:payment_method;not null"`
	PaymentStatus string    `gorm:"column:payment_status;not null"`
	ItemsJSON     string    `gorm:"column:items_json;type:text"`
	CashierName   string    `gorm:"column:cashier_name"`
	StaffID       string    `gorm:"column:staff_id"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	CompletedAt   time.Time `gorm:"column:completed_at;not null;index:idx_ingested_tenant_completed"`
	IngestedAt    time.Time `gorm:"column:ingested_at;not null"`
}

func (IngestedSale) TableName() string {
	return "ingested_sales"
}
