package repository

import (
	"encoding/json"
	"time"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/pkg/logger"
)

// SaleEntity is the persisted shape of a sales transaction. Line items are an
// opaque JSON blob: they are immutable once the sale is finalized, so nothing
// is gained by normalizing them into their own table.
type SaleEntity struct {
	ID            string     `gorm:"primaryKey;column:id"`
	TenantID      string     `gorm:"column:tenant_id;not null;uniqueIndex:idx_tenant_invoice;index:idx_tenant_completed"`
	InvoiceNumber string     `gorm:"column:invoice_number;not null;uniqueIndex:idx_tenant_invoice"`
	OrderNumber   string     `gorm:"column:order_number"`
	OrderType     string     `gorm:"column:order_type;not null"`
	TableNumber   string     `gorm:"column:table_number"`
	Source        string     `gorm:"column:source;not null"`
	Subtotal      float64    `gorm:"column:subtotal;not null"`
	ServiceCharge float64    `gorm:"column:service_charge;not null"`
	CGST          float64    `gorm:"column:cgst;not null"`
	SGST          float64    `gorm:"column:sgst;not null"`
	Discount      float64    `gorm:"column:discount;not null"`
	RoundOff      float64    `gorm:"column:round_off;not null"`
	PackingCharge float64    `gorm:"column:packing_charges;not null"`
	GrandTotal    float64    `gorm:"column:grand_total;not null"`
	PaymentMethod string     `gorm:"column:payment_method;not null"`
	PaymentStatus string     `gorm:"column:payment_status;not null"`
	ItemsJSON     string     `gorm:"column:items_json;type:text"`
	CashierName   string     `gorm:"column:cashier_name"`
	StaffID       string     `gorm:"column:staff_id"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	CompletedAt   time.Time  `gorm:"column:completed_at;not null;index:idx_tenant_completed"`
	SyncedAt      *time.Time `gorm:"column:synced_at;index"`
}

func (SaleEntity) TableName() string {
	return "sales_transactions"
}

func toSaleEntity(tx *model.SalesTransaction) *SaleEntity {
	if tx == nil {
		return nil
	}
	itemsJSON, err := json.Marshal(tx.Items)
	if err != nil {
		// model.LineItem has no unmarshalable fields; treat as empty
		itemsJSON = []byte("[]")
	}
	return &SaleEntity{
		ID:            tx.ID,
		TenantID:      tx.TenantID,
		InvoiceNumber: tx.InvoiceNumber,
		OrderNumber:   tx.OrderNumber,
		OrderType:     string(tx.OrderType),
		TableNumber:   tx.TableNumber,
		Source:        string(tx.Source),
		Subtotal:      tx.Subtotal,
		ServiceCharge: tx.ServiceCharge,
		CGST:          tx.CGST,
		SGST:          tx.SGST,
		Discount:      tx.Discount,
		RoundOff:      tx.RoundOff,
		PackingCharge: tx.PackingCharge,
		GrandTotal:    tx.GrandTotal,
		PaymentMethod: string(tx.PaymentMethod),
		PaymentStatus: string(tx.PaymentStatus),
		ItemsJSON:     string(itemsJSON),
		CashierName:   tx.CashierName,
		StaffID:       tx.StaffID,
		CreatedAt:     tx.CreatedAt,
		CompletedAt:   tx.CompletedAt,
		SyncedAt:      tx.SyncedAt,
	}
}

func toSaleModel(e *SaleEntity) *model.SalesTransaction {
	if e == nil {
		return nil
	}
	var items []model.LineItem
	if e.ItemsJSON != "" {
		if err := json.Unmarshal([]byte(e.ItemsJSON), &items); err != nil {
			// a corrupt historical blob must not abort the whole read
			logger.Warn("skipping unparseable items blob", "invoice", e.InvoiceNumber, "error", err)
			items = nil
		}
	}
	return &model.SalesTransaction{
		ID:            e.ID,
		TenantID:      e.TenantID,
		InvoiceNumber: e.InvoiceNumber,
		OrderNumber:   e.OrderNumber,
		OrderType:     model.OrderType(e.OrderType),
		TableNumber:   e.TableNumber,
		Source:        model.SaleSource(e.Source),
		Subtotal:      e.Subtotal,
		ServiceCharge: e.ServiceCharge,
		CGST:          e.CGST,
		SGST:          e.SGST,
		Discount:      e.Discount,
		RoundOff:      e.RoundOff,
		PackingCharge: e.PackingCharge,
		GrandTotal:    e.GrandTotal,
		PaymentMethod: model.PaymentMethod(e.PaymentMethod),
		PaymentStatus: model.PaymentStatus(e.PaymentStatus),
		Items:         items,
		CashierName:   e.CashierName,
		StaffID:       e.StaffID,
		CreatedAt:     e.CreatedAt,
		CompletedAt:   e.CompletedAt,
		SyncedAt:      e.SyncedAt,
	}
}

func toSaleModels(entities []*SaleEntity) []*model.SalesTransaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.SalesTransaction, len(entities))
	for i, e := range entities {
		models[i] = toSaleModel(e)
	}
	return models
}
