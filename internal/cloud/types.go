package cloud

import "github.com/orderstack/pos-ledger/internal/model"

// ItemPayload is one line item on the wire.
type ItemPayload struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
	Subtotal  float64  `json:"subtotal"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// TransactionPayload is the wire shape of one ledger row submitted to the
// cloud ingest endpoint.
type TransactionPayload struct {
	ID            string        `json:"id"`
	InvoiceNumber string        `json:"invoiceNumber"`
	OrderNumber   string        `json:"orderNumber,omitempty"`
	OrderType     string        `json:"orderType"`
	TableNumber   string        `json:"tableNumber,omitempty"`
	Source        string        `json:"source"`
	Subtotal      float64       `json:"subtotal"`
	ServiceCharge float64       `json:"serviceCharge"`
	CGST          float64       `json:"cgst"`
	SGST          float64       `json:"sgst"`
	Discount      float64       `json:"discount"`
	RoundOff      float64       `json:"roundOff"`
	PackingCharge float64       `json:"packingCharges"`
	GrandTotal    float64       `json:"grandTotal"`
	PaymentMethod string        `json:"paymentMethod"`
	PaymentStatus string        `json:"paymentStatus"`
	Items         []ItemPayload `json:"items"`
	CashierName   string        `json:"cashierName,omitempty"`
	StaffID       string        `json:"staffId,omitempty"`
	CreatedAt     string        `json:"createdAt"`
	CompletedAt   string        `json:"completedAt"`
}

// SyncRequest is the batch body of POST /api/sales/{tenantId}/sync.
type SyncRequest struct {
	Transactions []TransactionPayload `json:"transactions"`
}

// SyncResponse reports how many submitted items the endpoint accepted, in
// submission order, plus per-item reasons for the rest. The prefix-marking
// logic in the sync engine depends on the ordered-acceptance guarantee.
type SyncResponse struct {
	Success bool     `json:"success"`
	Synced  int      `json:"synced"`
	Errors  []string `json:"errors"`
}

// ToPayload converts a ledger row to its wire shape.
func ToPayload(tx *model.SalesTransaction) TransactionPayload {
	items := make([]ItemPayload, len(tx.Items))
	for i, it := range tx.Items {
		items[i] = ItemPayload{
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Subtotal:  it.Subtotal,
			Modifiers: it.Modifiers,
		}
	}
	return TransactionPayload{
		ID:            tx.ID,
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
		Items:         items,
		CashierName:   tx.CashierName,
		StaffID:       tx.StaffID,
		CreatedAt:     tx.CreatedAt.UTC().Format(TimeLayout),
		CompletedAt:   tx.CompletedAt.UTC().Format(TimeLayout),
	}
}

// TimeLayout is the wire timestamp format, millisecond precision with zone.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"
