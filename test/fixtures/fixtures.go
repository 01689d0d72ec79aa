package fixtures

import (
	"time"

	"github.com/orderstack/pos-ledger/internal/model"
)

var (
	ThaliItems = []model.LineItem{
		{Name: "Veg Thali", Quantity: 2, Price: 250, Subtotal: 500},
		{Name: "Butter Naan", Quantity: 4, Price: 50, Subtotal: 200},
		{Name: "Lassi", Quantity: 2, Price: 80, Subtotal: 160},
	}

	SingleItem = []model.LineItem{
		{Name: "Masala Dosa", Quantity: 1, Price: 120, Subtotal: 120},
	}
)

func NewSaleCreateRequest(orderType model.OrderType, items []model.LineItem, method model.PaymentMethod) model.SaleCreateRequest {
	return model.SaleCreateRequest{
		OrderType:     orderType,
		Source:        model.SourcePOS,
		Items:         items,
		PaymentMethod: method,
	}
}

func DineInCashSale() model.SaleCreateRequest {
	req := NewSaleCreateRequest(model.OrderTypeDineIn, ThaliItems, model.PaymentCash)
	req.TableNumber = "T4"
	req.CashierName = "Ravi"
	return req
}

func TakeoutPendingSale() model.SaleCreateRequest {
	req := NewSaleCreateRequest(model.OrderTypeTakeout, SingleItem, model.PaymentPending)
	req.PackingCharge = 10
	return req
}

func SaleWithoutItems() model.SaleCreateRequest {
	return model.SaleCreateRequest{
		OrderType:     model.OrderTypeDineIn,
		Source:        model.SourcePOS,
		PaymentMethod: model.PaymentCash,
	}
}

func NewAggregatorOrder(tenantID, orderID string, platform model.SaleSource, orderValue float64, completedAt time.Time) *model.AggregatorOrder {
	commission := orderValue * 0.20
	return &model.AggregatorOrder{
		TenantID:   tenantID,
		OrderID:    orderID,
		Platform:   platform,
		OrderValue: orderValue,
		Commission: commission,
		Taxes:      orderValue * 0.05,
		NetPayout:  orderValue - commission,
		Status:     "delivered",
		Items: []model.AggregatorItem{
			{ItemName: "Paneer Tikka", Count: 1, Amount: orderValue},
		},
		PlacedAt:    completedAt.Add(-40 * time.Minute),
		CompletedAt: completedAt,
	}
}

func SaleFilterForDay(tenantID string, day time.Time) model.SaleFilter {
	return model.SaleFilter{
		TenantID: tenantID,
		Date:     &day,
		Limit:    50,
		Offset:   0,
	}
}

func SaleFilterWithPagination(tenantID string, limit, offset int) model.SaleFilter {
	return model.SaleFilter{
		TenantID: tenantID,
		Limit:    limit,
		Offset:   offset,
	}
}
