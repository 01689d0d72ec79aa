package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/internal/services"
	xhttp "github.com/orderstack/pos-ledger/pkg/http"
)

type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) RecordSale(ctx context.Context, p model.SaleCreateRequest) (*model.SalesTransaction, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SalesTransaction), args.Error(1)
}

func (m *MockBillingService) SettlePayment(ctx context.Context, invoiceNumber string, method model.PaymentMethod) error {
	args := m.Called(ctx, invoiceNumber, method)
	return args.Error(0)
}

func (m *MockBillingService) Get(ctx context.Context, invoiceNumber string) (*model.SalesTransaction, error) {
	args := m.Called(ctx, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SalesTransaction), args.Error(1)
}

func (m *MockBillingService) List(ctx context.Context, f model.SaleFilter) ([]*model.SalesTransaction, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.SalesTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockBillingService) PreviewInvoiceNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestSaleHandler_RecordSale(t *testing.T) {
	t.Run("successful sale", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		reqBody := createSaleRequest{
			OrderType:     "dine-in",
			TableNumber:   "T4",
			PaymentMethod: "upi",
			Items: []model.LineItem{
				{Name: "Paneer Tikka", Quantity: 2, Price: 300},
			},
		}
		bodyBytes, _ := json.Marshal(reqBody)

		expected := &model.SalesTransaction{
			ID:            "tx-1",
			InvoiceNumber: "INV-2508-000042",
			GrandTotal:    630,
			PaymentMethod: model.PaymentUPI,
		}

		svc.On("RecordSale", mock.Anything, mock.MatchedBy(func(p model.SaleCreateRequest) bool {
			return p.OrderType == model.OrderTypeDineIn && p.TableNumber == "T4" && len(p.Items) == 1
		})).Return(expected, nil)

		ctx := setupTestContext("POST", "/api/sales", bodyBytes)
		handler.RecordSale(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.SalesTransaction
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "INV-2508-000042", response.InvoiceNumber)

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		ctx := setupTestContext("POST", "/api/sales", []byte("not json"))
		handler.RecordSale(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Contains(t, response["error"], "invalid JSON")
	})

	t.Run("service rejects request", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		bodyBytes, _ := json.Marshal(createSaleRequest{OrderType: "dine-in"})
		svc.On("RecordSale", mock.Anything, mock.Anything).
			Return(nil, errors.New("at least one line item is required"))

		ctx := setupTestContext("POST", "/api/sales", bodyBytes)
		handler.RecordSale(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestSaleHandler_GetSale(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		svc.On("Get", mock.Anything, "INV-2508-000001").
			Return(&model.SalesTransaction{InvoiceNumber: "INV-2508-000001"}, nil)

		ctx := setupTestContext("GET", "/api/sales/INV-2508-000001", nil)
		ctx.SetUserValue("invoice", "INV-2508-000001")
		handler.GetSale(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		svc.On("Get", mock.Anything, "INV-2508-999999").
			Return(nil, services.ErrSaleNotFound)

		ctx := setupTestContext("GET", "/api/sales/INV-2508-999999", nil)
		ctx.SetUserValue("invoice", "INV-2508-999999")
		handler.GetSale(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestSaleHandler_SettlePayment(t *testing.T) {
	body, _ := json.Marshal(settlePaymentRequest{PaymentMethod: "card"})

	t.Run("settled", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		svc.On("SettlePayment", mock.Anything, "INV-2508-000001", model.PaymentCard).Return(nil)

		ctx := setupTestContext("PUT", "/api/sales/INV-2508-000001/payment", body)
		ctx.SetUserValue("invoice", "INV-2508-000001")
		handler.SettlePayment(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("already settled", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		svc.On("SettlePayment", mock.Anything, "INV-2508-000001", model.PaymentCard).
			Return(services.ErrPaymentAlreadySettled)

		ctx := setupTestContext("PUT", "/api/sales/INV-2508-000001/payment", body)
		ctx.SetUserValue("invoice", "INV-2508-000001")
		handler.SettlePayment(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("unknown invoice", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		svc.On("SettlePayment", mock.Anything, "INV-2508-999999", model.PaymentCard).
			Return(services.ErrSaleNotFound)

		ctx := setupTestContext("PUT", "/api/sales/INV-2508-999999/payment", body)
		ctx.SetUserValue("invoice", "INV-2508-999999")
		handler.SettlePayment(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("invalid method", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		svc.On("SettlePayment", mock.Anything, "INV-2508-000001", model.PaymentMethod("iou")).
			Return(services.ErrInvalidPaymentMethod)

		badBody, _ := json.Marshal(settlePaymentRequest{PaymentMethod: "iou"})
		ctx := setupTestContext("PUT", "/api/sales/INV-2508-000001/payment", badBody)
		ctx.SetUserValue("invoice", "INV-2508-000001")
		handler.SettlePayment(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestSaleHandler_ListSales(t *testing.T) {
	t.Run("with filters", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.SaleFilter) bool {
			return f.Date != nil && f.Search == "T4" && f.Limit == 10 && f.Desc
		})).Return([]*model.SalesTransaction{{InvoiceNumber: "INV-2508-000001"}}, int64(1), nil)

		ctx := setupTestContext("GET", "/api/sales?date=2025-08-14&search=T4&limit=10&order=desc", nil)
		handler.ListSales(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response listSalesResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(1), response.Total)
		assert.Len(t, response.Items, 1)

		svc.AssertExpectations(t)
	})

	t.Run("date filter resolves in the tenant zone", func(t *testing.T) {
		ny, err := time.LoadLocation("America/New_York")
		require.NoError(t, err)

		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, ny)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.SaleFilter) bool {
			return f.Date != nil && f.Date.Equal(time.Date(2025, 8, 14, 0, 0, 0, 0, ny))
		})).Return([]*model.SalesTransaction{}, int64(0), nil)

		ctx := setupTestContext("GET", "/api/sales?date=2025-08-14", nil)
		handler.ListSales(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		svc := new(MockBillingService)
		handler := NewSaleHandler(svc, time.UTC)

		svc.On("List", mock.Anything, mock.Anything).
			Return(nil, int64(0), errors.New("database error"))

		ctx := setupTestContext("GET", "/api/sales", nil)
		handler.ListSales(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestSaleHandler_NextInvoice(t *testing.T) {
	svc := new(MockBillingService)
	handler := NewSaleHandler(svc, time.UTC)

	svc.On("PreviewInvoiceNumber", mock.Anything).Return("INV-2508-000043", nil)

	ctx := setupTestContext("GET", "/api/sales/next-invoice", nil)
	handler.NextInvoice(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response map[string]string
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, "INV-2508-000043", response["invoice_number"])
}

func TestHelperFunctions(t *testing.T) {
	t.Run("writeError", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		writeError(ctx, 404, "not found")

		assert.Equal(t, 404, ctx.Response.StatusCode())

		var result map[string]string
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &result))
		assert.Equal(t, "not found", result["error"])
	})

	t.Run("parseTime RFC3339", func(t *testing.T) {
		parsed, err := parseTime("2025-08-14T12:00:00Z", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, 2025, parsed.Year())
	})

	t.Run("parseTime date only", func(t *testing.T) {
		parsed, err := parseTime("2025-08-14", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, time.Month(8), parsed.Month())
		assert.Equal(t, 14, parsed.Day())
	})

	t.Run("parseTime date resolves in the tenant zone", func(t *testing.T) {
		ny, err := time.LoadLocation("America/New_York")
		require.NoError(t, err)

		parsed, err := parseTime("2025-08-14", ny)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 8, 14, 0, 0, 0, 0, ny), parsed)
		// midnight local, not the previous evening shifted from UTC
		assert.Equal(t, 14, parsed.In(ny).Day())
	})

	t.Run("parseTime invalid", func(t *testing.T) {
		_, err := parseTime("yesterday", time.UTC)
		assert.Error(t, err)
	})
}
