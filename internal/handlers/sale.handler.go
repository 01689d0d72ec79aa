package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/internal/services"
	xhttp "github.com/orderstack/pos-ledger/pkg/http"
)

type BillingService interface {
	RecordSale(ctx context.Context, p model.SaleCreateRequest) (*model.SalesTransaction, error)
	SettlePayment(ctx context.Context, invoiceNumber string, method model.PaymentMethod) error
	Get(ctx context.Context, invoiceNumber string) (*model.SalesTransaction, error)
	List(ctx context.Context, f model.SaleFilter) ([]*model.SalesTransaction, int64, error)
	PreviewInvoiceNumber(ctx context.Context) (string, error)
}

type SaleHandler struct {
	svc BillingService
	loc *time.Location
}

func RegisterSaleRoutes(e *router.Group, h *SaleHandler) {
	e.POST("/sales", h.RecordSale)
	e.GET("/sales", h.ListSales)
	e.GET("/sales/next-invoice", h.NextInvoice)
	e.GET("/sales/{invoice}", h.GetSale)
	e.PUT("/sales/{invoice}/payment", h.SettlePayment)
}

// NewSaleHandler builds the sales surface. loc is the tenant's timezone;
// bare dates in query params resolve to midnight there, not UTC.
func NewSaleHandler(billingService BillingService, loc *time.Location) *SaleHandler {
	if loc == nil {
		loc = time.Local
	}
	return &SaleHandler{
		svc: billingService,
		loc: loc,
	}
}

type createSaleRequest struct {
	OrderType     string           `json:"order_type"`
	TableNumber   string           `json:"table_number"`
	OrderNumber   string           `json:"order_number"`
	Source        string           `json:"source"`
	Items         []model.LineItem `json:"items"`
	Discount      float64          `json:"discount"`
	PackingCharge float64          `json:"packing_charges"`
	PaymentMethod string           `json:"payment_method"`
	CashierName   string           `json:"cashier_name"`
	StaffID       string           `json:"staff_id"`
}

type settlePaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type listSalesResponse struct {
	Items []*model.SalesTransaction `json:"items"`
	Total int64                     `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *SaleHandler) RecordSale(ctx *xhttp.RequestCtx) {
	var req createSaleRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.SaleCreateRequest{
		OrderType:     model.OrderType(req.OrderType),
		TableNumber:   req.TableNumber,
		OrderNumber:   req.OrderNumber,
		Source:        model.SaleSource(req.Source),
		Items:         req.Items,
		Discount:      req.Discount,
		PackingCharge: req.PackingCharge,
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
		CashierName:   req.CashierName,
		StaffID:       req.StaffID,
	}

	sale, err := h.svc.RecordSale(ctx, p)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, sale)
}

func (h *SaleHandler) GetSale(ctx *xhttp.RequestCtx) {
	invoice, _ := ctx.UserValue("invoice").(string)

	sale, err := h.svc.Get(ctx, invoice)
	if err != nil {
		if errors.Is(err, services.ErrSaleNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, sale)
}

func (h *SaleHandler) SettlePayment(ctx *xhttp.RequestCtx) {
	invoice, _ := ctx.UserValue("invoice").(string)

	var req settlePaymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	err := h.svc.SettlePayment(ctx, invoice, model.PaymentMethod(req.PaymentMethod))
	switch {
	case err == nil:
		writeJSON(ctx, 200, map[string]string{"invoice_number": invoice, "payment_method": req.PaymentMethod})
	case errors.Is(err, services.ErrSaleNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrPaymentAlreadySettled):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, services.ErrInvalidPaymentMethod):
		writeError(ctx, 400, err.Error())
	default:
		writeError(ctx, 500, err.Error())
	}
}

func (h *SaleHandler) ListSales(ctx *xhttp.RequestCtx) {
	var f model.SaleFilter

	if v := query(ctx, "date"); v != "" {
		if t, e := parseTime(v, h.loc); e == nil {
			f.Date = &t
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v, h.loc); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v, h.loc); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "search"); v != "" {
		f.Search = v
	}
	if v := query(ctx, "source"); v != "" {
		src := model.SaleSource(v)
		f.Source = &src
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, listSalesResponse{Items: items, Total: total})
}

func (h *SaleHandler) NextInvoice(ctx *xhttp.RequestCtx) {
	number, err := h.svc.PreviewInvoiceNumber(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"invoice_number": number})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	// RFC3339 carries its own offset; a bare date is a calendar day in the
	// tenant's zone. Parsing it as UTC would shift the requested day for
	// any zone west of UTC.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}
