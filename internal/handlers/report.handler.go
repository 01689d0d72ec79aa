package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"

	"github.com/orderstack/pos-ledger/internal/model"
	xhttp "github.com/orderstack/pos-ledger/pkg/http"
)

type ReportService interface {
	DailySummary(ctx context.Context, tenantID string, day time.Time) (*model.SalesSummary, error)
	CombinedSummary(ctx context.Context, tenantID string, day time.Time) (*model.CombinedSummary, error)
}

type ReportHandler struct {
	svc      ReportService
	tenantID string
	loc      *time.Location
}

func RegisterReportRoutes(e *router.Group, h *ReportHandler) {
	e.GET("/reports/daily", h.DailySummary)
	e.GET("/reports/combined", h.CombinedSummary)
}

func NewReportHandler(reportService ReportService, tenantID string, loc *time.Location) *ReportHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ReportHandler{
		svc:      reportService,
		tenantID: tenantID,
		loc:      loc,
	}
}

// reportDay reads the date query param, defaulting to today. The date is a
// calendar day in the tenant's timezone.
func (h *ReportHandler) reportDay(ctx *xhttp.RequestCtx) (time.Time, bool) {
	v := query(ctx, "date")
	if v == "" {
		return time.Now().In(h.loc), true
	}
	t, err := parseTime(v, h.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (h *ReportHandler) DailySummary(ctx *xhttp.RequestCtx) {
	day, ok := h.reportDay(ctx)
	if !ok {
		writeError(ctx, 400, "invalid date, expected YYYY-MM-DD")
		return
	}

	summary, err := h.svc.DailySummary(ctx, h.tenantID, day)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, summary)
}

func (h *ReportHandler) CombinedSummary(ctx *xhttp.RequestCtx) {
	day, ok := h.reportDay(ctx)
	if !ok {
		writeError(ctx, 400, "invalid date, expected YYYY-MM-DD")
		return
	}

	summary, err := h.svc.CombinedSummary(ctx, h.tenantID, day)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, summary)
}
