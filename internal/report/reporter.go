package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/pkg/logger"
)

const (
	pageSize    = 500
	topItemsCap = 10
)

type SaleReader interface {
	Query(ctx context.Context, f model.SaleFilter) ([]*model.SalesTransaction, int64, error) // results, totalCount
}

type AggregatorReader interface {
	List(ctx context.Context, f model.AggregatorFilter) ([]*model.AggregatorOrder, int64, error) // results, totalCount
}

// Reporter produces on-demand summaries over the local ledger and the
// aggregator channel. It never writes to either source; everything is folded
// in application code on read, which is fine at single-restaurant volume.
type Reporter struct {
	sales       SaleReader
	aggregators AggregatorReader
	loc         *time.Location
}

func NewReporter(sales SaleReader, aggregators AggregatorReader, loc *time.Location) *Reporter {
	if loc == nil {
		loc = time.Local
	}
	return &Reporter{
		sales:       sales,
		aggregators: aggregators,
		loc:         loc,
	}
}

// DailySummary folds the POS channel for one local calendar day.
func (r *Reporter) DailySummary(ctx context.Context, tenantID string, day time.Time) (*model.SalesSummary, error) {
	sales, err := r.collectSales(ctx, tenantID, day)
	if err != nil {
		return nil, err
	}

	summary := &model.SalesSummary{
		TenantID:        tenantID,
		Date:            day.Format("2006-01-02"),
		ByPaymentMethod: map[string]model.ChannelSummary{},
		ByOrderType:     map[string]model.ChannelSummary{},
	}

	items := map[string]*model.ReportItem{}
	for _, tx := range sales {
		addSale(&summary.ChannelSummary, tx)

		byMethod := summary.ByPaymentMethod[string(tx.PaymentMethod)]
		addSale(&byMethod, tx)
		summary.ByPaymentMethod[string(tx.PaymentMethod)] = byMethod

		byType := summary.ByOrderType[string(tx.OrderType)]
		addSale(&byType, tx)
		summary.ByOrderType[string(tx.OrderType)] = byType

		hour := tx.CompletedAt.In(r.loc).Hour()
		addSale(&summary.ByHour[hour], tx)

		foldLineItems(items, tx.Items)
	}

	finalize(&summary.ChannelSummary)
	for k, v := range summary.ByPaymentMethod {
		finalize(&v)
		summary.ByPaymentMethod[k] = v
	}
	for k, v := range summary.ByOrderType {
		finalize(&v)
		summary.ByOrderType[k] = v
	}
	for i := range summary.ByHour {
		finalize(&summary.ByHour[i])
	}
	summary.TopItems = rankItems(items)

	return summary, nil
}

// CombinedSummary merges both channels for one local calendar day. The
// per-source breakdowns are preserved exactly; the combined totals are their
// sum, with the average recomputed over the union.
func (r *Reporter) CombinedSummary(ctx context.Context, tenantID string, day time.Time) (*model.CombinedSummary, error) {
	sales, err := r.collectSales(ctx, tenantID, day)
	if err != nil {
		return nil, err
	}
	orders, err := r.collectAggregatorOrders(ctx, tenantID, day)
	if err != nil {
		return nil, err
	}

	summary := &model.CombinedSummary{
		TenantID: tenantID,
		Date:     day.Format("2006-01-02"),
	}

	items := map[string]*model.ReportItem{}
	for _, tx := range sales {
		addSale(&summary.POS, tx)
		foldLineItems(items, tx.Items)
	}
	for _, o := range orders {
		addAggregatorOrder(&summary.Aggregator, o)
		foldAggregatorItems(items, o.Items)
	}

	summary.ChannelSummary = model.ChannelSummary{
		TotalSales:    summary.POS.TotalSales + summary.Aggregator.TotalSales,
		OrderCount:    summary.POS.OrderCount + summary.Aggregator.OrderCount,
		TaxTotal:      summary.POS.TaxTotal + summary.Aggregator.TaxTotal,
		DiscountTotal: summary.POS.DiscountTotal + summary.Aggregator.DiscountTotal,
		ServiceCharge: summary.POS.ServiceCharge + summary.Aggregator.ServiceCharge,
	}
	finalize(&summary.ChannelSummary)
	finalize(&summary.POS)
	finalize(&summary.Aggregator)
	summary.TopItems = rankItems(items)

	return summary, nil
}

// collectSales pages through the day's ledger rows; reports must see every
// transaction, not the first query page.
func (r *Reporter) collectSales(ctx context.Context, tenantID string, day time.Time) ([]*model.SalesTransaction, error) {
	var all []*model.SalesTransaction
	offset := 0
	for {
		page, total, err := r.sales.Query(ctx, model.SaleFilter{
			TenantID: tenantID,
			Date:     &day,
			Limit:    pageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, fmt.Errorf("query ledger: %w", err)
		}
		all = append(all, page...)
		offset += len(page)
		if int64(offset) >= total || len(page) == 0 {
			return all, nil
		}
	}
}

func (r *Reporter) collectAggregatorOrders(ctx context.Context, tenantID string, day time.Time) ([]*model.AggregatorOrder, error) {
	var orders []*model.AggregatorOrder
	offset := 0
	for {
		page, total, err := r.aggregators.List(ctx, model.AggregatorFilter{
			TenantID: tenantID,
			From:     &day,
			To:       &day,
			Limit:    pageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, fmt.Errorf("query aggregator orders: %w", err)
		}
		orders = append(orders, page...)
		offset += len(page)
		if int64(offset) >= total || len(page) == 0 {
			break
		}
	}

	kept := orders[:0]
	for _, o := range orders {
		if o.Status == "cancelled" {
			continue
		}
		kept = append(kept, o)
	}
	return kept, nil
}

func addSale(c *model.ChannelSummary, tx *model.SalesTransaction) {
	c.TotalSales += tx.GrandTotal
	c.OrderCount++
	c.TaxTotal += tx.CGST + tx.SGST
	c.DiscountTotal += tx.Discount
	c.ServiceCharge += tx.ServiceCharge
}

func addAggregatorOrder(c *model.ChannelSummary, o *model.AggregatorOrder) {
	c.TotalSales += o.OrderValue
	c.OrderCount++
	c.TaxTotal += o.Taxes
}

func finalize(c *model.ChannelSummary) {
	if c.OrderCount > 0 {
		c.AverageOrderValue = c.TotalSales / float64(c.OrderCount)
	}
}

func foldLineItems(acc map[string]*model.ReportItem, items []model.LineItem) {
	for _, it := range items {
		if it.Name == "" {
			logger.Warn("skipping line item without a name in report fold")
			continue
		}
		entry := acc[it.Name]
		if entry == nil {
			entry = &model.ReportItem{Name: it.Name}
			acc[it.Name] = entry
		}
		entry.Quantity += it.Quantity
		entry.Revenue += it.Subtotal
	}
}

func foldAggregatorItems(acc map[string]*model.ReportItem, items []model.AggregatorItem) {
	for _, it := range items {
		if it.ItemName == "" {
			logger.Warn("skipping aggregator item without a name in report fold")
			continue
		}
		entry := acc[it.ItemName]
		if entry == nil {
			entry = &model.ReportItem{Name: it.ItemName}
			acc[it.ItemName] = entry
		}
		entry.Quantity += it.Count
		entry.Revenue += it.Amount
	}
}

func rankItems(acc map[string]*model.ReportItem) []model.ReportItem {
	ranked := make([]model.ReportItem, 0, len(acc))
	for _, it := range acc {
		ranked = append(ranked, *it)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > topItemsCap {
		ranked = ranked[:topItemsCap]
	}
	return ranked
}
