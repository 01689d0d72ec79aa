package cloudingest

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/orderstack/pos-ledger/internal/cloud"
	"github.com/orderstack/pos-ledger/pkg/db"
	"github.com/orderstack/pos-ledger/pkg/redis"
)

func setupService(t *testing.T) (*Service, *Store) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	require.NoError(t, err)

	database := db.Wrap(conn)
	require.NoError(t, database.AutoMigrate(&IngestedSale{}))

	store := NewStore(database)
	return NewService(store, nil), store
}

func setupServiceWithDedupe(t *testing.T) (*Service, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	service, store := setupService(t)
	service.dedupe = NewDedupeCache(adapter)
	return service, store
}

func payload(invoice string, total float64) cloud.TransactionPayload {
	completed := time.Date(2025, 8, 14, 13, 45, 12, 0, time.UTC)
	return cloud.TransactionPayload{
		ID:            "id-" + invoice,
		InvoiceNumber: invoice,
		OrderType:     "dine-in",
		Source:        "pos",
		Subtotal:      total,
		GrandTotal:    total,
		PaymentMethod: "upi",
		PaymentStatus: "paid",
		Items: []cloud.ItemPayload{
			{Name: "Paneer Tikka", Quantity: 1, Price: total, Subtotal: total},
		},
		CreatedAt:   completed.Format(cloud.TimeLayout),
		CompletedAt: completed.Format(cloud.TimeLayout),
	}
}

func TestIngestAcceptsBatch(t *testing.T) {
	service, store := setupService(t)
	ctx := context.Background()

	resp := service.Ingest(ctx, "tenant-1", []cloud.TransactionPayload{
		payload("INV-2508-000001", 500),
		payload("INV-2508-000002", 300),
	})

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Synced)
	assert.Empty(t, resp.Errors)

	count, err := store.CountForTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	row, err := store.Get(ctx, "tenant-1", "INV-2508-000001")
	require.NoError(t, err)
	assert.InDelta(t, 500.0, row.GrandTotal, 1e-9)
	assert.Equal(t, 2025, row.CompletedAt.UTC().Year())
}

func TestIngestIsIdempotent(t *testing.T) {
	service, store := setupService(t)
	ctx := context.Background()

	batch := []cloud.TransactionPayload{payload("INV-2508-000001", 500)}

	first := service.Ingest(ctx, "tenant-1", batch)
	require.True(t, first.Success)

	// the replay is reported as accepted, not as an error
	second := service.Ingest(ctx, "tenant-1", batch)
	assert.True(t, second.Success)
	assert.Equal(t, 1, second.Synced)
	assert.Empty(t, second.Errors)

	count, err := store.CountForTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestIngestIdempotentViaDedupeCache(t *testing.T) {
	service, store := setupServiceWithDedupe(t)
	ctx := context.Background()

	batch := []cloud.TransactionPayload{payload("INV-2508-000009", 250)}

	require.True(t, service.Ingest(ctx, "tenant-1", batch).Success)
	assert.True(t, service.dedupe.Seen("tenant-1", "INV-2508-000009"))

	second := service.Ingest(ctx, "tenant-1", batch)
	assert.True(t, second.Success)
	assert.Equal(t, 1, second.Synced)

	count, err := store.CountForTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestIngestStopsAtFirstBadItem(t *testing.T) {
	service, store := setupService(t)
	ctx := context.Background()

	bad := payload("", 300) // missing invoice number
	resp := service.Ingest(ctx, "tenant-1", []cloud.TransactionPayload{
		payload("INV-2508-000001", 100),
		payload("INV-2508-000002", 200),
		bad,
		payload("INV-2508-000004", 400),
	})

	// accepted set is exactly the prefix before the bad item
	assert.False(t, resp.Success)
	assert.Equal(t, 2, resp.Synced)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "invoiceNumber")

	count, err := store.CountForTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = store.Get(ctx, "tenant-1", "INV-2508-000004")
	assert.Error(t, err, "items after the failure must not be stored")
}

func TestIngestValidation(t *testing.T) {
	service, _ := setupService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*cloud.TransactionPayload)
		reason string
	}{
		{"missing id", func(p *cloud.TransactionPayload) { p.ID = "" }, "missing id"},
		{"negative total", func(p *cloud.TransactionPayload) { p.GrandTotal = -5 }, "negative grandTotal"},
		{"missing completedAt", func(p *cloud.TransactionPayload) { p.CompletedAt = "" }, "missing completedAt"},
		{"bad completedAt", func(p *cloud.TransactionPayload) { p.CompletedAt = "yesterday" }, "unparseable completedAt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := payload("INV-2508-000099", 100)
			tc.mutate(&p)

			resp := service.Ingest(ctx, "tenant-1", []cloud.TransactionPayload{p})
			assert.False(t, resp.Success)
			assert.Zero(t, resp.Synced)
			require.Len(t, resp.Errors, 1)
			assert.Contains(t, resp.Errors[0], tc.reason)
		})
	}
}

func TestIngestTenantsAreIsolated(t *testing.T) {
	service, store := setupService(t)
	ctx := context.Background()

	// same invoice number on different devices, distinct transaction ids
	first := payload("INV-2508-000001", 500)
	second := payload("INV-2508-000001", 500)
	second.ID = "id-other-device"

	require.True(t, service.Ingest(ctx, "tenant-1", []cloud.TransactionPayload{first}).Success)
	require.True(t, service.Ingest(ctx, "tenant-2", []cloud.TransactionPayload{second}).Success)

	c1, err := store.CountForTenant(ctx, "tenant-1")
	require.NoError(t, err)
	c2, err := store.CountForTenant(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c1)
	assert.Equal(t, int64(1), c2)
}

func TestSummary(t *testing.T) {
	service, _ := setupService(t)
	ctx := context.Background()

	resp := service.Ingest(ctx, "tenant-1", []cloud.TransactionPayload{
		payload("INV-2508-000001", 500),
		payload("INV-2508-000002", 300),
	})
	require.True(t, resp.Success)

	from := time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 8, 14, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	summary, err := service.Summary(ctx, "tenant-1", from, to)
	require.NoError(t, err)
	assert.InDelta(t, 800.0, summary.TotalSales, 1e-9)
	assert.Equal(t, int64(2), summary.OrderCount)
	assert.InDelta(t, 400.0, summary.AverageOrderValue, 1e-9)

	empty, err := service.Summary(ctx, "tenant-1", from.AddDate(0, 0, 1), to.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, empty.OrderCount)
	assert.Zero(t, empty.AverageOrderValue)
}
