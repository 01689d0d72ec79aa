package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/internal/repository"
	"github.com/orderstack/pos-ledger/pkg/db"
	"github.com/orderstack/pos-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *db.DB {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = conn.AutoMigrate(
		&repository.SaleEntity{},
		&repository.CounterEntity{},
		&repository.AggregatorOrderEntity{},
	)
	require.NoError(t, err)

	return db.Wrap(conn)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestSale(t *testing.T, repo *repository.SaleRepository, tenantID, invoiceNumber string, grandTotal float64, completedAt time.Time) *model.SalesTransaction {
	ctx := context.Background()
	tx := &model.SalesTransaction{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		InvoiceNumber: invoiceNumber,
		OrderType:     model.OrderTypeDineIn,
		Source:        model.SourcePOS,
		Subtotal:      grandTotal,
		GrandTotal:    grandTotal,
		PaymentMethod: model.PaymentCash,
		PaymentStatus: model.PaymentStatusPaid,
		Items: []model.LineItem{
			{Name: "Masala Dosa", Quantity: 1, Price: grandTotal, Subtotal: grandTotal},
		},
		CreatedAt:   completedAt,
		CompletedAt: completedAt,
	}
	created, err := repo.Record(ctx, tx)
	require.NoError(t, err)
	return created
}

func CreateTestAggregatorOrder(t *testing.T, repo *repository.AggregatorRepository, tenantID, orderID string, platform model.SaleSource, orderValue float64, completedAt time.Time) *model.AggregatorOrder {
	ctx := context.Background()
	order := &model.AggregatorOrder{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		OrderID:    orderID,
		Platform:   platform,
		OrderValue: orderValue,
		Status:     "delivered",
		Items: []model.AggregatorItem{
			{ItemName: "Veg Biryani", Count: 1, Amount: orderValue},
		},
		PlacedAt:    completedAt.Add(-30 * time.Minute),
		CompletedAt: completedAt,
	}
	created, err := repo.Upsert(ctx, order)
	require.NoError(t, err)
	return created
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
