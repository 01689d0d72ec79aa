package repository

import (
	"context"
	"testing"
	"time"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregatorOrder(tenantID, orderID string, completedAt time.Time) *model.AggregatorOrder {
	return &model.AggregatorOrder{
		TenantID:    tenantID,
		OrderID:     orderID,
		Platform:    model.SourceZomato,
		OrderValue:  300,
		Commission:  60,
		Taxes:       15,
		NetPayout:   225,
		Status:      "delivered",
		Items:       []model.AggregatorItem{{ItemName: "Veg Biryani", Count: 1, Amount: 300}},
		PlacedAt:    completedAt.Add(-40 * time.Minute),
		CompletedAt: completedAt,
	}
}

func TestAggregatorRepository_Upsert(t *testing.T) {
	repo := NewAggregatorRepository(setupTestDB(t), testLocation(t))
	ctx := context.Background()

	t.Run("insert assigns id and received time", func(t *testing.T) {
		created, err := repo.Upsert(ctx, newAggregatorOrder("t1", "ZO-1001", time.Now()))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.ReceivedAt.IsZero())
	})

	t.Run("replay converges on one row", func(t *testing.T) {
		o := newAggregatorOrder("t1", "ZO-1002", time.Now())
		_, err := repo.Upsert(ctx, o)
		require.NoError(t, err)

		o.Status = "refunded"
		o.NetPayout = 0
		_, err = repo.Upsert(ctx, o)
		require.NoError(t, err)

		list, total, err := repo.List(ctx, model.AggregatorFilter{TenantID: "t1"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total) // ZO-1001 + ZO-1002

		var found *model.AggregatorOrder
		for _, row := range list {
			if row.OrderID == "ZO-1002" {
				found = row
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "refunded", found.Status)
		assert.Zero(t, found.NetPayout)
	})
}

func TestAggregatorRepository_ListWindow(t *testing.T) {
	loc := testLocation(t)
	repo := NewAggregatorRepository(setupTestDB(t), loc)
	ctx := context.Background()

	dayD := time.Date(2025, 8, 14, 21, 15, 0, 0, loc)
	dayAfter := time.Date(2025, 8, 15, 1, 30, 0, 0, loc)

	_, err := repo.Upsert(ctx, newAggregatorOrder("t1", "ZO-2001", dayD))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, newAggregatorOrder("t1", "ZO-2002", dayAfter))
	require.NoError(t, err)

	day := time.Date(2025, 8, 14, 0, 0, 0, 0, loc)
	list, total, err := repo.List(ctx, model.AggregatorFilter{TenantID: "t1", From: &day, To: &day})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "ZO-2001", list[0].OrderID)
	assert.Len(t, list[0].Items, 1)
}
