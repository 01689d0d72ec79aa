package repository

import (
	"testing"
	"time"

	"github.com/orderstack/pos-ledger/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *db.DB {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = conn.AutoMigrate(&SaleEntity{}, &CounterEntity{}, &AggregatorOrderEntity{})
	require.NoError(t, err)

	return db.Wrap(conn)
}

func testLocation(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}
