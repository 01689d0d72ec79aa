package db

import (
	_ "github.com/lib/pq"
	"github.com/orderstack/pos-ledger/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate runs the goose migrations for the cloud-side Postgres store.
func Migrate(cfg PostgresConfig, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal(err)
	}

	conn, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	if err = goose.Up(conn, dir); err != nil {
		logger.Fatal(err)
	}

	return nil
}
