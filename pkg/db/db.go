package db

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type txContextKey string

const txKey txContextKey = "trx"

// DB wraps a single gorm connection. The device ledger runs on SQLite with one
// local writer; the cloud reference store runs on Postgres. Repositories are
// handed a *DB explicitly, there is no package-level handle.
type DB struct {
	conn *gorm.DB
}

// OpenSQLite opens (and creates if missing) the on-device database. WAL keeps
// readers from blocking the order-taking write path; the busy timeout covers
// the sync engine reading while a sale is being recorded.
func OpenSQLite(path string, withDebug bool) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}
	if withDebug {
		conn = conn.Debug()
	}
	return &DB{conn: conn}, nil
}

// OpenPostgres connects to the cloud-side store.
func OpenPostgres(config PostgresConfig, withDebug bool) (*DB, error) {
	conn, err := gorm.Open(postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable", config.Host, config.User, config.Password, config.Database, config.Port)),
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			},
		})
	if err != nil {
		return nil, err
	}
	if withDebug {
		conn = conn.Debug()
	}
	return &DB{conn: conn}, nil
}

// Wrap adopts an already-open gorm connection (tests).
func Wrap(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

func (d *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx = context.WithValue(ctx, txKey, tx)
		return fn(ctx)
	})
}

// Conn returns the transaction bound to ctx if one is open, otherwise the
// base connection.
func (d *DB) Conn(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if ok {
		return tx
	}
	return d.conn.WithContext(ctx)
}

// AutoMigrate keeps the device schema current. The cloud store is migrated
// with goose instead (see Migrate).
func (d *DB) AutoMigrate(models ...interface{}) error {
	return d.conn.AutoMigrate(models...)
}
