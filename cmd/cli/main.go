package main

import (
	"os"
	"strings"

	"github.com/orderstack/pos-ledger/internal/config"
	"github.com/orderstack/pos-ledger/pkg/db"
	"github.com/orderstack/pos-ledger/pkg/logger"
)

// Applies the goose migrations for the cloud ingest store.
//
//	cli --env=.env --dir=./migrations
func main() {
	if err := config.Load(argPath("--env=", ".env")); err != nil {
		logger.Error("failed to load config", "error", err)
	}

	pgConf := db.PostgresConfig{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	if err := db.Migrate(pgConf, argPath("--dir=", "./migrations")); err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
}

// argPath returns the value of a --flag=path argument, falling back to
// the default when the flag is absent. Paths that don't exist resolve
// to "" so the caller fails with a useful error instead of a bad open.
func argPath(flag, fallback string) string {
	path := fallback
	for _, v := range os.Args {
		if strings.HasPrefix(v, flag) {
			path = strings.TrimPrefix(v, flag)
			break
		}
	}
	if _, err := os.Stat(path); err != nil {
		logger.Error("path not accessible", "path", path, "error", err)
		return ""
	}
	return path
}
