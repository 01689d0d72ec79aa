package services

import (
	"context"

	"github.com/orderstack/pos-ledger/pkg/db"
)

type HealthService struct {
	store *db.DB
}

func NewHealthService(store *db.DB) *HealthService {
	return &HealthService{store: store}
}

// Get reports whether the ledger database is reachable.
func (s *HealthService) Get() error {
	if s.store == nil {
		return nil
	}
	conn, err := s.store.Conn(context.Background()).DB()
	if err != nil {
		return err
	}
	return conn.Ping()
}
