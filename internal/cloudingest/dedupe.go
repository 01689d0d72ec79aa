package cloudingest

import (
	"time"

	"github.com/orderstack/pos-ledger/pkg/logger"
	"github.com/orderstack/pos-ledger/pkg/redis"
)

const (
	dedupeKeyPrefix = "ingested:"
	dedupeTTL       = 24 * time.Hour
)

// DedupeCache is a redis fast path in front of the database's unique key.
// It only ever saves an upsert round-trip; a cache miss or a redis outage
// falls through to the store, which stays correct on its own.
type DedupeCache struct {
	adapter redis.RedisAdapter
}

func NewDedupeCache(adapter redis.RedisAdapter) *DedupeCache {
	return &DedupeCache{adapter: adapter}
}

func (c *DedupeCache) Seen(tenantID, invoiceNumber string) bool {
	if c == nil || c.adapter == nil {
		return false
	}
	exists, err := c.adapter.Exist(dedupeKeyPrefix + tenantID + ":" + invoiceNumber)
	if err != nil {
		logger.Warn("dedupe cache check failed", "tenant", tenantID, "invoice", invoiceNumber, "error", err)
		return false
	}
	return exists > 0
}

func (c *DedupeCache) MarkSeen(tenantID, invoiceNumber string) {
	if c == nil || c.adapter == nil {
		return
	}
	if err := c.adapter.Set(dedupeKeyPrefix+tenantID+":"+invoiceNumber, []byte("1"), dedupeTTL); err != nil {
		logger.Warn("dedupe cache write failed", "tenant", tenantID, "invoice", invoiceNumber, "error", err)
	}
}
