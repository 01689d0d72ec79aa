package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/internal/queue"
	"github.com/orderstack/pos-ledger/pkg/logger"
	"github.com/orderstack/pos-ledger/pkg/redis"
	"github.com/orderstack/pos-ledger/pkg/worker"
)

const (
	ingestTimeout   = 5 * time.Second
	statsInterval   = 30 * time.Second
	shutdownTimeout = time.Minute
)

// OrderStore persists aggregator orders. The upsert is keyed on
// (tenant_id, order_id), so webhook replays converge on one row and the
// consumer needs no separate dedupe bookkeeping.
type OrderStore interface {
	Upsert(ctx context.Context, o *model.AggregatorOrder) (*model.AggregatorOrder, error)
}

type Config struct {
	TenantID      string
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	Consumers     int
	Workers       int
	MaxRetries    int
	PollInterval  time.Duration
	BatchSize     int64
	MaxLen        int64
}

// Consumer drains the aggregator-order stream into the local store. It is the
// second channel next to the POS ledger; reports merge both.
type Consumer struct {
	config  Config
	adapter redis.RedisAdapter
	store   OrderStore
	queues  []*queue.Queue
	worker  *worker.WorkerManager
	metrics *consumerMetrics
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConsumer(config Config, adapter redis.RedisAdapter, store OrderStore) *Consumer {
	if config.Stream == "" {
		config.Stream = "aggregator:orders"
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "feed-consumers"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = "feed"
	}
	if config.Consumers <= 0 {
		config.Consumers = 2
	}
	if config.Workers <= 0 {
		config.Workers = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:  config,
		adapter: adapter,
		store:   store,
		worker:  worker.NewWorkerManager(1_000, config.Workers, nil),
		metrics: newConsumerMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (c *Consumer) Start() error {
	c.worker.SetWorker(c.workerHandler)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.worker.Start(); err != nil {
			logger.Error("feed worker pool stopped", "error", err)
		}
	}()

	for i := 0; i < c.config.Consumers; i++ {
		queueConfig := queue.Config{
			Name:          c.config.Stream,
			ConsumerGroup: c.config.ConsumerGroup,
			ConsumerName:  fmt.Sprintf("%s-instance-%d", c.config.ConsumerName, i),
			MaxRetries:    c.config.MaxRetries,
			PollInterval:  c.config.PollInterval,
			BatchSize:     c.config.BatchSize,
			MaxLen:        c.config.MaxLen,
			EnableDLQ:     true,
		}

		q, err := queue.NewQueue(c.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create feed consumer %d: %w", i, err)
		}
		if err := q.Consume(c.messageHandler); err != nil {
			return fmt.Errorf("failed to start feed consumer %d: %w", i, err)
		}
		c.queues = append(c.queues, q)
	}

	c.wg.Add(1)
	go c.statsReporter()

	logger.Info("feed consumer started",
		"stream", c.config.Stream, "consumers", len(c.queues), "workers", c.config.Workers)
	return nil
}

type ingestJob struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands the message to the worker pool and waits for its
// verdict; the queue ack mirrors the worker result.
func (c *Consumer) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ingestTimeout+time.Second)
	defer cancel()

	c.worker.Enqueue(&ingestJob{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker to ingest order: %w", msgCtx.Err())
	}
}

func (c *Consumer) workerHandler(workerIndex int, job interface{}) {
	ingest, ok := job.(*ingestJob)
	if !ok {
		logger.Error("invalid job type in feed worker", "worker", workerIndex)
		return
	}

	select {
	case <-ingest.ctx.Done():
		logger.Warn("ingest job cancelled before processing", "worker", workerIndex)
		return
	default:
	}

	start := time.Now()
	err := c.ingest(ingest.ctx, ingest.msg)
	if err != nil {
		c.metrics.recordFailure()
	} else {
		c.metrics.recordIngested(time.Since(start))
	}

	select {
	case ingest.resultChan <- err:
	case <-ingest.ctx.Done():
		logger.Warn("ingest result dropped, message handler timed out", "worker", workerIndex)
	}
}

// ingest parses one stream message and upserts the order. A payload that does
// not parse is acked: replaying it cannot succeed, and the raw message is
// already on the dead-letter side via the queue's retry cap if it keeps
// failing validation.
func (c *Consumer) ingest(ctx context.Context, msg *queue.Message) error {
	var order model.AggregatorOrder
	if err := json.Unmarshal(msg.Data, &order); err != nil {
		logger.Error("unparseable aggregator order payload, dropping",
			"stream_id", msg.ID, "error", err)
		return nil
	}

	if order.TenantID == "" {
		order.TenantID = c.config.TenantID
	}
	if order.OrderID == "" {
		logger.Error("aggregator order without order_id, dropping", "stream_id", msg.ID)
		return nil
	}
	if platform := msg.Metadata["platform"]; platform != "" && order.Platform == "" {
		order.Platform = model.SaleSource(platform)
	}

	if _, err := c.store.Upsert(ctx, &order); err != nil {
		logger.Error("failed to upsert aggregator order",
			"order_id", order.OrderID, "platform", order.Platform, "error", err)
		return err
	}

	logger.Debug("aggregator order ingested",
		"order_id", order.OrderID, "platform", order.Platform, "value", order.OrderValue)
	return nil
}

func (c *Consumer) statsReporter() {
	defer c.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := c.metrics.snapshot()
			logger.Info("feed consumer stats",
				"ingested", stats["total_ingested"], "failed", stats["total_failed"],
				"rate_per_second", stats["rate_per_second"], "avg_duration_ms", stats["avg_duration_ms"])
			for i, q := range c.queues {
				if qStats, err := q.GetStats(); err == nil {
					logger.Debug("feed stream stats", "consumer", i,
						"total", qStats.TotalMessages, "pending", qStats.PendingMessages)
				}
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) Stop() {
	c.cancel()

	stopChan := make(chan bool, len(c.queues))
	for i, q := range c.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(shutdownTimeout); err != nil {
				logger.Error("error stopping feed consumer", "consumer", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}
	for range c.queues {
		select {
		case <-stopChan:
		case <-time.After(shutdownTimeout + 5*time.Second):
			logger.Warn("timeout waiting for feed consumers to stop")
		}
	}

	c.worker.Exit()
	c.wg.Wait()

	logger.Info("feed consumer stopped")
}
