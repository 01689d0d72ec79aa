package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/orderstack/pos-ledger/internal/cloud"
	"github.com/orderstack/pos-ledger/internal/config"
	"github.com/orderstack/pos-ledger/internal/feed"
	"github.com/orderstack/pos-ledger/internal/handlers"
	"github.com/orderstack/pos-ledger/internal/invoice"
	"github.com/orderstack/pos-ledger/internal/outbox"
	"github.com/orderstack/pos-ledger/internal/report"
	"github.com/orderstack/pos-ledger/internal/repository"
	"github.com/orderstack/pos-ledger/internal/services"
	"github.com/orderstack/pos-ledger/internal/tax"
	"github.com/orderstack/pos-ledger/pkg/db"
	xhttp "github.com/orderstack/pos-ledger/pkg/http"
	"github.com/orderstack/pos-ledger/pkg/logger"
	"github.com/orderstack/pos-ledger/pkg/prom"
	"github.com/orderstack/pos-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	loc, err := time.LoadLocation(config.Get().Timezone)
	if err != nil {
		logger.Warn("unknown tenant timezone, falling back to local", "timezone", config.Get().Timezone)
		loc = time.Local
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	dbDebug := false
	if config.Get().AppEnv == "dev" {
		dbDebug = true
	}
	store, err := db.OpenSQLite(config.Get().SQLitePath, dbDebug)
	if err != nil {
		logger.Error("failed opening the ledger database", "error", err, "path", config.Get().SQLitePath)
		return
	}
	err = store.AutoMigrate(
		&repository.SaleEntity{},
		&repository.CounterEntity{},
		&repository.AggregatorOrderEntity{},
	)
	if err != nil {
		logger.Error("failed migrating the ledger schema", "error", err)
		return
	}

	saleRepo := repository.NewSaleRepository(store, loc)
	counterRepo := repository.NewCounterRepository(store)
	aggregatorRepo := repository.NewAggregatorRepository(store, loc)

	allocator := invoice.NewAllocator(counterRepo, config.Get().InvoicePrefix)

	taxCfg := tax.Config{
		CGSTRate:             config.Get().TaxCGSTRate,
		SGSTRate:             config.Get().TaxSGSTRate,
		ServiceChargeEnabled: config.Get().TaxServiceCharge,
		ServiceChargeRate:    config.Get().TaxServiceChargeRate,
		RoundOffEnabled:      config.Get().TaxRoundOffEnabled,
		TaxIncludedInPrice:   config.Get().TaxInclusivePricing,
	}

	// services
	billingService := services.NewBillingService(saleRepo, allocator, config.Get().TenantID, taxCfg)
	reporter := report.NewReporter(saleRepo, aggregatorRepo, loc)
	healthService := services.NewHealthService(store)

	pusher, err := cloud.NewClient(&cloud.Config{
		BaseURL:         config.Get().SyncEndpointURL,
		ReadBufferSize:  1024 * 4,
		WriteBufferSize: 1024 * 4,
	})
	if err != nil {
		logger.Error("failed creating the sync client", "error", err)
		return
	}

	engine := outbox.NewEngine(outbox.Config{
		TenantID:     config.Get().TenantID,
		BatchSize:    config.Get().SyncBatchSize,
		FetchLimit:   config.Get().SyncFetchLimit,
		Interval:     config.Get().SyncInterval,
		StartupDelay: config.Get().SyncStartupDelay,
		RunTimeout:   config.Get().SyncRunTimeout,
	}, saleRepo, pusher)

	var consumer *feed.Consumer
	if config.Get().FeedEnable {
		redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
			Addrs:      []string{config.Get().RedisAddr},
			ClientName: "default",
			DB:         config.Get().RedisDatabase,
			Username:   config.Get().RedisUsername,
			Password:   config.Get().RedisPassword,
		})
		if err != nil {
			logger.Error("failed connecting to redis", "error", err)
			return
		}
		consumer = feed.NewConsumer(feed.Config{
			TenantID:      config.Get().TenantID,
			Stream:        config.Get().FeedStream,
			ConsumerGroup: config.Get().FeedConsumerGroup,
			ConsumerName:  config.Get().FeedConsumerName,
			Consumers:     config.Get().FeedConsumers,
			Workers:       config.Get().FeedWorkers,
			MaxRetries:    config.Get().FeedMaxRetries,
			PollInterval:  config.Get().FeedPollInterval,
			BatchSize:     config.Get().FeedBatchSize,
			MaxLen:        config.Get().FeedMaxLen,
		}, redisAdap, aggregatorRepo)
	}

	if config.Get().PromNamespace != "" {
		var hostname string
		hostname, err = os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
		if err != nil {
			logger.Error("failed to create prometheus metrics", "error", err)
			return
		}
		go func() {
			prom.ListenAndServer(":9100", "/metrics")
		}()
	}

	// v1 handlers
	saleHandler := handlers.NewSaleHandler(billingService, loc)
	reportHandler := handlers.NewReportHandler(reporter, config.Get().TenantID, loc)
	syncHandler := handlers.NewSyncHandler(engine)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterSaleRoutes(g, saleHandler)
	handlers.RegisterReportRoutes(g, reportHandler)
	handlers.RegisterSyncRoutes(g, syncHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	purgeStop := make(chan struct{})
	if days := config.Get().RetentionDays; days > 0 {
		retention := time.Duration(days) * 24 * time.Hour
		go func() {
			ticker := time.NewTicker(6 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					purged, err := billingService.PurgeSynced(context.Background(), retention)
					if err != nil {
						logger.Warn("retention purge failed", "error", err)
					} else if purged > 0 {
						logger.Info("purged synced rows past retention", "rows", purged)
					}
				case <-purgeStop:
					return
				}
			}
		}()
	}

	engine.Start()
	if consumer != nil {
		go func() {
			if err := consumer.Start(); err != nil {
				logger.Error("failed to start the aggregator feed", "error", err)
			}
		}()
	}

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		close(purgeStop)
		if consumer != nil {
			consumer.Stop()
		}
		engine.Stop()
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
