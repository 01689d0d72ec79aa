package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/orderstack/pos-ledger/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"

var config *Config

// Configuration This struct holds config envs and values
// which are used in the pos-ledger. Only this struct must be used
// to hold any configuration values, no direct access to
// env, ini or any other config source should be made
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=pos_ledger"`
	AppDebug            bool   `env:"APP_DEBUG,default=1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	TenantID string `env:"TENANT_ID" validation:"mustExists"`
	Timezone string `env:"TENANT_TIMEZONE,default=Asia/Kolkata"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpBaseRequestUrl        string `env:"HTTP_BASE_REQUEST_URI" validation:"mustExists"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	SQLitePath string `env:"SQLITE_PATH,default=pos-ledger.db"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	ProfilerEnable bool `env:"PROFILER_ENABLE"`
	ProfilerPort   int  `env:"PROFILER_PORT"`

	LogLevel []string `env:"LOG_LEVEL"`

	InvoicePrefix string `env:"INVOICE_PREFIX,default=INV"`

	// rates are percentages: 2.5 means 2.5% of the taxable base
	TaxCGSTRate          float64 `env:"TAX_CGST_RATE,default=2.5"`
	TaxSGSTRate          float64 `env:"TAX_SGST_RATE,default=2.5"`
	TaxServiceCharge     bool    `env:"TAX_SERVICE_CHARGE_ENABLED"`
	TaxServiceChargeRate float64 `env:"TAX_SERVICE_CHARGE_RATE,default=10"`
	TaxInclusivePricing  bool    `env:"TAX_INCLUSIVE_PRICING"`
	TaxRoundOffEnabled   bool    `env:"TAX_ROUND_OFF_ENABLED,default=1"`

	SyncEndpointURL  string        `env:"SYNC_ENDPOINT_URL"`
	SyncInterval     time.Duration `env:"SYNC_INTERVAL"`
	SyncStartupDelay time.Duration `env:"SYNC_STARTUP_DELAY"`
	SyncBatchSize    int           `env:"SYNC_BATCH_SIZE"`
	SyncFetchLimit   int           `env:"SYNC_FETCH_LIMIT"`
	SyncRunTimeout   time.Duration `env:"SYNC_RUN_TIMEOUT"`

	RetentionDays int `env:"RETENTION_DAYS,default=90"`

	FeedEnable        bool          `env:"FEED_ENABLE"`
	FeedStream        string        `env:"FEED_STREAM"`
	FeedConsumerGroup string        `env:"FEED_CONSUMER_GROUP"`
	FeedConsumerName  string        `env:"FEED_CONSUMER_NAME"`
	FeedConsumers     int           `env:"FEED_CONSUMERS"`
	FeedWorkers       int           `env:"FEED_WORKERS"`
	FeedMaxRetries    int           `env:"FEED_MAX_RETRIES"`
	FeedPollInterval  time.Duration `env:"FEED_POLL_INTERVAL"`
	FeedBatchSize     int64         `env:"FEED_BATCH_SIZE"`
	FeedMaxLen        int64         `env:"FEED_MAX_LEN"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
