package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/robertarktes/court-reservations/internal/domain"
)

const (
	BackendCRDB   = "crdb"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	HTTPAddr        string
	StoreBackend    string
	CRDBDSN         string
	MongoURI        string
	MongoDB         string
	RedisAddr       string
	RabbitURL       string
	RabbitExchange  string
	OTLPEndpoint    string
	LogLevel        string
	SlotLockBackend string
	SlotLockTTL     time.Duration
	Location        *time.Location

	LateCancelWindow     time.Duration
	NoShowWindow         time.Duration
	DefaultPaymentMethod domain.PaymentMethod

	IdempotencyTTL     time.Duration
	RateLimitPerMinute int
	OutboxPollInterval time.Duration
	CompletionInterval time.Duration
}

// Load reads the configuration from the environment, after an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		HTTPAddr:             env("HTTP_ADDR", ":8080"),
		StoreBackend:         env("STORE_BACKEND", BackendCRDB),
		CRDBDSN:              getenv("CRDB_DSN"),
		MongoURI:             getenv("MONGO_URI"),
		MongoDB:              env("MONGO_DB", "courts"),
		RedisAddr:            getenv("REDIS_ADDR"),
		RabbitURL:            getenv("RABBIT_URL"),
		RabbitExchange:       env("RABBIT_EXCHANGE", "courts.events"),
		OTLPEndpoint:         getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:             env("LOG_LEVEL", "info"),
		SlotLockBackend:      env("SLOT_LOCK_BACKEND", BackendCRDB),
		DefaultPaymentMethod: domain.PaymentMethod(env("DEFAULT_PAYMENT_METHOD", string(domain.MethodOrangeMoney))),
	}

	durations := []struct {
		key  string
		def  string
		into *time.Duration
	}{
		{"SLOT_LOCK_TTL", "2m", &cfg.SlotLockTTL},
		{"LATE_CANCEL_WINDOW", "12h", &cfg.LateCancelWindow},
		{"NO_SHOW_WINDOW", "2h", &cfg.NoShowWindow},
		{"IDEMPOTENCY_TTL", "24h", &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", "5s", &cfg.OutboxPollInterval},
		{"COMPLETION_INTERVAL", "10m", &cfg.CompletionInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(env(d.key, d.def))
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", d.key)
		}
		if v <= 0 {
			return nil, errors.Newf("%s must be positive", d.key)
		}
		*d.into = v
	}

	limit, err := strconv.Atoi(env("RATE_LIMIT_PER_MINUTE", "30"))
	if err != nil {
		return nil, errors.Wrap(err, "parse RATE_LIMIT_PER_MINUTE")
	}
	cfg.RateLimitPerMinute = limit

	cfg.Location, err = time.LoadLocation(env("APP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, errors.Wrap(err, "load APP_TIMEZONE")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendCRDB:
		if c.CRDBDSN == "" {
			return errors.New("CRDB_DSN is required when STORE_BACKEND=crdb")
		}
	case BackendMemory:
	default:
		return errors.Newf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.SlotLockBackend {
	case BackendCRDB:
		if c.StoreBackend == BackendMemory {
			c.SlotLockBackend = BackendMemory
		}
	case BackendMemory:
		if c.StoreBackend != BackendMemory {
			return errors.New("SLOT_LOCK_BACKEND=memory requires STORE_BACKEND=memory")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when SLOT_LOCK_BACKEND=redis")
		}
	default:
		return errors.Newf("unknown SLOT_LOCK_BACKEND %q", c.SlotLockBackend)
	}

	// Credit methods are picked by the breakdown, never as a fallback.
	if !c.DefaultPaymentMethod.IsMobile() && c.DefaultPaymentMethod != domain.MethodCash {
		return errors.Newf("DEFAULT_PAYMENT_METHOD %q must be a mobile method or cash", c.DefaultPaymentMethod)
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}
