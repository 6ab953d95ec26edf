package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// Network
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// Stores
	MySQLDSN  string `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/flashline?parseTime=true"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	// Workers
	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"8"`
	MaxReserveRetry   int `envconfig:"MAX_RESERVE_RETRY" default:"25"`
	// Timing
	DefaultHoldTTL time.Duration `envconfig:"DEFAULT_HOLD_TTL" default:"120s"`
	LockTTL        time.Duration `envconfig:"LOCK_TTL" default:"5s"`
	MetaCacheTTL   time.Duration `envconfig:"META_CACHE_TTL" default:"30s"`
	ClaimTTL       time.Duration `envconfig:"CLAIM_TTL" default:"10s"`
	ConsumedBuffer time.Duration `envconfig:"CONSUMED_BUFFER" default:"120s"`
	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
