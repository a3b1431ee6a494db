package config

import "time"

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

var globalConfig *Config

func Global() *Config {
	return globalConfig
}

func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

type Config struct {
	Env      string `env:"ENV" env-default:"prod"`
	Store    StoreConfig
	Dispatch DispatchConfig
	Log      LogConfig
}

type StoreConfig struct {
	Path               string        `env:"STORE_PATH" env-default:"tasks.db"`
	Debug              bool          `env:"STORE_DEBUG" env-default:"false"`
	SlowQueryThreshold time.Duration `env:"STORE_SLOW_QUERY_THRESHOLD" env-default:"200ms"`
	InitTimeout        time.Duration `env:"STORE_INIT_TIMEOUT" env-default:"10s"`
}

type DispatchConfig struct {
	QueueSize   int           `env:"DISPATCH_QUEUE_SIZE" env-default:"16"`
	StopTimeout time.Duration `env:"DISPATCH_STOP_TIMEOUT" env-default:"5s"`
}

// LogConfig controls where logs go. Stdout belongs to the shell,
// so logs are written to stderr unless File is set.
type LogConfig struct {
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"10"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}
