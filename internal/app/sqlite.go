package app

import (
	"context"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adanyl0v/tasktracker/internal/config"
)

// MustOpenSQLite opens the task database, creating the file if it
// doesn't exist. The pool holds a single connection.
func MustOpenSQLite() *gorm.DB {
	cfg := config.Global().Store

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: newGormLogger(cfg),
	})
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("path", cfg.Path).
			Msg("failed to open sqlite database")
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to get sql.DB")
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.InitTimeout)
	defer cancel()

	err = sqlDB.PingContext(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("path", cfg.Path).
			Msg("failed to ping sqlite database")
		panic(err)
	}
	globalLogger.Info().
		Str("path", cfg.Path).
		Msg("opened sqlite database")

	return db
}

func CloseSQLite(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to get sql.DB")
		return
	}

	err = sqlDB.Close()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to close sqlite database")
		return
	}
	globalLogger.Info().Msg("closed sqlite database")
}

// newGormLogger routes gorm's SQL log into zerolog.
func newGormLogger(cfg config.StoreConfig) logger.Interface {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}

	gormLogger := globalLogger.With().
		Str("component", "gorm").
		Logger()

	return logger.New(
		log.New(gormLogger, "", 0),
		logger.Config{
			SlowThreshold:             cfg.SlowQueryThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
