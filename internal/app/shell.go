package app

import (
	"context"
	"errors"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"gorm.io/gorm"

	"github.com/adanyl0v/tasktracker/internal/config"
	"github.com/adanyl0v/tasktracker/internal/dispatch"
	"github.com/adanyl0v/tasktracker/internal/services"
	"github.com/adanyl0v/tasktracker/internal/shell"
)

func MustRunShell(db *gorm.DB) {
	cfg := config.Global()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tasks := services.NewTaskService(
		globalLogger.With().Str("component", "store").Logger(),
		db,
	)

	initCtx, cancelInit := context.WithTimeout(ctx, cfg.Store.InitTimeout)
	err := tasks.InitSchema(initCtx)
	cancelInit()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to initialize task store")
		panic(err)
	}

	dispatcher := dispatch.New(
		globalLogger.With().Str("component", "dispatcher").Logger(),
		cfg.Dispatch.QueueSize,
	)
	err = dispatcher.Start(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to start dispatcher")
		panic(err)
	}

	sh := shell.New(
		globalLogger.With().Str("component", "shell").Logger(),
		tasks,
		dispatcher,
		os.Stdin,
		os.Stdout,
	)

	done := make(chan error, 1)
	go func() {
		done <- sh.Run(ctx)
	}()

	// SIGINT and SIGTERM interrupt the shell; queued store calls
	// still run when the dispatcher stops below.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Dispatch.StopTimeout,
		map[string]gfshutdown.Operation{
			"shell": func(context.Context) error {
				cancel()
				return nil
			},
		},
	)

	select {
	case err = <-done:
	case code := <-wait:
		globalLogger.Info().
			Int("exit_code", code).
			Msg("received shutdown signal")
		err = <-done
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		globalLogger.Error().
			Err(err).
			Msg("shell stopped with error")
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.Dispatch.StopTimeout)
	defer cancelStop()

	err = dispatcher.Stop(stopCtx)
	if err != nil {
		// Queued calls were failed by Stop. The running one, if any,
		// will see the database closed by the caller and report a
		// storage error.
		globalLogger.Warn().
			Err(err).
			Msg("abandoned store calls still in the dispatcher")
		return
	}
	globalLogger.Info().Msg("stopped dispatcher")
}
