package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "preheat_scheduler/docs"
	"preheat_scheduler/internal/config"
	"preheat_scheduler/internal/feed"
	"preheat_scheduler/internal/handlers"
	"preheat_scheduler/internal/logger"
	"preheat_scheduler/internal/metrics"
	"preheat_scheduler/internal/repository"
	"preheat_scheduler/internal/repository/db"
	"preheat_scheduler/internal/server"
	"preheat_scheduler/internal/service"
	"preheat_scheduler/internal/thermostat"
	"preheat_scheduler/internal/trigger"
)

const (
	defaultSimTick  = 30 * time.Second
	cronPassTimeout = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// @title                       Preheat Scheduler API
// @version                     1.0
// @description                 Reservation-driven thermostat preheat and eco scheduling.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// load configs/config.yml (+ PREHEAT_* env)
	cfg, err := config.Load("configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(cfg.LogLevel)

	// open DB
	sqlDB, err := openDB(cfg.DB, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	adapter, closeAdapter, err := thermostat.New(cfg.Thermostat, log)
	if err != nil {
		log.Fatalw("failed to init thermostat driver", "err", err, "driver", cfg.Thermostat.Driver)
	}
	defer closeAdapter()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, service.Deps{
		Adapter:    adapter,
		Feed:       feed.New(cfg.Feed, log),
		Location:   cfg.Location(),
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
		Logger:     log,
	})
	apiHandler := handlers.NewHandler(services, log, cfg.Executor.TriggerToken)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startBackground(ctx, cfg, adapter, services, log)

	cron, err := startCron(cfg, services, log)
	if err != nil {
		log.Fatalw("failed to start cron trigger", "err", err)
	}

	// start HTTP server
	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, cron, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg config.DBConfig, log *logger.Logger) (*sql.DB, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		dbPath = "app.db"
	}
	return db.InitDB(dbPath)
}

// startBackground launches the simulated room model and the ticker trigger.
func startBackground(ctx context.Context, cfg config.Config, adapter thermostat.Adapter, services *service.Service, log *logger.Logger) {
	if sim, ok := adapter.(*thermostat.Simulated); ok {
		go sim.Run(ctx, defaultSimTick)
	}
	if cfg.Executor.Interval > 0 {
		log.Infow("executor_ticker_started", "interval", cfg.Executor.Interval)
		go services.Executor.Run(ctx, cfg.Executor.Interval)
	}
}

// startCron registers the global pass on executor.cron. It returns nil when no cron expression is set.
func startCron(cfg config.Config, services *service.Service, log *logger.Logger) (*trigger.Cron, error) {
	if cfg.Executor.Cron == "" {
		return nil, nil
	}
	c, err := trigger.NewCron(cfg.Executor.Cron, cfg.Location(), cronPassTimeout, func(ctx context.Context) error {
		_, err := services.RunOnce(ctx, service.RunScope{Trigger: metrics.TriggerCron})
		return err
	}, log)
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Infow("cron_trigger_started", "spec", cfg.Executor.Cron, "next", c.Next())
	return c, nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
	log.Infow("http_server_started", "addr", srv.Addr())
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, cron *trigger.Cron, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if cron != nil {
		cron.Stop(ctx)
	}

	// allow in-flight requests to complete
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
