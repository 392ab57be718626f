package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spreadboard/config"
	"spreadboard/internal/board"
	"spreadboard/internal/calendar"
	"spreadboard/internal/credentials"
	"spreadboard/internal/jobs"
	"spreadboard/internal/scrip"
	httptransport "spreadboard/internal/transport/http"
	"spreadboard/logger"
	"spreadboard/pkg/dhan"
	"spreadboard/pkg/storage"
	"spreadboard/pkg/storage/postgres"
	"spreadboard/pkg/storage/sqlite"

	"go.uber.org/zap"
)

const startupTimeout = 30 * time.Second

func main() {
	// viper config (+ .env)
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("dashboard failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)
	defer cancelStart()

	// broker credentials: SSM in prod, the config file otherwise
	var (
		secrets *config.ParameterStore
		loader  credentials.Loader
	)
	if cfg.Environment == "prod" {
		ps, err := config.NewParameterStore(startCtx)
		if err != nil {
			return err
		}
		secrets = ps
		loader = credentials.FromParameters(ps, cfg.Broker.Credentials)
	} else {
		loader = credentials.Static(cfg.Broker.Credentials)
	}
	creds, err := credentials.NewSource(startCtx, loader, log.Named("credentials"))
	if err != nil {
		return err
	}

	scheduler := jobs.NewScheduler(log.Named("jobs"))
	if secrets != nil {
		if err := scheduler.Add("credential-refresh", cfg.Broker.Credentials.RefreshCron, creds.Refresh); err != nil {
			return err
		}
	} else {
		err := config.WatchDefault(log.Named("config"), func(next *config.Config) {
			c := next.Broker.Credentials
			if err := creds.Set(dhan.Credentials{AccessToken: c.AccessToken, ClientID: c.ClientID}); err != nil {
				log.Warn("ignoring credentials from config change", zap.Error(err))
			}
		})
		if err != nil {
			log.Warn("config watch disabled", zap.Error(err))
		}
	}

	master, err := scrip.Load(cfg.Scrip.Path, log.Named("scrip"))
	if err != nil {
		return err
	}

	loc := cfg.Market.Location()
	cal := calendar.New(cfg.Market.MIC, loc, log.Named("calendar"))

	client := dhan.NewRESTClient(cfg.Broker.REST.BaseURL, cfg.Broker.REST.Timeout, creds,
		dhan.WithLocation(loc),
		dhan.WithSession(dhan.Session{Open: cfg.Market.SessionOpen, Close: cfg.Market.SessionClose}),
	)

	store, err := openStore(startCtx, cfg, secrets, loc, log)
	if err != nil {
		return err
	}
	defer store.Close()

	controller := board.NewController(master, client, store, cal, log)
	sessions := board.NewSessions()
	server, err := httptransport.NewServer(httptransport.ServerConfig{
		Addr:          cfg.Server.Addr,
		SessionCookie: cfg.Server.SessionCookie,
		AllowOrigins:  cfg.Server.AllowOrigins,
		Controller:    controller,
		Sessions:      sessions,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	if err := scheduleMaintenance(scheduler, cfg, controller, sessions, log); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(srvCtx) }()

	log.Info("spreadboard is running",
		zap.String("addr", server.Addr()),
		zap.Int("symbols", master.Len()),
		zap.String("storage", cfg.Storage.Driver),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Info("shutdown signal received, stopping...")
		stop()
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// scheduleMaintenance registers the idle session sweep and, when a
// retention is configured, the archive prune.
func scheduleMaintenance(scheduler *jobs.Scheduler, cfg *config.Config, controller *board.Controller, sessions *board.Sessions, log *zap.Logger) error {
	idle := cfg.Server.SessionIdle
	err := scheduler.Add("session-sweep", cfg.Server.SessionSweepCron, func(context.Context) error {
		if n := sessions.Expire(idle); n > 0 {
			log.Info("expired idle sessions", zap.Int("count", n), zap.Int("remaining", sessions.Len()))
		}
		return nil
	})
	if err != nil {
		return err
	}

	retention := cfg.Storage.Retention
	if retention <= 0 || cfg.Storage.Driver == "none" {
		return nil
	}
	return scheduler.Add("archive-retention", cfg.Storage.RetentionCron, func(ctx context.Context) error {
		_, err := controller.PruneArchive(ctx, retention)
		return err
	})
}

// openStore picks the bar archive backend from storage.driver.
func openStore(ctx context.Context, cfg *config.Config, secrets *config.ParameterStore, loc *time.Location, log *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "none":
		return storage.Noop{}, nil
	case "sqlite":
		return sqlite.Open(cfg.Storage.SQLitePath, loc)
	case "postgres":
		pg := cfg.Postgres
		if secrets != nil {
			if err := pg.ResolveSecrets(ctx, secrets); err != nil {
				return nil, err
			}
		}
		store, err := postgres.Open(pg, cfg.Environment != "prod", loc)
		if err != nil {
			return nil, err
		}
		log.Info("bar archive on postgres", zap.String("db", pg.DBName))
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
