// Package runtime wires the application together and manages its lifecycle:
// configuration, logging, store selection, service construction, the HTTP
// server, and the scheduled session sweep.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/karmicapp/karmic/internal/config"
	"github.com/karmicapp/karmic/internal/platform/migrations"
	"github.com/karmicapp/karmic/internal/services/accounts"
	"github.com/karmicapp/karmic/internal/services/chat"
	"github.com/karmicapp/karmic/internal/services/marketplace"
	"github.com/karmicapp/karmic/internal/services/sessions"
	"github.com/karmicapp/karmic/internal/storage"
	"github.com/karmicapp/karmic/internal/storage/memory"
	"github.com/karmicapp/karmic/internal/storage/postgres"
	"github.com/karmicapp/karmic/internal/web"
	"github.com/karmicapp/karmic/pkg/logger"
)

// Store is the full persistence surface the application wires against.
type Store interface {
	storage.UserStore
	storage.RequestStore
	storage.MessageStore
	storage.SessionStore
	Ping(ctx context.Context) error
}

// Application owns the wired dependencies and the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	store      Store
	db         *sqlx.DB
	httpServer *http.Server
	web        *web.Server
	accounts   *accounts.Service
	sessions   *sessions.Service
	cron       *cron.Cron
}

// NewApplication loads configuration from the environment and builds a fully
// wired application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds an application around an already loaded configuration.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.Config{
		Service: "karmic",
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
	})

	store, db, err := buildStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure store: %w", err)
	}

	accountsSvc := accounts.New(store, log, accounts.WithBcryptCost(cfg.Session.BcryptCost))
	marketSvc := marketplace.New(store, store, log)
	chatSvc := chat.New(store, store, store, log)
	sessionsSvc := sessions.New(store, store, cfg.Session.Secret,
		time.Duration(cfg.Session.TTLHours)*time.Hour, log)

	if cfg.Seed {
		if err := seedUsers(context.Background(), accountsSvc); err != nil {
			closeDB(db, log)
			return nil, fmt.Errorf("seed users: %w", err)
		}
	}

	webSrv := web.NewServer(web.Deps{
		Accounts:       accountsSvc,
		Market:         marketSvc,
		Chat:           chatSvc,
		Sessions:       sessionsSvc,
		Store:          store,
		Log:            log,
		LoginPerMinute: cfg.RateLimit.LoginPerMinute,
		LoginBurst:     cfg.RateLimit.LoginBurst,
	})

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      webSrv.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		store:      store,
		db:         db,
		httpServer: httpSrv,
		web:        webSrv,
		accounts:   accountsSvc,
		sessions:   sessionsSvc,
	}, nil
}

// Store exposes the wired persistence layer, mainly for tests.
func (a *Application) Store() Store {
	return a.store
}

// Handler exposes the root HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the websocket hub, the hourly session sweep and the HTTP
// server, then blocks until the context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go a.web.Hub().Run(hubCtx)

	a.cron = cron.New()
	if _, err := a.cron.AddFunc("@hourly", a.sweepSessions); err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	a.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server, stops the cron schedule and closes the
// database connection.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := time.Duration(a.cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	closeDB(a.db, a.log)
	return nil
}

func (a *Application) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := a.sessions.PurgeExpired(ctx)
	if err != nil {
		a.log.WithError(err).Warn("session sweep failed")
		return
	}
	if removed > 0 {
		a.log.WithField("removed", removed).Info("expired sessions purged")
	}
}

func buildStore(cfg *config.Config, log *logger.Logger) (Store, *sqlx.DB, error) {
	switch cfg.Database.Driver {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := migrations.Apply(ctx, db.DB); err != nil {
			closeDB(db, log)
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return postgres.New(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// seedUsers restores the two demo accounts the original deployment shipped
// with. Existing accounts are left untouched.
func seedUsers(ctx context.Context, svc *accounts.Service) error {
	if err := svc.Seed(ctx, "RequesterA", "password", 500, 120); err != nil {
		return err
	}
	return svc.Seed(ctx, "HelperB", "password", 100, 60)
}

func closeDB(db *sqlx.DB, log *logger.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("error closing database connection")
	}
}
