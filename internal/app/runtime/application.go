// Package runtime assembles the ledger application from configuration: it
// opens the database, wires the settlement gateway and serves the HTTP API.
package runtime

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	app "github.com/ReTrace-Network/ledger_layer/internal/app"
	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/httpapi"
	"github.com/ReTrace-Network/ledger_layer/internal/app/metrics"
	"github.com/ReTrace-Network/ledger_layer/internal/app/reward"
	submissionsvc "github.com/ReTrace-Network/ledger_layer/internal/app/services/submission"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage/postgres"
	"github.com/ReTrace-Network/ledger_layer/internal/config"
	"github.com/ReTrace-Network/ledger_layer/internal/middleware"
	"github.com/ReTrace-Network/ledger_layer/internal/platform/migrations"
	"github.com/ReTrace-Network/ledger_layer/internal/settlement"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
}

// NewApplication constructs an application instance from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig builds the application from an explicit config.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	opts := app.Options{}
	if cfg.Settlement.Endpoint != "" {
		client, err := settlement.NewClient(settlement.Config{
			Endpoint: cfg.Settlement.Endpoint,
			APIKey:   cfg.Settlement.APIKey,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("configure settlement client: %w", err)
		}
		opts.Gateway = client
	}
	if len(cfg.Rewards.Rates) > 0 {
		rates := make(map[submission.Material]float64, len(cfg.Rewards.Rates))
		for material, rate := range cfg.Rewards.Rates {
			rates[submission.Material(material)] = rate
		}
		opts.RewardRates = reward.NewPolicy(rates)
	}
	if cfg.Rewards.AutoVerifyThreshold > 0 || cfg.Rewards.AutoVerifyEnabled != nil {
		auto := submissionsvc.DefaultAutoVerify()
		if cfg.Rewards.AutoVerifyThreshold > 0 {
			auto.Threshold = cfg.Rewards.AutoVerifyThreshold
		}
		if cfg.Rewards.AutoVerifyEnabled != nil {
			auto.Disabled = !*cfg.Rewards.AutoVerifyEnabled
		}
		opts.AutoVerify = &auto
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return nil, err
	}

	router, err := buildRouter(cfg, log, application)
	if err != nil {
		return nil, err
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpSrv,
		db:         db,
	}, nil
}

func buildRouter(cfg *config.Config, log *logger.Logger, application *app.Application) (http.Handler, error) {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware())

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := httpapi.NewHandler(application)
	if cfg.Auth.PublicKeyPath != "" {
		publicKey, err := loadPublicKey(cfg.Auth.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load auth public key: %w", err)
		}
		auth := middleware.NewAuthMiddleware(publicKey, log, []string{"/healthz", "/metrics"})
		api = auth.Handler(api)
	} else {
		log.Warn("auth public key not configured; requests are not authenticated")
	}

	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		limiter.StartCleanup(10 * time.Minute)
		api = limiter.Handler(api)
	}

	cors := middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	router.PathPrefix("/").Handler(cors.Handler(api))
	return router, nil
}

func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.Driver == "" {
		log.Warn("no database configured; using in-memory storage")
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{
		Actors:      store,
		Submissions: store,
		Batches:     store,
		Tokens:      store,
	}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
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

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key in %s is %T, want RSA", path, parsed)
	}
	return key, nil
}

// Run starts the background services and the HTTP server, blocking until the
// context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

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

// Shutdown gracefully stops the HTTP server, background services and the
// database connection.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}
