package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/libraryops/internal/api"
	"github.com/punchamoorthee/libraryops/internal/config"
	"github.com/punchamoorthee/libraryops/internal/events"
	"github.com/punchamoorthee/libraryops/internal/ledger"
	"github.com/punchamoorthee/libraryops/internal/logger"
	"github.com/punchamoorthee/libraryops/internal/session"
	"github.com/punchamoorthee/libraryops/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logr, err := logger.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Unable to build logger: %v", err)
	}
	defer logr.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logr.Fatal("Unable to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	logr.Info("Store ready", zap.String("driver", cfg.StoreDriver))

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitMQURL != "" {
		amqp, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.ServiceName, logr)
		if err != nil {
			// Events are optional; the API keeps serving without them.
			logr.Warn("Event publisher unavailable", zap.Error(err))
		} else {
			publisher = amqp
		}
	}

	// Initialize Layers
	lib := ledger.New(st, logr,
		ledger.WithTimeout(cfg.StoreTimeout),
		ledger.WithPublisher(publisher))

	var gateOpts []session.Option
	if !cfg.CookieSecure {
		gateOpts = append(gateOpts, session.WithInsecureCookie())
	}
	gate, err := session.NewGate(cfg.TokenSecret, cfg.TokenTTL, gateOpts...)
	if err != nil {
		logr.Fatal("Unable to build session gate", zap.Error(err))
	}

	handler := api.NewHandler(lib, gate, logr)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, cfg.CORSOrigins, logr),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Info("Server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("Server shutdown failed", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logr.Warn("Event publisher close failed", zap.Error(err))
	}
	if err := st.Close(shutdownCtx); err != nil {
		logr.Error("Store close failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := store.NewPostgres(ctx, cfg.DBSource)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close(ctx)
			return nil, err
		}
		return pg, nil
	case config.DriverMongo:
		m, err := store.NewMongo(ctx, store.MongoConfig{
			ConnectionURL:  cfg.Mongo.ConnectionURL(),
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
			MaxPoolSize:    cfg.Mongo.MaxPoolSize,
			RetryAttempts:  cfg.Mongo.RetryAttempts,
			RetryInterval:  cfg.Mongo.RetryInterval,
		})
		if err != nil {
			return nil, err
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			m.Close(ctx)
			return nil, err
		}
		return m, nil
	default:
		return store.NewMemory(), nil
	}
}
