// Package server initializes and runs the chat server: it opens the
// database and Redis connections, runs migrations, wires services, and
// serves the HTTP/WebSocket endpoint with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aximilate/ctrl/internal/logging"
	"github.com/aximilate/ctrl/internal/server/config"
	"github.com/aximilate/ctrl/internal/server/mail"
	"github.com/aximilate/ctrl/internal/server/realtime"
	"github.com/aximilate/ctrl/internal/server/repositories/repomanager"
	"github.com/aximilate/ctrl/internal/server/rest"
	"github.com/aximilate/ctrl/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	rdb    *redis.Client
	server *rest.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	var sender mail.Sender
	if cfg.IsProduction() {
		sender = mail.NewSMTPSender(cfg)
	} else {
		sender = mail.NewLogSender(logger)
	}

	authSvc := services.NewAuthService(db, rm, sender, logger, cfg)
	userSvc := services.NewUserService(db, rm)
	chatSvc := services.NewChatService(db, rm)
	keySvc := services.NewKeyService(db, rm)

	broker := realtime.NewBroker()
	msgSvc := services.NewMessageService(db, rm, chatSvc, broker)

	presence := realtime.NewPresence(rdb, userSvc, logger)
	wsHandler := realtime.NewHandler(broker, authSvc, chatSvc, presence, logger, cfg.CORSOrigins)

	srv := rest.NewServer(authSvc, userSvc, chatSvc, msgSvc, keySvc, presence, wsHandler, logger)

	return &App{config: cfg, logger: logger, db: db, rdb: rdb, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	httpServer := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.server.Router(app.config),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		app.logger.Error(ctx, "http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}
	if err := app.rdb.Close(); err != nil {
		app.logger.Error(shutdownCtx, "redis close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close error", "error", err)
	}
	app.logger.Info(shutdownCtx, "server stopped")
}
