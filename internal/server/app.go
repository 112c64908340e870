// Package server initializes and runs the application server: it wires the
// database, repositories, services and the HTTP endpoint, and handles
// graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/snapvault/snapvault/internal/dbx"
	"github.com/snapvault/snapvault/internal/logging"
	"github.com/snapvault/snapvault/internal/server/auth"
	"github.com/snapvault/snapvault/internal/server/config"
	"github.com/snapvault/snapvault/internal/server/httpapi"
	"github.com/snapvault/snapvault/internal/server/repositories/repomanager"
	"github.com/snapvault/snapvault/internal/server/services"
	"github.com/snapvault/snapvault/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	tokens := auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)

	grants := storage.NewIssuer(storage.Config{
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})

	txr := dbx.NewSQLTxRunner(db)

	userService := services.NewUserService(db, txr, rm, tokens, cfg.RefreshTokenValidityDuration, logger)
	uploadService := services.NewUploadService(db, txr, rm, grants, logger)
	batchService := services.NewBatchService(db, txr, rm, logger)
	tagService := services.NewTagService(db, txr, rm, grants, logger)

	handler := httpapi.NewHandler(userService, uploadService, batchService, tagService, logger)
	srv := httpapi.NewServer(cfg.EndpointAddr, handler, tokens, logger)

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
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

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
