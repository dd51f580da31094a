package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cryptopay/internal/cmd/ipn"
	"cryptopay/internal/cmd/nowpayments"
	"cryptopay/internal/config"
	"cryptopay/internal/repository/postgres"
	paymentsDemon "cryptopay/internal/server_demon"
	handlers "cryptopay/internal/transport/http"
	"cryptopay/internal/usecase/service"
	db "cryptopay/utils/connector"
	log "cryptopay/utils/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Errorf("Failed to load config: %v", err))
	}

	logger := log.NewLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize PostgreSQL", zap.Error(err))
	}

	defer func() {
		if dbConn != nil {
			dbConn.Close()
			logger.Info("Database connection closed")
		}
	}()

	if err := db.MigratePostgres(ctx, dbConn, logger, migrations); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	rdb := db.InitRedis(cfg, logger)
	defer rdb.Close()

	pollQueue := db.NewPollQueue()

	gateway := nowpayments.New(cfg)
	verifier := ipn.NewVerifier(cfg.NowPayments.IPNSecret)

	paymentRepo := postgres.NewPaymentRepository(dbConn, rdb, logger)
	ledgerRepo := postgres.NewLedgerRepository(dbConn, logger)
	catalogRepo := postgres.NewCatalogRepository(dbConn, rdb, logger)
	profileRepo := postgres.NewProfileRepository(dbConn, logger)

	paymentSvc := service.NewPaymentService(paymentRepo, ledgerRepo, catalogRepo, gateway, verifier, pollQueue, cfg, logger)
	ledgerSvc := service.NewLedgerService(ledgerRepo, logger)
	profileSvc := service.NewProfileService(profileRepo, logger)

	demon := paymentsDemon.NewDaemon(paymentSvc, paymentRepo, pollQueue, logger)
	go demon.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	paymentHandler := handlers.NewPaymentHandler(paymentSvc, ledgerSvc, catalogRepo, profileSvc, gateway, logger)
	paymentHandler.Register(app)

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		if err := app.Shutdown(); err != nil {
			logger.Error("Failed to shut down HTTP server", zap.Error(err))
		}
	}()

	logger.Info(fmt.Sprintf("Starting HTTP server on port %d", cfg.Server.Port))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		logger.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
