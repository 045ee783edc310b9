package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"stay-booking/cmd"
	"stay-booking/internal/adaptor"
	"stay-booking/internal/consumer"
	"stay-booking/internal/data/repository"
	"stay-booking/internal/data/seed"
	"stay-booking/internal/gateway"
	"stay-booking/internal/ledger"
	"stay-booking/internal/usecase"
	"stay-booking/internal/wire"
	"stay-booking/pkg/database"
	"stay-booking/pkg/mq"
	"stay-booking/pkg/obs"
	"stay-booking/pkg/utils"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("env", config.App.Env),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, config.App, config.Tracing)
	if err != nil {
		logger.Fatal("Failed to init tracer", zap.Error(err))
	}

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	if config.Database.Migrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	repos := repository.NewRepository(db, logger)

	if path := config.Booking.CatalogSeedPath; path != "" {
		file, err := seed.Load(path)
		if err != nil {
			logger.Fatal("Failed to load catalog seed", zap.String("path", path), zap.Error(err))
		}
		if err := seed.Apply(ctx, repos, file, time.Now(), logger); err != nil {
			logger.Fatal("Failed to apply catalog seed", zap.Error(err))
		}
	}

	capacity := ledger.CapacityFunc(repos.Catalog.DefaultCapacity)
	var book ledger.Ledger
	switch config.Booking.LedgerBackend {
	case utils.LedgerBackendMemory:
		logger.Warn("Using in-memory ledger; reservations are lost on restart")
		book = ledger.NewMemory(capacity, logger)
	default:
		book = ledger.NewPostgres(db, repos.Tx, capacity, logger)
	}

	var (
		gw       gateway.Gateway
		resolver adaptor.EventResolver
	)
	switch config.Payment.Provider {
	case utils.PaymentProviderOmise:
		omise, err := gateway.NewOmise(config.Payment.PublicKey, config.Payment.SecretKey, config.Payment.ReturnURI, logger)
		if err != nil {
			logger.Fatal("Failed to init omise gateway", zap.Error(err))
		}
		gw, resolver = omise, omise
	default:
		gw = gateway.NewStub(config.Payment.ReturnURI, logger)
	}

	var publisher usecase.EventPublisher = mq.NopPublisher{}
	if config.RabbitMQ.URL != "" {
		p, err := mq.NewPublisher(config.RabbitMQ.URL, config.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal("Failed to connect publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	}

	service := usecase.NewService(usecase.Dependencies{
		Repo:      repos,
		Ledger:    book,
		Gateway:   gw,
		Publisher: publisher,
		Config:    config,
		Log:       logger,
	})

	service.Sweeper.Start(ctx)

	var paymentConsumer *consumer.PaymentConsumer
	if config.RabbitMQ.URL != "" {
		src, err := mq.NewConsumer(config.RabbitMQ.URL, config.RabbitMQ.Exchange, config.RabbitMQ.PaymentQueue, config.RabbitMQ.PaymentEvents)
		if err != nil {
			logger.Fatal("Failed to connect consumer", zap.Error(err))
		}
		defer src.Close()

		paymentConsumer = consumer.NewPaymentConsumer(service.Lifecycle, src, logger)
		if err := paymentConsumer.Run(ctx); err != nil {
			logger.Fatal("Failed to start payment consumer", zap.Error(err))
		}
	}

	// Wire all dependencies
	app := wire.Wiring(service, resolver, config, logger)

	server := cmd.NewServer(app.Router, config.App.Port, logger)
	serverErr := server.Start()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down server", zap.Error(err))
	}
	service.Sweeper.Wait()
	if paymentConsumer != nil {
		select {
		case <-paymentConsumer.Done():
		case <-shutdownCtx.Done():
			logger.Warn("Payment consumer did not drain in time")
		}
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server stopped")
}
