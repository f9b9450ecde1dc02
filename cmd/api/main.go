package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/anhpnguyen/edupay-backend/api/routes"
	"github.com/anhpnguyen/edupay-backend/internal/invoices"
	"github.com/anhpnguyen/edupay-backend/internal/notify"
	"github.com/anhpnguyen/edupay-backend/internal/payments"
	"github.com/anhpnguyen/edupay-backend/internal/printing"
	"github.com/anhpnguyen/edupay-backend/internal/students"
	"github.com/anhpnguyen/edupay-backend/pkg/config"
	"github.com/anhpnguyen/edupay-backend/pkg/db"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
	"github.com/anhpnguyen/edupay-backend/pkg/metrics"
	"github.com/anhpnguyen/edupay-backend/pkg/migrate"
	"github.com/anhpnguyen/edupay-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	var mailer notify.Mailer
	if cfg.SMTP.Enabled {
		mailer = notify.NewSMTPMailer(cfg.SMTP)
	} else {
		mailer = notify.NewLogMailer(logg)
	}
	notifyService, err := notify.NewService(mailer, students.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notify service", err)
		os.Exit(1)
	}

	gateway := payments.NewMockGateway(cfg.Gateway)
	paymentService, err := payments.NewService(
		payments.NewRepository(dbClient.DB()),
		dbClient,
		gateway,
		notifyService,
		dispatchMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	artifactStore := invoices.NewArtifactStore(cfg.Artifacts)
	invoiceService, err := invoices.NewService(
		invoices.NewRepository(dbClient.DB()),
		dbClient,
		invoices.NewMockProvider(cfg.EInvoice),
		invoices.NewExecRenderer(cfg.Rendering),
		artifactStore,
		students.NewRepository(dbClient.DB()),
		notifyService,
		cfg.EInvoice,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	printingRepo := printing.NewRepository(dbClient.DB())
	printRegistry, err := printing.NewRegistry(printingRepo, cfg.JWT, cfg.Printing)
	if err != nil {
		logg.Error(context.Background(), "failed to create printing registry", err)
		os.Exit(1)
	}
	dispatcher, err := printing.NewDispatcher(
		printingRepo,
		printing.NewLprSpooler(cfg.Printing, cfg.Rendering),
		printing.NewAgentClient(cfg.Printing),
		artifactStore,
		dispatchMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create print dispatcher", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Metrics:        registry,
			PaymentService: paymentService,
			Gateway:        gateway,
			InvoiceService: invoiceService,
			Registry:       printRegistry,
			Dispatcher:     dispatcher,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "server shutdown", err)
		}
		notifyService.Wait()
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
