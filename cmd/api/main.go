package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stockline-hq/stockline-backend/api/routes"
	"github.com/stockline-hq/stockline-backend/internal/agentactions"
	"github.com/stockline-hq/stockline-backend/internal/channels"
	"github.com/stockline-hq/stockline-backend/internal/channels/adapters"
	"github.com/stockline-hq/stockline-backend/internal/channels/adapters/woocommerce"
	channelwebhook "github.com/stockline-hq/stockline-backend/internal/channels/webhook"
	"github.com/stockline-hq/stockline-backend/internal/inventory"
	"github.com/stockline-hq/stockline-backend/internal/invoices"
	"github.com/stockline-hq/stockline-backend/pkg/config"
	"github.com/stockline-hq/stockline-backend/pkg/db"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
	"github.com/stockline-hq/stockline-backend/pkg/metrics"
	"github.com/stockline-hq/stockline-backend/pkg/migrate"
	"github.com/stockline-hq/stockline-backend/pkg/outbox"
	"github.com/stockline-hq/stockline-backend/pkg/redis"
	"github.com/stockline-hq/stockline-backend/pkg/vault"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	credentialVault, err := vault.New(cfg.Vault)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize credential vault", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(promRegistry)

	adapterRegistry := adapters.NewRegistry()
	if err := adapterRegistry.Register(woocommerce.New(cfg.Channels)); err != nil {
		logg.Error(context.Background(), "failed to register woocommerce adapter", err)
		os.Exit(1)
	}

	gdb := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gdb), logg)
	inventoryRepo := inventory.NewRepository(gdb)

	inventoryService, err := inventory.NewService(inventoryRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	invoiceService, err := invoices.NewService(invoices.NewRepository(gdb), dbClient, outboxService, inventoryService)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}

	agentActionService, err := agentactions.NewService(agentactions.NewRepository(gdb), dbClient, outboxService, invoiceService)
	if err != nil {
		logg.Error(context.Background(), "failed to create agent action service", err)
		os.Exit(1)
	}

	channelRepo := channels.NewRepository(gdb)
	channelService, err := channels.NewService(channelRepo, adapterRegistry, credentialVault, inventoryRepo, cfg.App.BaseURL, cfg.Channels.WebhookBasePath)
	if err != nil {
		logg.Error(context.Background(), "failed to create channel service", err)
		os.Exit(1)
	}

	webhookService, err := channelwebhook.NewService(channelRepo, adapterRegistry, credentialVault, inventoryService, logg, webhookMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promRegistry,
			channelService,
			webhookService,
			inventoryService,
			invoiceService,
			agentActionService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
