package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/controllers"
	"github.com/warrantyflow-sys/warrantyflow-sub001/api/routes"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/query"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/auth"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/devices"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/ledger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/notifications"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/payments"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/pricing"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/repairs"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/replacements"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/users"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/warranties"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/auth/session"
	pkgbigquery "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/bigquery"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/changefeed"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/config"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/db"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/metrics"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/migrate"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/outbox"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/pubsub"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/redis"
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gdb := dbClient.DB()
	userRepo := users.NewRepository(gdb)
	deviceRepo := devices.NewRepository(gdb)
	warrantyRepo := warranties.NewRepository(gdb)
	repairRepo := repairs.NewRepository(gdb)
	replacementRepo := replacements.NewRepository(gdb)
	paymentRepo := payments.NewRepository(gdb)
	pricingRepo := pricing.NewRepository(gdb)
	notificationRepo := notifications.NewRepository(gdb)

	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	adminRegister, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin register service", err)
		os.Exit(1)
	}

	deviceService, err := devices.NewService(deviceRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create devices service", err)
		os.Exit(1)
	}

	warrantyService, err := warranties.NewService(warrantyRepo, deviceRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create warranties service", err)
		os.Exit(1)
	}

	repairService, err := repairs.NewService(repairRepo, deviceRepo, warrantyRepo, pricingRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create repairs service", err)
		os.Exit(1)
	}

	replacementService, err := replacements.NewService(replacementRepo, deviceRepo, repairRepo, warrantyRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create replacements service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(paymentRepo, userRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	pricingService, err := pricing.NewService(pricingRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(repairRepo, paymentRepo, userRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	changefeedMetrics := metrics.NewChangefeedMetrics(prometheus.DefaultRegisterer)
	hub := changefeed.NewHub(cfg.Changefeed.SubscriberBuf, logg, changefeedMetrics)
	broker := changefeed.NewBroker(cfg.Changefeed.DebounceWindow, cfg.Changefeed.RefetchInterval, logg, changefeedMetrics)
	defer broker.Close()

	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	defer cancelBridge()

	bridge, err := changefeed.NewBridge(pubsubClient.ChangefeedSubscription(), hub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create changefeed bridge", err)
		os.Exit(1)
	}
	go func() {
		if err := bridge.Run(bridgeCtx); err != nil {
			logg.Error(bridgeCtx, "changefeed bridge stopped", err)
		}
	}()

	balanceCache, err := ledger.NewBalanceCache(ledgerService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create balance cache", err)
		os.Exit(1)
	}
	if err := balanceCache.Start(bridgeCtx, hub, broker); err != nil {
		logg.Error(context.Background(), "failed to start balance cache", err)
		os.Exit(1)
	}
	defer balanceCache.Close()

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
		"pubsub":   pubsubClient,
	}

	var settlementService query.SettlementService
	if cfg.BigQuery.Dataset != "" {
		bqClient, err := pkgbigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()

		settlementService, err = query.NewSettlementService(bqClient, cfg.GCP.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.SettlementFactsTable)
		if err != nil {
			logg.Error(context.Background(), "failed to create settlement analytics service", err)
			os.Exit(1)
		}
		readiness["bigquery"] = bqClient
	} else {
		logg.Warn(context.Background(), "bigquery dataset not configured, settlement analytics disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	go metrics.ListenAndServe(ctx, cfg.App.MetricsAddr, logg)
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			Redis:           redisClient,
			Session:         sessionManager,
			Readiness:       readiness,
			AuthService:     authService,
			RegisterService: registerService,
			AdminRegister:   adminRegister,
			Users:           userRepo,
			Devices:         deviceService,
			Warranties:      warrantyService,
			Repairs:         repairService,
			Replacements:    replacementService,
			Payments:        paymentService,
			Pricing:         pricingService,
			Ledger:          balanceCache,
			Notifications:   notificationService,
			Settlements:     settlementService,
			ChangefeedHub:   hub,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
