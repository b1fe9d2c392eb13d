package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/velogear/velogear-backend/api/routes"
	"github.com/velogear/velogear-backend/internal/audit"
	cartsvc "github.com/velogear/velogear-backend/internal/cart"
	categoriesvc "github.com/velogear/velogear-backend/internal/categories"
	checkoutsvc "github.com/velogear/velogear-backend/internal/checkout"
	"github.com/velogear/velogear-backend/internal/checkout/reservation"
	ordersvc "github.com/velogear/velogear-backend/internal/orders"
	productsvc "github.com/velogear/velogear-backend/internal/products"
	"github.com/velogear/velogear-backend/internal/stock"
	vouchersvc "github.com/velogear/velogear-backend/internal/vouchers"
	"github.com/velogear/velogear-backend/pkg/config"
	"github.com/velogear/velogear-backend/pkg/db"
	"github.com/velogear/velogear-backend/pkg/logger"
	"github.com/velogear/velogear-backend/pkg/metrics"
	"github.com/velogear/velogear-backend/pkg/migrate"
	"github.com/velogear/velogear-backend/pkg/redis"
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

	if cfg.App.AutoMigrate && !cfg.App.IsProd() {
		sqlDB, err := dbClient.DB().DB()
		if err != nil {
			logg.Error(context.Background(), "failed to get sql handle for migrations", err)
			os.Exit(1)
		}
		if err := migrate.Run(context.Background(), sqlDB, migrate.DefaultDir, "up"); err != nil {
			logg.Error(context.Background(), "failed to run dev migrations", err)
			os.Exit(1)
		}
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	conn := dbClient.DB()
	ledger := stock.NewLedger(conn, logg)

	procedureBackend := reservation.NewProcedureBackend(conn)
	procedureInstalled, err := procedureBackend.Probe(context.Background())
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "stock procedure probe failed, assuming missing")
		procedureInstalled = false
	}
	optimisticBackend := reservation.NewOptimisticBackend(
		ledger,
		cfg.Checkout.ReserveAttempts,
		cfg.Checkout.ReserveBackoff,
		checkoutMetrics,
	)
	engine := reservation.NewEngine(procedureBackend, optimisticBackend, procedureInstalled, logg, checkoutMetrics)

	productsRepo := productsvc.NewRepository(conn)
	productService, err := productsvc.NewService(productsRepo, dbClient, ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	categoryService, err := categoriesvc.NewService(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create category service", err)
		os.Exit(1)
	}
	voucherService, err := vouchersvc.NewService(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher service", err)
		os.Exit(1)
	}
	cartService, err := cartsvc.NewService(redisClient, cfg.Cart.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	ordersRepo := ordersvc.NewRepository(conn)
	orderService, err := ordersvc.NewService(ordersRepo, procedureBackend, procedureInstalled, optimisticBackend, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	checkoutService, err := checkoutsvc.NewService(
		engine,
		productsRepo,
		voucherService,
		ordersRepo,
		dbClient,
		cartService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	auditService, err := audit.NewService(conn, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":                 cfg.App.Env,
		"addr":                addr,
		"procedure_installed": procedureInstalled,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, routes.Services{
			Products:   productService,
			Categories: categoryService,
			Vouchers:   voucherService,
			Cart:       cartService,
			Checkout:   checkoutService,
			Orders:     orderService,
			Audit:      auditService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
