package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/agrodistri/agrodistri/cmd/agrodistri/cli"
	"github.com/agrodistri/agrodistri/internal/app"
	"github.com/agrodistri/agrodistri/internal/delivery"
	"github.com/agrodistri/agrodistri/internal/employees"
	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/observability"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/payments"
	"github.com/agrodistri/agrodistri/internal/platform/cache"
	"github.com/agrodistri/agrodistri/internal/platform/db"
	"github.com/agrodistri/agrodistri/internal/platform/lock"
	"github.com/agrodistri/agrodistri/internal/reports"
	"github.com/agrodistri/agrodistri/internal/settings"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
	"github.com/agrodistri/agrodistri/jobs"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 {
		os.Exit(runCommand(os.Args[1], os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	lifecycle := metrics.Lifecycle()
	reportsService := reports.NewService(reports.NewRepository(pool), reports.NewCache(redisClient, cfg.ReportCacheTTL), logger)
	activity := reports.NewInvalidatingRecorder(jobs.NewActivityQueue(jobClient), reportsService, logger)
	locker := lock.NewRedisLocker(redisClient)
	idempotency := shared.NewIdempotencyStore(pool)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), activity, inventory.ServiceConfig{
		Logger:  logger,
		Metrics: lifecycle,
	})
	storesService := stores.NewService(stores.NewRepository(pool), activity, logger)
	employeesService := employees.NewService(employees.NewRepository(pool))
	ordersService := orders.NewService(orders.NewRepository(pool), activity, orders.ServiceConfig{
		StockPolicy: cfg.Policy(),
		Logger:      logger,
		Metrics:     lifecycle,
	})
	deliveryService := delivery.NewService(delivery.NewRepository(pool), activity, delivery.ServiceConfig{
		Locker:      locker,
		WagePerSack: cfg.DeliveryWagePerSack,
		Logger:      logger,
		Metrics:     lifecycle,
	})
	paymentsService := payments.NewService(payments.NewRepository(pool), activity, payments.ServiceConfig{
		Idempotency: idempotency,
		Locker:      locker,
		Logger:      logger,
		Metrics:     lifecycle,
	})
	settingsService := settings.NewService(settings.NewRepository(pool))

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Checks: map[string]app.Pinger{
			"postgres": pool,
			"redis":    redisPinger{client: redisClient},
		},
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		StoresHandler:    stores.NewHandler(logger, storesService),
		EmployeesHandler: employees.NewHandler(logger, employeesService),
		OrdersHandler:    orders.NewHandler(logger, ordersService),
		PaymentsHandler:  payments.NewHandler(logger, paymentsService),
		DeliveryHandler:  delivery.NewHandler(logger, deliveryService),
		ReportsHandler:   reports.NewHandler(logger, reportsService),
		SettingsHandler:  settings.NewHandler(logger, settingsService),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("stock_policy", string(cfg.Policy())))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runCommand(name string, args []string) int {
	switch name {
	case "hash-token":
		fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
		cost := fs.Int("cost", 0, "bcrypt cost (default 10)")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		return cli.HashTokenCommand(cli.TokenOptions{Cost: *cost})
	case "jobs":
		return runJobs(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected hash-token or jobs)\n", name)
		return 2
	}
}

func runJobs(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: agrodistri jobs <trigger|stats> [flags]")
		return 2
	}
	fs := flag.NewFlagSet("jobs "+args[0], flag.ContinueOnError)
	redisAddr := fs.String("redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address")
	name := fs.String("job", "", "job type to trigger")
	upcoming := fs.Int("upcoming", 5, "scheduled tasks to list")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	c := cli.NewJobsCLI(*redisAddr)
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := cli.JobsOptions{Name: *name, Upcoming: *upcoming, JSONOutput: *asJSON}
	switch args[0] {
	case "trigger":
		return c.TriggerCommand(ctx, opts)
	case "stats":
		return c.StatsCommand(ctx, opts)
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs command %q\n", args[0])
		return 2
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
