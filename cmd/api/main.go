package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/the-events-calendar/event-tickets-sub001/internal/app"
	"github.com/the-events-calendar/event-tickets-sub001/internal/clock"
	"github.com/the-events-calendar/event-tickets-sub001/internal/config"
	"github.com/the-events-calendar/event-tickets-sub001/internal/storage/postgres"
	"github.com/the-events-calendar/event-tickets-sub001/internal/storage/redisstore"
	transporthttp "github.com/the-events-calendar/event-tickets-sub001/internal/transport/http"
	"github.com/the-events-calendar/event-tickets-sub001/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(startupCtx).Err(); err != nil {
		logger.Fatal("redis ping", zap.Error(err))
	}

	clk := clock.NewSystem()
	ticketRepo := postgres.NewTicketRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	ledger := redisstore.NewReservationStore(redisClient)

	validator := app.NewStockValidator(ticketRepo)
	reservations := app.NewReservationManager(ticketRepo, ledger, redisstore.ReservationKey, clk, logger,
		app.WithHoldDuration(cfg.HoldDuration))
	orders := app.NewOrderService(orderRepo, ticketRepo, validator, reservations, clk, logger)
	admin := app.NewTicketAdminService(ticketRepo, clk)
	sweeper := app.NewSweeper(ledger, clk, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/reservations", transporthttp.HandleReserve(reservations, clk))
	mux.Handle("/reservations/", transporthttp.HandleRelease(reservations))
	mux.Handle("/checkout", transporthttp.HandleCheckout(orders, ticketRepo))
	mux.Handle("/orders/", transporthttp.HandleOrder(orders))
	mux.Handle("/admin/tickets", transporthttp.HandleAdminTickets(admin))
	mux.Handle("/", transporthttp.NotFoundHandler())

	corsOrigins := parseCSV(cfg.CORSOrigins)
	handler := transporthttp.RequestLogger(transporthttp.CORS(corsOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(stopCtx, cfg.SweepInterval)

	logger.Info("api listening", zap.String("port", cfg.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
