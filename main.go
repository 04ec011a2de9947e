package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"shop-service/handlers"
	"shop-service/internal/auth"
	"shop-service/internal/cart"
	"shop-service/internal/cartrpc"
	"shop-service/internal/catalog"
	"shop-service/internal/config"
	"shop-service/internal/consul"
	"shop-service/internal/orders"
	"shop-service/internal/payments"
	"shop-service/internal/stores/cache"
	"shop-service/internal/stores/kafka"
	"shop-service/internal/stores/memory"
	"shop-service/internal/stores/postgres"
	"shop-service/pkg/logkey"

	"github.com/shopspring/decimal"
)

func main() {
	setupSlog()
	err := startApp()
	if err != nil {
		slog.Error("application stopped", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
	slog.Info("application stopped cleanly")
}

// store is what a backend has to provide to serve every route.
type store interface {
	orders.Store
	catalog.Store
	cart.Store
}

func startApp() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys, err := auth.NewKeys(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("setting up auth: %w", err)
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var events orders.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaConf, err := kafka.NewConf(cfg.KafkaBrokers, cfg.ServiceName)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			kafkaConf.Close(flushCtx)
		}()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = kafkaConf.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Warn("kafka brokers unreachable at startup; order events are dropped until they recover",
				slog.String(logkey.ERROR, err.Error()))
		}
		events = kafka.NewPublisher(kafkaConf)
		slog.Info("publishing order events to kafka", slog.Any("Brokers", cfg.KafkaBrokers))
	}

	var verifier orders.PaymentVerifier = orders.TrustedVerifier{}
	if cfg.PaymentVerifier == config.PaymentVerifierStripe {
		verifier = payments.NewStripeVerifier(cfg.StripeSecretKey, cfg.PaymentCurrency)
	} else {
		slog.Warn("payments are not verified; set PAYMENT_VERIFIER=stripe to check them")
	}

	engine, err := orders.NewConf(st, orders.Options{
		Pricing: orders.Pricing{
			FreeShippingThreshold: cfg.FreeShippingThreshold,
			FlatFreight:           cfg.FlatFreight,
		},
		TxTimeout: cfg.TxTimeout,
		Payments:  verifier,
		Events:    events,
	})
	if err != nil {
		return fmt.Errorf("setting up order engine: %w", err)
	}
	cartConf, err := cart.NewConf(st, st)
	if err != nil {
		return fmt.Errorf("setting up cart: %w", err)
	}

	opts := handlers.Options{Retries: cfg.PlaceOrderRetries}
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		opts.Idempotency = cache.NewIdempotency(client, cfg.ServiceName, cfg.IdempotencyTTL)
	}

	api := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           handlers.API(cfg.EndpointPrefix, keys, engine, cartConf, st, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listening for grpc: %w", err)
	}
	grpcServer := cartrpc.NewServer()
	cartrpc.RegisterCartItemServiceServer(grpcServer, cartrpc.NewCartItemServiceHandler(cartConf))

	serverErrors := make(chan error, 2)
	go func() {
		slog.Info("http server started", slog.Int("Port", cfg.Port))
		serverErrors <- api.ListenAndServe()
	}()
	go func() {
		slog.Info("grpc server started", slog.Int("Port", cfg.GRPCPort))
		serverErrors <- grpcServer.Serve(lis)
	}()

	if cfg.ConsulAddr != "" {
		deregister, err := registerWithConsul(cfg)
		if err != nil {
			return err
		}
		defer deregister()
	}

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown started")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	grpcServer.GracefulStop()
	if err := api.Shutdown(shutdownCtx); err != nil {
		_ = api.Close()
		return fmt.Errorf("could not stop http server gracefully: %w", err)
	}
	return nil
}

// openStore returns the configured backend and a function releasing it.
func openStore(ctx context.Context, cfg config.Config) (store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		st := memory.New()
		if err := seedCatalog(ctx, st); err != nil {
			return nil, nil, err
		}
		slog.Warn("using the in-memory store; data is lost on restart")
		return st, func() {}, nil
	}

	db, err := postgres.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	st, err := postgres.NewStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, func() { db.Close() }, nil
}

func seedCatalog(ctx context.Context, st *memory.Store) error {
	demo := []struct {
		name  string
		price int64
		stock int
	}{
		{"iPhone 15 Pro Max", 9999, 999},
		{"Mate 60 Pro", 6999, 500},
		{"Xiaomi 14 Ultra", 5999, 300},
		{"MacBook Pro 14", 14999, 200},
		{"AirPods Pro 2", 1899, 800},
	}
	for _, d := range demo {
		_, err := st.PutProduct(ctx, catalog.Product{
			Name:     d.name,
			Price:    decimal.NewFromInt(d.price),
			Stock:    d.stock,
			IsActive: true,
		})
		if err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
	}
	return nil
}

func registerWithConsul(cfg config.Config) (func(), error) {
	client, err := consul.NewClient(cfg.ConsulAddr)
	if err != nil {
		return nil, err
	}
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("resolving hostname: %w", err)
	}

	regs := []consul.Registration{
		{
			ID:        fmt.Sprintf("%s-%s-%d", cfg.ServiceName, host, cfg.Port),
			Name:      cfg.ServiceName,
			Host:      host,
			Port:      cfg.Port,
			Tags:      []string{"http"},
			HealthURL: fmt.Sprintf("http://%s:%d/ping", host, cfg.Port),
		},
		{
			ID:   fmt.Sprintf("%s-grpc-%s-%d", cfg.ServiceName, host, cfg.GRPCPort),
			Name: cfg.ServiceName + "-grpc",
			Host: host,
			Port: cfg.GRPCPort,
			Tags: []string{"grpc"},
		},
	}
	for _, r := range regs {
		if err := consul.RegisterService(client, r); err != nil {
			return nil, err
		}
		slog.Info("registered with consul", slog.String("ServiceID", r.ID))
	}

	return func() {
		for _, r := range regs {
			if err := consul.Deregister(client, r.ID); err != nil {
				slog.Error("consul deregistration failed", slog.String("ServiceID", r.ID), slog.String(logkey.ERROR, err.Error()))
			}
		}
	}, nil
}

func setupSlog() {
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))
}
