package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"barbershop/backend/internal/auth"
	"barbershop/backend/internal/config"
	"barbershop/backend/internal/events"
	"barbershop/backend/internal/payments"
	"barbershop/backend/internal/payments/stripepay"
	"barbershop/backend/internal/service/agenda"
	"barbershop/backend/internal/service/appointments"
	"barbershop/backend/internal/service/cashbox"
	"barbershop/backend/internal/service/housekeeping"
	"barbershop/backend/internal/store/postgres"
	"barbershop/backend/internal/telemetry"
	"barbershop/backend/internal/timewindow"
	grpcTransport "barbershop/backend/internal/transport/grpc"
	"barbershop/backend/internal/transport/webhook"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC API, the webhook listener and the expiry sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.log
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("telemetry shutdown failed", slog.Any("err", err))
		}
	}()

	policy, err := timewindow.NewPolicy(cfg.Timezone, cfg.BusinessBands)
	if err != nil {
		return fmt.Errorf("business hours: %w", err)
	}
	log.Info("business hours loaded", slog.String("policy", policy.Describe()))

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	publisher, closePublisher := newPublisher(cfg, log)
	defer closePublisher()

	var provider payments.Provider = payments.Disabled{}
	if cfg.StripeSecretKey != "" {
		provider = stripepay.NewProvider(stripepay.Config{
			SecretKey:  cfg.StripeSecretKey,
			Currency:   cfg.StripeCurrency,
			SuccessURL: cfg.StripeSuccessURL,
			CancelURL:  cfg.StripeCancelURL,
			LinkTTL:    cfg.StripeLinkTTL,
		}, log)
	} else {
		log.Warn("stripe secret key not set; online payments are disabled")
	}

	repo := postgres.NewRepo(db)
	scheduling := appointments.NewService(repo, publisher, appointments.Config{
		Policy:          policy,
		DepositRequired: cfg.DepositRequired,
		ClientNotice:    cfg.ClientNotice,
		SlotStep:        cfg.SlotStep,
	}, log)
	blocks := agenda.NewService(repo, policy, log)
	cash := cashbox.NewService(repo, provider, publisher, cashbox.Config{
		DefaultDeposit: cfg.DefaultDeposit,
		AdminPageSize:  cfg.AdminPageSize,
		WalletPageSize: cfg.WalletPageSize,
		LinkTTL:        cfg.StripeLinkTTL,
	}, log)
	sweeper := housekeeping.NewWorker(repo, publisher, housekeeping.Config{
		Interval:  cfg.HousekeepingInterval,
		Grace:     cfg.HousekeepingGrace,
		BatchSize: cfg.HousekeepingBatchSize,
	}, log)

	grpcServer, health := grpcTransport.NewGRPCServer(
		grpcTransport.NewServer(scheduling, blocks, cash, log),
		grpcTransport.Options{
			RequestTimeout: cfg.GRPCRequestTimeout,
			Verifier:       auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
			Log:            log,
			Tracing:        cfg.OTelEnabled,
		},
	)

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: webhook.NewRouter(webhook.NewHandler(cash, webhook.Config{
			Secret:    cfg.StripeWebhookSecret,
			Tolerance: cfg.StripeWebhookTolerance,
		}, log)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(workerCtx)
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			serveErr = err
		}
	}

	health.Shutdown()
	stopWorker()
	shutdown(log, grpcServer, cfg.ShutdownTimeout)

	httpCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		log.Warn("http shutdown failed", slog.Any("err", err))
	}
	wg.Wait()

	return serveErr
}

func newPublisher(cfg config.Config, log *slog.Logger) (events.Publisher, func()) {
	if cfg.KafkaBrokers == "" {
		log.Info("no kafka brokers configured; lifecycle events are dropped")
		return events.Nop{}, func() {}
	}
	kp := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:     cfg.KafkaBrokers,
		TopicPrefix: cfg.KafkaTopicPrefix,
	}, log)
	return kp, func() {
		if err := kp.Close(); err != nil {
			log.Warn("kafka writer close failed", slog.Any("err", err))
		}
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
