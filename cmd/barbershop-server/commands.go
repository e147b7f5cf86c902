package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"barbershop/backend/internal/auth"
	"barbershop/backend/internal/domain"
	"barbershop/backend/internal/service/housekeeping"
	"barbershop/backend/internal/store/postgres"
)

func newSweepCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry pass over stale PENDING appointments and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := a.cfg, a.log

			db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 2})
			if err != nil {
				logArgs := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
				log.Error("database connection failed", logArgs...)
				return err
			}
			defer postgres.Close(db)

			publisher, closePublisher := newPublisher(cfg, log)
			defer closePublisher()

			w := housekeeping.NewWorker(postgres.NewRepo(db), publisher, housekeeping.Config{
				Interval:  cfg.HousekeepingInterval,
				Grace:     cfg.HousekeepingGrace,
				BatchSize: cfg.HousekeepingBatchSize,
			}, log)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			report, err := w.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			log.Info("sweep finished",
				slog.Int("scanned", report.Scanned),
				slog.Int("deleted", report.Deleted),
				slog.Int("failed", report.Failed),
			)
			return nil
		},
	}
}

func newMigrateCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-check",
		Short: "Verify the database schema carries the tables and constraints the server relies on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := a.cfg, a.log

			log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
			db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 1})
			if err != nil {
				return err
			}
			defer postgres.Close(db)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := postgres.CheckSchema(ctx, db); err != nil {
				return err
			}
			log.Info("schema ok")
			return nil
		},
	}
}

func newTokenCommand(a *app) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is required")
			}
			p := domain.Principal{ID: strings.TrimSpace(subject), Role: domain.Role(strings.ToUpper(role))}
			if p.ID == "" || !p.Role.Valid() {
				return fmt.Errorf("--subject and a --role of CLIENT, BARBER or ADMIN are required")
			}
			token, err := auth.NewVerifier(a.cfg.JWTSecret, a.cfg.JWTIssuer).Sign(p, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user id to embed as the token subject")
	cmd.Flags().StringVar(&role, "role", "CLIENT", "CLIENT, BARBER or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
