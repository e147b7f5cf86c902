package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"barbershop/backend/internal/config"
)

const serviceName = "barbershop-server"

const (
	flagConfig      = "config"
	flagGRPCAddr    = "grpc-addr"
	flagHTTPAddr    = "http-addr"
	flagDatabaseURL = "database-url"
	flagLogLevel    = "log-level"
)

// flagKeys maps persistent flags onto their viper keys.
var flagKeys = map[string]string{
	flagGRPCAddr:    "grpc.addr",
	flagHTTPAddr:    "http.addr",
	flagDatabaseURL: "database.url",
	flagLogLevel:    "log.level",
}

type app struct {
	cfg config.Config
	log *slog.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Barbershop booking, scheduling and settlement server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagConfig, "", "config file (yaml, toml or json)")
	flags.String(flagGRPCAddr, "", "gRPC listen address, host:port")
	flags.String(flagHTTPAddr, "", "HTTP listen address for webhooks and health")
	flags.String(flagDatabaseURL, "", "PostgreSQL connection string")
	flags.String(flagLogLevel, "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newServeCommand(a),
		newSweepCommand(a),
		newMigrateCheckCommand(a),
		newTokenCommand(a),
	)
	return cmd
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	v := viper.New()
	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	a.cfg = cfg
	a.log = newLogger(cfg.LogLevel)
	slog.SetDefault(a.log)
	return nil
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)})).With(
		slog.String("service", serviceName),
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
