package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/statesync/internal/config"
	"github.com/iudanet/statesync/internal/server"
	"github.com/iudanet/statesync/internal/server/auth"
	"github.com/iudanet/statesync/internal/server/notify"
	"github.com/iudanet/statesync/internal/server/storage"
	"github.com/iudanet/statesync/internal/server/storage/postgres"
	"github.com/iudanet/statesync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Parse flags
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to YAML config file")
	issueToken := flag.String("issue-token", "", "Print a bearer token for the given account and exit")
	deviceID := flag.String("device", "", "Device id embedded into the issued token")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	tokens := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)

	// Выпуск токена для разработки: аутентификация пользователей вне этого сервера
	if *issueToken != "" {
		token, err := tokens.Issue(*issueToken, *deviceID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, tokens, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ServerConfig, tokens *auth.Service, logger *slog.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	var notifier notify.Notifier
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		rn := notify.NewRedisNotifier(client, logger)
		g.Go(func() error { return rn.Run(gctx) })
		notifier = rn
	} else {
		notifier = notify.NewHub(logger)
	}

	srv := server.New(server.Options{
		Addr:            cfg.Addr,
		Version:         Version,
		RateLimit:       cfg.RateLimit,
		RateWindow:      cfg.RateWindow,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, store, notifier, tokens, logger)

	g.Go(func() error { return srv.Run(gctx) })

	logger.Info("Statesync server started", "version", Version, "addr", cfg.Addr)
	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (storage.SnapshotStorage, error) {
	if cfg.DatabaseURL != "" {
		logger.Info("Using postgres storage")
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	}
	logger.Info("Using sqlite storage", "path", cfg.DBPath)
	return sqlite.New(ctx, cfg.DBPath, logger)
}

func printVersion() {
	fmt.Printf("Statesync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
