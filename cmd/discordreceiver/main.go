package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papercrumpler/internal/config"
	"papercrumpler/internal/constants"
	"papercrumpler/internal/discord"
	apperrors "papercrumpler/internal/errors"
	"papercrumpler/internal/mailbox/rtdb"
	"papercrumpler/internal/retry"
	"papercrumpler/internal/service"
	"papercrumpler/internal/tracing"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes message text)")
	configPath = flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Paper Crumpler Discord receiver %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting Discord receiver")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ValidateReceiver(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	apperrors.ConfigureLevel(logger, cfg.LogLevel, *verbose)
	if *verbose {
		ctx = service.WithVerbose(ctx, true)
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "papercrumpler-discordreceiver"
	}
	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingManager.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shutdown tracing")
		}
	}()

	backoff := retry.NewBackoff(retry.FromRetryConfig(cfg.Retry)).WithNotify(func(attempt int, err error, delay time.Duration) {
		logger.WithFields(logrus.Fields{
			"attempt":  attempt,
			"error":    err,
			"retry_in": delay,
		}).Warn("Database connection failed, retrying")
	})

	var store *rtdb.Store
	err = backoff.Retry(ctx, func() error {
		s, err := rtdb.Connect(ctx, cfg.Store, rtdb.WithLogger(logger))
		if err != nil {
			return err
		}
		store = s
		return nil
	})
	if err != nil {
		return apperrors.NewConnectivityError("realtime database", err)
	}

	gateway := service.NewGateway(store, cfg.Discord.Source, logger)
	bot := discord.NewBot(cfg.Discord, gateway, logger)

	logger.WithFields(logrus.Fields{
		"command":    cfg.Discord.CommandName,
		"guild_id":   cfg.Discord.GuildID,
		"collection": constants.PendingCollection,
	}).Info("Discord receiver configured")

	if err := bot.Run(ctx); err != nil {
		return fmt.Errorf("discord bot: %w", err)
	}
	logger.Info("Discord receiver stopped")
	return nil
}
