package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papercrumpler/internal/config"
	"papercrumpler/internal/constants"
	apperrors "papercrumpler/internal/errors"
	"papercrumpler/internal/journal"
	"papercrumpler/internal/mailbox/rtdb"
	"papercrumpler/internal/models"
	"papercrumpler/internal/printer"
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
		fmt.Printf("Paper Crumpler print server %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
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
	}).Info("Starting print server")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ValidatePrintServer(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	apperrors.ConfigureLevel(logger, cfg.LogLevel, *verbose)
	if *verbose {
		logger.Info("Verbose logging enabled - message text will be logged")
		ctx = service.WithVerbose(ctx, true)
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "papercrumpler-printserver"
	}
	if cfg.Tracing.ServiceVersion == "" {
		cfg.Tracing.ServiceVersion = Version
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
		}).Warn("Startup step failed, retrying")
	})

	store, err := connectStore(ctx, cfg.Store, backoff, logger)
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(ctx, cfg.Printer, backoff, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	opts := []service.ConsumerOption{}
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open print journal: %w", err)
		}
		defer jrnl.Close()
		opts = append(opts, service.WithJournal(jrnl))

		scheduler := service.NewScheduler(jrnl, cfg.RetentionDays, cfg.Server.CleanupIntervalHours, logger)
		go scheduler.Start(ctx)
		defer scheduler.Stop()

		monitor := service.NewAnomalyMonitor(jrnl,
			time.Duration(cfg.Server.AnomalyCheckSec)*time.Second,
			time.Duration(cfg.Server.AnomalyWindowHours)*time.Hour,
			logger)
		go monitor.Start(ctx)
		defer monitor.Stop()
	}

	consumer := service.NewConsumer(store, sink, logger, opts...)

	var reader JournalReader
	if jrnl != nil {
		reader = jrnl
	}
	server := NewServer(reader, logger)

	errCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(consumerCtx); err != nil {
			errCh <- fmt.Errorf("consumer: %w", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":    cfg.Server.Port,
		"journal": cfg.Journal.Enabled,
		"dry_run": cfg.Printer.DryRun,
	}).Info("Print server started, waiting for messages")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down print server")
	case runErr = <-errCh:
		logger.WithError(runErr).Error("Print server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Admin server shutdown failed")
	}

	// The printer and journal are closed by deferred calls, so the item in
	// flight has to finish first.
	stopConsumer()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Consumer did not stop before the shutdown deadline")
	}

	return runErr
}

func connectStore(ctx context.Context, cfg models.StoreConfig, backoff *retry.Backoff, logger *logrus.Logger) (*rtdb.Store, error) {
	var store *rtdb.Store
	err := backoff.Retry(ctx, func() error {
		s, err := rtdb.Connect(ctx, cfg, rtdb.WithLogger(logger))
		if err != nil {
			return err
		}
		if err := s.Probe(ctx, constants.PendingCollection); err != nil {
			return err
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, apperrors.NewConnectivityError("realtime database", err)
	}
	logger.WithField("database_url", cfg.DatabaseURL).Info("Connected to realtime database")
	return store, nil
}

func openSink(ctx context.Context, cfg models.PrinterConfig, backoff *retry.Backoff, logger *logrus.Logger) (printer.Sink, func(), error) {
	if cfg.DryRun {
		logger.Info("Printer dry run enabled, printing to stdout")
		return printer.NewWriterSink(os.Stdout, cfg.FeedLines), func() {}, nil
	}

	vendorID, err := config.ParseUSBID(cfg.VendorID)
	if err != nil {
		return nil, nil, err
	}
	productID, err := config.ParseUSBID(cfg.ProductID)
	if err != nil {
		return nil, nil, err
	}

	var usb *printer.USBPrinter
	err = backoff.Retry(ctx, func() error {
		p, err := printer.OpenUSB(vendorID, productID, cfg.FeedLines, logger)
		if err != nil {
			return err
		}
		usb = p
		return nil
	})
	if err != nil {
		return nil, nil, apperrors.NewConnectivityError("usb printer", err)
	}

	closeFn := func() {
		if err := usb.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release printer")
		}
	}
	return usb, closeFn, nil
}
