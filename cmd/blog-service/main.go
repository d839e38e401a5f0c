// main package for the blog-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/blog-workflow/internal/app"
	"github.com/book-expert/blog-workflow/internal/config"
	"github.com/book-expert/blog-workflow/internal/objectstore"
	"github.com/book-expert/blog-workflow/internal/worker"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

const (
	serviceName      = "blog-service"
	bootstrapLogFile = "blog-service-bootstrap.log"
	serviceLogFile   = "blog-service.log"

	serviceCheckTimeout = 10 * time.Second
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

// serve connects to NATS and runs the worker until SIGINT or SIGTERM.
func serve(cfg *config.Config, log *logger.Logger) error {
	components, err := app.Build(cfg, log)
	if err != nil {
		log.Error("Failed to build workflow: %v", err)

		return err
	}

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), serviceCheckTimeout)
	checkErr := components.CheckServices(checkCtx)

	cancelCheck()

	if checkErr != nil {
		// Requests fail individually until the services come up.
		log.Warn("Service check failed: %v", checkErr)
	}

	natsURL := cfg.NATS.URL
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	natsConnection, err := nats.Connect(natsURL, nats.Name(serviceName))
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", natsURL, err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	artifacts, err := objectstore.New(jetstreamContext, cfg.NATS.ArtifactBucket)
	if err != nil {
		log.Error("Failed to open artifact bucket %s: %v", cfg.NATS.ArtifactBucket, err)

		return err
	}

	log.Info("Artifacts are uploaded to object store bucket %s", artifacts.Bucket())

	// Generate and polish each get the LLM timeout, synthesis the speech timeout.
	runTimeout := time.Duration(2*cfg.LLM.TimeoutSeconds+cfg.Speech.TimeoutSeconds) * time.Second

	blogWorker, err := worker.NewNatsWorker(natsConnection, worker.Settings{
		RequestSubject:   cfg.NATS.RequestSubject,
		CompletedSubject: cfg.NATS.CompletedSubject,
		RunTimeout:       runTimeout,
	}, components.Engine, artifacts, log)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.System("Blog-Service successfully initialized. Listening for requests on subject: %s", cfg.NATS.RequestSubject)

	runErr := blogWorker.Run(ctx)
	if runErr != nil {
		log.Error("Worker stopped with error: %v", runErr)

		return runErr
	}

	log.System("Blog-Service stopped.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
