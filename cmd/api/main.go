// Package main API.
//
// go-contractseal provides a REST API for assembling, sealing and archiving
// contract PDFs.
//
//	Schemes: http
//	BasePath: /
//	Version: 1.0.0
//	Host: localhost:8080
//
//	Consumes:
//	- application/json
//	- multipart/form-data
//
//	Produces:
//	- application/json
//	- application/pdf
//
// swagger:meta
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-contractseal/internal/assembly"
	"go-contractseal/internal/config"
	"go-contractseal/internal/index"
	"go-contractseal/internal/metrics"
	"go-contractseal/internal/seals"
	"go-contractseal/internal/server"
	"go-contractseal/internal/storage"
	"go-contractseal/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func gracefulShutdown(apiServer *http.Server, log *logrus.Logger, done chan bool, closers ...func(context.Context) error) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	for _, c := range closers {
		if err := c(ctx); err != nil {
			log.WithError(err).Warn("shutdown step failed")
		}
	}

	log.Info("server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise tracing")
	}

	idx, err := index.Open(cfg.Storage.IndexDir, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open file index")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		log.WithError(err).Fatal("failed to register metrics")
	}

	opts := []assembly.Option{assembly.WithLogger(log), assembly.WithMetrics(m)}
	if cfg.MinIO.Endpoint != "" {
		archiver, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to object storage")
		}
		opts = append(opts, assembly.WithArchiver(archiver))
		log.WithFields(logrus.Fields{"endpoint": cfg.MinIO.Endpoint, "bucket": cfg.MinIO.Bucket}).Info("archiving produced files")
	}

	files, err := assembly.NewService(assembly.Config{
		IncomingDir:  cfg.Storage.UploadDir,
		ProcessedDir: cfg.Storage.ProcessedDir,
		SealImageDir: cfg.Storage.SealsDir,
	}, idx, opts...)
	if err != nil {
		log.WithError(err).Fatal("failed to prepare file storage")
	}

	registry, err := seals.NewRegistry(cfg.Storage.SealsFile, cfg.Storage.SealsDir, idx, log)
	if err != nil {
		log.WithError(err).Fatal("failed to prepare seal registry")
	}

	apiServer, err := server.NewServer(cfg, server.Deps{
		Files:    files,
		Seals:    registry,
		Log:      log,
		Registry: reg,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build server")
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, log, done,
		func(context.Context) error { return idx.Close() },
		shutdownTracing,
	)

	log.WithField("addr", apiServer.Addr).Info("starting server")
	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("graceful shutdown complete")
}
