package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/oicur0t/logstat/internal/config"
	"github.com/oicur0t/logstat/internal/cycle"
	"github.com/oicur0t/logstat/internal/server"
	"github.com/oicur0t/logstat/internal/stats"
	"github.com/oicur0t/logstat/pkg/mtls"
	"github.com/oicur0t/logstat/pkg/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional; LOGSTAT_* environment variables also apply)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting logstat",
		zap.String("rules", cfg.RulesPath),
		zap.String("log", cfg.LogPath),
		zap.Duration("interval", cfg.Interval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// Stats file first, optional MongoDB mirror after it
	fileSink := stats.NewFileSink(cfg.StatsPath, retry.DefaultConfig(), logger)
	sinks := []stats.Sink{fileSink}
	logger.Info("Writing stats file", zap.String("path", fileSink.Path()))

	if cfg.MongoDB.Enabled {
		mongoSink, err := stats.NewMongoSink(ctx, stats.MongoOptions{
			URI:                cfg.MongoDB.URI,
			Database:           cfg.MongoDB.Database,
			Collection:         cfg.MongoDB.Collection,
			CertificateKeyFile: cfg.MongoDB.CertificateKeyFile,
			MaxPoolSize:        cfg.MongoDB.MaxPoolSize,
			Timeout:            cfg.MongoDB.Timeout,
			Source:             cfg.LogPath,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create MongoDB sink", zap.Error(err))
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.MongoDB.Timeout)
			defer closeCancel()
			if err := mongoSink.Close(closeCtx); err != nil {
				logger.Error("Failed to close MongoDB connection", zap.Error(err))
			}
		}()
		sinks = append(sinks, mongoSink)
	}

	// Metrics registry shared by the driver and /metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	status := cycle.NewStatus()

	driver := cycle.New(cycle.Options{
		RulesPath: cfg.RulesPath,
		LogPath:   cfg.LogPath,
		Interval:  cfg.Interval,
	}, sinks, logger,
		cycle.WithMetrics(cycle.NewMetrics(registry)),
		cycle.WithStatus(status))

	var httpServer *http.Server
	if cfg.HTTP.Enabled {
		httpServer, err = startHTTPServer(cfg.HTTP, status, registry, logger)
		if err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}

	// Scan until signalled
	if err := driver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scan loop failed", zap.Error(err))
	}

	// Graceful shutdown
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
			httpServer.Close()
		}
	}

	logger.Info("logstat stopped")
}

// startHTTPServer serves the status endpoints in the background. Listen
// errors after startup are logged; they do not stop the scan loop.
func startHTTPServer(cfg config.HTTPServerConfig, status *cycle.Status, registry *prometheus.Registry, logger *zap.Logger) (*http.Server, error) {
	// Client certificates only exist on TLS connections
	clientAuth := mtls.ClientAuthNone
	if cfg.TLS.Enabled {
		clientAuth = cfg.TLS.ClientAuth
	}
	handler := server.NewRouter(server.NewHandler(status, logger), registry, logger, clientAuth)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := mtls.LoadServerTLSConfig(cfg.TLS.CACert, cfg.TLS.ServerCert, cfg.TLS.ServerKey, cfg.TLS.ClientAuth)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		httpServer.TLSConfig = tlsConfig
	}

	go func() {
		logger.Info("HTTP server starting",
			zap.String("addr", cfg.ListenAddress),
			zap.Bool("tls", cfg.TLS.Enabled))

		var err error
		if cfg.TLS.Enabled {
			err = httpServer.ListenAndServeTLS("", "") // Certs loaded via TLSConfig
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return httpServer, nil
}

// initLogger creates a configured zap logger
func initLogger(level string, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var loggerConfig zap.Config
	if format == "json" {
		loggerConfig = zap.NewProductionConfig()
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
	}

	loggerConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	return loggerConfig.Build()
}
