package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"rolo/internal/accounts"
	"rolo/internal/addrbook"
	"rolo/internal/httpapi"
	"rolo/internal/notify"
	"rolo/internal/resolver"
)

const (
	envConfigFile            = "ROLOD_CONFIG_FILE"
	defaultConfigFilePath    = "config/rolod.yaml"
	defaultListenAddress     = ":8642"
	defaultDatabasePath      = "rolod.db"
	defaultDirectoryID       = "personal"
	defaultShutdownTimeout   = 10 * time.Second
	defaultBusBuffer         = 256
	defaultBusWorkers        = 2
	defaultBusHandlerTimeout = 3 * time.Second
)

type appConfig struct {
	logLevel slog.Level

	listenAddress string
	databasePath  string
	directoryID   string

	shutdownTimeout   time.Duration
	busBuffer         int
	busWorkers        int
	busHandlerTimeout time.Duration
}

func run() error {
	configFile := resolveConfigFilePath()
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	directory, err := accounts.Load(configFile)
	if err != nil {
		return fmt.Errorf("load account directory: %w", err)
	}

	bus := notify.NewBus(cfg.busBuffer, cfg.busWorkers, cfg.busHandlerTimeout,
		func(_ context.Context, scope string, err error) {
			logger.Warn("async delivery failure", "scope", scope, "error", err)
		})

	store, err := addrbook.New(cfg.databasePath, cfg.directoryID,
		addrbook.WithLogger(logger),
		addrbook.WithPublisher(bus),
	)
	if err != nil {
		return fmt.Errorf("open address book: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close address book failed", "error", err)
		}
	}()

	cache, err := resolver.New(store, directory, resolver.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	subscription, err := bus.Subscribe(context.Background(), notify.SubscriptionSpec{
		Name:         "contact-cache",
		Backpressure: notify.Block,
	}, cache.HandleChange)
	if err != nil {
		return fmt.Errorf("subscribe resolver: %w", err)
	}

	server := &http.Server{
		Addr:    cfg.listenAddress,
		Handler: httpapi.New(cache, store, logger).Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErrs := make(chan error, 1)
	go func() {
		logger.Info("rolod listening", "address", cfg.listenAddress, "database", cfg.databasePath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- err
			return
		}
		serveErrs <- nil
	}()

	select {
	case err := <-serveErrs:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()

	var shutdownErrs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := subscription.Close(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, err)
	}
	if err := bus.Close(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, err)
	}

	return errors.Join(shutdownErrs...)
}

// resolveConfigFilePath prefers the env override and falls back to the
// default path. A missing file is fine: every setting has a default.
func resolveConfigFilePath() string {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile
	}
	return defaultConfigFilePath
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		listenAddress: defaultListenAddress,
		databasePath:  defaultDatabasePath,
		directoryID:   defaultDirectoryID,

		shutdownTimeout:   defaultShutdownTimeout,
		busBuffer:         defaultBusBuffer,
		busWorkers:        defaultBusWorkers,
		busHandlerTimeout: defaultBusHandlerTimeout,
	}
}

// loadConfig reads the YAML config file at path. Missing files yield the
// defaults; present-but-invalid values are errors, never silently ignored.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return cfg, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return appConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(v.GetString("log_level")); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if listen := strings.TrimSpace(v.GetString("listen_address")); listen != "" {
		cfg.listenAddress = listen
	}
	if dbPath := strings.TrimSpace(v.GetString("database_path")); dbPath != "" {
		cfg.databasePath = dbPath
	}
	if directoryID := strings.TrimSpace(v.GetString("directory_id")); directoryID != "" {
		cfg.directoryID = directoryID
	}

	if v.IsSet("shutdown_timeout") {
		timeout := v.GetDuration("shutdown_timeout")
		if timeout <= 0 {
			return appConfig{}, fmt.Errorf("parse shutdown_timeout: must be > 0")
		}
		cfg.shutdownTimeout = timeout
	}
	if v.IsSet("bus.buffer") {
		buffer := v.GetInt("bus.buffer")
		if buffer <= 0 {
			return appConfig{}, fmt.Errorf("parse bus.buffer: must be > 0")
		}
		cfg.busBuffer = buffer
	}
	if v.IsSet("bus.workers") {
		workers := v.GetInt("bus.workers")
		if workers <= 0 {
			return appConfig{}, fmt.Errorf("parse bus.workers: must be > 0")
		}
		cfg.busWorkers = workers
	}
	if v.IsSet("bus.handler_timeout") {
		timeout := v.GetDuration("bus.handler_timeout")
		if timeout <= 0 {
			return appConfig{}, fmt.Errorf("parse bus.handler_timeout: must be > 0")
		}
		cfg.busHandlerTimeout = timeout
	}

	return cfg, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}
