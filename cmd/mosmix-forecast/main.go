package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/pflag"

	httpapi "github.com/i474232898/mosmix-forecast/internal/api/http"
	"github.com/i474232898/mosmix-forecast/internal/common"
	"github.com/i474232898/mosmix-forecast/internal/config"
	"github.com/i474232898/mosmix-forecast/internal/device"
	"github.com/i474232898/mosmix-forecast/internal/logging"
	"github.com/i474232898/mosmix-forecast/internal/mqtt"
	"github.com/i474232898/mosmix-forecast/internal/scheduler"
	"github.com/i474232898/mosmix-forecast/internal/store"
	"github.com/i474232898/mosmix-forecast/internal/weather"
	"github.com/i474232898/mosmix-forecast/internal/weather/providers"
)

const appName = "mosmix-forecast"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run() error {
	envFiles := pflag.StringSlice("env-file", nil, "env files to load before reading the environment (default .env)")
	stations := pflag.StringSlice("station", nil, "MOSMIX station ids, overrides MOSMIX_STATIONS")
	once := pflag.Bool("once", false, "query every station once, print the snapshots as JSON and exit")
	pflag.Parse()

	cfg, err := loadConfig(*envFiles, *stations)
	if err != nil {
		return err
	}

	log := logging.New(cfg, version, appName)
	slog.SetDefault(log)

	// Shared HTTP client for outbound feed calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	feed := providers.NewMosmixFeed(httpClient, cfg.FeedURLTemplate, cfg.FetchMaxRetries, log)
	service := weather.NewService(store.NewForecastStore(), feed, log)
	catalog := weather.NewCatalog(cfg.AdditionalElements, cfg.LookAhead)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		return queryOnce(ctx, service, catalog, cfg.Stations)
	}

	// In-memory snapshot history with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	devices := device.NewRegistry()

	var publisher *mqtt.Publisher
	if cfg.MQTTEnabled() {
		publisher = mqtt.NewPublisher(cfg, log)
		go func() {
			if err := publisher.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("mqtt connect failed", "error", err)
			}
		}()
		defer publisher.Disconnect()
	}

	sink := func(station weather.Station, snap *weather.Snapshot) {
		if snap == nil {
			return
		}
		memStore.SaveSnapshot(*snap)
		changed := devices.Update(*snap)
		log.Info("forecast delivered",
			"station", station.ID,
			"description", snap.Station,
			"forecast_at", snap.ForecastAt,
			"changed", changed,
		)
		if publisher != nil && publisher.IsConnected() {
			if err := publisher.Publish(*snap); err != nil {
				log.Warn("forecast publish failed", "station", station.ID, "error", err)
			}
		}
	}

	// Each evaluation may spend one request timeout per attempt plus the backoff between them.
	sched := scheduler.New(service, log, time.Duration(cfg.FetchMaxRetries+2)*cfg.HTTPTimeout)
	for _, id := range cfg.Stations {
		if _, err := sched.Start(catalog.Station(id), cfg.PollInterval, sink); err != nil {
			sched.Stop()
			return fmt.Errorf("start poller: %w", err)
		}
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  appName,
			"version":  version,
			"stations": cfg.Stations,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Snapshots: memStore,
		Forecasts: service,
		Catalog:   catalog,
		Devices:   devices,
		Stations:  cfg.Stations,
	})

	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
			stop()
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	return nil
}

func loadConfig(envFiles, stations []string) (*config.AppConfig, error) {
	cfg, err := config.Read(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(stations) > 0 {
		cfg.Stations = common.AppendUnique(nil, stations...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// queryOnce evaluates every station and prints the snapshots.
func queryOnce(ctx context.Context, service *weather.Service, catalog *weather.Catalog, stations []string) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	var failed int
	for _, id := range stations {
		snap, err := service.Query(ctx, catalog.Station(id))
		if err != nil {
			slog.Error("forecast query failed", "station", id, "error", err)
			failed++
			continue
		}
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d stations failed", failed, len(stations))
	}
	return nil
}
