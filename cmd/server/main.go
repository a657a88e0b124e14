package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JimLucas95338/farmvision/internal/anchor"
	"github.com/JimLucas95338/farmvision/internal/api"
	"github.com/JimLucas95338/farmvision/internal/config"
	"github.com/JimLucas95338/farmvision/internal/geo"
	"github.com/JimLucas95338/farmvision/internal/grpcclient"
	"github.com/JimLucas95338/farmvision/internal/link"
	"github.com/JimLucas95338/farmvision/internal/observability"
	"github.com/JimLucas95338/farmvision/internal/pipeline"
	"github.com/JimLucas95338/farmvision/internal/provider"
	"github.com/JimLucas95338/farmvision/internal/sensors"
	"github.com/JimLucas95338/farmvision/internal/server"
	"github.com/JimLucas95338/farmvision/internal/smoother"
	"github.com/JimLucas95338/farmvision/internal/store"
	"github.com/JimLucas95338/farmvision/internal/tracker"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLoggerWith(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("Starting farmvision...", "provider", cfg.Provider, "http_port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("farmvision stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "farmvision",
		Exporter:    cfg.TracingExporter,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	// Fuente de ubicación
	var (
		location provider.LocationProvider
		heading  provider.HeadingProvider
		feedInfo func() api.FeedInfo
	)
	switch cfg.Provider {
	case "feed":
		feed := provider.NewFeed()
		srv := server.New(feed, logger, metrics, cfg.RawLogDir)
		go func() {
			if err := srv.Start(ctx, ":"+cfg.FeedPort); err != nil && ctx.Err() == nil {
				logger.Error("feed server failed", "error", err)
				feed.Fail(err)
			}
		}()
		location, heading = feed, feed
		feedInfo = func() api.FeedInfo {
			info := api.FeedInfo{
				Status:    feed.Status().String(),
				Connected: srv.ActiveDevices(),
				Fixes:     feed.Devices(),
			}
			if err := feed.Err(); err != nil {
				info.Error = err.Error()
			}
			return info
		}
	default:
		sim := provider.NewSimulated(provider.SimulatedConfig{
			Center:      geo.GeoPoint{Latitude: cfg.CenterLat, Longitude: cfg.CenterLon},
			StepMeters:  cfg.SimStep,
			MinAccuracy: cfg.SimMinAccuracy,
			MaxAccuracy: cfg.SimMaxAccuracy,
			WarmUp:      time.Second,
			Seed:        cfg.SimSeed,
		})
		location, heading = sim, sim
	}

	// Sinks opcionales: cada uno falla por separado
	var sinks []tracker.Sink

	var rdb *store.Redis
	if cfg.RedisAddr != "" {
		rdb, err = store.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warn("Redis init failed, continuing without it", "error", err)
		} else {
			defer rdb.Close()
			sinks = append(sinks, tracker.Sink{Name: "redis", Publish: rdb.PublishTracking, Errors: metrics.RedisSetErrors})
		}
	}

	lk := link.New(cfg.ProxyAddr, logger)
	go lk.Run(ctx)
	if lk.Enabled() {
		sinks = append(sinks, tracker.Sink{
			Name:    "link",
			Publish: func(_ context.Context, tr *pipeline.TrackingObject) error { return lk.SendTracking(tr) },
			Errors:  metrics.LinkErrors,
		})
	}

	if cfg.GRPCServer != "" {
		gc, err := grpcclient.NewGRPCClient(cfg.GRPCServer)
		if err != nil {
			logger.Warn("gRPC client init failed, continuing without it", "error", err)
		} else {
			defer gc.Close()
			sinks = append(sinks, tracker.Sink{Name: "grpc", Publish: gc.SendTracking, Errors: metrics.ForwardErrors})
		}
	}

	sim := sensors.NewSimulator(sensors.DefaultConfig(), cfg.SimSeed)
	go sim.Run(ctx, cfg.SensorInterval)

	trk := tracker.New(tracker.Config{
		LocationInterval: cfg.LocationInterval,
		HeadingInterval:  cfg.HeadingInterval,
		UseCompass:       cfg.UseCompass,
		Debug: pipeline.DebugOptions{
			Enabled:      cfg.ShowDebug,
			ShowAccuracy: cfg.ShowAccuracy,
			ShowHeading:  cfg.ShowHeading,
		},
		MaxSampleAge: cfg.MaxSampleAge,
		InitTimeout:  cfg.ProviderTimeout,
	}, tracker.Deps{
		Location: location,
		Heading:  heading,
		Smoother: smoother.New(smoother.Options{
			WindowSize:        cfg.WindowSize,
			AccuracyThreshold: cfg.AccuracyThreshold,
		}),
		Anchors: anchor.NewTracker(anchor.Layout{
			Center:        geo.GeoPoint{Latitude: cfg.CenterLat, Longitude: cfg.CenterLon},
			MetersPerUnit: cfg.MetersPerUnit,
		}),
		Sensors: sim,
		Sinks:   sinks,
		Hooks:   anchorHooks(lk, rdb, logger),
		Logger:  logger,
		Metrics: metrics,
	})

	if err := loadAnchors(trk, sim, cfg.AnchorsFile, logger); err != nil {
		return err
	}

	mux := observability.NewMux(reg)
	apiOpts := api.Options{Feed: feedInfo, Logger: logger}
	if rdb != nil {
		apiOpts.Cache = rdb
	}
	api.Register(mux, trk, apiOpts)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	err = trk.Run(ctx)
	switch {
	case err == nil:
		logger.Info("shutdown complete", "session", trk.SessionID())
	case errors.Is(err, tracker.ErrPermissionDenied):
		logger.Error("Location permission denied or provider unavailable", "error", err)
	case errors.Is(err, tracker.ErrProviderFailed), errors.Is(err, tracker.ErrProviderStopped):
		logger.Error("Location services stopped", "error", err)
	}
	return err
}

// anchorHooks propaga altas y bajas de anclas al proxy y a Redis.
func anchorHooks(lk *link.Client, rdb *store.Redis, logger *slog.Logger) tracker.Hooks {
	return tracker.Hooks{
		AnchorRegistered: func(a anchor.Anchor) {
			if a.FixedPoint == nil {
				return
			}
			_ = lk.SendAnchor(link.AnchorInfo{
				ID:        a.ID,
				Name:      a.Name,
				Latitude:  a.FixedPoint.Latitude,
				Longitude: a.FixedPoint.Longitude,
				Event:     link.AnchorEventRegister,
			})
		},
		AnchorRemoved: func(id string) {
			_ = lk.SendAnchor(link.AnchorInfo{ID: id, Event: link.AnchorEventRemove})
			if rdb == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := rdb.ForgetAnchor(ctx, id); err != nil {
				logger.Warn("redis forget anchor failed", "id", id, "error", err)
			}
		},
	}
}

// loadAnchors registra las anclas del archivo o, sin archivo, los sensores
// de demo con su lectura inicial.
func loadAnchors(trk *tracker.Tracker, sim *sensors.Simulator, path string, logger *slog.Logger) error {
	if path != "" {
		anchors, err := anchor.LoadFile(path)
		if err != nil {
			return err
		}
		for _, a := range anchors {
			if _, err := trk.RegisterAnchor(a); err != nil {
				return err
			}
		}
		logger.Info("anchors loaded", "file", path, "count", len(anchors))
		return nil
	}

	for _, s := range sensors.DemoSensors() {
		p := s.Point
		id, err := trk.RegisterAnchor(anchor.Anchor{ID: s.ID, Name: s.Name, FixedPoint: &p})
		if err != nil {
			return err
		}
		sim.Set(id, s.Temperature, s.Humidity)
	}
	logger.Info("demo sensors registered", "count", len(sensors.DemoSensors()))
	return nil
}
