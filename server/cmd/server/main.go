package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/motortwin/motortwin/pkg/discovery"
	"github.com/motortwin/motortwin/server/internal/alerts"
	"github.com/motortwin/motortwin/server/internal/api"
	"github.com/motortwin/motortwin/server/internal/auth"
	"github.com/motortwin/motortwin/server/internal/config"
	"github.com/motortwin/motortwin/server/internal/ingest"
	"github.com/motortwin/motortwin/server/internal/metrics"
	"github.com/motortwin/motortwin/server/internal/store"
	"github.com/motortwin/motortwin/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file with secrets")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load env file", "path", *envFile, "err", err)
	}

	slog.Info("motortwin-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	sc := cfg.Server

	slog.Info("config loaded",
		"http_port", sc.HTTPPort,
		"motor_id", sc.MotorID,
		"auth_mode", sc.Auth.Mode,
		"storage", sc.Storage.Backend,
		"history_window", sc.Analytics.HistoryWindow,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, sc.Storage, sc.MotorID)
	if err != nil {
		slog.Error("failed to open store", "backend", sc.Storage.Backend, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	apiCfg := api.Config{
		HistoryWindow:  sc.Analytics.HistoryWindow,
		DashboardLimit: sc.Analytics.DashboardLimit,
		ForecastSteps:  sc.Analytics.ForecastSteps,
	}

	// Alerts engine and the dashboard hub both observe every stored reading.
	alertEngine := alerts.New(sc.Alerts)
	hub := ws.New(st, apiCfg, sc.Stream.Interval)
	go hub.Run(ctx)

	pipeline := ingest.New(st, ingest.Settings{
		MotorID:       sc.MotorID,
		HistoryWindow: sc.Analytics.HistoryWindow,
		Clamp:         sc.Ingest.Clamp,
	}, alertEngine, hub)

	guard, closeGuard := writeGuard(ctx, sc)
	defer closeGuard()
	apiCfg.WriteGuard = guard

	cors := api.NewCORS(sc.CORS.AllowedOrigins)
	hub.SetOriginPolicy(cors.Allowed)

	httpMux := http.NewServeMux()
	httpMux.Handle("/", api.New(st, pipeline, alertEngine, apiCfg))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", metrics.New(st, alertEngine, sc.Analytics.HistoryWindow))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           cors.Wrap(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	if sc.Ingest.Queue.Enabled {
		consumer, err := ingest.Dial(sc.Ingest.Queue, pipeline)
		if err != nil {
			slog.Error("failed to connect ingest queue", "err", err)
			os.Exit(1)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				slog.Error("ingest consumer stopped", "err", err)
			}
		}()
	}

	if sc.Discovery.Enabled {
		adv, err := discovery.Advertise(sc.Discovery.Instance, sc.HTTPPort, sc.MotorID)
		if err != nil {
			slog.Warn("mDNS advertisement failed", "err", err)
		} else {
			defer adv.Shutdown()
		}
	}

	// Hot reload: alert rules, webhooks and CORS origins apply without a
	// restart. Everything else needs one.
	go func() {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			alertEngine.SetRules(c.Server.Alerts)
			cors.SetOrigins(c.Server.CORS.AllowedOrigins)
			slog.Info("config reloaded",
				"rules", len(c.Server.Alerts.Rules),
				"webhooks", len(c.Server.Alerts.Webhooks),
			)
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("motortwin-server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// writeGuard chains API key auth and, when enabled, the Redis rate limiter
// in front of the ingest routes.
func writeGuard(ctx context.Context, sc config.ServerConfig) (func(http.Handler) http.Handler, func()) {
	keyGuard := auth.APIKey(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key())
	if !sc.RateLimit.Enabled {
		return keyGuard, func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: sc.RateLimit.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The limiter fails open, so a missing Redis only costs throttling.
		slog.Warn("rate limiter redis unreachable", "addr", sc.RateLimit.RedisAddr, "err", err)
	}
	limiter := auth.RateLimit(auth.NewRedisCounter(rdb), sc.RateLimit.Limit, sc.RateLimit.Window)
	slog.Info("rate limiting ingest", "limit", sc.RateLimit.Limit, "window", sc.RateLimit.Window)

	guard := func(next http.Handler) http.Handler {
		return keyGuard(limiter(next))
	}
	return guard, func() { rdb.Close() }
}
