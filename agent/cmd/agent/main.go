package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/motortwin/motortwin/agent/internal/config"
	"github.com/motortwin/motortwin/agent/internal/sensor"
	"github.com/motortwin/motortwin/agent/internal/shipper"
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

	slog.Info("motortwin-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	ac := cfg.Agent
	slog.Info("config loaded",
		"server_endpoint", ac.ServerEndpoint,
		"discovery", ac.Discovery,
		"transport", ac.Transport,
		"source", ac.Source.Type,
		"motor_id", ac.Source.MotorID,
		"interval", ac.Interval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := sensor.New(ac.Source)
	if err != nil {
		slog.Error("failed to build sensor source", "type", ac.Source.Type, "err", err)
		os.Exit(1)
	}

	// Hot reload applies a new read interval. Source and transport changes
	// need a restart.
	intervals := make(chan time.Duration, 1)
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			select {
			case intervals <- updated.Agent.Interval:
			default:
			}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(ac)
	go ship.Run(ctx)

	// Read loop: poll the source every interval and ship the reading.
	go func() {
		interval := ac.Interval
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-intervals:
				if d != interval {
					slog.Info("read interval changed", "from", interval, "to", d)
					interval = d
					ticker.Reset(d)
				}
			case <-ticker.C:
				r, err := src.Read(ctx)
				if err != nil {
					slog.Warn("sensor read error", "motor", ac.Source.MotorID, "err", err)
					continue
				}
				ship.Ship(r)
				slog.Debug("queued reading",
					"motor", r.MotorID,
					"temperature", r.Temperature,
					"vibration", r.Vibration,
					"load", r.Load,
					"pending", ship.Pending(),
				)
			}
		}
	}()

	<-ctx.Done()
	slog.Info("motortwin-agent shutting down")
}
