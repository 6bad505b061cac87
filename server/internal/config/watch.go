package config

import (
	"context"
	"log/slog"

	"github.com/motortwin/motortwin/pkg/filewatch"
)

// Watch reloads the config each time path is saved and calls onChange with
// the result. It runs until ctx is cancelled.
//
// If a reload fails (e.g., invalid YAML), the error is logged and the
// previous config remains active. onChange is not called.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	slog.Info("config: watching for changes", "path", path)
	return filewatch.Watch(ctx, path, filewatch.DefaultDebounce, func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Error("config: reload failed, keeping previous config",
				"path", path, "err", err)
			return
		}
		slog.Info("config: reloaded", "path", path,
			"alert_rules", len(cfg.Server.Alerts.Rules))
		onChange(cfg)
	})
}
