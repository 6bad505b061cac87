package config

import (
	"context"
	"log/slog"

	"github.com/motortwin/motortwin/pkg/filewatch"
)

// Watch calls onChange with the reloaded Config after each save of path.
// Invalid files are logged and skipped.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	slog.Info("config: watching for changes", "path", path)
	return filewatch.Watch(ctx, path, filewatch.DefaultDebounce, func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Error("config: reload failed", "path", path, "err", err)
			return
		}
		onChange(cfg)
	})
}
