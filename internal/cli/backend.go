package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ssured/drawbot/internal/config"
	"github.com/ssured/drawbot/internal/persist"
)

// openBackend opens the backend selected by cfg.
func openBackend(cfg config.Config) (persist.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return persist.NewMemory(), nil
	case config.BackendFiles:
		return persist.OpenFiles(cfg.DataDir)
	case config.BackendSQLite:
		return persist.OpenSQLite(filepath.Join(cfg.DataDir, "drawbot.db"))
	case config.BackendBadger:
		return persist.OpenBadger(filepath.Join(cfg.DataDir, "badger"), slog.Default())
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
