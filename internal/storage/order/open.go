package order

import (
	"fmt"

	"github.com/GriffinCanCode/worktabs/internal/infrastructure/config"
)

// OpenKV opens the backend selected by cfg
func OpenKV(cfg config.StoreConfig) (KV, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return NewMemoryKV(), nil
	case config.StoreFile:
		return NewFileKV(cfg.Path)
	case config.StoreSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
