package storage

import (
	"fmt"

	"splitperfect/internal/config"
)

// Open builds the Store selected by DATA_BACKEND.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.SQLiteDBPath)
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}
