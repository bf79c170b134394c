package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Open opens the named backend under dataDir: "leveldb" (default), "bolt"
// or "memory".
func Open(backend, dataDir string) (Database, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "memory" {
		return NewMemDB(), nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	switch backend {
	case "", "leveldb":
		return NewLevelDB(filepath.Join(dataDir, "state"))
	case "bolt":
		return NewBoltDB(filepath.Join(dataDir, "state.db"))
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
