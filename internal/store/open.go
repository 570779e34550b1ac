package store

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for a backend name.
func Open(backend, path string, logger *zap.Logger) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(path, logger)
	case BackendSQLite:
		return NewSQLiteStore(path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q (valid: file, sqlite)", backend)
	}
}
