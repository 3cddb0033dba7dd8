// Package store persists StoredCustomer checkpoints. Backends: an in-memory
// map for development, SQLite for single-node deployments and PostgreSQL.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the customer store for driver. dsn is a file path for SQLite
// and a connection string for PostgreSQL; the memory store ignores it.
func Open(driver, dsn string, logger *zap.Logger) (port.CustomerStore, error) {
	switch strings.ToLower(driver) {
	case "", DriverMemory:
		logger.Info("customer store: in-memory")
		return NewMemory(), nil
	case DriverSQLite:
		logger.Info("customer store: sqlite", zap.String("path", dsn))
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		logger.Info("customer store: postgres")
		s, err := NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

// newID returns CUST_<unix ms>_<9 random chars>.
func newID() string {
	return fmt.Sprintf("CUST_%d_%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
