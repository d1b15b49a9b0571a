package store

import (
	"context"
	"fmt"
	"time"
)

// Drivers accepted by Open.
const (
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

// Config selects and configures a Store backend.
type Config struct {
	Driver string

	// SQLite
	DBPath string

	// MongoDB
	MongoURI      string
	MongoDatabase string
	MongoTimeout  time.Duration
}

// Open builds the configured Store. SQLite databases are migrated before return.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		s, err := NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return s, nil
	case DriverMongoDB:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongodb driver selected but no URI configured (set ISSUES_MONGODB_URI or DB)")
		}
		timeout := cfg.MongoTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, timeout)
	}
	return nil, fmt.Errorf("unknown store driver %q (want %q or %q)", cfg.Driver, DriverSQLite, DriverMongoDB)
}
