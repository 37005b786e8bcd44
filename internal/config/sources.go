package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/fedsql/fedsql/internal/driver"
)

// OpenSource opens the driver a source declaration describes.
func OpenSource(ctx context.Context, src SourceConfig) (driver.Driver, error) {
	switch strings.ToLower(src.Kind) {
	case "memory":
		d := driver.NewMemoryDriver(src.Name)
		for _, t := range src.Tables {
			d.Seed(t.Table, t.Columns, t.Rows)
		}
		return d, nil
	case "postgres":
		return driver.NewPostgresDriver(src.Name, src.DSN)
	case "sqlite":
		return driver.NewSQLiteDriver(src.Name, src.DSN)
	case "mongo":
		return driver.NewMongoDriver(ctx, src.Name, src.DSN, src.Database)
	case "redis":
		return driver.NewRedisDriver(src.Name, src.DSN, src.DB), nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s", src.Kind)
	}
}

// BuildRegistry opens every declared source and registers it. On any
// failure the already-opened drivers are closed and the error names
// the offending source.
func BuildRegistry(ctx context.Context, sources []SourceConfig) (*driver.Registry, error) {
	registry := driver.NewRegistry()
	for _, src := range sources {
		d, err := OpenSource(ctx, src)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("open source %s: %w", src.Name, err)
		}
		if err := registry.Register(d); err != nil {
			d.Close()
			registry.Close()
			return nil, err
		}
	}
	return registry, nil
}
