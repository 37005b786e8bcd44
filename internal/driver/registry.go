package driver

import (
	"context"
	"sort"
	"sync"

	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// Registry resolves source names to drivers. All remote fetches go
// through Fetch so that failures surface uniformly: context errors map
// to cancellation or timeout, anything else becomes a driver error
// tagged with the source name.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver under its source name.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := d.Name()
	if _, exists := r.drivers[name]; exists {
		return errors.Newf(errors.DuplicateObject, "driver for source %q is already registered", name).
			WithSource(name)
	}
	r.drivers[name] = d
	return nil
}

// Lookup returns the driver for a source name.
func (r *Registry) Lookup(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	return d, ok
}

// Sources returns the registered source names sorted.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch resolves the source and runs the remote query.
func (r *Registry) Fetch(ctx context.Context, source string, query *RemoteQuery) (*types.RowBatch, error) {
	d, ok := r.Lookup(source)
	if !ok {
		return nil, errors.UnknownSourceError(source)
	}

	batch, err := d.Fetch(ctx, query)
	if err != nil {
		if ctxErr := errors.FromContext(err, errors.StageFetch); ctxErr != nil {
			return nil, ctxErr.WithSource(source)
		}
		if coded, ok := errors.Coded(err); ok {
			if coded.Source == "" {
				coded.Source = source
			}
			return nil, err
		}
		return nil, errors.DriverError(source, err)
	}
	return batch, nil
}

// Close closes every driver and returns the first failure.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, d := range r.drivers {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.drivers = make(map[string]Driver)
	return firstErr
}
