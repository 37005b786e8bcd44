package driver

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/fedsql/fedsql/internal/errors"
	"github.com/fedsql/fedsql/internal/sql/types"
)

// stubDriver returns a canned batch or error.
type stubDriver struct {
	name  string
	batch *types.RowBatch
	err   error
}

func (s *stubDriver) Name() string { return s.name }
func (s *stubDriver) Kind() string { return "stub" }
func (s *stubDriver) Fetch(context.Context, *RemoteQuery) (*types.RowBatch, error) {
	return s.batch, s.err
}
func (s *stubDriver) Ping(context.Context) error { return nil }
func (s *stubDriver) Close() error               { return nil }

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&stubDriver{name: "db1"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&stubDriver{name: "db1"}); err == nil {
		t.Fatal("Expected error for duplicate registration")
	}

	if _, ok := r.Lookup("db1"); !ok {
		t.Error("Expected db1 to resolve")
	}
	if _, ok := r.Lookup("db2"); ok {
		t.Error("Expected db2 to be unknown")
	}
}

func TestRegistrySourcesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(&stubDriver{name: name}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	sources := r.Sources()
	if len(sources) != 3 || sources[0] != "a" || sources[2] != "c" {
		t.Errorf("Expected sorted sources, got %v", sources)
	}
}

func TestRegistryFetchUnknownSource(t *testing.T) {
	r := NewRegistry()
	_, err := r.Fetch(context.Background(), "nope", &RemoteQuery{Table: "t"})
	if err == nil {
		t.Fatal("Expected error for unknown source")
	}
	if !errors.IsError(err, errors.UndefinedObject) {
		t.Errorf("Expected SQLSTATE %s, got %v", errors.UndefinedObject, err)
	}
}

func TestRegistryFetchWrapsDriverError(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubDriver{name: "db1", err: stderrors.New("connection refused")}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Fetch(context.Background(), "db1", &RemoteQuery{Table: "t"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !errors.IsDriverError(err) {
		t.Errorf("Expected a driver error, got %v", err)
	}
	fe, _ := errors.Coded(err)
	if fe.Source != "db1" {
		t.Errorf("Expected source db1, got %q", fe.Source)
	}
}

func TestRegistryFetchMapsContextErrors(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubDriver{name: "slow", err: context.DeadlineExceeded}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&stubDriver{name: "gone", err: context.Canceled}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Fetch(context.Background(), "slow", &RemoteQuery{Table: "t"})
	if !errors.IsTimeout(err) {
		t.Errorf("Expected a timeout error, got %v", err)
	}

	_, err = r.Fetch(context.Background(), "gone", &RemoteQuery{Table: "t"})
	if !errors.IsCanceled(err) {
		t.Errorf("Expected a cancellation error, got %v", err)
	}
}

func TestRegistryFetchKeepsCodedErrors(t *testing.T) {
	r := NewRegistry()
	coded := errors.UnknownTableError("db1", "ghost")
	if err := r.Register(&stubDriver{name: "db1", err: coded}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err := r.Fetch(context.Background(), "db1", &RemoteQuery{Table: "ghost"})
	if !errors.IsError(err, errors.UndefinedTable) {
		t.Errorf("Expected the coded error to pass through, got %v", err)
	}
	if errors.IsDriverError(err) {
		t.Error("Coded error should not be re-wrapped as a driver error")
	}
}

func TestRegistryFetchSuccess(t *testing.T) {
	r := NewRegistry()
	batch := types.NewRowBatch(types.NewSchema(types.Column{Name: "id"}))
	batch.Append(types.Row{types.NewInt(1)})
	if err := r.Register(&stubDriver{name: "db1", batch: batch}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, err := r.Fetch(context.Background(), "db1", &RemoteQuery{Table: "t"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.NumRows() != 1 {
		t.Errorf("Expected 1 row, got %d", got.NumRows())
	}
}
