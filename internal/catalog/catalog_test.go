package catalog

import (
	"testing"
	"time"

	"github.com/fedsql/fedsql/internal/errors"
)

func TestRegisterSource(t *testing.T) {
	c := NewMemoryCatalog()

	if err := c.RegisterSource(&SourceMeta{Name: "db1", Kind: "memory"}); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}
	if err := c.RegisterSource(&SourceMeta{Name: "db2", Kind: "postgres"}); err != nil {
		t.Fatalf("RegisterSource failed: %v", err)
	}

	err := c.RegisterSource(&SourceMeta{Name: "db1", Kind: "sqlite"})
	if err == nil {
		t.Fatal("Expected error for duplicate source")
	}
	if !errors.IsError(err, errors.DuplicateObject) {
		t.Errorf("Expected SQLSTATE %s, got %v", errors.DuplicateObject, err)
	}

	meta, err := c.Source("db2")
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if meta.Kind != "postgres" {
		t.Errorf("Expected kind postgres, got %s", meta.Kind)
	}

	if _, err := c.Source("nope"); err == nil {
		t.Fatal("Expected error for unknown source")
	} else if !errors.IsError(err, errors.UndefinedObject) {
		t.Errorf("Expected SQLSTATE %s, got %v", errors.UndefinedObject, err)
	}
}

func TestSourcesSorted(t *testing.T) {
	c := NewMemoryCatalog()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := c.RegisterSource(&SourceMeta{Name: name, Kind: "memory"}); err != nil {
			t.Fatalf("RegisterSource failed: %v", err)
		}
	}

	sources := c.Sources()
	if len(sources) != 3 {
		t.Fatalf("Expected 3 sources, got %d", len(sources))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if sources[i].Name != want {
			t.Errorf("Source %d: expected %s, got %s", i, want, sources[i].Name)
		}
	}
}

func TestEstimateRows(t *testing.T) {
	c := NewMemoryCatalog()

	if got := c.EstimateRows("db1", "users"); got != DefaultRowEstimate {
		t.Errorf("Expected default estimate %d, got %d", DefaultRowEstimate, got)
	}

	c.SetTableStats("db1", "users", TableStats{RowCount: 42, UpdatedAt: time.Now()})
	if got := c.EstimateRows("db1", "users"); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	// Zero is a real observation, not an invitation to fall back.
	c.SetTableStats("db1", "empty", TableStats{RowCount: 0, UpdatedAt: time.Now()})
	if got := c.EstimateRows("db1", "empty"); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}

	stats, ok := c.TableStats("db1", "users")
	if !ok || stats.RowCount != 42 {
		t.Errorf("Expected recorded stats, got %+v ok=%v", stats, ok)
	}
	if _, ok := c.TableStats("db1", "ghost"); ok {
		t.Error("Expected no stats for unknown table")
	}
}
