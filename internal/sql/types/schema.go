package types

import (
	"github.com/fedsql/fedsql/internal/errors"
)

// Column identifies one column of a batch. Qualifier is the table alias
// (or table name) the column belongs to; it disambiguates duplicate
// unqualified names across joined sources.
type Column struct {
	Name      string
	Qualifier string
}

// QualifiedName returns qualifier.name, or the bare name when the
// column has no qualifier.
func (c Column) QualifiedName() string {
	if c.Qualifier == "" {
		return c.Name
	}
	return c.Qualifier + "." + c.Name
}

// Schema is the ordered column layout shared by every row of a batch.
// Column order is fixed for the lifetime of a query.
type Schema struct {
	Columns []Column
}

// NewSchema creates a schema from columns
func NewSchema(cols ...Column) Schema {
	return Schema{Columns: cols}
}

// Len returns the number of columns
func (s Schema) Len() int {
	return len(s.Columns)
}

// Index resolves a column reference to its position. A qualified
// reference must match both qualifier and name; an unqualified
// reference must match exactly one column by name.
func (s Schema) Index(qualifier, name string) (int, error) {
	if qualifier != "" {
		for i, c := range s.Columns {
			if c.Qualifier == qualifier && c.Name == name {
				return i, nil
			}
		}
		return -1, errors.ColumnNotFoundError(qualifier, name)
	}

	found := -1
	for i, c := range s.Columns {
		if c.Name != name {
			continue
		}
		if found >= 0 {
			return -1, errors.AmbiguousColumnError(name)
		}
		found = i
	}
	if found < 0 {
		return -1, errors.ColumnNotFoundError("", name)
	}
	return found, nil
}

// Concat appends another schema's columns, producing the layout of a
// join output.
func (s Schema) Concat(other Schema) Schema {
	cols := make([]Column, 0, len(s.Columns)+len(other.Columns))
	cols = append(cols, s.Columns...)
	cols = append(cols, other.Columns...)
	return Schema{Columns: cols}
}

// Names returns display names for all columns: the bare name where it
// is unique, the qualified name where it is not.
func (s Schema) Names() []string {
	counts := make(map[string]int, len(s.Columns))
	for _, c := range s.Columns {
		counts[c.Name]++
	}
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		if counts[c.Name] > 1 {
			names[i] = c.QualifiedName()
		} else {
			names[i] = c.Name
		}
	}
	return names
}
