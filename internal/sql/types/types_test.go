package types

import (
	"testing"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"int", 42, NewInt(42)},
		{"int64", int64(7), NewInt(7)},
		{"uint32", uint32(9), NewInt(9)},
		{"float64", 1.5, NewFloat(1.5)},
		{"string", "abc", NewString("abc")},
		{"bytes", []byte("xy"), NewString("xy")},
		{"bool", true, NewBool(true)},
	}

	for _, tt := range tests {
		got := FromAny(tt.in)
		if got != tt.want {
			t.Errorf("%s: FromAny(%v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestFromAnyOpaque(t *testing.T) {
	nested := map[string]any{"a": 1}
	v := FromAny(nested)
	if v.Kind != KindOpaque {
		t.Fatalf("expected opaque, got %v", v.Kind)
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int lt", NewInt(1), NewInt(2), -1},
		{"int eq", NewInt(2), NewInt(2), 0},
		{"int gt", NewInt(3), NewInt(2), 1},
		{"float", NewFloat(1.5), NewFloat(2.5), -1},
		{"string", NewString("a"), NewString("b"), -1},
		{"bool", NewBool(false), NewBool(true), -1},
		{"int vs float", NewInt(2), NewFloat(2.0), 0},
		{"float vs int", NewFloat(2.5), NewInt(2), 1},
		{"numeric string vs int", NewString("10"), NewInt(9), 1},
		{"int vs numeric string", NewInt(3), NewString("3"), 0},
		{"numeric string vs float", NewString("1.5"), NewFloat(2.0), -1},
		{"null eq null", Null(), Null(), 0},
		{"null first", Null(), NewInt(-100), -1},
		{"non-null after null", NewString(""), Null(), 1},
	}

	for _, tt := range tests {
		got, err := CompareValues(tt.a, tt.b)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: CompareValues(%v, %v) = %d, want %d", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareValuesErrors(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
	}{
		{"non-numeric string vs int", NewString("abc"), NewInt(1)},
		{"bool vs int", NewBool(true), NewInt(1)},
		{"bool vs string", NewBool(true), NewString("true")},
		{"opaque", NewOpaque(struct{}{}), NewOpaque(struct{}{})},
	}

	for _, tt := range tests {
		if _, err := CompareValues(tt.a, tt.b); err == nil {
			t.Errorf("%s: expected coercion error, got none", tt.name)
		}
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want Value
	}{
		{"int unchanged", NewInt(5), NewInt(5)},
		{"integral float to int", NewFloat(5.0), NewInt(5)},
		{"fractional float kept", NewFloat(5.5), NewFloat(5.5)},
		{"numeric string to int", NewString("5"), NewInt(5)},
		{"float string to int", NewString("5.0"), NewInt(5)},
		{"plain string kept", NewString("x"), NewString("x")},
		{"null kept", Null(), Null()},
	}

	for _, tt := range tests {
		got, err := CanonicalKey(tt.in)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: CanonicalKey(%v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestEncodeKeyDistinguishesKinds(t *testing.T) {
	// "1" the string and 1 the int must not collide unless canonicalized
	if EncodeKey(NewString("1")) == EncodeKey(NewInt(1)) {
		t.Error("string and int keys should differ without canonicalization")
	}
	a, _ := CanonicalKey(NewString("1"))
	b, _ := CanonicalKey(NewFloat(1.0))
	if EncodeKey(a) != EncodeKey(b) {
		t.Error("canonicalized equal numerics should produce equal keys")
	}
	if EncodeKey(NewString("a"), NewString("b")) == EncodeKey(NewString("ab")) {
		t.Error("multi-value keys should not collide with concatenated values")
	}
}

func TestSchemaIndex(t *testing.T) {
	s := NewSchema(
		Column{Name: "id", Qualifier: "u"},
		Column{Name: "name", Qualifier: "u"},
		Column{Name: "id", Qualifier: "o"},
		Column{Name: "total", Qualifier: "o"},
	)

	if i, err := s.Index("u", "name"); err != nil || i != 1 {
		t.Errorf("Index(u.name) = %d, %v; want 1, nil", i, err)
	}
	if i, err := s.Index("", "total"); err != nil || i != 3 {
		t.Errorf("Index(total) = %d, %v; want 3, nil", i, err)
	}
	if _, err := s.Index("", "id"); err == nil {
		t.Error("unqualified ambiguous reference should error")
	}
	if _, err := s.Index("x", "id"); err == nil {
		t.Error("unknown qualifier should error")
	}
	if _, err := s.Index("", "missing"); err == nil {
		t.Error("unknown column should error")
	}
}

func TestSchemaNames(t *testing.T) {
	s := NewSchema(
		Column{Name: "id", Qualifier: "u"},
		Column{Name: "id", Qualifier: "o"},
		Column{Name: "total", Qualifier: "o"},
	)
	names := s.Names()
	want := []string{"u.id", "o.id", "total"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRowBatchClone(t *testing.T) {
	b := NewRowBatch(NewSchema(Column{Name: "a"}))
	b.Append(Row{NewInt(1)})
	b.Append(Row{NewInt(2)})

	c := b.Clone()
	c.Rows[0][0] = NewInt(99)

	if b.Rows[0][0] != NewInt(1) {
		t.Error("mutating a clone must not affect the original batch")
	}
}

func TestRowBatchSlice(t *testing.T) {
	b := NewRowBatch(NewSchema(Column{Name: "a"}))
	for i := 0; i < 5; i++ {
		b.Append(Row{NewInt(int64(i))})
	}

	tests := []struct {
		i, j, want int
	}{
		{0, 2, 2},
		{2, 5, 3},
		{4, 10, 1},
		{7, 9, 0},
	}
	for _, tt := range tests {
		if got := b.Slice(tt.i, tt.j).NumRows(); got != tt.want {
			t.Errorf("Slice(%d, %d).NumRows() = %d, want %d", tt.i, tt.j, got, tt.want)
		}
	}
}

func TestRowBatchMaps(t *testing.T) {
	b := NewRowBatch(NewSchema(
		Column{Name: "name", Qualifier: "u"},
		Column{Name: "total", Qualifier: "o"},
	))
	b.Append(Row{NewString("B"), NewInt(200)})

	maps := b.Maps()
	if len(maps) != 1 {
		t.Fatalf("expected 1 row, got %d", len(maps))
	}
	if maps[0]["name"] != "B" || maps[0]["total"] != int64(200) {
		t.Errorf("unexpected map row: %v", maps[0])
	}
}
