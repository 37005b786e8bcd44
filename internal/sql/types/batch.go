package types

// Row is one row of a batch, positionally aligned with its schema.
type Row []Value

// Get returns the value at the given index, NULL when out of range.
func (r Row) Get(index int) Value {
	if index < 0 || index >= len(r) {
		return Null()
	}
	return r[index]
}

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// RowBatch is an ordered sequence of rows sharing one schema.
// Ownership transfers from the producing step to the consuming step;
// a batch is never shared between steps after hand-off.
type RowBatch struct {
	Schema Schema
	Rows   []Row
}

// ResultSet is a fully materialized query result.
type ResultSet = RowBatch

// NewRowBatch creates an empty batch with the given schema.
func NewRowBatch(schema Schema) *RowBatch {
	return &RowBatch{Schema: schema}
}

// Append adds a row to the batch.
func (b *RowBatch) Append(row Row) {
	b.Rows = append(b.Rows, row)
}

// NumRows returns the number of rows in the batch.
func (b *RowBatch) NumRows() int {
	return len(b.Rows)
}

// Clone deep-copies the batch. The cache stores clones so that entries
// are never mutated in place by later consumers.
func (b *RowBatch) Clone() *RowBatch {
	out := &RowBatch{
		Schema: Schema{Columns: append([]Column(nil), b.Schema.Columns...)},
		Rows:   make([]Row, len(b.Rows)),
	}
	for i, r := range b.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Slice returns a batch sharing the schema and holding rows [i, j).
// Used to carve streaming chunks out of a materialized result.
func (b *RowBatch) Slice(i, j int) *RowBatch {
	if i < 0 {
		i = 0
	}
	if j > len(b.Rows) {
		j = len(b.Rows)
	}
	if i > j {
		i = j
	}
	return &RowBatch{Schema: b.Schema, Rows: b.Rows[i:j]}
}

// Maps converts the batch to name-keyed rows using display names.
// Intended for result rendering and JSON encoding, not the hot path.
func (b *RowBatch) Maps() []map[string]any {
	names := b.Schema.Names()
	out := make([]map[string]any, len(b.Rows))
	for i, row := range b.Rows {
		m := make(map[string]any, len(names))
		for j, name := range names {
			m[name] = row.Get(j).Any()
		}
		out[i] = m
	}
	return out
}

// ApproxBytes estimates the wire size of the batch for transfer
// statistics. It is an estimate, not an accounting.
func (b *RowBatch) ApproxBytes() int64 {
	var n int64
	for _, row := range b.Rows {
		for _, v := range row {
			switch v.Kind {
			case KindString:
				n += int64(len(v.Str))
			case KindNull:
				n++
			default:
				n += 8
			}
		}
	}
	return n
}
