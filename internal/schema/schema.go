package schema

import "context"

// FieldType enumerates the column kinds a mirrored table can declare.
type FieldType string

const (
	TypeText           FieldType = "text"
	TypeNumber         FieldType = "number"
	TypeSingleSelect   FieldType = "singleselect"
	TypeMultipleSelect FieldType = "multipleselect"
	TypeDate           FieldType = "date"
	TypeDateRange      FieldType = "daterange"
	TypeDueDate        FieldType = "duedate"
	TypeLinkedRecord   FieldType = "linkedrecord"
	TypeFile           FieldType = "file"
)

// MultiValue reports whether cells of this type hold a list of values
// rather than a single scalar.
func (t FieldType) MultiValue() bool {
	switch t {
	case TypeMultipleSelect, TypeLinkedRecord, TypeFile:
		return true
	default:
		return false
	}
}

// DateLike reports whether cells of this type hold calendar instants.
func (t FieldType) DateLike() bool {
	switch t {
	case TypeDate, TypeDateRange, TypeDueDate:
		return true
	default:
		return false
	}
}

// Field describes one column of a remote table.
type Field struct {
	Slug string    `json:"slug"`
	Type FieldType `json:"type"`
}

// Snapshot is an immutable, per-request view of a table's fields.
// The zero value behaves as an empty schema, which callers treat as
// "validation unavailable".
type Snapshot struct {
	fields []Field
	types  map[string]FieldType
}

// NewSnapshot builds a Snapshot from an ordered field list. Later
// duplicates of a slug are ignored.
func NewSnapshot(fields []Field) Snapshot {
	types := make(map[string]FieldType, len(fields))
	kept := make([]Field, 0, len(fields))
	for _, f := range fields {
		if f.Slug == "" {
			continue
		}
		if _, ok := types[f.Slug]; ok {
			continue
		}
		types[f.Slug] = f.Type
		kept = append(kept, f)
	}
	return Snapshot{fields: kept, types: types}
}

// TypeOf returns the declared type for a field slug.
func (s Snapshot) TypeOf(slug string) (FieldType, bool) {
	t, ok := s.types[slug]
	return t, ok
}

// Fields returns the ordered field list.
func (s Snapshot) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len reports the number of fields in the snapshot.
func (s Snapshot) Len() int {
	return len(s.fields)
}

// Provider supplies the current schema for a table. Implemented by the
// upstream client; absence of schema is not an error for compilation.
type Provider interface {
	Schema(ctx context.Context, tableID string) (Snapshot, error)
}
