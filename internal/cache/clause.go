package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gridhq/tablecache/internal/dates"
	"github.com/gridhq/tablecache/internal/filter"
	"github.com/gridhq/tablecache/internal/schema"
)

// Mirror tables carry one column per field slug plus the record key.
// Slugs are folded into a restricted identifier alphabet so no quoting
// is needed across the supported dialects.
const columnPrefix = "f_"

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "x"
	}
	if len(out) > 48 {
		out = out[:48]
	}
	return out
}

func columnName(slug string) string {
	return columnPrefix + sanitizeIdentifier(slug)
}

type mirrorColumn struct {
	slug    string
	name    string
	sqlType string
	kind    schema.FieldType
}

// mirrorColumns derives the mirror layout from the schema snapshot,
// falling back to the union of row keys when no schema is available.
func mirrorColumns(snap schema.Snapshot, rows []Record) []mirrorColumn {
	var cols []mirrorColumn
	seen := map[string]struct{}{}

	add := func(slug string, kind schema.FieldType) {
		name := columnName(slug)
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		sqlType := "text"
		if kind == schema.TypeNumber {
			sqlType = "numeric"
		}
		cols = append(cols, mirrorColumn{slug: slug, name: name, sqlType: sqlType, kind: kind})
	}

	for _, f := range snap.Fields() {
		add(f.Slug, f.Type)
	}
	if len(cols) == 0 {
		for _, row := range rows {
			for slug := range row.Fields {
				add(slug, schema.TypeText)
			}
		}
	}
	return cols
}

func createMirrorTable(tx *gorm.DB, storageID string, cols []mirrorColumn) error {
	defs := make([]string, 0, len(cols)+1)
	defs = append(defs, "record_id varchar(64) PRIMARY KEY")
	for _, col := range cols {
		defs = append(defs, col.name+" "+col.sqlType)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", storageID, strings.Join(defs, ", "))
	return tx.Exec(ddl).Error
}

func insertMirrorRows(tx *gorm.DB, storageID string, cols []mirrorColumn, rows []Record) error {
	if len(rows) == 0 {
		return nil
	}

	names := make([]string, 0, len(cols)+1)
	names = append(names, "record_id")
	placeholders := make([]string, 0, len(cols)+1)
	placeholders = append(placeholders, "?")
	for _, col := range cols {
		names = append(names, col.name)
		placeholders = append(placeholders, "?")
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		storageID, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	for _, row := range rows {
		args := make([]any, 0, len(cols)+1)
		args = append(args, row.ID)
		for _, col := range cols {
			args = append(args, encodeCell(col.kind, row.Fields[col.slug]))
		}
		if err := tx.Exec(stmt, args...).Error; err != nil {
			return err
		}
	}
	return nil
}

// encodeCell normalises one remote cell for mirror storage. Multi-value
// cells persist as canonical JSON text; date-only cells persist at UTC
// midnight, which is the convention the day-span range logic depends on.
func encodeCell(kind schema.FieldType, v any) any {
	if v == nil {
		return nil
	}

	switch {
	case kind.MultiValue():
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(encoded)

	case kind.DateLike():
		if s, ok := v.(string); ok {
			if dates.IsBareDate(s) {
				return s + "T00:00:00Z"
			}
			return s
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(encoded)

	case kind == schema.TypeNumber:
		return v

	default:
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil
			}
			return string(encoded)
		}
	}
}

// decodeMirrorRow maps a scanned mirror row back to field slugs,
// reviving JSON-encoded multi-value cells.
func decodeMirrorRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for key, v := range row {
		if key == "record_id" {
			out["id"] = v
			continue
		}
		slug := strings.TrimPrefix(key, columnPrefix)
		if s, ok := v.(string); ok && len(s) > 0 && (s[0] == '[' || s[0] == '{') {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				out[slug] = decoded
				continue
			}
		}
		out[slug] = v
	}
	return out
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func likeArg(s string) string {
	return "%" + escapeLike(s) + "%"
}

// jsonProbe builds a LIKE pattern matching one JSON-encoded list item
// inside a multi-value cell.
func jsonProbe(item string) string {
	encoded, err := json.Marshal(item)
	if err != nil {
		return likeArg(item)
	}
	return "%" + escapeLike(string(encoded)) + "%"
}

// BuildCondition renders one compiled condition into a SQL fragment
// plus bound parameters, in fragment order. It implements the filter
// compiler's ClauseBuilder.
func (s *Store) BuildCondition(cond filter.Condition) (string, []any, error) {
	col := columnName(cond.Field)

	switch cond.Kind {
	case filter.KindEq:
		if cond.Value.IsNull() || cond.Value.IsAbsent() {
			return col + " IS NULL", nil, nil
		}
		return col + " = ?", []any{cond.Value.Interface()}, nil

	case filter.KindNe:
		if cond.Value.IsNull() || cond.Value.IsAbsent() {
			return col + " IS NOT NULL", nil, nil
		}
		return col + " <> ?", []any{cond.Value.Interface()}, nil

	case filter.KindGt:
		return col + " > ?", []any{cond.Value.Interface()}, nil
	case filter.KindGte:
		return col + " >= ?", []any{cond.Value.Interface()}, nil
	case filter.KindLt:
		return col + " < ?", []any{cond.Value.Interface()}, nil
	case filter.KindLte:
		return col + " <= ?", []any{cond.Value.Interface()}, nil

	case filter.KindContains:
		return col + ` LIKE ? ESCAPE '\'`, []any{likeArg(cond.Value.String())}, nil
	case filter.KindNotContains:
		return "(" + col + " IS NULL OR " + col + ` NOT LIKE ? ESCAPE '\')`,
			[]any{likeArg(cond.Value.String())}, nil

	case filter.KindIsNull:
		return "(" + col + " IS NULL OR " + col + " = '')", nil, nil
	case filter.KindNotNull:
		return "(" + col + " IS NOT NULL AND " + col + " <> '')", nil, nil

	case filter.KindBetween:
		return "(" + col + " >= ? AND " + col + " <= ?)", []any{cond.Min, cond.Max}, nil
	case filter.KindNotBetween:
		return "NOT (" + col + " >= ? AND " + col + " <= ?)", []any{cond.Min, cond.Max}, nil

	case filter.KindBefore:
		return col + " < ?", []any{cond.Value.String()}, nil
	case filter.KindOnOrBefore:
		return col + " <= ?", []any{cond.Value.String()}, nil
	case filter.KindOnOrAfter:
		return col + " >= ?", []any{cond.Value.String()}, nil

	case filter.KindHasAnyOf, filter.KindHasAllOf, filter.KindHasNoneOf:
		return s.buildMembershipProbe(col, cond)

	case filter.KindIsExactly:
		encoded, err := json.Marshal(cond.Value.Interface())
		if err != nil {
			return "", nil, fmt.Errorf("cache: encode is_exactly value: %w", err)
		}
		return col + " = ?", []any{string(encoded)}, nil

	case filter.KindIsAnyOf:
		return col + " IN ?", []any{listArg(cond.Value)}, nil
	case filter.KindIsNoneOf:
		return "(" + col + " IS NULL OR " + col + " NOT IN ?)", []any{listArg(cond.Value)}, nil

	case filter.KindOverdue:
		now := s.now().UTC().Format(time.RFC3339)
		return "(" + col + " IS NOT NULL AND " + col + " <> '' AND " + col + " < ?)", []any{now}, nil
	case filter.KindNotOverdue:
		now := s.now().UTC().Format(time.RFC3339)
		return "(" + col + " IS NULL OR " + col + " = '' OR " + col + " >= ?)", []any{now}, nil

	case filter.KindFileNameContains:
		pattern := `%"name":"%` + escapeLike(cond.Value.String()) + `%`
		return col + ` LIKE ? ESCAPE '\'`, []any{pattern}, nil
	case filter.KindFileTypeIs:
		pattern := `%"type":` + escapeLike(mustJSON(cond.Value.String())) + `%`
		return col + ` LIKE ? ESCAPE '\'`, []any{pattern}, nil

	default:
		return "", nil, fmt.Errorf("cache: unsupported condition kind %q", cond.Kind)
	}
}

func (s *Store) buildMembershipProbe(col string, cond filter.Condition) (string, []any, error) {
	items := cond.Value.Strings()
	if len(items) == 0 {
		// An empty membership list matches nothing (or everything for
		// the negated form).
		if cond.Kind == filter.KindHasNoneOf {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	}

	frags := make([]string, 0, len(items))
	args := make([]any, 0, len(items))
	for _, item := range items {
		frags = append(frags, col+` LIKE ? ESCAPE '\'`)
		args = append(args, jsonProbe(item))
	}

	switch cond.Kind {
	case filter.KindHasAnyOf:
		return "(" + strings.Join(frags, " OR ") + ")", args, nil
	case filter.KindHasAllOf:
		return "(" + strings.Join(frags, " AND ") + ")", args, nil
	default: // KindHasNoneOf
		return "NOT (" + strings.Join(frags, " OR ") + ")", args, nil
	}
}

func listArg(v filter.Value) []any {
	raw := v.Interface()
	if list, ok := raw.([]any); ok {
		return list
	}
	if raw == nil {
		return nil
	}
	return []any{raw}
}

func mustJSON(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return `"` + s + `"`
	}
	return string(encoded)
}
