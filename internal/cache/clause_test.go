package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridhq/tablecache/internal/filter"
	"github.com/gridhq/tablecache/internal/schema"
)

func testBuilder() *Store {
	now := time.Date(2026, 6, 17, 12, 0, 0, 0, time.UTC)
	return &Store{now: func() time.Time { return now }}
}

func TestSanitizeIdentifier(t *testing.T) {
	require.Equal(t, "task_status", sanitizeIdentifier("Task Status"))
	require.Equal(t, "caf__menu", sanitizeIdentifier("café-menu"))
	require.Equal(t, "___", sanitizeIdentifier("!!!"))
	require.Equal(t, "x", sanitizeIdentifier(""))
	require.LessOrEqual(t, len(sanitizeIdentifier(string(make([]byte, 100)))), 48)
}

func TestColumnName(t *testing.T) {
	require.Equal(t, "f_status", columnName("status"))
	require.Equal(t, "f_due_date", columnName("Due Date"))
}

func TestBuildConditionComparisons(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{
		Field: "status", Kind: filter.KindEq, Value: filter.StringValue("Active"),
	})
	require.NoError(t, err)
	require.Equal(t, "f_status = ?", frag)
	require.Equal(t, []any{"Active"}, args)

	frag, args, err = s.BuildCondition(filter.Condition{
		Field: "priority", Kind: filter.KindGt, Value: filter.NumberValue(3),
	})
	require.NoError(t, err)
	require.Equal(t, "f_priority > ?", frag)
	require.Equal(t, []any{3.0}, args)
}

func TestBuildConditionNullValueEquality(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{Field: "status", Kind: filter.KindEq})
	require.NoError(t, err)
	require.Equal(t, "f_status IS NULL", frag)
	require.Empty(t, args)

	frag, _, err = s.BuildCondition(filter.Condition{Field: "status", Kind: filter.KindNe})
	require.NoError(t, err)
	require.Equal(t, "f_status IS NOT NULL", frag)
}

func TestBuildConditionContainsEscapesWildcards(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{
		Field: "name", Kind: filter.KindContains, Value: filter.StringValue("50%_done"),
	})
	require.NoError(t, err)
	require.Equal(t, `f_name LIKE ? ESCAPE '\'`, frag)
	require.Equal(t, []any{`%50\%\_done%`}, args)

	frag, _, err = s.BuildCondition(filter.Condition{
		Field: "name", Kind: filter.KindNotContains, Value: filter.StringValue("x"),
	})
	require.NoError(t, err)
	require.Contains(t, frag, "f_name IS NULL OR")
}

func TestBuildConditionEmptiness(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{Field: "notes", Kind: filter.KindIsNull})
	require.NoError(t, err)
	require.Equal(t, "(f_notes IS NULL OR f_notes = '')", frag)
	require.Empty(t, args)

	frag, _, err = s.BuildCondition(filter.Condition{Field: "notes", Kind: filter.KindNotNull})
	require.NoError(t, err)
	require.Equal(t, "(f_notes IS NOT NULL AND f_notes <> '')", frag)
}

func TestBuildConditionRanges(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{
		Field: "due", Kind: filter.KindBetween,
		Min: "2026-06-15T00:00:00Z", Max: "2026-06-15T23:59:59Z",
	})
	require.NoError(t, err)
	require.Equal(t, "(f_due >= ? AND f_due <= ?)", frag)
	require.Equal(t, []any{"2026-06-15T00:00:00Z", "2026-06-15T23:59:59Z"}, args)

	frag, _, err = s.BuildCondition(filter.Condition{
		Field: "due", Kind: filter.KindNotBetween,
		Min: "a", Max: "b",
	})
	require.NoError(t, err)
	require.Equal(t, "NOT (f_due >= ? AND f_due <= ?)", frag)
}

func TestBuildConditionMembershipProbes(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{
		Field: "tags", Kind: filter.KindHasAnyOf,
		Value: filter.ListValue(filter.StringValue("urgent"), filter.StringValue("api")),
	})
	require.NoError(t, err)
	require.Equal(t, `(f_tags LIKE ? ESCAPE '\' OR f_tags LIKE ? ESCAPE '\')`, frag)
	require.Equal(t, []any{`%"urgent"%`, `%"api"%`}, args)

	frag, _, err = s.BuildCondition(filter.Condition{
		Field: "tags", Kind: filter.KindHasAllOf,
		Value: filter.ListValue(filter.StringValue("a"), filter.StringValue("b")),
	})
	require.NoError(t, err)
	require.Contains(t, frag, " AND ")

	frag, _, err = s.BuildCondition(filter.Condition{
		Field: "tags", Kind: filter.KindHasNoneOf,
		Value: filter.ListValue(filter.StringValue("a")),
	})
	require.NoError(t, err)
	require.Equal(t, `NOT (f_tags LIKE ? ESCAPE '\')`, frag)
}

func TestBuildConditionEmptyMembershipList(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{
		Field: "tags", Kind: filter.KindHasAnyOf, Value: filter.ListValue(),
	})
	require.NoError(t, err)
	require.Equal(t, "1 = 0", frag)
	require.Empty(t, args)

	frag, _, err = s.BuildCondition(filter.Condition{
		Field: "tags", Kind: filter.KindHasNoneOf, Value: filter.ListValue(),
	})
	require.NoError(t, err)
	require.Equal(t, "1 = 1", frag)
}

func TestBuildConditionIsAnyOf(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{
		Field: "status", Kind: filter.KindIsAnyOf,
		Value: filter.ListValue(filter.StringValue("Active"), filter.StringValue("Pending")),
	})
	require.NoError(t, err)
	require.Equal(t, "f_status IN ?", frag)
	require.Equal(t, []any{[]any{"Active", "Pending"}}, args)

	frag, _, err = s.BuildCondition(filter.Condition{
		Field: "status", Kind: filter.KindIsNoneOf,
		Value: filter.ListValue(filter.StringValue("Done")),
	})
	require.NoError(t, err)
	require.Equal(t, "(f_status IS NULL OR f_status NOT IN ?)", frag)
}

func TestBuildConditionOverdue(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{Field: "due", Kind: filter.KindOverdue})
	require.NoError(t, err)
	require.Equal(t, "(f_due IS NOT NULL AND f_due <> '' AND f_due < ?)", frag)
	require.Equal(t, []any{"2026-06-17T12:00:00Z"}, args)

	frag, args, err = s.BuildCondition(filter.Condition{Field: "due", Kind: filter.KindNotOverdue})
	require.NoError(t, err)
	require.Equal(t, "(f_due IS NULL OR f_due = '' OR f_due >= ?)", frag)
	require.Equal(t, []any{"2026-06-17T12:00:00Z"}, args)
}

func TestBuildConditionFileProbes(t *testing.T) {
	s := testBuilder()

	frag, args, err := s.BuildCondition(filter.Condition{
		Field: "attachments", Kind: filter.KindFileNameContains, Value: filter.StringValue("report"),
	})
	require.NoError(t, err)
	require.Equal(t, `f_attachments LIKE ? ESCAPE '\'`, frag)
	require.Equal(t, []any{`%"name":"%report%`}, args)

	_, args, err = s.BuildCondition(filter.Condition{
		Field: "attachments", Kind: filter.KindFileTypeIs, Value: filter.StringValue("pdf"),
	})
	require.NoError(t, err)
	require.Equal(t, []any{`%"type":"pdf"%`}, args)
}

func TestEncodeCellShapes(t *testing.T) {
	require.Nil(t, encodeCell(schema.TypeText, nil))

	require.Equal(t, `["a","b"]`, encodeCell(schema.TypeMultipleSelect, []any{"a", "b"}))
	require.Equal(t, "2026-06-15T00:00:00Z", encodeCell(schema.TypeDate, "2026-06-15"))
	require.Equal(t, "2026-06-15T09:30:00Z", encodeCell(schema.TypeDate, "2026-06-15T09:30:00Z"))
	require.Equal(t, 3.5, encodeCell(schema.TypeNumber, 3.5))
	require.Equal(t, "plain", encodeCell(schema.TypeText, "plain"))
	require.Equal(t, "3.5", encodeCell(schema.TypeText, 3.5))
	require.Equal(t, "true", encodeCell(schema.TypeText, true))
}

func TestDecodeMirrorRow(t *testing.T) {
	row := map[string]any{
		"record_id": "rec1",
		"f_status":  "Active",
		"f_tags":    `["urgent","api"]`,
	}
	out := decodeMirrorRow(row)
	require.Equal(t, "rec1", out["id"])
	require.Equal(t, "Active", out["status"])
	require.Equal(t, []any{"urgent", "api"}, out["tags"])
}
