package filter

import (
	"strings"

	"github.com/gridhq/tablecache/internal/dates"
)

// ConditionKind tags the compiled form of one comparison.
type ConditionKind string

const (
	KindEq  ConditionKind = "eq"
	KindNe  ConditionKind = "ne"
	KindGt  ConditionKind = "gt"
	KindGte ConditionKind = "gte"
	KindLt  ConditionKind = "lt"
	KindLte ConditionKind = "lte"

	KindContains    ConditionKind = "contains"
	KindNotContains ConditionKind = "not_contains"

	KindIsNull  ConditionKind = "is_null"
	KindNotNull ConditionKind = "is_not_null"

	KindHasAnyOf  ConditionKind = "has_any_of"
	KindHasAllOf  ConditionKind = "has_all_of"
	KindIsExactly ConditionKind = "is_exactly"
	KindHasNoneOf ConditionKind = "has_none_of"
	KindIsAnyOf   ConditionKind = "is_any_of"
	KindIsNoneOf  ConditionKind = "is_none_of"

	KindBetween    ConditionKind = "between"
	KindNotBetween ConditionKind = "not_between"

	KindBefore     ConditionKind = "before"
	KindOnOrBefore ConditionKind = "on_or_before"
	KindOnOrAfter  ConditionKind = "on_or_after"

	KindOverdue    ConditionKind = "overdue"
	KindNotOverdue ConditionKind = "not_overdue"

	KindFileNameContains ConditionKind = "file_name_contains"
	KindFileTypeIs       ConditionKind = "file_type_is"
)

// Condition is the compiled form of one (field, operator, value) leaf,
// consumed by the cache store's clause builder.
type Condition struct {
	Field string
	Kind  ConditionKind
	Value Value

	// Min/Max carry the inclusive bounds for between/not-between.
	Min string
	Max string
}

// Converter maps comparison operator names onto compiled conditions,
// resolving dynamic date values on the way.
type Converter struct {
	dates *dates.Resolver
}

// NewConverter builds a Converter backed by the given date resolver.
func NewConverter(resolver *dates.Resolver) *Converter {
	return &Converter{dates: resolver}
}

var recognisedOps = map[string]struct{}{
	"is": {}, "is_equal_to": {},
	"is_not": {}, "is_not_equal_to": {},
	"is_greater_than": {}, "is_greater_than_or_equal_to": {},
	"is_less_than": {}, "is_less_than_or_equal_to": {},
	"contains": {}, "does_not_contain": {}, "not_contains": {},
	"is_empty": {}, "is_not_empty": {},
	"has_any_of": {}, "has_all_of": {}, "is_exactly": {},
	"has_none_of": {}, "is_any_of": {}, "is_none_of": {},
	"is_before": {}, "is_on_or_before": {}, "is_on_or_after": {},
	"is_overdue": {}, "is_not_overdue": {},
	"file_name_contains": {}, "file_type_is": {},
}

// Recognised reports whether the operator name has a documented mapping.
func Recognised(op string) bool {
	_, ok := recognisedOps[strings.ToLower(strings.TrimSpace(op))]
	return ok
}

// Convert maps an operator and value onto a Condition. Unrecognised
// operators degrade to literal equality so benign grammar additions on
// the remote platform never hard-fail a query.
func (c *Converter) Convert(field, op string, v Value) Condition {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "is", "is_equal_to":
		// A bare date must match the whole UTC calendar day the store
		// persists it under, not just midnight.
		if min, max, ok := dates.DayRange(v.String()); ok && v.IsString() {
			return Condition{Field: field, Kind: KindBetween, Min: min, Max: max}
		}
		return Condition{Field: field, Kind: KindEq, Value: v}

	case "is_not", "is_not_equal_to":
		if min, max, ok := dates.DayRange(v.String()); ok && v.IsString() {
			return Condition{Field: field, Kind: KindNotBetween, Min: min, Max: max}
		}
		return Condition{Field: field, Kind: KindNe, Value: v}

	case "is_greater_than":
		return Condition{Field: field, Kind: KindGt, Value: v}
	case "is_greater_than_or_equal_to":
		return Condition{Field: field, Kind: KindGte, Value: v}
	case "is_less_than":
		return Condition{Field: field, Kind: KindLt, Value: v}
	case "is_less_than_or_equal_to":
		return Condition{Field: field, Kind: KindLte, Value: v}

	case "contains":
		return Condition{Field: field, Kind: KindContains, Value: v}
	case "does_not_contain", "not_contains":
		return Condition{Field: field, Kind: KindNotContains, Value: v}

	case "is_empty":
		return Condition{Field: field, Kind: KindIsNull}
	case "is_not_empty":
		return Condition{Field: field, Kind: KindNotNull}

	case "has_any_of":
		return Condition{Field: field, Kind: KindHasAnyOf, Value: v}
	case "has_all_of":
		return Condition{Field: field, Kind: KindHasAllOf, Value: v}
	case "is_exactly":
		return Condition{Field: field, Kind: KindIsExactly, Value: v}
	case "has_none_of":
		return Condition{Field: field, Kind: KindHasNoneOf, Value: v}
	case "is_any_of":
		return Condition{Field: field, Kind: KindIsAnyOf, Value: v}
	case "is_none_of":
		return Condition{Field: field, Kind: KindIsNoneOf, Value: v}

	case "is_before":
		return Condition{Field: field, Kind: KindBefore, Value: StringValue(c.resolveUTC(v))}
	case "is_on_or_before":
		return Condition{Field: field, Kind: KindOnOrBefore, Value: StringValue(c.resolveUTC(v))}
	case "is_on_or_after":
		return Condition{Field: field, Kind: KindOnOrAfter, Value: StringValue(c.resolveUTC(v))}

	case "is_overdue":
		return Condition{Field: field, Kind: KindOverdue}
	case "is_not_overdue":
		return Condition{Field: field, Kind: KindNotOverdue}

	case "file_name_contains":
		return Condition{Field: field, Kind: KindFileNameContains, Value: v}
	case "file_type_is":
		return Condition{Field: field, Kind: KindFileTypeIs, Value: v}

	default:
		return Condition{Field: field, Kind: KindEq, Value: v}
	}
}

// resolveUTC reduces a directional date value (scalar or descriptor) to
// a UTC instant, so comparisons always evaluate in UTC regardless of
// how the caller expressed the date.
func (c *Converter) resolveUTC(v Value) string {
	extracted := c.dates.ExtractDateValue(v.String(), v.Descriptor())
	return c.dates.ConvertToUTCForFilter(extracted)
}
