package filter

import (
	"encoding/json"
	"strconv"

	"github.com/gridhq/tablecache/internal/dates"
)

type valueKind int

const (
	kindAbsent valueKind = iota
	kindNull
	kindString
	kindNumber
	kindBool
	kindList
	kindDescriptor
)

// Value is the tagged union a filter leaf carries: a scalar, a list, or
// a structured date descriptor. The zero Value means "no value supplied".
type Value struct {
	kind valueKind
	str  string
	num  float64
	b    bool
	list []Value
	desc *dates.Descriptor
}

// StringValue builds a string Value.
func StringValue(s string) Value {
	return Value{kind: kindString, str: s}
}

// NumberValue builds a numeric Value.
func NumberValue(n float64) Value {
	return Value{kind: kindNumber, num: n}
}

// ListValue builds a list Value.
func ListValue(items ...Value) Value {
	return Value{kind: kindList, list: items}
}

// DescriptorValue builds a date descriptor Value.
func DescriptorValue(d dates.Descriptor) Value {
	return Value{kind: kindDescriptor, desc: &d}
}

// UnmarshalJSON decodes the loose wire shape into the tagged union.
// Objects are treated as date descriptors when they carry any of the
// recognised descriptor keys; anything else degrades to its canonical
// JSON text so unknown shapes never fail a query.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{kind: kindNull}
	case string:
		return Value{kind: kindString, str: t}
	case float64:
		return Value{kind: kindNumber, num: t}
	case bool:
		return Value{kind: kindBool, b: t}
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, fromAny(item))
		}
		return Value{kind: kindList, list: items}
	case map[string]any:
		if d, ok := descriptorFromMap(t); ok {
			return Value{kind: kindDescriptor, desc: d}
		}
		encoded, err := json.Marshal(t)
		if err != nil {
			return Value{kind: kindNull}
		}
		return Value{kind: kindString, str: string(encoded)}
	default:
		return Value{kind: kindNull}
	}
}

func descriptorFromMap(m map[string]any) (*dates.Descriptor, bool) {
	d := &dates.Descriptor{}
	found := false
	if s, ok := m["date_mode_value"].(string); ok {
		d.DateModeValue = s
		found = true
	}
	if s, ok := m["date"].(string); ok {
		d.Date = s
		found = true
	}
	if s, ok := m["date_mode"].(string); ok {
		d.DateMode = s
		found = true
	}
	if !found {
		return nil, false
	}
	return d, true
}

// IsAbsent reports whether no value was supplied.
func (v Value) IsAbsent() bool { return v.kind == kindAbsent }

// IsNull reports whether the wire value was an explicit null.
func (v Value) IsNull() bool { return v.kind == kindNull }

// IsString reports whether the value is a plain string.
func (v Value) IsString() bool { return v.kind == kindString }

// IsList reports whether the value is a list.
func (v Value) IsList() bool { return v.kind == kindList }

// Descriptor returns the date descriptor, or nil for non-descriptor values.
func (v Value) Descriptor() *dates.Descriptor {
	if v.kind != kindDescriptor {
		return nil
	}
	d := *v.desc
	return &d
}

// String renders scalar values as text. Lists and descriptors render as
// their canonical JSON encoding.
func (v Value) String() string {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	case kindList, kindDescriptor:
		encoded, err := json.Marshal(v.Interface())
		if err != nil {
			return ""
		}
		return string(encoded)
	default:
		return ""
	}
}

// Strings flattens a list value into its textual items. A scalar yields
// a one-element slice so membership operators accept both shapes.
func (v Value) Strings() []string {
	switch v.kind {
	case kindList:
		out := make([]string, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.String())
		}
		return out
	case kindAbsent, kindNull:
		return nil
	default:
		return []string{v.String()}
	}
}

// Interface exposes the value for parameter binding.
func (v Value) Interface() any {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return v.num
	case kindBool:
		return v.b
	case kindList:
		out := make([]any, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.Interface())
		}
		return out
	case kindDescriptor:
		return map[string]any{
			"date_mode_value": v.desc.DateModeValue,
			"date":            v.desc.Date,
			"date_mode":       v.desc.DateMode,
		}
	default:
		return nil
	}
}
