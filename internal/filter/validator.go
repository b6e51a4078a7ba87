package filter

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gridhq/tablecache/internal/schema"
	apperrors "github.com/gridhq/tablecache/pkg/errors"
	"github.com/gridhq/tablecache/pkg/logger"
	"github.com/gridhq/tablecache/pkg/metrics"
)

func opSet(ops ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

var (
	emptinessOps = []string{"is_empty", "is_not_empty"}
	equalityOps  = []string{"is", "is_equal_to", "is_not", "is_not_equal_to"}
	dateOps      = append([]string{"is_before", "is_on_or_before", "is_on_or_after"},
		append(equalityOps, emptinessOps...)...)
)

// allowedOps declares, per field type, the comparison operators the
// remote platform accepts for it.
var allowedOps = map[schema.FieldType]map[string]struct{}{
	schema.TypeText: opSet(append([]string{"contains", "does_not_contain", "not_contains"},
		append(equalityOps, emptinessOps...)...)...),
	schema.TypeNumber: opSet(append([]string{
		"is_greater_than", "is_greater_than_or_equal_to",
		"is_less_than", "is_less_than_or_equal_to",
	}, append(equalityOps, emptinessOps...)...)...),
	schema.TypeSingleSelect: opSet(append([]string{"is_any_of", "is_none_of"},
		append(equalityOps, emptinessOps...)...)...),
	schema.TypeMultipleSelect: opSet(append([]string{
		"has_any_of", "has_all_of", "is_exactly", "has_none_of",
	}, emptinessOps...)...),
	schema.TypeDate:      opSet(dateOps...),
	schema.TypeDateRange: opSet(dateOps...),
	schema.TypeDueDate:   opSet(append([]string{"is_overdue", "is_not_overdue"}, dateOps...)...),
	schema.TypeLinkedRecord: opSet(append([]string{
		"has_any_of", "has_all_of", "has_none_of", "is_exactly",
	}, emptinessOps...)...),
	schema.TypeFile: opSet(append([]string{"file_name_contains", "file_type_is"}, emptinessOps...)...),
}

// Validator judges operator/field-type compatibility. In strict mode a
// mismatch aborts compilation; otherwise it is logged as a warning and
// the offending leaf is skipped.
type Validator struct {
	log *zap.Logger
}

// NewValidator builds a Validator.
func NewValidator() *Validator {
	return &Validator{log: logger.WithModule("filter")}
}

// Validate checks one leaf against the declared field type. Field types
// without a declared operator set are accepted; schema availability is
// best-effort, so unknown types never block a query. ok=false means the
// leaf failed validation in non-strict mode and should be skipped; a
// non-nil error aborts compilation (strict mode).
func (v *Validator) Validate(field, op string, fieldType schema.FieldType, strict bool) (bool, error) {
	normalised := strings.ToLower(strings.TrimSpace(op))

	if !Recognised(normalised) {
		// The permissive fall-through-to-equality policy only applies
		// outside strict mode.
		if strict {
			return false, apperrors.ErrValidation.WithMessage(
				fmt.Sprintf("unrecognised operator %q on field %q", op, field))
		}
		return true, nil
	}

	allowed, ok := allowedOps[fieldType]
	if !ok {
		return true, nil
	}
	if _, ok := allowed[normalised]; ok {
		return true, nil
	}

	if strict {
		return false, apperrors.ErrValidation.WithMessage(
			fmt.Sprintf("operator %q is not valid for field %q of type %s", op, field, fieldType))
	}

	metrics.ValidationWarnings.WithLabelValues(string(fieldType)).Inc()
	v.log.Warn("operator not valid for field type",
		zap.String("field", field),
		zap.String("operator", op),
		zap.String("field_type", string(fieldType)),
	)
	return false, nil
}
