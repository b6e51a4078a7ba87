package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// FieldError describes one rejected field of an inbound query payload.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param"`
}

// Message renders the failure for API consumers, naming the field by
// its wire name. Only the rules the query payloads declare get bespoke
// wording.
func (e FieldError) Message() string {
	switch e.Rule {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field, e.Param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", e.Field, e.Param)
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	default:
		return fmt.Sprintf("%s is invalid", e.Field)
	}
}

// FieldErrors aggregates every rejected field of one payload. Handlers
// surface it verbatim in a BAD_REQUEST response.
type FieldErrors []FieldError

func (v FieldErrors) Error() string {
	if len(v) == 0 {
		return "invalid payload"
	}

	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Message()
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct checks an inbound payload against its validate tags.
// Rule failures come back as FieldErrors; anything else is an internal
// error from the validator itself.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	failures := make(FieldErrors, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		// Report fields by their wire names so errors line up with the
		// JSON the caller sent.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if comma := strings.Index(name, ","); comma != -1 {
				name = name[:comma]
			}
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}
