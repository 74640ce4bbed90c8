package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/synaptik/internal/domain"
)

// Binding errors.
var (
	// ErrValidation wraps struct tag failures.
	ErrValidation = errors.New("validation failed")

	// ErrBinding wraps malformed JSON or query strings.
	ErrBinding = errors.New("binding failed")
)

// Validator returns the shared validator. Besides the stock tags it knows
// the task vocabularies:
//
//	notempty  string with at least one non-space character
//	status    a task status
//	priority  a task priority
//	layout    a graph layout
//	direction a subgraph direction
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(wireName)

	custom := map[string]validator.Func{
		"notempty":  func(fl validator.FieldLevel) bool { return strings.TrimSpace(fl.Field().String()) != "" },
		"status":    func(fl validator.FieldLevel) bool { return domain.Status(fl.Field().String()).Valid() },
		"priority":  func(fl validator.FieldLevel) bool { return domain.Priority(fl.Field().String()).Valid() },
		"layout":    parses(domain.ParseLayout),
		"direction": parses(domain.ParseDirection),
	}

	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("registering %q validator: %v", tag, err))
		}
	}

	return v
})

func parses[T any](parse func(string) (T, error)) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, err := parse(fl.Field().String())
		return err == nil
	}
}

// wireName reports fields by the name clients send: the JSON key for bodies,
// the query parameter for queries.
func wireName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}

		if name != "" {
			return name
		}
	}

	return fld.Name
}

// Validate checks v against its struct tags.
func Validate(v any) error {
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

// BindAndValidate decodes the JSON body into v and validates it.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// BindQueryAndValidate decodes the query string into v and validates it.
func BindQueryAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// IsValidationError reports whether err carries struct tag failures.
func IsValidationError(err error) bool {
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

// ValidationErrors maps each failing field to a readable message. Slice
// elements are reported under their indexed name, e.g. "ids[2]".
func ValidationErrors(err error) map[string]string {
	out := make(map[string]string)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return out
	}

	for _, fe := range fieldErrs {
		out[fe.Field()] = message(fe)
	}

	return out
}

func message(fe validator.FieldError) string {
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "notempty":
		return "must not be blank"
	case "status":
		return "must be one of: " + joinValues(domain.Statuses)
	case "priority":
		return "must be one of: " + joinValues(domain.Priorities)
	case "layout":
		return "must be one of: " + joinValues([]domain.Layout{domain.LayoutHierarchical, domain.LayoutForce})
	case "direction":
		return "must be one of: " + joinValues([]domain.Direction{domain.Upstream, domain.Downstream})
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "min", "max":
		return sizeMessage(fe.Tag(), param, fe.Kind())
	case "gte":
		return "must be at least " + param
	case "lte":
		return "must be at most " + param
	default:
		return "failed validation: " + fe.Tag()
	}
}

// sizeMessage words min/max by what is being measured.
func sizeMessage(tag, param string, kind reflect.Kind) string {
	unit := ""

	switch kind {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}

	if tag == "min" {
		return "must have at least " + param + unit
	}

	return "must have at most " + param + unit
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}

	return strings.Join(parts, ", ")
}
