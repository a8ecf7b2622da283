package fetchapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	structValidatorOnce sync.Once
	structValidator     *validator.Validate
)

// structValidatorInstance returns the shared validator. Field names in
// errors use json tags.
func structValidatorInstance() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(jsonTagName)
	})
	return structValidator
}

func jsonTagName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}

// StructSchema decodes payloads into T and checks `validate` struct tags.
// T may be a struct, a pointer to one, or a slice of either.
type StructSchema[T any] struct {
	// Transform runs after validation and may reshape the value.
	Transform func(T) (T, error)
}

// NewStructSchema returns a StructSchema with an optional transform.
func NewStructSchema[T any](transform func(T) (T, error)) *StructSchema[T] {
	return &StructSchema[T]{Transform: transform}
}

// Parse implements Schema.
func (s *StructSchema[T]) Parse(raw []byte) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, NewValidationError(err, decodeIssue(err))
	}

	if issues, err := validateValue(reflect.ValueOf(out), ""); err != nil {
		return out, err
	} else if len(issues) > 0 {
		return out, NewValidationError(nil, issues...)
	}

	if s.Transform != nil {
		transformed, err := s.Transform(out)
		if err != nil {
			return out, NewValidationError(err, Issue{Message: err.Error()})
		}
		out = transformed
	}
	return out, nil
}

func validateValue(rv reflect.Value, prefix string) ([]Issue, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return validateValue(rv.Elem(), prefix)
	case reflect.Slice, reflect.Array:
		var issues []Issue
		for i := 0; i < rv.Len(); i++ {
			nested, err := validateValue(rv.Index(i), fmt.Sprintf("%s[%d]", prefix, i))
			if err != nil {
				return nil, err
			}
			issues = append(issues, nested...)
		}
		return issues, nil
	case reflect.Struct:
		err := structValidatorInstance().Struct(rv.Interface())
		if err == nil {
			return nil, nil
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, fmt.Errorf("validate payload: %w", err)
		}
		issues := make([]Issue, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			issues = append(issues, Issue{
				Path:    joinPath(prefix, stripRoot(fe.Namespace())),
				Message: fieldMessage(fe),
			})
		}
		return issues, nil
	}
	return nil, nil
}

// stripRoot drops the struct type name validator puts first in a namespace.
func stripRoot(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	}
	return prefix + "." + path
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
