package fetchapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const inlineSchemaURL = "inline://schema"

// JSONSchema validates payloads against a compiled JSON Schema document and
// decodes valid payloads into T.
type JSONSchema[T any] struct {
	compiled *jsonschema.Schema
}

// CompileJSONSchema compiles a JSON Schema document. Only self references are
// resolvable.
func CompileJSONSchema[T any](schema []byte) (*JSONSchema[T], error) {
	if !json.Valid(schema) {
		return nil, errors.New("invalid JSON schema document")
	}

	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == inlineSchemaURL {
			return io.NopCloser(bytes.NewReader(schema)), nil
		}
		return nil, fmt.Errorf("unsupported schema ref: %s", url)
	}
	if err := compiler.AddResource(inlineSchemaURL, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(inlineSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &JSONSchema[T]{compiled: compiled}, nil
}

// Parse implements Schema.
func (s *JSONSchema[T]) Parse(raw []byte) (T, error) {
	var out T

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return out, NewValidationError(err, Issue{Message: "payload is not valid JSON: " + err.Error()})
	}

	if err := s.compiled.Validate(instance); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return out, NewValidationError(err, leafIssues(verr)...)
		}
		return out, fmt.Errorf("validate payload: %w", err)
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, NewValidationError(err, decodeIssue(err))
	}
	return out, nil
}

// leafIssues flattens a validation tree into its most specific causes.
func leafIssues(verr *jsonschema.ValidationError) []Issue {
	if len(verr.Causes) == 0 {
		return []Issue{{Path: pointerToPath(verr.InstanceLocation), Message: verr.Message}}
	}
	var issues []Issue
	for _, cause := range verr.Causes {
		issues = append(issues, leafIssues(cause)...)
	}
	return issues
}

// pointerToPath turns "/items/0/name" into "items.0.name".
func pointerToPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	segments := strings.Split(pointer, "/")
	for i, seg := range segments {
		seg = strings.ReplaceAll(seg, "~1", "/")
		segments[i] = strings.ReplaceAll(seg, "~0", "~")
	}
	return strings.Join(segments, ".")
}

// decodeIssue describes a json decode failure as an Issue.
func decodeIssue(err error) Issue {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return Issue{
			Path:    typeErr.Field,
			Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}
	}
	return Issue{Message: err.Error()}
}
