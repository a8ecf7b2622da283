package fetchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Schema parses a raw JSON payload into T, failing with a *ValidationError
// when the payload does not conform. Implementations may coerce or transform
// the value; the returned T is what callers receive.
type Schema[T any] interface {
	Parse(raw []byte) (T, error)
}

// SchemaFunc adapts a plain function to Schema.
type SchemaFunc[T any] func(raw []byte) (T, error)

// Parse implements Schema.
func (f SchemaFunc[T]) Parse(raw []byte) (T, error) { return f(raw) }

// FetchWithSchemaValidation fetches req and parses the JSON body through
// schema. A validation failure is returned as the call's error so callers
// treat a malformed payload like any other failed fetch. Non-JSON or empty
// bodies are validated as null.
func FetchWithSchemaValidation[T any](ctx context.Context, c *Client, req Request, schema Schema[T]) (*Result[T], error) {
	if schema == nil {
		return nil, errors.New("fetch api: schema is required")
	}
	resp, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	result := newResult[T](resp)

	raw := []byte("null")
	if isJSONResponse(resp) && result.Text != "" {
		var syntaxCheck json.RawMessage
		if err := json.Unmarshal(resp.Body, &syntaxCheck); err != nil {
			return nil, fmt.Errorf("parse json response: %w", err)
		}
		raw = resp.Body
	}

	value, err := schema.Parse(raw)
	if err != nil {
		return nil, err
	}
	result.JSON = &value
	return result, nil
}

// FetchWithSchemaValidationInNonProduction validates only when the client is
// not in production mode, logging every violation before returning the error.
// In production the body is decoded into T without validation. A payload
// whose shape drifted from T is still returned: fields that do not fit keep
// their zero value and Text carries the raw body. Malformed JSON still fails.
//
// Deprecated: shape drift in production goes unnoticed with this variant. Use
// FetchWithSchemaValidation.
func FetchWithSchemaValidationInNonProduction[T any](ctx context.Context, c *Client, req Request, schema Schema[T]) (*Result[T], error) {
	if c != nil && c.production {
		return fetchUnvalidated[T](ctx, c, req)
	}

	result, err := FetchWithSchemaValidation(ctx, c, req, schema)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.log.ErrorObj("fetch api response failed schema validation", "schema_validation", map[string]any{
				"path":   req.Path,
				"issues": groupIssues(verr.Issues),
			})
		}
		return nil, err
	}
	return result, nil
}

// fetchUnvalidated decodes like Fetch but tolerates type mismatches.
func fetchUnvalidated[T any](ctx context.Context, c *Client, req Request) (*Result[T], error) {
	resp, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	result := newResult[T](resp)
	if !isJSONResponse(resp) || result.Text == "" {
		return result, nil
	}

	var v T
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("parse json response: %w", err)
		}
		c.log.DebugObj("fetch api decoded drifted payload", "schema_drift", map[string]any{
			"path":  req.Path,
			"field": typeErr.Field,
			"error": err.Error(),
		})
	}
	result.JSON = &v
	return result, nil
}

// groupIssues lists messages per field path; the root is keyed as "(root)".
func groupIssues(issues []Issue) map[string][]string {
	grouped := make(map[string][]string, len(issues))
	for _, issue := range issues {
		key := issue.Path
		if key == "" {
			key = "(root)"
		}
		grouped[key] = append(grouped[key], issue.Message)
	}
	return grouped
}
