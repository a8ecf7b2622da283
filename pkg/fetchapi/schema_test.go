package fetchapi

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/samvad-hq/fetchapi/pkg/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const courseSchema = `{
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "integer"},
    "name": {"type": "string", "minLength": 1},
    "term": {
      "type": "object",
      "properties": {"id": {"type": "integer"}}
    }
  }
}`

type course struct {
	ID   int    `json:"id" validate:"required,gt=0"`
	Name string `json:"name" validate:"required"`
	Code string `json:"course_code,omitempty"`
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []map[string]any
}

func (l *recordingLogger) InfoObj(string, string, interface{})  {}
func (l *recordingLogger) DebugObj(string, string, interface{}) {}
func (l *recordingLogger) WarnObj(string, string, interface{})  {}
func (l *recordingLogger) ErrorObj(_ string, _ string, obj interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := obj.(map[string]any); ok {
		l.errors = append(l.errors, m)
	}
}

func jsonTransport(body string) *recordingTransport {
	return &recordingTransport{handle: func(int, context.Context, *httpclient.Request) (*httpclient.Response, error) {
		return okJSON(body), nil
	}}
}

func TestJSONSchemaParse(t *testing.T) {
	schema, err := CompileJSONSchema[course]([]byte(courseSchema))
	require.NoError(t, err)

	got, err := schema.Parse([]byte(`{"id": 7, "name": "Biology"}`))
	require.NoError(t, err)
	assert.Equal(t, course{ID: 7, Name: "Biology"}, got)

	_, err = schema.Parse([]byte(`{"id": "seven", "term": {"id": "x"}}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	paths := map[string]bool{}
	for _, issue := range verr.Issues {
		paths[issue.Path] = true
		assert.NotEmpty(t, issue.Message)
	}
	assert.True(t, paths["id"], "issues: %v", verr.Issues)
	assert.True(t, paths["term.id"], "issues: %v", verr.Issues)
}

func TestCompileJSONSchemaRejectsInvalidDocument(t *testing.T) {
	_, err := CompileJSONSchema[any]([]byte(`{"type": `))
	assert.Error(t, err)
}

func TestStructSchemaParse(t *testing.T) {
	schema := NewStructSchema[[]course](nil)

	got, err := schema.Parse([]byte(`[{"id":1,"name":"A"},{"id":2,"name":"B"}]`))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = schema.Parse([]byte(`[{"id":1,"name":"A"},{"id":0}]`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 2)
	assert.Equal(t, "[1].id", verr.Issues[0].Path)
	assert.Equal(t, "[1].name", verr.Issues[1].Path)

	_, err = schema.Parse([]byte(`[{"id":"1"}]`))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Issues[0].Path, "id")
}

func TestFetchWithSchemaValidationReturnsTransformedValue(t *testing.T) {
	c := newTestClient(t, jsonTransport(`{"id":3,"name":"  chemistry  "}`), Options{})
	schema := NewStructSchema(func(v course) (course, error) {
		v.Name = strings.ToUpper(strings.TrimSpace(v.Name))
		return v, nil
	})

	result, err := FetchWithSchemaValidation[course](context.Background(), c, Request{Path: "/api/v1/courses/3"}, schema)
	require.NoError(t, err)
	require.NotNil(t, result.JSON)
	assert.Equal(t, course{ID: 3, Name: "CHEMISTRY"}, *result.JSON)
	assert.Equal(t, `{"id":3,"name":"  chemistry  "}`, result.Text)
}

func TestFetchWithSchemaValidationRejectsViolations(t *testing.T) {
	c := newTestClient(t, jsonTransport(`{"id":3}`), Options{Production: true})
	schema, err := CompileJSONSchema[course]([]byte(courseSchema))
	require.NoError(t, err)

	result, err := FetchWithSchemaValidation[course](context.Background(), c, Request{Path: "/x"}, schema)
	assert.Nil(t, result)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestFetchWithSchemaValidationNonJSONValidatesNull(t *testing.T) {
	transport := &recordingTransport{handle: func(int, context.Context, *httpclient.Request) (*httpclient.Response, error) {
		resp := okJSON("plain")
		resp.Header.Set("Content-Type", "text/plain")
		return resp, nil
	}}
	c := newTestClient(t, transport, Options{})
	schema, err := CompileJSONSchema[course]([]byte(courseSchema))
	require.NoError(t, err)

	_, err = FetchWithSchemaValidation[course](context.Background(), c, Request{Path: "/x"}, schema)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestFetchWithSchemaValidationPropagatesFetchErrors(t *testing.T) {
	transport := &recordingTransport{handle: func(int, context.Context, *httpclient.Request) (*httpclient.Response, error) {
		return &httpclient.Response{StatusCode: 500, Status: "500 Internal Server Error"}, nil
	}}
	c := newTestClient(t, transport, Options{})
	schema := SchemaFunc[any](func([]byte) (any, error) {
		t.Fatal("schema must not run on failed fetch")
		return nil, nil
	})

	_, err := FetchWithSchemaValidation[any](context.Background(), c, Request{Path: "/x"}, schema)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 500, fetchErr.StatusCode)
}

func TestFetchWithSchemaValidationInNonProduction(t *testing.T) {
	schema, err := CompileJSONSchema[course]([]byte(courseSchema))
	require.NoError(t, err)

	t.Run("production skips validation", func(t *testing.T) {
		log := &recordingLogger{}
		c := newTestClient(t, jsonTransport(`{"id":4}`), Options{Production: true, Logger: log})

		result, err := FetchWithSchemaValidationInNonProduction[course](context.Background(), c, Request{Path: "/x"}, schema)
		require.NoError(t, err)
		assert.Equal(t, course{ID: 4}, *result.JSON)
		assert.Empty(t, log.errors)
	})

	t.Run("production returns drifted payloads", func(t *testing.T) {
		log := &recordingLogger{}
		body := `{"id":"four","name":"Art"}`
		c := newTestClient(t, jsonTransport(body), Options{Production: true, Logger: log})

		result, err := FetchWithSchemaValidationInNonProduction[course](context.Background(), c, Request{Path: "/x"}, schema)
		require.NoError(t, err)
		require.NotNil(t, result.JSON)
		assert.Equal(t, course{Name: "Art"}, *result.JSON)
		assert.Equal(t, body, result.Text)
		assert.Empty(t, log.errors)
	})

	t.Run("production still rejects malformed json", func(t *testing.T) {
		c := newTestClient(t, jsonTransport(`{"id":`), Options{Production: true})

		_, err := FetchWithSchemaValidationInNonProduction[course](context.Background(), c, Request{Path: "/x"}, schema)
		var syntaxErr *json.SyntaxError
		assert.ErrorAs(t, err, &syntaxErr)
	})

	t.Run("development logs and fails", func(t *testing.T) {
		log := &recordingLogger{}
		c := newTestClient(t, jsonTransport(`{"id":"four"}`), Options{Logger: log})

		_, err := FetchWithSchemaValidationInNonProduction[course](context.Background(), c, Request{Path: "/api/v1/x"}, schema)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, log.errors, 1)
		assert.Equal(t, "/api/v1/x", log.errors[0]["path"])
		grouped, ok := log.errors[0]["issues"].(map[string][]string)
		require.True(t, ok)
		assert.NotEmpty(t, grouped["id"])
	})

	t.Run("development passes valid payloads", func(t *testing.T) {
		c := newTestClient(t, jsonTransport(`{"id":5,"name":"Art"}`), Options{})
		result, err := FetchWithSchemaValidationInNonProduction[course](context.Background(), c, Request{Path: "/x"}, schema)
		require.NoError(t, err)
		assert.Equal(t, "Art", result.JSON.Name)
	})
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError(errors.New("cause"), Issue{Path: "id", Message: "required"}, Issue{Message: "bad"})
	assert.Equal(t, "schema validation failed: id: required; bad", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "cause")
}
