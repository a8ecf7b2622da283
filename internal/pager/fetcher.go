package pager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/samvad-hq/fetchapi/pkg/endpoints"
	"github.com/samvad-hq/fetchapi/pkg/fetchapi"
)

// APIFetcher fetches pages through a fetchapi.Client, validating them against
// the endpoint's JSON Schema when one is configured.
type APIFetcher struct {
	client *fetchapi.Client

	mu      sync.Mutex
	schemas map[string]*fetchapi.JSONSchema[json.RawMessage]
}

// NewAPIFetcher wraps client.
func NewAPIFetcher(client *fetchapi.Client) *APIFetcher {
	return &APIFetcher{
		client:  client,
		schemas: make(map[string]*fetchapi.JSONSchema[json.RawMessage]),
	}
}

// FetchPage implements PageFetcher. Query params are only applied to the
// first page; next links already carry the full query.
func (f *APIFetcher) FetchPage(ctx context.Context, ep endpoints.Endpoint, path string, number int) (*Page, error) {
	req := fetchapi.Request{
		Path:    path,
		Method:  ep.Method,
		Headers: ep.Headers,
	}
	if number == 1 {
		req.Params = ep.Params
	}

	var (
		res *fetchapi.Result[json.RawMessage]
		err error
	)
	if ep.SchemaFile != "" {
		schema, serr := f.schema(ep.SchemaFile)
		if serr != nil {
			return nil, serr
		}
		res, err = fetchapi.FetchWithSchemaValidation[json.RawMessage](ctx, f.client, req, schema)
	} else {
		res, err = fetchapi.Fetch[json.RawMessage](ctx, f.client, req)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", number, err)
	}

	page := &Page{Number: number, Body: res.Text}
	if next, ok := res.Link.Next(); ok {
		page.Next = next.URL
	}
	return page, nil
}

// schema compiles each schema file once.
func (f *APIFetcher) schema(path string) (*fetchapi.JSONSchema[json.RawMessage], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.schemas[path]; ok {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	s, err := fetchapi.CompileJSONSchema[json.RawMessage](raw)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	f.schemas[path] = s
	return s, nil
}
