package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/fetchapi/internal/config"
	"github.com/samvad-hq/fetchapi/internal/logger"
	"github.com/samvad-hq/fetchapi/pkg/fetchapi"
)

const defaultFetchMaxPages = 100

// FetchOptions describes one CLI request. At most one of JSONBody, RawBody and
// Form may be set.
type FetchOptions struct {
	Method   string
	Path     string
	Params   map[string]any
	Headers  map[string]string
	JSONBody string
	RawBody  string
	Form     map[string][]string
	OmitCSRF bool
	// SchemaFile is a JSON Schema every page must satisfy.
	SchemaFile string
	AllPages   bool
	MaxPages   int
}

// PageResult is the printable outcome of one request.
type PageResult struct {
	URL    string            `json:"url"`
	Status int               `json:"status"`
	Link   map[string]string `json:"link,omitempty"`
	JSON   json.RawMessage   `json:"json,omitempty"`
	Text   string            `json:"text,omitempty"`
}

// Fetcher is the one-shot runtime behind the apifetch command.
type Fetcher struct {
	client *fetchapi.Client
	log    logger.Logger
}

// NewFetcher builds a Fetcher from config, bootstrapping CSRF when configured.
func NewFetcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	client, err := newFetchClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return NewFetcherWithClient(client, log), nil
}

// NewFetcherWithClient wraps an existing client.
func NewFetcherWithClient(client *fetchapi.Client, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Fetcher{client: client, log: log}
}

// Do performs the request, following rel="next" when AllPages is set.
func (f *Fetcher) Do(ctx context.Context, opts FetchOptions) ([]PageResult, error) {
	if f == nil || f.client == nil {
		return nil, fmt.Errorf("fetcher is not initialized")
	}

	req, err := buildRequest(opts)
	if err != nil {
		return nil, err
	}
	var schema fetchapi.Schema[json.RawMessage]
	if opts.SchemaFile != "" {
		raw, err := os.ReadFile(opts.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("read schema file: %w", err)
		}
		if schema, err = fetchapi.CompileJSONSchema[json.RawMessage](raw); err != nil {
			return nil, fmt.Errorf("compile schema: %w", err)
		}
	}

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultFetchMaxPages
	}

	var results []PageResult
	for page := 1; page <= maxPages; page++ {
		res, err := f.fetch(ctx, req, schema)
		if err != nil {
			return results, err
		}
		results = append(results, toPageResult(res))

		next, ok := res.Link.Next()
		if !opts.AllPages || !ok {
			break
		}
		f.log.DebugObj("following next link", "fetch_page", map[string]any{"page": page + 1, "url": next.URL})
		// next links carry the full query; bodies are not replayed
		req = fetchapi.Request{Path: next.URL, Headers: req.Headers, OmitCSRFToken: req.OmitCSRFToken}
	}
	return results, nil
}

func (f *Fetcher) fetch(ctx context.Context, req fetchapi.Request, schema fetchapi.Schema[json.RawMessage]) (*fetchapi.Result[json.RawMessage], error) {
	if schema != nil {
		return fetchapi.FetchWithSchemaValidation(ctx, f.client, req, schema)
	}
	return fetchapi.Fetch[json.RawMessage](ctx, f.client, req)
}

func buildRequest(opts FetchOptions) (fetchapi.Request, error) {
	req := fetchapi.Request{
		Path:          strings.TrimSpace(opts.Path),
		Method:        strings.ToUpper(strings.TrimSpace(opts.Method)),
		Headers:       opts.Headers,
		Params:        opts.Params,
		OmitCSRFToken: opts.OmitCSRF,
	}

	bodies := 0
	if opts.JSONBody != "" {
		bodies++
		var body any
		if err := json.Unmarshal([]byte(opts.JSONBody), &body); err != nil {
			return req, fmt.Errorf("parse json body: %w", err)
		}
		req.Body = body
	}
	if opts.RawBody != "" {
		bodies++
		req.Body = opts.RawBody
	}
	if len(opts.Form) > 0 {
		bodies++
		form := fetchapi.NewFormData()
		for key, values := range opts.Form {
			for _, v := range values {
				if path, ok := strings.CutPrefix(v, "@"); ok {
					data, err := os.ReadFile(path)
					if err != nil {
						return req, fmt.Errorf("read form file: %w", err)
					}
					form.AddFile(key, filepath.Base(path), bytes.NewReader(data))
					continue
				}
				form.Add(key, v)
			}
		}
		req.Body = form
	}
	if bodies > 1 {
		return req, errors.New("only one of json body, raw body or form may be given")
	}
	return req, nil
}

func toPageResult(res *fetchapi.Result[json.RawMessage]) PageResult {
	out := PageResult{
		URL:    res.Response.URL,
		Status: res.Response.StatusCode,
	}
	if len(res.Link) > 0 {
		out.Link = make(map[string]string, len(res.Link))
		for rel, link := range res.Link {
			out.Link[rel] = link.URL
		}
	}
	if res.JSON != nil {
		out.JSON = *res.JSON
	} else {
		out.Text = res.Text
	}
	return out
}
