// Package fetchapi is a typed fetch wrapper for JSON REST APIs. It builds a
// request from a path, query params and body, negotiates JSON, multipart and
// CSRF headers, absorbs a closed set of transport quirks with single retries,
// parses Link pagination headers and decodes JSON bodies, optionally through a
// schema.
package fetchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/samvad-hq/fetchapi/pkg/httpclient"
)

const (
	fallbackDocumentURL = "http://localhost"
	defaultRetryDelay   = 200 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// DocumentURL is the location relative paths resolve against when the
	// transport insists on absolute URLs. Defaults to http://localhost.
	DocumentURL string
	Defaults    DefaultsProvider
	// Production disables the legacy non-production schema validation.
	Production bool
	// NetworkRetries is how many times DNS and connection failures are retried.
	// Zero disables it.
	NetworkRetries int
	RetryDelay     time.Duration
	Logger         Logger
}

// Client executes requests. It holds configuration only; every call owns its
// own request state, so a Client is safe for concurrent use.
type Client struct {
	transport      Transport
	documentURL    *url.URL
	defaults       DefaultsProvider
	production     bool
	networkRetries int
	retryDelay     time.Duration
	log            Logger
}

// Result is the normalized outcome of a successful call.
type Result[T any] struct {
	Text string
	// JSON is nil unless the response is application/json with a non-empty body.
	JSON     *T
	Response *httpclient.Response
	// Link is nil when the response has no Link header.
	Link Links
}

// NewClient builds a Client over transport. A nil transport gets a resty
// transport whose origin is the document URL.
func NewClient(transport Transport, opts Options) (*Client, error) {
	docURL := strings.TrimSpace(opts.DocumentURL)
	if docURL == "" {
		docURL = fallbackDocumentURL
	}
	parsed, err := url.Parse(docURL)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("document url %q must be absolute", opts.DocumentURL)
	}

	if transport == nil {
		transport = httpclient.NewRestyTransport(httpclient.RestyOptions{Origin: docURL})
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = StaticDefaults{Credentials: httpclient.CredentialsSameOrigin}
	}
	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	return &Client{
		transport:      transport,
		documentURL:    parsed,
		defaults:       defaults,
		production:     opts.Production,
		networkRetries: max(opts.NetworkRetries, 0),
		retryDelay:     delay,
		log:            log,
	}, nil
}

// Fetch executes req and decodes the response into T.
//
// A status outside 2xx yields a *FetchError. JSON is decoded only when the
// response declares application/json and the body is non-empty; a malformed
// body yields an error wrapping *json.SyntaxError. Nothing is cached.
func Fetch[T any](ctx context.Context, c *Client, req Request) (*Result[T], error) {
	resp, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	result := newResult[T](resp)
	if isJSONResponse(resp) && result.Text != "" {
		var v T
		if err := json.Unmarshal(resp.Body, &v); err != nil {
			return nil, fmt.Errorf("parse json response: %w", err)
		}
		result.JSON = &v
	}
	return result, nil
}

// execute runs the request and fails on non-2xx statuses.
func (c *Client) execute(ctx context.Context, req Request) (*httpclient.Response, error) {
	if c == nil || c.transport == nil {
		return nil, errors.New("fetch api client is not initialized")
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, errors.New("fetch api: path is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	prepared, err := prepare(req, c.defaults.DefaultFetchOptions())
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, prepared)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newFetchError(resp)
	}
	return resp, nil
}

// send tries the request as given, then retries once per recognised quirk.
func (c *Client) send(ctx context.Context, prepared *preparedRequest) (*httpclient.Response, error) {
	var urlRetried, realmRetried bool
	for {
		resp, err := c.attempt(ctx, prepared)
		if err == nil {
			return resp, nil
		}

		q := classifyQuirk(err)
		switch {
		case q == quirkAbsoluteURL && !urlRetried:
			urlRetried = true
			resolved, ok := c.resolve(prepared.base.URL)
			if !ok {
				return nil, err
			}
			prepared.base.URL = resolved
		case q == quirkCancellationRealm && !realmRetried:
			realmRetried = true
			ctx = context.WithoutCancel(ctx)
		default:
			return nil, err
		}
		c.log.DebugObj("fetch api retrying after transport quirk", "fetch_quirk", map[string]any{
			"quirk": q.String(),
			"url":   prepared.base.URL,
			"error": err.Error(),
		})
	}
}

// attempt performs one logical attempt, retrying network failures when enabled.
func (c *Client) attempt(ctx context.Context, prepared *preparedRequest) (*httpclient.Response, error) {
	if c.networkRetries == 0 {
		return c.transport.Do(ctx, prepared.build())
	}

	var resp *httpclient.Response
	err := retry.Do(
		func() error {
			r, err := c.transport.Do(ctx, prepared.build())
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.networkRetries)+1),
		retry.RetryIf(isNetworkError),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.WarnObj("fetch api network retry", "fetch_network_retry", map[string]any{
				"attempt": n + 1,
				"url":     prepared.base.URL,
				"error":   err.Error(),
			})
		}),
	)
	return resp, err
}

// resolve turns a relative URL absolute against the document URL.
func (c *Client) resolve(raw string) (string, bool) {
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return "", false
	}
	return c.documentURL.ResolveReference(ref).String(), true
}

func newResult[T any](resp *httpclient.Response) *Result[T] {
	return &Result[T]{
		Text:     string(resp.Body),
		Response: resp,
		Link:     ParseLinks(strings.Join(resp.Header.Values("Link"), ", ")),
	}
}

func isJSONResponse(resp *httpclient.Response) bool {
	ct := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if ct == "" {
		return false
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mediaType
	}
	return strings.HasPrefix(strings.ToLower(ct), contentTypeJSON)
}
