package httpclient

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// cacheDirectives maps fetch cache modes onto request Cache-Control values.
var cacheDirectives = map[string]string{
	"no-store": "no-store",
	"no-cache": "no-cache",
	"reload":   "no-cache",
}

// RestyOptions configures a RestyTransport.
type RestyOptions struct {
	Timeout time.Duration
	// Origin is the scheme://host the same-origin credentials mode compares against.
	Origin string
}

// RestyTransport adapts resty.Client to the httpclient.Client interface.
// It keeps a cookie-carrying client and a cookieless one so credentials
// modes can be honoured per request.
type RestyTransport struct {
	withCookies *resty.Client
	noCookies   *resty.Client
	origin      *url.URL
}

// NewRestyTransport creates a new RestyTransport with the specified options.
func NewRestyTransport(opts RestyOptions) *RestyTransport {
	withCookies := newRestyBaseClient(opts.Timeout)
	noCookies := newRestyBaseClient(opts.Timeout)
	noCookies.SetCookieJar(nil)

	t := &RestyTransport{withCookies: withCookies, noCookies: noCookies}
	if strings.TrimSpace(opts.Origin) != "" {
		if u, err := url.Parse(opts.Origin); err == nil && u.Host != "" {
			t.origin = u
		}
	}
	return t
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// Do performs the request and reads the full response body.
func (t *RestyTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	r := t.clientFor(req).R().SetContext(ctx)
	for key, values := range req.Header {
		for _, v := range values {
			r.Header.Add(key, v)
		}
	}
	if directive, ok := cacheDirectives[strings.ToLower(req.Cache)]; ok && r.Header.Get("Cache-Control") == "" {
		r.Header.Set("Cache-Control", directive)
	}

	switch {
	case req.Form != nil:
		r.Header.Del("Content-Type")
		r.SetMultipartFormData(map[string]string{})
		for key, values := range req.Form.Values {
			for _, v := range values {
				r.FormData.Add(key, v)
			}
		}
		for _, f := range req.Form.Files {
			r.SetFileReader(f.Field, f.FileName, f.Reader)
		}
	case req.Body != nil:
		r.SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = resty.MethodGet
	}

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, err
	}
	return &Response{
		URL:        req.URL,
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

// clientFor picks the client matching the request's credentials mode.
func (t *RestyTransport) clientFor(req *Request) *resty.Client {
	switch strings.ToLower(req.Credentials) {
	case CredentialsOmit:
		return t.noCookies
	case CredentialsInclude:
		return t.withCookies
	default:
		if t.sameOrigin(req.URL) {
			return t.withCookies
		}
		return t.noCookies
	}
}

// sameOrigin reports whether target shares scheme and host with the configured origin.
// Relative URLs are same-origin by definition.
func (t *RestyTransport) sameOrigin(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if !u.IsAbs() {
		return true
	}
	if t.origin == nil {
		return false
	}
	return strings.EqualFold(u.Scheme, t.origin.Scheme) && strings.EqualFold(u.Host, t.origin.Host)
}
