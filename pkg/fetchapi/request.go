package fetchapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samvad-hq/fetchapi/pkg/httpclient"
)

// Headers stripped when a request opts out of the CSRF token. Either one
// forces a preflight on cross-origin requests.
const (
	HeaderCSRFToken     = "X-CSRF-Token"
	HeaderRequestedWith = "X-Requested-With"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
)

// Request describes a single call. It is built per call site and consumed once.
type Request struct {
	// Path is a URL path, optionally with a query string already attached.
	// Absolute URLs are accepted as well.
	Path    string
	Method  string
	Headers map[string]string
	// Params are appended to Path as a query string.
	Params map[string]any
	// Body is one of *FormData (multipart; a nil form sends no body), string
	// or []byte (sent as-is), or any other value, which is JSON encoded.
	Body any
	// OmitCSRFToken drops the CSRF and requested-with headers.
	OmitCSRFToken bool
	FetchOpts     FetchOpts
}

// FetchOpts are pass-through transport options. Headers, cancellation and
// credentials are always computed by the client and cannot be set here.
type FetchOpts struct {
	// Cache is a fetch cache mode: "default", "no-store", "reload", "no-cache".
	Cache   string
	Timeout time.Duration
}

// preparedRequest is a transport request that can be replayed for retries.
type preparedRequest struct {
	base  httpclient.Request
	files []bufferedFile
}

type bufferedFile struct {
	field, fileName string
	data            []byte
}

// prepare computes headers, body and final URL for req.
func prepare(req Request, defaults Defaults) (*preparedRequest, error) {
	header := http.Header{}
	for k, v := range defaults.Headers {
		header.Set(k, v)
	}
	for k, v := range req.Headers {
		header.Set(k, v)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	p := &preparedRequest{
		base: httpclient.Request{
			Method:      method,
			URL:         AppendQuery(req.Path, req.Params),
			Header:      header,
			Credentials: defaults.Credentials,
			Cache:       req.FetchOpts.Cache,
			Timeout:     req.FetchOpts.Timeout,
		},
	}

	switch body := req.Body.(type) {
	case nil:
	case *FormData:
		if body == nil {
			break
		}
		header.Del(headerContentType)
		if err := p.bufferForm(body); err != nil {
			return nil, err
		}
	case string:
		p.base.Body = []byte(body)
	case []byte:
		p.base.Body = body
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		p.base.Body = raw
		header.Set(headerContentType, contentTypeJSON)
	}

	if req.OmitCSRFToken {
		header.Del(HeaderCSRFToken)
		header.Del(HeaderRequestedWith)
	}
	return p, nil
}

// bufferForm reads file parts into memory so the form survives a retry.
func (p *preparedRequest) bufferForm(form *FormData) error {
	values := url.Values{}
	for k, vs := range form.Values {
		values[k] = append([]string(nil), vs...)
	}
	p.base.Form = &httpclient.Form{Values: values}
	for _, f := range form.Files {
		var data []byte
		if f.Reader != nil {
			var err error
			if data, err = io.ReadAll(f.Reader); err != nil {
				return fmt.Errorf("read form file %q: %w", f.Field, err)
			}
		}
		p.files = append(p.files, bufferedFile{field: f.Field, fileName: f.FileName, data: data})
	}
	return nil
}

// build returns a fresh transport request for one attempt.
func (p *preparedRequest) build() *httpclient.Request {
	req := p.base
	req.Header = p.base.Header.Clone()
	if p.base.Form != nil {
		form := &httpclient.Form{Values: p.base.Form.Values}
		for _, f := range p.files {
			form.AddFile(f.field, f.fileName, bytes.NewReader(f.data))
		}
		req.Form = form
	}
	return &req
}
