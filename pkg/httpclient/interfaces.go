package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credentials modes understood by transports.
const (
	CredentialsOmit       = "omit"
	CredentialsSameOrigin = "same-origin"
	CredentialsInclude    = "include"
)

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is a fully computed request handed to a transport.
type Request struct {
	Method      string
	URL         string
	Header      http.Header
	Body        []byte
	Form        *Form // multipart payload; Body is ignored when set
	Credentials string
	Cache       string
	Timeout     time.Duration
}

// Form is a multipart/form-data payload. The transport owns the boundary.
type Form struct {
	Values url.Values
	Files  []FormFile
}

// FormFile is a single file part of a Form.
type FormFile struct {
	Field    string
	FileName string
	Reader   io.Reader
}

// NewForm returns an empty multipart payload.
func NewForm() *Form {
	return &Form{Values: url.Values{}}
}

// Add appends a field value.
func (f *Form) Add(key, value string) *Form {
	if f.Values == nil {
		f.Values = url.Values{}
	}
	f.Values.Add(key, value)
	return f
}

// AddFile appends a file part.
func (f *Form) AddFile(field, fileName string, r io.Reader) *Form {
	f.Files = append(f.Files, FormFile{Field: field, FileName: fileName, Reader: r})
	return f
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

// StatusText returns the reason phrase, falling back to the standard text for the code.
func (r *Response) StatusText() string {
	if r == nil {
		return ""
	}
	if _, text, ok := strings.Cut(strings.TrimSpace(r.Status), " "); ok && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	return http.StatusText(r.StatusCode)
}
