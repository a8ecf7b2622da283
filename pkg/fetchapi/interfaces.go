package fetchapi

import (
	"github.com/samvad-hq/fetchapi/pkg/httpclient"
)

// Transport aliases the shared httpclient.Client interface; it is the
// underlying fetch primitive the Client drives.
type Transport = httpclient.Client

// FormData is a multipart payload. Bodies of this type never carry an explicit
// Content-Type so the transport can set the boundary.
type FormData = httpclient.Form

// NewFormData returns an empty multipart payload.
func NewFormData() *FormData { return httpclient.NewForm() }

// Defaults are the ambient request options every call starts from.
type Defaults struct {
	Credentials string
	Headers     map[string]string
}

// DefaultsProvider supplies ambient credentials mode and baseline headers
// (CSRF token, requested-with marker). The Client only reads from it.
type DefaultsProvider interface {
	DefaultFetchOptions() Defaults
}

// StaticDefaults is a DefaultsProvider returning a fixed value.
type StaticDefaults Defaults

// DefaultFetchOptions implements DefaultsProvider.
func (s StaticDefaults) DefaultFetchOptions() Defaults { return Defaults(s) }

// Logger defines the logging surface the client relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}
