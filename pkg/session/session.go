// Package session holds the ambient request defaults of an authenticated
// browser-like session: the credentials mode and the CSRF headers a Rails
// style API expects on every call.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/fetchapi/pkg/fetchapi"
	"github.com/samvad-hq/fetchapi/pkg/httpclient"
)

const (
	// CSRFCookieName is the cookie some deployments mirror the token into.
	CSRFCookieName = "_csrf_token"
	csrfMetaSel    = `meta[name="csrf-token"]`

	requestedWithValue = "XMLHttpRequest"
	maxHTMLBodyBytes   = 1 << 20 // 1 MiB
)

// ErrTokenNotFound is returned by Bootstrap when the page carries no token.
var ErrTokenNotFound = errors.New("csrf token not found")

// Session is a fetchapi.DefaultsProvider. It is safe for concurrent use; the
// token may be refreshed while requests are in flight.
type Session struct {
	mu          sync.RWMutex
	credentials string
	token       string
}

// New returns a session using the given credentials mode and an optional
// pre-shared token. An empty mode means same-origin.
func New(credentials, token string) *Session {
	credentials = strings.ToLower(strings.TrimSpace(credentials))
	if credentials == "" {
		credentials = httpclient.CredentialsSameOrigin
	}
	return &Session{credentials: credentials, token: strings.TrimSpace(token)}
}

// Token returns the current CSRF token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken replaces the CSRF token.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

// DefaultFetchOptions implements fetchapi.DefaultsProvider. The CSRF header is
// only present once a token is known.
func (s *Session) DefaultFetchOptions() fetchapi.Defaults {
	s.mu.RLock()
	defer s.mu.RUnlock()

	headers := map[string]string{fetchapi.HeaderRequestedWith: requestedWithValue}
	if s.token != "" {
		headers[fetchapi.HeaderCSRFToken] = s.token
	}
	return fetchapi.Defaults{Credentials: s.credentials, Headers: headers}
}

// Bootstrap loads pageURL and adopts the CSRF token it advertises, either in
// the csrf-token meta tag or in the _csrf_token cookie. The meta tag wins.
func (s *Session) Bootstrap(ctx context.Context, transport httpclient.Client, pageURL string) (string, error) {
	if transport == nil {
		return "", errors.New("session bootstrap requires a transport")
	}

	resp, err := transport.Do(ctx, &httpclient.Request{
		Method:      http.MethodGet,
		URL:         pageURL,
		Header:      http.Header{"Accept": []string{"text/html"}},
		Credentials: s.credentials,
	})
	if err != nil {
		return "", fmt.Errorf("fetch csrf page: %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("fetch csrf page: status %d", resp.StatusCode)
	}

	token, err := tokenFromHTML(resp.Body)
	if err != nil {
		return "", err
	}
	if token == "" {
		token = tokenFromCookies(resp.Header)
	}
	if token == "" {
		return "", fmt.Errorf("%w at %s", ErrTokenNotFound, pageURL)
	}

	s.SetToken(token)
	return token, nil
}

func tokenFromHTML(body []byte) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	if node := doc.Find(csrfMetaSel).First(); node.Length() > 0 {
		if val, ok := node.Attr("content"); ok {
			return strings.TrimSpace(val), nil
		}
	}
	return "", nil
}

// tokenFromCookies reads the URL-encoded token cookie from Set-Cookie headers.
func tokenFromCookies(header http.Header) string {
	for _, c := range (&http.Response{Header: header}).Cookies() {
		if c.Name != CSRFCookieName {
			continue
		}
		if val, err := url.QueryUnescape(c.Value); err == nil {
			return strings.TrimSpace(val)
		}
		return strings.TrimSpace(c.Value)
	}
	return ""
}
