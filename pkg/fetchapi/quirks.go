package fetchapi

import (
	"context"
	"errors"
	"net"
	"regexp"
	"syscall"
)

// quirk is a transport failure that is known to be environmental rather than a
// real error, and that a single adjusted retry resolves.
type quirk int

const (
	quirkNone quirk = iota
	// quirkAbsoluteURL: the transport refuses relative URLs.
	quirkAbsoluteURL
	// quirkCancellationRealm: the transport rejects the caller's cancellation token.
	quirkCancellationRealm
)

func (q quirk) String() string {
	switch q {
	case quirkAbsoluteURL:
		return "absolute_url_required"
	case quirkCancellationRealm:
		return "cancellation_realm_mismatch"
	default:
		return "none"
	}
}

// Errors matching neither pattern propagate unchanged.
var (
	absoluteURLPattern       = regexp.MustCompile(`(?i)invalid url|only absolute urls|unsupported protocol scheme|no host in request url`)
	cancellationRealmPattern = regexp.MustCompile(`(?i)abortsignal|incompatible cancellation`)
)

func classifyQuirk(err error) quirk {
	if err == nil {
		return quirkNone
	}
	msg := err.Error()
	switch {
	case cancellationRealmPattern.MatchString(msg):
		return quirkCancellationRealm
	case absoluteURLPattern.MatchString(msg):
		return quirkAbsoluteURL
	default:
		return quirkNone
	}
}

// isNetworkError reports DNS and connection-level failures. Cancellation,
// deadlines and quirks are never network errors.
func isNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if classifyQuirk(err) != quirkNone {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
