package classifier

import (
	"net/http"
	"net/url"
	"strings"
)

// Classification is a pure function of the request; it is derived on
// every interception and never stored.
type Classification struct {
	SameOrigin bool
	Navigation bool
	Sensitive  bool
}

type Classifier struct {
	scheme string
	host   string
	// path prefix of the sensitive API, e.g. "/api/calendar"
	sensitivePrefix string
}

// New creates a classifier for the given own origin, e.g. "https://app.example.com".
// The sensitive prefix may be empty, in which case no request classifies as sensitive.
func New(origin, sensitivePrefix string) (Classifier, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return Classifier{}, err
	}
	return Classifier{
		scheme:          u.Scheme,
		host:            normalizeHost(u.Scheme, u.Host),
		sensitivePrefix: sensitivePrefix,
	}, nil
}

func (c Classifier) Classify(r *http.Request) Classification {
	return Classification{
		SameOrigin: c.SameOrigin(r),
		Navigation: IsNavigation(r),
		Sensitive:  c.Sensitive(r),
	}
}

// SameOrigin reports whether the request targets the classifier's own origin.
// Comparison is by scheme, host and port. A request whose target cannot be
// determined classifies as NOT same-origin.
func (c Classifier) SameOrigin(r *http.Request) bool {
	if r.URL == nil {
		return false
	}
	if r.URL.IsAbs() {
		return r.URL.Scheme == c.scheme &&
			normalizeHost(r.URL.Scheme, r.URL.Host) == c.host
	}
	// relative request URI: the target host is the Host header
	if r.Host == "" {
		return false
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme == c.scheme && normalizeHost(scheme, r.Host) == c.host
}

// Sensitive reports whether the request path falls under the sensitive API prefix.
func (c Classifier) Sensitive(r *http.Request) bool {
	if c.sensitivePrefix == "" || r.URL == nil {
		return false
	}
	return strings.HasPrefix(r.URL.Path, c.sensitivePrefix)
}

// IsNavigation reports whether the request loads a top-level document,
// either by declared fetch mode or by accepting HTML.
func IsNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// OriginsEqual compares two origin strings by scheme, host and port.
// A malformed origin on either side compares as not equal.
func OriginsEqual(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil || ua.Scheme == "" || ua.Host == "" {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil || ub.Scheme == "" || ub.Host == "" {
		return false
	}
	return ua.Scheme == ub.Scheme &&
		normalizeHost(ua.Scheme, ua.Host) == normalizeHost(ub.Scheme, ub.Host)
}

// normalizeHost appends the scheme's default port if the host has none,
// so "example.com" and "example.com:80" compare equal over http.
func normalizeHost(scheme, host string) string {
	if strings.LastIndex(host, ":") > strings.LastIndex(host, "]") {
		return host
	}
	switch scheme {
	case "http":
		return host + ":80"
	case "https":
		return host + ":443"
	}
	return host
}
