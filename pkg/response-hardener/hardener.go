package hardener

import "net/http"

// SecurityHeaders is the fixed set of headers applied to every hardened
// response. Values are forcibly set, overwriting whatever the origin sent.
var SecurityHeaders = map[string]string{
	"Content-Security-Policy":   "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; object-src 'none'; base-uri 'self'",
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
}

// server-identifying headers are removed outright
var strippedHeaders = []string{
	"Server",
	"X-Powered-By",
}

// Apply hardens the response headers in place.
// The body is never touched, so binary payloads pass through byte-for-byte.
func Apply(res *http.Response) {
	ApplyHeader(res.Header)
}

// ApplyHeader hardens a bare header map.
func ApplyHeader(h http.Header) {
	for name, value := range SecurityHeaders {
		h.Set(name, value)
	}
	for _, name := range strippedHeaders {
		h.Del(name)
	}
}
