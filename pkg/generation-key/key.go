package generationkey

import (
	"fmt"
	"net/http"
	"strings"
)

const methodSeparator = ":"

// ForRequest returns the cache key for a request within a generation.
// Only the method and request URI participate in the key; generation
// scoping is handled by the store itself.
func ForRequest(r *http.Request) string {
	return r.Method + methodSeparator + r.URL.RequestURI()
}

// ForPath returns the cache key for a plain GET of the given path.
func ForPath(path string) string {
	return http.MethodGet + methodSeparator + path
}

// RequestFromKey generates a caching-wise equal request to the request
// that resulted in the provided key.
// It returns an error if the request cannot for some reason be deducted.
func RequestFromKey(key string) (*http.Request, error) {
	method, uri, found := strings.Cut(key, methodSeparator)
	if !found {
		return nil, fmt.Errorf("malformed key: %s", key)
	}
	return http.NewRequest(method, uri, nil)
}
