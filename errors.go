package shieldcache

import "fmt"

// AssetFetchError reports a manifest asset that could not be fetched
// during install. It is fatal to the installation: the new generation is
// discarded and the previously active generation keeps serving.
type AssetFetchError struct {
	URL string
	Err error
}

func (e *AssetFetchError) Error() string {
	return fmt.Sprintf("could not fetch asset %s: %v", e.URL, e.Err)
}

func (e *AssetFetchError) Unwrap() error {
	return e.Err
}
