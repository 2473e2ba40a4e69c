package shieldcache

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shield-cache/shield-cache/generation"
	generationkey "github.com/shield-cache/shield-cache/pkg/generation-key"
	serializer "github.com/shield-cache/shield-cache/pkg/response-serializer"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// AssetFetcher fetches a same-origin path during install-time population.
type AssetFetcher func(ctx context.Context, path string) (*http.Response, error)

// GenerationCache gives the bytes-level generation.Store an HTTP face:
// it owns serialization of responses, request keying, and install-time
// population of the asset manifest.
type GenerationCache struct {
	store generation.Store
	fetch AssetFetcher
	log   zerolog.Logger
}

func NewGenerationCache(store generation.Store, fetch AssetFetcher, logger zerolog.Logger) *GenerationCache {
	return &GenerationCache{
		store: store,
		fetch: fetch,
		log:   logger,
	}
}

// Open idempotently creates the named generation.
func (g *GenerationCache) Open(id string) error {
	return g.store.Open(id)
}

// Populate fetches every asset in the manifest and stores it in the named
// generation. It fails atomically: if any asset is unreachable or comes
// back with an error status, nothing is written and an AssetFetchError is
// returned. Assets are fetched concurrently.
func (g *GenerationCache) Populate(ctx context.Context, id string, assets []string) error {
	results := make([][]byte, len(assets))
	grp, ctx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		i, asset := i, asset
		grp.Go(func() error {
			res, err := g.fetch(ctx, asset)
			if err != nil {
				return &AssetFetchError{URL: asset, Err: err}
			}
			defer res.Body.Close()
			if res.StatusCode >= 400 {
				return &AssetFetchError{URL: asset, Err: fmt.Errorf("unexpected status %d", res.StatusCode)}
			}
			bts, err := serializer.ResponseToBytes(res)
			if err != nil {
				return &AssetFetchError{URL: asset, Err: err}
			}
			results[i] = bts
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	if err := g.store.Open(id); err != nil {
		return err
	}
	for i, asset := range assets {
		key := generationkey.ForPath(asset)
		if err := g.store.Put(id, key, results[i]); err != nil {
			return err
		}
		g.log.Trace().Str("generation", id).Str("key", key).Msg("Stored manifest asset")
	}
	return nil
}

// Put stores a clone of the response keyed by the GET request.
// Non-GET requests are silently ignored, as are puts before any
// generation is active.
func (g *GenerationCache) Put(id string, r *http.Request, res *http.Response) error {
	if id == "" || r.Method != http.MethodGet {
		return nil
	}
	bts, err := serializer.ResponseToBytes(res)
	if err != nil {
		return err
	}
	key := generationkey.ForRequest(r)
	g.log.Trace().Str("generation", id).Str("key", key).Msg("Writing to cache")
	return g.store.Put(id, key, bts)
}

// Match returns the stored response for the request, if one exists.
// It never fails: storage errors count as a miss.
func (g *GenerationCache) Match(id string, r *http.Request) (*http.Response, bool) {
	return g.match(id, generationkey.ForRequest(r))
}

// MatchPath returns the stored response for a plain GET of the given path.
func (g *GenerationCache) MatchPath(id, path string) (*http.Response, bool) {
	return g.match(id, generationkey.ForPath(path))
}

func (g *GenerationCache) match(id, key string) (*http.Response, bool) {
	if id == "" {
		return nil, false
	}
	bts, ok, err := g.store.Get(id, key)
	if err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("Could not retrieve from cache")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	req, err := generationkey.RequestFromKey(key)
	if err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("Could not get request from key")
		return nil, false
	}
	res, err := serializer.BytesToResponse(bts, req)
	if err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("Could not read stored response")
		return nil, false
	}
	return res, true
}

// Generations lists every generation currently in the store.
func (g *GenerationCache) Generations() ([]string, error) {
	return g.store.Generations()
}

// Delete removes the named generation and all of its entries.
func (g *GenerationCache) Delete(id string) error {
	return g.store.Delete(id)
}
