package shieldcache

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shield-cache/shield-cache/generation"
	sanitizer "github.com/shield-cache/shield-cache/pkg/json-sanitizer"
	classifier "github.com/shield-cache/shield-cache/pkg/request-classifier"
	hardener "github.com/shield-cache/shield-cache/pkg/response-hardener"

	"github.com/rs/zerolog"
)

// Mode selects the strategy family for intercepted same-origin GET requests.
type Mode string

const (
	// ModeNetworkFirst prefers fresh network responses, falls back to the
	// cache, and hardens every response it touches. This is the security
	// variant.
	ModeNetworkFirst Mode = "network-first"
	// ModeCacheFirst serves cached entries when present and only then goes
	// to the network. This is the static-shell variant.
	ModeCacheFirst Mode = "cache-first"
)

type Config struct {
	// Storage for cache generations.
	Store generation.Store
	// URL of the origin server.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Origin identity used for same-origin classification and control
	// message checks, e.g. the public address this interceptor serves on.
	// Defaults to OriginURL.
	PublicOrigin string
	// Identifier of the cache generation this build serves, e.g. "app-v3".
	Generation string
	// Paths fetched and cached verbatim during install.
	// Install fails if any of them is unreachable.
	Assets []string
	// Strategy family. Defaults to ModeNetworkFirst.
	Mode Mode
	// Path of the cached document served to navigations when both network
	// and cache fail. Used in network-first mode.
	OfflinePath string
	// Path of the cached shell document served to navigations.
	// Used in cache-first mode.
	ShellPath string
	// Requests under this path prefix get their JSON bodies sanitized.
	// Used in network-first mode.
	SensitivePrefix string
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Interceptor decides per request whether to serve from the current cache
// generation, fetch from the network, or combine the two, and transforms
// responses on the way out. It implements http.Handler.
type Interceptor struct {
	cache      *GenerationCache
	lifecycle  *Lifecycle
	notifier   *Notifier
	classifier classifier.Classifier
	mode       Mode
	origin     url.URL
	offline    string
	shell      string
	log        zerolog.Logger
	client     http.Client
}

// CreateInterceptor initializes the interception engine.
// Call Install to populate and activate the configured generation before
// serving traffic through it.
func CreateInterceptor(config Config) (*Interceptor, error) {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("origin", config.OriginURL.String()).
		Logger()

	publicOrigin := config.PublicOrigin
	if publicOrigin == "" {
		publicOrigin = config.OriginURL.String()
	}
	cls, err := classifier.New(publicOrigin, config.SensitivePrefix)
	if err != nil {
		return nil, err
	}

	mode := config.Mode
	if mode == "" {
		mode = ModeNetworkFirst
	}

	a := &Interceptor{
		classifier: cls,
		mode:       mode,
		origin:     config.OriginURL,
		offline:    config.OfflinePath,
		shell:      config.ShellPath,
		log:        logger,
		client: http.Client{
			// do not follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	a.cache = NewGenerationCache(config.Store, a.fetchPath, logger)
	a.notifier = NewNotifier(publicOrigin, func() string { return a.lifecycle.Current() }, logger)
	a.lifecycle = NewLifecycle(a.cache, config.Generation, config.Assets, a.notifier, logger)

	return a, nil
}

// Install populates the configured generation and, on success, activates
// it immediately, evicting every stale generation.
func (a *Interceptor) Install(ctx context.Context) error {
	return a.lifecycle.Install(ctx)
}

// CurrentGeneration returns the id of the active generation, or the empty
// string before the first successful install.
func (a *Interceptor) CurrentGeneration() string {
	return a.lifecycle.Current()
}

// Cache exposes the generation cache, mainly for inspection.
func (a *Interceptor) Cache() *GenerationCache {
	return a.cache
}

// Notifier exposes the control message hub.
func (a *Interceptor) Notifier() *Notifier {
	return a.notifier
}

// ServeHTTP implements the http.Handler interface.
// Routing precedence, first match wins: non-GET and cross-origin requests
// pass through untouched; navigations get the document strategy; sensitive
// API requests additionally get JSON sanitization; everything else gets
// the configured strategy family.
func (a *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// the generation is resolved once per request, so an install racing
	// with this handler cannot move lookups between generations
	gen := a.lifecycle.Current()
	cl := a.classifier.Classify(r)

	if r.Method != http.MethodGet || !cl.SameOrigin {
		a.passThrough(w, r)
		return
	}

	if a.mode == ModeCacheFirst {
		a.serveCacheFirst(w, r, gen, cl)
		return
	}

	switch {
	case cl.Navigation:
		a.serveNetworkFirst(w, r, gen, routeOptions{navigation: true})
	case cl.Sensitive:
		a.serveNetworkFirst(w, r, gen, routeOptions{sanitize: true})
	default:
		a.serveNetworkFirst(w, r, gen, routeOptions{})
	}
}

type routeOptions struct {
	navigation bool
	sanitize   bool
}

// serveCacheFirst serves the cached shell for navigations and cached
// entries for everything else, going to the network only on a miss.
// Successful network responses are stored into the current generation.
func (a *Interceptor) serveCacheFirst(w http.ResponseWriter, r *http.Request, gen string, cl classifier.Classification) {
	if cl.Navigation && a.shell != "" {
		if res, ok := a.cache.MatchPath(gen, a.shell); ok {
			cs := CacheStatus{}
			cs.Hit()
			a.send(w, r, res, cs)
			return
		}
	} else if res, ok := a.cache.Match(gen, r); ok {
		cs := CacheStatus{}
		cs.Hit()
		a.send(w, r, res, cs)
		return
	}

	res, err := a.fetch(r)
	if err != nil {
		// no cached fallback under cache-first: the network error propagates
		a.log.Error().Err(err).Str("url", r.URL.String()).Msg("Origin unreachable")
		http.Error(w, "could not reach origin", http.StatusBadGateway)
		return
	}
	cs := CacheStatus{}
	cs.Forward(fwdReasonMiss)
	if res.StatusCode < 400 {
		if err := a.cache.Put(gen, r, res); err != nil {
			a.log.Error().Err(err).Msg("Could not write to cache")
		} else {
			cs.Stored()
		}
	}
	a.send(w, r, res, cs)
}

// serveNetworkFirst tries the network, falling back to the cache, and
// hardens every response on the way out. A fresh network response always
// wins and overwrites the cache entry: under this strategy the cache is
// strictly a fallback, never a freshness source.
func (a *Interceptor) serveNetworkFirst(w http.ResponseWriter, r *http.Request, gen string, opt routeOptions) {
	res, err := a.fetch(r)
	if err == nil && res.StatusCode < http.StatusInternalServerError {
		cs := CacheStatus{}
		cs.Forward(fwdReasonMiss)
		if res.StatusCode < 400 {
			if err := a.cache.Put(gen, r, res); err != nil {
				a.log.Error().Err(err).Msg("Could not write to cache")
			} else {
				cs.Stored()
			}
		}
		a.transformAndSend(w, r, res, opt, cs)
		return
	}
	if err != nil {
		a.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Origin unreachable, trying cache")
	}

	if cached, ok := a.cache.Match(gen, r); ok {
		if res != nil {
			res.Body.Close()
		}
		cs := CacheStatus{}
		cs.Hit()
		cs.Detail("fallback")
		a.transformAndSend(w, r, cached, opt, cs)
		return
	}

	if res != nil {
		// server error and nothing cached: propagate it, hardened
		cs := CacheStatus{}
		cs.Forward(fwdReasonMiss)
		a.transformAndSend(w, r, res, opt, cs)
		return
	}

	a.sendUnreachable(w, r, gen, opt)
}

// sendUnreachable is the terminal failure path: neither network nor cache
// produced a response. Navigations get the offline page, sensitive API
// requests a synthesized JSON error, everything else a bare error. No
// error detail from the failure leaks into the body.
func (a *Interceptor) sendUnreachable(w http.ResponseWriter, r *http.Request, gen string, opt routeOptions) {
	switch {
	case opt.navigation:
		a.sendOffline(w, r, gen)
	case opt.sanitize:
		hardener.ApplyHeader(w.Header())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"service unavailable"}`))
	default:
		hardener.ApplyHeader(w.Header())
		http.Error(w, "could not reach origin", http.StatusBadGateway)
	}
}

const offlineDocument = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Offline</title></head>
<body><h1>You are offline</h1><p>This page is not available without a network connection.</p></body>
</html>
`

// sendOffline serves the configured offline document from the cache with
// status 503, or a minimal built-in page if none was cached.
func (a *Interceptor) sendOffline(w http.ResponseWriter, r *http.Request, gen string) {
	cs := CacheStatus{}
	cs.Forward(fwdReasonMiss)
	cs.Detail("offline")
	if a.offline != "" {
		if res, ok := a.cache.MatchPath(gen, a.offline); ok {
			defer res.Body.Close()
			copyHeader(w.Header(), res.Header)
			hardener.ApplyHeader(w.Header())
			w.Header().Set("Cache-Status", cs.String())
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := io.Copy(w, res.Body); err != nil {
				a.log.Error().Err(err).Msg("Could not write offline page to client")
			}
			a.logRequest(r, cs)
			return
		}
	}
	hardener.ApplyHeader(w.Header())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Status", cs.String())
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte(offlineDocument))
	a.logRequest(r, cs)
}

// transformAndSend hardens the response headers and, for sensitive API
// responses that carry JSON, sanitizes the body before sending.
func (a *Interceptor) transformAndSend(w http.ResponseWriter, r *http.Request, res *http.Response, opt routeOptions, cs CacheStatus) {
	hardener.Apply(res)
	if opt.sanitize && isJSON(res.Header.Get("Content-Type")) {
		a.sanitizeBody(res)
	}
	a.send(w, r, res, cs)
}

// sanitizeBody rewrites string values in a JSON response body.
// A body that does not parse as JSON passes through untouched: the
// sanitizer fails open, header hardening has already happened.
func (a *Interceptor) sanitizeBody(res *http.Response) {
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		a.log.Error().Err(err).Msg("Could not read response body for sanitization")
		res.Body = io.NopCloser(bytes.NewReader(nil))
		res.ContentLength = 0
		res.Header.Set("Content-Length", "0")
		return
	}
	clean, err := sanitizer.Body(body)
	if err != nil {
		a.log.Debug().Err(err).Msg("Response body is not valid JSON, passing through")
		res.Body = io.NopCloser(bytes.NewReader(body))
		return
	}
	res.Body = io.NopCloser(bytes.NewReader(clean))
	res.ContentLength = int64(len(clean))
	res.Header.Set("Content-Length", strconv.Itoa(len(clean)))
}

func (a *Interceptor) send(w http.ResponseWriter, r *http.Request, res *http.Response, cs CacheStatus) {
	defer res.Body.Close()
	copyHeader(w.Header(), res.Header)
	w.Header().Set("Cache-Status", cs.String())
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		a.log.Error().Err(err).Msg("Could not write response body to client")
	}
	a.logRequest(r, cs)
}

// passThrough pipes the request to the origin and returns the response
// untouched: no headers added, nothing cached.
func (a *Interceptor) passThrough(w http.ResponseWriter, r *http.Request) {
	res, err := a.fetch(r)
	if err != nil {
		a.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not pass request through")
		http.Error(w, "could not reach origin", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()
	copyHeader(w.Header(), res.Header)
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		a.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

// fetch the resource specified in the incoming request from the network.
// Same-origin requests go to the configured origin server; absolute
// cross-origin targets are fetched as addressed.
func (a *Interceptor) fetch(r *http.Request) (*http.Response, error) {
	target := a.origin.String() + r.URL.RequestURI()
	if r.URL.IsAbs() {
		target = r.URL.String()
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, r.Header)
	return a.client.Do(req)
}

// fetchPath fetches a same-origin path, used for install-time population.
func (a *Interceptor) fetchPath(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.origin.String()+path, nil)
	if err != nil {
		return nil, err
	}
	return a.client.Do(req)
}

func (a *Interceptor) logRequest(r *http.Request, cs CacheStatus) {
	isHit := 0
	if cs.IsHit() {
		isHit = 1
	}
	a.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("cacheStatus", cs.String()).
		Int("hit", isHit).
		Msg("Sending response to client")
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "+json")
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
