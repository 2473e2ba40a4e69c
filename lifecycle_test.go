package shieldcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/shield-cache/shield-cache/generation"

	"github.com/rs/zerolog"
)

func newInterceptorForStore(t *testing.T, origin *httptest.Server, store generation.Store, gen string, assets []string) *Interceptor {
	t.Helper()
	originURL, err := url.Parse(origin.URL)
	if err != nil {
		t.Fatal(err)
	}
	nop := zerolog.Nop()
	ic, err := CreateInterceptor(Config{
		Store:      store,
		OriginURL:  *originURL,
		Generation: gen,
		Assets:     assets,
		Logger:     &nop,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ic
}

func TestInstallPopulatesAndActivates(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content of " + r.URL.Path))
	}))
	defer origin.Close()
	store := generation.NewMemoryStore()
	ic := newInterceptorForStore(t, origin, store, "v1", []string{"/", "/index.html"})

	if err := ic.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ic.CurrentGeneration() != "v1" {
		t.Fatalf("current generation is %q", ic.CurrentGeneration())
	}
	for _, path := range []string{"/", "/index.html"} {
		res, ok := ic.Cache().MatchPath("v1", path)
		if !ok {
			t.Fatalf("%s not cached", path)
		}
		res.Body.Close()
	}
}

func TestInstallFailsAtomicallyOnMissingAsset(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.html" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer origin.Close()
	store := generation.NewMemoryStore()
	ic := newInterceptorForStore(t, origin, store, "v1", []string{"/", "/index.html"})

	err := ic.Install(context.Background())
	if err == nil {
		t.Fatal("install should fail")
	}
	var fetchErr *AssetFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error is %T: %v", err, err)
	}
	if fetchErr.URL != "/index.html" {
		t.Fatalf("failing asset is %q", fetchErr.URL)
	}
	if ic.CurrentGeneration() != "" {
		t.Fatal("no generation should be current after a failed install")
	}
	gens, err := store.Generations()
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 0 {
		t.Fatalf("generations are %v", gens)
	}
}

func TestActivationEvictsStaleGenerations(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer origin.Close()
	store := generation.NewMemoryStore()

	v1 := newInterceptorForStore(t, origin, store, "v1", []string{"/"})
	if err := v1.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	v2 := newInterceptorForStore(t, origin, store, "v2", []string{"/"})
	if err := v2.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	gens, err := store.Generations()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gens, []string{"v2"}) {
		t.Fatalf("generations are %v", gens)
	}
}

func TestFailedUpgradeKeepsPreviousGeneration(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.js" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer origin.Close()
	store := generation.NewMemoryStore()

	v1 := newInterceptorForStore(t, origin, store, "v1", []string{"/"})
	if err := v1.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	v2 := newInterceptorForStore(t, origin, store, "v2", []string{"/", "/broken.js"})
	if err := v2.Install(context.Background()); err == nil {
		t.Fatal("upgrade install should fail")
	}

	gens, err := store.Generations()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gens, []string{"v1"}) {
		t.Fatalf("generations are %v", gens)
	}
	if v1.CurrentGeneration() != "v1" {
		t.Fatal("previous generation should remain active")
	}
	if v2.CurrentGeneration() != "" {
		t.Fatal("failed generation must not be current")
	}
}
