package generationkey

import (
	"net/http/httptest"
	"testing"
)

func TestForRequestIncludesMethodAndQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/items?page=2", nil)
	if key := ForRequest(r); key != "GET:/api/items?page=2" {
		t.Fatalf("key is %q", key)
	}
}

func TestForPathMatchesGetRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/offline.html", nil)
	if ForRequest(r) != ForPath("/offline.html") {
		t.Fatal("path key should equal the GET request key")
	}
}

func TestRequestFromKeyRoundTrip(t *testing.T) {
	r := httptest.NewRequest("GET", "/a/b?c=d", nil)
	key := ForRequest(r)
	restored, err := RequestFromKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Method != "GET" || restored.URL.RequestURI() != "/a/b?c=d" {
		t.Fatalf("restored %s %s", restored.Method, restored.URL.RequestURI())
	}
}

func TestRequestFromKeyMalformed(t *testing.T) {
	if _, err := RequestFromKey("no-separator-here"); err == nil {
		t.Fatal("expected an error")
	}
}
