package classifier

import (
	"net/http/httptest"
	"testing"
)

func TestSameOriginByHostHeader(t *testing.T) {
	c, err := New("http://app.example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest("GET", "/index.html", nil)
	r.Host = "app.example.com"
	if !c.SameOrigin(r) {
		t.Fatal("expected same-origin")
	}
	r.Host = "other.example.com"
	if c.SameOrigin(r) {
		t.Fatal("expected cross-origin")
	}
}

func TestSameOriginAbsoluteURL(t *testing.T) {
	c, err := New("http://app.example.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if !c.SameOrigin(httptest.NewRequest("GET", "http://app.example.com/a", nil)) {
		t.Fatal("expected same-origin")
	}
	if c.SameOrigin(httptest.NewRequest("GET", "https://app.example.com/a", nil)) {
		t.Fatal("scheme mismatch should be cross-origin")
	}
	if c.SameOrigin(httptest.NewRequest("GET", "http://app.example.com:8081/a", nil)) {
		t.Fatal("port mismatch should be cross-origin")
	}
}

func TestSameOriginDefaultPorts(t *testing.T) {
	c, err := New("http://app.example.com:80", "")
	if err != nil {
		t.Fatal(err)
	}
	if !c.SameOrigin(httptest.NewRequest("GET", "http://app.example.com/a", nil)) {
		t.Fatal("explicit default port should compare equal")
	}
}

func TestNavigation(t *testing.T) {
	r := httptest.NewRequest("GET", "/doc", nil)
	if IsNavigation(r) {
		t.Fatal("bare request is not a navigation")
	}
	r.Header.Set("Sec-Fetch-Mode", "navigate")
	if !IsNavigation(r) {
		t.Fatal("navigate fetch mode is a navigation")
	}
	r = httptest.NewRequest("GET", "/doc", nil)
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	if !IsNavigation(r) {
		t.Fatal("html-accepting request is a navigation")
	}
}

func TestSensitivePrefix(t *testing.T) {
	c, err := New("http://app.example.com", "/api/calendar")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Sensitive(httptest.NewRequest("GET", "/api/calendar/events", nil)) {
		t.Fatal("expected sensitive")
	}
	if c.Sensitive(httptest.NewRequest("GET", "/api/other", nil)) {
		t.Fatal("expected not sensitive")
	}
}

func TestOriginsEqual(t *testing.T) {
	if !OriginsEqual("http://a.example:80", "http://a.example") {
		t.Fatal("default port should compare equal")
	}
	if OriginsEqual("http://a.example", "http://b.example") {
		t.Fatal("different hosts should not compare equal")
	}
	// fail closed on anything unparseable
	if OriginsEqual("::not a url::", "::not a url::") {
		t.Fatal("malformed origins should never compare equal")
	}
	if OriginsEqual("", "http://a.example") {
		t.Fatal("empty origin should not compare equal")
	}
}
