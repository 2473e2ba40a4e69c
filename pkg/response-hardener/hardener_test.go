package hardener

import (
	"bytes"
	"io"
	"net/http"
	"testing"
)

func TestApplyOverwritesExistingValues(t *testing.T) {
	res := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"X-Frame-Options": []string{"SAMEORIGIN"},
			"Content-Type":    []string{"text/html"},
		},
		Body: io.NopCloser(bytes.NewReader(nil)),
	}
	Apply(res)
	for name, value := range SecurityHeaders {
		if got := res.Header.Get(name); got != value {
			t.Fatalf("%s is %q, want %q", name, got, value)
		}
	}
	if got := res.Header.Get("Content-Type"); got != "text/html" {
		t.Fatalf("Content-Type is %q", got)
	}
}

func TestApplyRemovesServerIdentifyingHeaders(t *testing.T) {
	res := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Server":       []string{"nginx/1.23"},
			"X-Powered-By": []string{"Express"},
		},
		Body: io.NopCloser(bytes.NewReader(nil)),
	}
	Apply(res)
	if res.Header.Get("Server") != "" {
		t.Fatal("Server header should be removed")
	}
	if res.Header.Get("X-Powered-By") != "" {
		t.Fatal("X-Powered-By header should be removed")
	}
}

func TestApplyPreservesBinaryBody(t *testing.T) {
	payload := []byte{0x00, 0x89, 0x50, 0x4e, 0x47, 0xff, 0xfe, 0x0d, 0x0a}
	res := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"image/png"}},
		Body:       io.NopCloser(bytes.NewReader(payload)),
	}
	Apply(res)
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("body changed: %v", body)
	}
}
