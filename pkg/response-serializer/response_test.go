package serializer

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newResponse(status int, header http.Header, body []byte) *http.Response {
	rec := httptest.NewRecorder()
	for k, vv := range header {
		rec.Header()[k] = vv
	}
	rec.WriteHeader(status)
	rec.Body.Write(body)
	return rec.Result()
}

func TestRoundTrip(t *testing.T) {
	body := []byte("hello world")
	res := newResponse(http.StatusOK, http.Header{"Content-Type": []string{"text/plain"}}, body)

	bts, err := ResponseToBytes(res)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := BytesToResponse(bts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if restored.StatusCode != http.StatusOK {
		t.Fatalf("status is %d", restored.StatusCode)
	}
	if ct := restored.Header.Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Content-Type is %q", ct)
	}
	restoredBody, err := io.ReadAll(restored.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(restoredBody, body) {
		t.Fatalf("body is %q", restoredBody)
	}
}

func TestSerializationKeepsResponseUsable(t *testing.T) {
	body := []byte{0x00, 0x01, 0xff, 0xfe}
	res := newResponse(http.StatusOK, nil, body)

	if _, err := ResponseToBytes(res); err != nil {
		t.Fatal(err)
	}
	// the original response must still carry its body after serialization
	after, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(after, body) {
		t.Fatalf("body is %v", after)
	}
}
