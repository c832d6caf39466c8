package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendPostsMessage(t *testing.T) {
	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Send(context.Background(), srv.Client(), srv.URL, "probe unreachable")
	if err != nil {
		t.Fatalf("Send() = %v; want nil", err)
	}
	if gotBody != "probe unreachable" {
		t.Fatalf("body = %q; want %q", gotBody, "probe unreachable")
	}
	if gotContentType != "text/plain" {
		t.Fatalf("content type = %q; want text/plain", gotContentType)
	}
}

func TestSendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := Send(context.Background(), srv.Client(), srv.URL, "x"); err == nil {
		t.Fatalf("Send() = nil; want error for 502")
	}
}
