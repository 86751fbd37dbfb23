package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mslclient/internal/transport"
)

func TestPost_SendsBodyAndHeaders(t *testing.T) {
	var gotBody []byte
	var gotUA, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		gotBody, _ = io.ReadAll(r.Body)
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"headerdata":"x"}{"payload":"y","signature":"z"}`))
	}))
	defer srv.Close()

	tr, err := transport.NewHTTP(transport.Options{Timeout: 5 * time.Second, UserAgent: "msl-test"})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	status, body, err := tr.Post(context.Background(), srv.URL, []byte(`{"a":1}{"b":2}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if status != http.StatusTeapot {
		t.Fatalf("status = %d, non-2xx statuses must be returned, not converted", status)
	}
	if string(body) != `{"headerdata":"x"}{"payload":"y","signature":"z"}` {
		t.Fatalf("body = %q", body)
	}
	if string(gotBody) != `{"a":1}{"b":2}` || gotUA != "msl-test" || gotCT != "application/json" {
		t.Fatalf("server saw body=%q ua=%q ct=%q", gotBody, gotUA, gotCT)
	}
}

func TestPost_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr, err := transport.NewHTTP(transport.Options{})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := tr.Post(ctx, srv.URL, nil); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}

func TestNewHTTP_BadProxy(t *testing.T) {
	if _, err := transport.NewHTTP(transport.Options{Proxy: "://nope"}); err == nil {
		t.Fatalf("expected error for malformed proxy URL")
	}
}
