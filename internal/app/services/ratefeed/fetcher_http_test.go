package ratefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agilewallet/backend/internal/app/domain/currency"
)

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "btc" || r.URL.Query().Get("quote") != "USD" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("expected auth header, got %q", got)
		}
		w.Write([]byte(`{"rate": 40250.5, "source": "test"}`))
	}))
	defer server.Close()

	fetcher, err := NewHTTPFetcher(server.Client(), server.URL, "token", nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	rate, source, err := fetcher.Fetch(context.Background(), currency.Currency{ID: "btc"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rate != 40250.5 || source != "test" {
		t.Fatalf("unexpected result rate=%v source=%s", rate, source)
	}
}

func TestHTTPFetcherRejectsBadResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate": 0}`))
	}))
	defer server.Close()

	fetcher, err := NewHTTPFetcher(server.Client(), server.URL, "", nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if _, _, err := fetcher.Fetch(context.Background(), currency.Currency{ID: "btc"}); err == nil {
		t.Fatal("expected error for non-positive rate")
	}

	if _, err := NewHTTPFetcher(nil, "relative/path", "", nil); err == nil {
		t.Fatal("expected error for non-absolute endpoint")
	}
}
