package bridge

import (
	"net/http"
	"net/url"
	"reflect"
	"testing"

	"apibridge/pkg/httpx"
)

func TestStripPrefix(t *testing.T) {
	cases := map[string]string{
		"/api/transactions": "/transactions",
		"/api":              "/",
		"/api/":             "/",
		"/api/api/x":        "/api/x",
		"/apix":             "/x",
		"/other/api/x":      "/other/api/x",
		"/":                 "/",
		"":                  "/",
	}
	for in, want := range cases {
		if got := StripPrefix(in); got != want {
			t.Errorf("StripPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeTransactionsMonth(t *testing.T) {
	r := &httpx.Request{
		Method: http.MethodGet,
		URL:    "/api/transactions?month=2024-05",
		Path:   "/api/transactions",
		Header: http.Header{"Accept": {"application/json"}},
	}
	got := Normalize(r)
	if got.Method != http.MethodGet {
		t.Fatalf("method changed: %q", got.Method)
	}
	if got.Path != "/transactions" {
		t.Fatalf("expected path /transactions got %q", got.Path)
	}
	if got.URL != "/transactions?month=2024-05" {
		t.Fatalf("expected url /transactions?month=2024-05 got %q", got.URL)
	}
	if !reflect.DeepEqual(got.Query, url.Values{"month": {"2024-05"}}) {
		t.Fatalf("unexpected query: %v", got.Query)
	}
	if got.Header.Get("Accept") != "application/json" {
		t.Fatalf("headers not carried over: %v", got.Header)
	}
	// the inbound request is left alone
	if r.URL != "/api/transactions?month=2024-05" || r.Path != "/api/transactions" || r.Query != nil {
		t.Fatalf("original request mutated: %+v", r)
	}
}

func TestNormalizeTargets(t *testing.T) {
	cases := []struct {
		in, url, path string
		query         url.Values
	}{
		{in: "/api", url: "/", path: "/", query: url.Values{}},
		{in: "/api?x=1", url: "/?x=1", path: "/", query: url.Values{"x": {"1"}}},
		{in: "/api/a%20b", url: "/a%20b", path: "/a b", query: url.Values{}},
		{in: "/api/items?tag=a&tag=b", url: "/items?tag=a&tag=b", path: "/items", query: url.Values{"tag": {"a", "b"}}},
		{in: "/api/items?bad=%zz&ok=1", url: "/items?bad=%zz&ok=1", path: "/items", query: url.Values{"ok": {"1"}}},
		{in: "/api/items?", url: "/items?", path: "/items", query: url.Values{}},
		{in: "/health", url: "/health", path: "/health", query: url.Values{}},
		{in: "//api/x", url: "//api/x", path: "//api/x", query: url.Values{}},
		{in: "//evil.example/api/admin?x=1", url: "//evil.example/api/admin?x=1", path: "//evil.example/api/admin", query: url.Values{"x": {"1"}}},
		{in: "/api//transactions", url: "//transactions", path: "//transactions", query: url.Values{}},
		{in: "http://host.example/api/x?y=2", url: "/x?y=2", path: "/x", query: url.Values{"y": {"2"}}},
	}
	for _, c := range cases {
		got := Normalize(&httpx.Request{Method: http.MethodGet, URL: c.in})
		if got.URL != c.url {
			t.Errorf("%q: url = %q, want %q", c.in, got.URL, c.url)
		}
		if got.Path != c.path {
			t.Errorf("%q: path = %q, want %q", c.in, got.Path, c.path)
		}
		if !reflect.DeepEqual(got.Query, c.query) {
			t.Errorf("%q: query = %v, want %v", c.in, got.Query, c.query)
		}
	}
}

func TestNormalizeUnparseableTarget(t *testing.T) {
	got := Normalize(&httpx.Request{Method: http.MethodGet, URL: "/api/100%?q=1"})
	if got.URL != "/100%?q=1" {
		t.Fatalf("unexpected url %q", got.URL)
	}
	if got.Query.Get("q") != "1" {
		t.Fatalf("unexpected query %v", got.Query)
	}
}
