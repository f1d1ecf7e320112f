package appwrite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fashionfeed/internal/config"
	"fashionfeed/internal/domain"
)

func testConfig(endpoint string) config.AppwriteConfig {
	return config.AppwriteConfig{
		Endpoint:     endpoint,
		ProjectID:    "proj",
		APIKey:       "key",
		DatabaseID:   "db",
		CollectionID: "history",
		TimeoutSecs:  2,
	}
}

func TestExists(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Appwrite-Project") != "proj" || r.Header.Get("X-Appwrite-Key") != "key" {
			t.Errorf("auth headers missing: %v", r.Header)
		}
		if !strings.Contains(r.URL.Path, "/databases/db/collections/history/documents") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		queries := r.URL.Query()["queries[]"]
		if len(queries) == 0 || !strings.Contains(queries[0], `equal("link"`) {
			t.Errorf("unexpected queries: %v", queries)
		}
		_, _ = w.Write([]byte(`{"total": 1, "documents": []}`))
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), nil)
	if !c.Exists(context.Background(), "link", "https://example.ir/post/1") {
		t.Fatalf("expected exists=true for total=1")
	}
}

func TestExistsFailsOpen(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), nil)
	if c.Exists(context.Background(), "title_hash", "abc") {
		t.Fatalf("server error must read as not-found")
	}

	down := NewClient(testConfig("http://127.0.0.1:1"), nil)
	down.http.Timeout = 200 * time.Millisecond
	if down.Exists(context.Background(), "title_hash", "abc") {
		t.Fatalf("transport error must read as not-found")
	}
}

func TestCreateStatusMapping(t *testing.T) {
	t.Parallel()

	rec := domain.Record{
		Fingerprint: domain.Fingerprint{
			TitleHash:   strings.Repeat("a", 64),
			ContentHash: strings.Repeat("b", 64),
			Link:        "https://example.ir/post/1",
			DomainHash:  strings.Repeat("c", 64),
		},
		Title:       "عنوان",
		FeedURL:     "https://example.ir/feed",
		Category:    "Fashion",
		TrendScore:  40,
		PostHour:    9,
		PublishedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}

	for _, tc := range []struct {
		status int
		want   bool
	}{
		{http.StatusCreated, true},
		{http.StatusOK, true},
		{http.StatusConflict, false},
		{http.StatusUnauthorized, false},
		{http.StatusInternalServerError, false},
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload struct {
				DocumentID string          `json:"documentId"`
				Data       json.RawMessage `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			if len(payload.DocumentID) != documentIDLimit {
				t.Errorf("document id not truncated: %q", payload.DocumentID)
			}
			if !strings.HasPrefix(strings.Repeat("a", 64), payload.DocumentID) {
				t.Errorf("document id must derive from title hash: %q", payload.DocumentID)
			}
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{}`))
		}))

		c := NewClient(testConfig(server.URL), nil)
		if got := c.Create(context.Background(), rec); got != tc.want {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, got)
		}
		server.Close()
	}
}

func TestCreateFalseOnTransportError(t *testing.T) {
	t.Parallel()

	c := NewClient(testConfig("http://127.0.0.1:1"), nil)
	c.http.Timeout = 200 * time.Millisecond
	if c.Create(context.Background(), domain.Record{Fingerprint: domain.Fingerprint{TitleHash: "abc"}}) {
		t.Fatalf("transport failure must fail closed on save")
	}
}

func TestBulkLoadPages(t *testing.T) {
	t.Parallel()

	makeDoc := func(i int) string {
		return fmt.Sprintf(`{"title_hash":"th%d","content_hash":"ch%d","link":"https://example.ir/%d"}`, i, i, i)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries := r.URL.Query()["queries[]"]
		var offset int
		for _, q := range queries {
			_, _ = fmt.Sscanf(q, "offset(%d)", &offset)
		}

		var docs []string
		switch offset {
		case 0:
			for i := 0; i < 100; i++ {
				docs = append(docs, makeDoc(i))
			}
		case 100:
			for i := 100; i < 130; i++ {
				docs = append(docs, makeDoc(i))
			}
		}
		_, _ = fmt.Fprintf(w, `{"total": 130, "documents": [%s]}`, strings.Join(docs, ","))
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), nil)
	got, err := c.BulkLoad(context.Background(), 500)
	if err != nil {
		t.Fatalf("BulkLoad error: %v", err)
	}
	if len(got) != 130 {
		t.Fatalf("expected 130 fingerprints, got %d", len(got))
	}
	if got[0].TitleHash != "th0" || got[129].Link != "https://example.ir/129" {
		t.Fatalf("fields mis-mapped: first=%+v last=%+v", got[0], got[129])
	}
}

func TestBulkLoadHonorsLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries := r.URL.Query()["queries[]"]
		var limit int
		for _, q := range queries {
			_, _ = fmt.Sscanf(q, "limit(%d)", &limit)
		}
		var docs []string
		for i := 0; i < limit; i++ {
			docs = append(docs, fmt.Sprintf(`{"title_hash":"x%d","content_hash":"","link":""}`, i))
		}
		_, _ = fmt.Fprintf(w, `{"total": 1000, "documents": [%s]}`, strings.Join(docs, ","))
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), nil)
	got, err := c.BulkLoad(context.Background(), 150)
	if err != nil {
		t.Fatalf("BulkLoad error: %v", err)
	}
	if len(got) != 150 {
		t.Fatalf("limit not honored: got %d", len(got))
	}
}

func TestBulkLoadErrorIsNotEmptyResult(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL), nil)
	if _, err := c.BulkLoad(context.Background(), 100); err == nil {
		t.Fatalf("failure must surface as error, not an empty set")
	}
}
