// Package appwrite implements the durable history store over the Appwrite
// document REST API. The backend's primary-key uniqueness on document IDs
// is the pipeline's only cross-run concurrency control: Create either
// cleanly reserves a fingerprint or reports it taken.
package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fashionfeed/internal/config"
	"fashionfeed/internal/domain"
	"fashionfeed/internal/ports"
)

// Appwrite rejects document IDs longer than 36 characters.
const documentIDLimit = 36

const bulkPageSize = 100

// Client is a thin wrapper over the documents endpoint; no SDK involved.
type Client struct {
	docsURL string
	project string
	key     string
	http    *http.Client
	logger  *slog.Logger
}

var _ ports.HistoryStore = (*Client)(nil)

// NewClient builds the collection documents URL once.
func NewClient(cfg config.AppwriteConfig, logger *slog.Logger) *Client {
	docsURL := fmt.Sprintf("%s/databases/%s/collections/%s/documents",
		strings.TrimSuffix(cfg.Endpoint, "/"), cfg.DatabaseID, cfg.CollectionID)
	return &Client{
		docsURL: docsURL,
		project: cfg.ProjectID,
		key:     cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
	}
}

type documentFields struct {
	Link        string `json:"link"`
	Title       string `json:"title"`
	TitleHash   string `json:"title_hash"`
	ContentHash string `json:"content_hash"`
	FeedURL     string `json:"feed_url"`
	PublishedAt string `json:"published_at"`
	SourceType  string `json:"source_type"`
	Category    string `json:"category"`
	TrendScore  int    `json:"trend_score"`
	PostHour    int    `json:"post_hour"`
	DomainHash  string `json:"domain_hash"`
}

type listResponse struct {
	Total     int              `json:"total"`
	Documents []documentFields `json:"documents"`
}

// BulkLoad pages through the collection newest-first and returns up to
// limit dedup fingerprints. Any transport failure or non-200 returns an
// error: the caller must treat that as "no information", never as empty.
func (c *Client) BulkLoad(ctx context.Context, limit int) ([]domain.Fingerprint, error) {
	var out []domain.Fingerprint
	for offset := 0; len(out) < limit; offset += bulkPageSize {
		pageLimit := bulkPageSize
		if remaining := limit - len(out); remaining < pageLimit {
			pageLimit = remaining
		}

		page, err := c.listPage(ctx, pageLimit, offset)
		if err != nil {
			return nil, fmt.Errorf("bulk load at offset %d: %w", offset, err)
		}
		for _, doc := range page {
			out = append(out, domain.Fingerprint{
				TitleHash:   doc.TitleHash,
				ContentHash: doc.ContentHash,
				Link:        doc.Link,
			})
		}
		if len(page) < pageLimit {
			break
		}
	}
	return out, nil
}

func (c *Client) listPage(ctx context.Context, limit, offset int) ([]documentFields, error) {
	queries := []string{
		fmt.Sprintf("limit(%d)", limit),
		fmt.Sprintf("offset(%d)", offset),
		`orderDesc("$createdAt")`,
		`select(["title_hash","content_hash","link"])`,
	}

	var resp listResponse
	if err := c.get(ctx, queries, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// Exists runs a point query for one field/value pair. It fails open: any
// transport error or unexpected status reads as "not found", so a down
// database slows nothing — Create remains the authority.
func (c *Client) Exists(ctx context.Context, field, value string) bool {
	queries := []string{
		fmt.Sprintf(`equal("%s", [%q])`, field, value),
		"limit(1)",
	}

	var resp listResponse
	if err := c.get(ctx, queries, &resp); err != nil {
		c.warn("existence check failed open", "field", field, "error", err)
		return false
	}
	return resp.Total > 0
}

// Create reserves the fingerprint by inserting a document whose ID is the
// title hash (truncated to the backend's ceiling). True only on a clean
// 2xx; a 409 means another run already holds the fingerprint, and every
// other failure reads the same way — the caller must not publish.
func (c *Client) Create(ctx context.Context, rec domain.Record) bool {
	docID := rec.TitleHash
	if len(docID) > documentIDLimit {
		docID = docID[:documentIDLimit]
	}

	payload := map[string]any{
		"documentId": docID,
		"data": documentFields{
			Link:        truncateRunes(rec.Link, 1000),
			Title:       truncateRunes(rec.Title, 500),
			TitleHash:   rec.TitleHash,
			ContentHash: rec.ContentHash,
			FeedURL:     truncateRunes(rec.FeedURL, 500),
			PublishedAt: rec.PublishedAt.UTC().Format(time.RFC3339),
			SourceType:  "rss",
			Category:    truncateRunes(rec.Category, 50),
			TrendScore:  rec.TrendScore,
			PostHour:    rec.PostHour,
			DomainHash:  rec.DomainHash,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.warn("marshal record", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.docsURL, bytes.NewReader(body))
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.warn("save failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true
	case resp.StatusCode == http.StatusConflict:
		c.info("fingerprint already reserved", "id", docID)
		return false
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		c.warn("save rejected", "status", resp.Status, "body", strings.TrimSpace(string(snippet)))
		return false
	}
}

func (c *Client) get(ctx context.Context, queries []string, v any) error {
	params := url.Values{}
	for _, q := range queries {
		params.Add("queries[]", q)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.docsURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Appwrite-Project", c.project)
	req.Header.Set("X-Appwrite-Key", c.key)
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
