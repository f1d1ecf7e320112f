// Package feed adapts RSS/Atom sources into domain candidates. All the
// shape inconsistency of upstream feeds (missing dates, media extensions,
// attribute-vs-element images) is absorbed here; the core never sees a raw
// feed item.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"fashionfeed/internal/domain"
	"fashionfeed/internal/ports"
)

// RetryPolicy bounds transient-failure retries for one feed.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Delay returns the exponential backoff before the given retry (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Fetcher pulls and parses one feed per call.
type Fetcher struct {
	parser  *gofeed.Parser
	retry   RetryPolicy
	timeout time.Duration
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration)
}

var _ ports.EntrySource = (*Fetcher)(nil)

// NewFetcher wires an HTTP client with a per-attempt timeout cap.
func NewFetcher(client *http.Client, timeout time.Duration, retry RetryPolicy, logger *slog.Logger) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "Mozilla/5.0 (compatible; FashionBot/2.0)"
	if client != nil {
		parser.Client = client
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Fetcher{
		parser:  parser,
		retry:   retry,
		timeout: timeout,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Fetch retrieves the feed with bounded retries. A gone/missing feed
// (404-class) is a confirmed-empty result, not an error, and is never
// retried. Exhausted retries return the last error so the run can count
// the source as failed.
func (f *Fetcher) Fetch(ctx context.Context, feedURL, label string) ([]domain.Candidate, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		parsed, err := f.parseOnce(ctx, feedURL)
		if err == nil {
			return f.mapItems(parsed, feedURL, label), nil
		}

		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusGone) {
			f.warn("feed confirmed empty", "url", feedURL, "status", httpErr.StatusCode)
			return nil, nil
		}

		lastErr = err
		if attempt < f.retry.MaxAttempts {
			f.warn("feed fetch retrying", "url", feedURL, "attempt", attempt, "error", err)
			f.sleep(ctx, f.retry.Delay(attempt))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) parseOnce(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	attemptCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return f.parser.ParseURLWithContext(feedURL, attemptCtx)
}

func (f *Fetcher) mapItems(feed *gofeed.Feed, feedURL, label string) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		description := item.Description
		if description == "" {
			description = item.Content
		}

		candidates = append(candidates, domain.Candidate{
			Title:       title,
			Link:        link,
			Description: description,
			FeedURL:     feedURL,
			FeedLabel:   label,
			Categories:  append([]string(nil), item.Categories...),
			PublishedAt: published,
			Media:       mapMedia(item, description),
		})
	}
	return candidates
}

func mapMedia(item *gofeed.Item, rawHTML string) domain.MediaRefs {
	refs := domain.MediaRefs{RawHTML: rawHTML}

	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		refs.Enclosures = append(refs.Enclosures, domain.Enclosure{
			URL:  enc.URL,
			Type: enc.Type,
		})
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			refs.Contents = append(refs.Contents, domain.MediaItem{
				URL:    ext.Attrs["url"],
				Medium: ext.Attrs["medium"],
			})
		}
		for _, ext := range media["thumbnail"] {
			refs.Thumbnails = append(refs.Thumbnails, domain.MediaItem{
				URL: ext.Attrs["url"],
			})
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		refs.Thumbnails = append(refs.Thumbnails, domain.MediaItem{URL: item.Image.URL})
	}

	return refs
}

func (f *Fetcher) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
