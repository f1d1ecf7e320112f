// Package images extracts candidate illustration URLs for an entry through
// a fixed priority chain, ending with a best-effort fetch of the article
// page for its social-preview image. Zero results is a valid outcome; no
// failure here ever reaches the caller.
package images

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"fashionfeed/internal/domain"
	"fashionfeed/internal/ports"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// URLs containing any of these words pass the filter even without a known
// extension; CDNs routinely serve images from extension-less paths.
var imageKeywords = []string{"image", "photo", "img", "media", "cdn"}

// Known tracking and ad-network hosts; a 1x1 pixel makes a poor cover.
var trackerFragments = []string{
	"doubleclick.", "googlesyndication.", "google-analytics.",
	"adservice.", "/ads/", "pixel", "tracker", "feedburner.com/~ff",
}

// Lazy-load attributes checked on <img> elements, in order.
var lazyAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

// Resolver implements the extraction chain.
type Resolver struct {
	client    *http.Client
	maxImages int
	logger    *slog.Logger
}

var _ ports.ImageResolver = (*Resolver)(nil)

// NewResolver wires the page-fetch client; timeout bounds the og:image
// fallback request.
func NewResolver(client *http.Client, timeout time.Duration, maxImages int, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if maxImages <= 0 {
		maxImages = 5
	}
	return &Resolver{client: client, maxImages: maxImages, logger: logger}
}

// Resolve walks the priority chain until the cap is reached:
// enclosures, media:content, media:thumbnail, description <img> tags,
// then (only if still empty) the article page's og:image/twitter:image.
func (r *Resolver) Resolve(ctx context.Context, cand domain.Candidate) []string {
	c := newCollector(r.maxImages)

	for _, enc := range cand.Media.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") {
			c.add(enc.URL)
		}
	}

	if !c.full() {
		for _, m := range cand.Media.Contents {
			if m.Medium == "image" || hasImageExtension(m.URL) {
				c.add(m.URL)
			}
		}
	}

	if !c.full() {
		for _, m := range cand.Media.Thumbnails {
			c.add(m.URL)
		}
	}

	if !c.full() && cand.Media.RawHTML != "" {
		r.addFromHTML(c, cand.Media.RawHTML)
	}

	if c.empty() {
		if og := r.fetchPreviewImage(ctx, cand.Link); og != "" {
			c.add(og)
		}
	}

	if r.logger != nil {
		r.logger.Debug("images resolved", "link", cand.Link, "count", len(c.urls))
	}
	return c.urls
}

func (r *Resolver) addFromHTML(c *collector, rawHTML string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return
	}
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		for _, attr := range lazyAttrs {
			if src, ok := img.Attr(attr); ok && strings.HasPrefix(src, "http") {
				c.add(src)
				break
			}
		}
		return !c.full()
	})
}

// fetchPreviewImage pulls the article page and reads its social-preview
// metadata. Any transport or parse failure returns "".
func (r *Resolver) fetchPreviewImage(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := r.client.Do(req)
	if err != nil {
		r.warn("page fetch failed", "url", pageURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	for _, prop := range []string{"og:image", "twitter:image"} {
		sel := doc.Find(`meta[property="` + prop + `"]`).First()
		if sel.Length() == 0 {
			sel = doc.Find(`meta[name="` + prop + `"]`).First()
		}
		if content, ok := sel.Attr("content"); ok {
			content = strings.TrimSpace(content)
			if strings.HasPrefix(content, "http") {
				return content
			}
		}
	}
	return ""
}

func (r *Resolver) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

// collector dedups and validates URLs up to the cap.
type collector struct {
	urls []string
	seen map[string]struct{}
	cap  int
}

func newCollector(limit int) *collector {
	return &collector{seen: map[string]struct{}{}, cap: limit}
}

func (c *collector) add(raw string) {
	if c.full() {
		return
	}
	u := strings.TrimSpace(raw)
	if u == "" || !(strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")) {
		return
	}
	if _, dup := c.seen[u]; dup {
		return
	}
	lower := strings.ToLower(u)
	for _, frag := range trackerFragments {
		if strings.Contains(lower, frag) {
			return
		}
	}
	if !hasImageExtension(u) && !hasImageKeyword(lower) {
		return
	}
	c.seen[u] = struct{}{}
	c.urls = append(c.urls, u)
}

func (c *collector) full() bool  { return len(c.urls) >= c.cap }
func (c *collector) empty() bool { return len(c.urls) == 0 }

func hasImageExtension(u string) bool {
	path := strings.ToLower(u)
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func hasImageKeyword(lower string) bool {
	for _, kw := range imageKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
