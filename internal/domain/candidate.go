package domain

import "time"

// Candidate is a single feed entry before filtering and dedup. Constructed
// once per fetch, never persisted directly.
type Candidate struct {
	Title       string
	Link        string
	Description string
	FeedURL     string
	FeedLabel   string
	Categories  []string
	PublishedAt time.Time
	Media       MediaRefs
}

// MediaRefs carries the source-declared media fields a feed entry exposes,
// kept opaque until image extraction.
type MediaRefs struct {
	Enclosures []Enclosure
	Contents   []MediaItem
	Thumbnails []MediaItem
	RawHTML    string
}

// Enclosure mirrors an RSS <enclosure> reference.
type Enclosure struct {
	URL  string
	Type string
}

// MediaItem mirrors a media:content or media:thumbnail extension element.
type MediaItem struct {
	URL    string
	Medium string
}

// Fingerprint is the durable, hash-based identity of a piece of content.
// TitleHash is the sole authoritative dedup key; Link is a legacy secondary
// key and ContentHash is analytics-only.
type Fingerprint struct {
	TitleHash   string
	ContentHash string
	Link        string
	DomainHash  string
}

// Record is a Fingerprint plus provenance, persisted once per reserved
// fingerprint. Immutable after creation.
type Record struct {
	Fingerprint
	Title       string
	FeedURL     string
	Category    string
	TrendScore  int
	PostHour    int
	PublishedAt time.Time
	CreatedAt   time.Time
}

// PublishUnit bundles everything the channel publisher needs for one post.
type PublishUnit struct {
	ImageURLs []string
	Caption   string
}

// RunStats accumulates counters over a single invocation.
type RunStats struct {
	Checked     int
	SkipTime    int
	SkipFilter  int
	SkipDupe    int
	Posted      int
	Errors      int
	FeedsOK     int
	FeedsFailed int
}
