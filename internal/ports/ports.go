package ports

import (
	"context"

	"fashionfeed/internal/domain"
)

// EntrySource pulls raw entries from one upstream feed. Transport and parse
// failures surface as an error so the run can count them, but an error never
// aborts the run; a confirmed-empty feed returns (nil, nil).
type EntrySource interface {
	Fetch(ctx context.Context, feedURL, label string) ([]domain.Candidate, error)
}

// HistoryStore owns the durable fingerprint records.
//
// BulkLoad seeds the in-memory known set; its error must be treated as "no
// information", not as "nothing exists". Exists fails open (false on any
// transport error). Create is the atomic reservation: true only on a clean
// create, false on conflict or any other failure.
type HistoryStore interface {
	BulkLoad(ctx context.Context, limit int) ([]domain.Fingerprint, error)
	Exists(ctx context.Context, field, value string) bool
	Create(ctx context.Context, rec domain.Record) bool
}

// ImageResolver produces zero or more usable image URLs for an entry.
// Best effort: transport failures shrink the result, never raise.
type ImageResolver interface {
	Resolve(ctx context.Context, cand domain.Candidate) []string
}

// Publisher executes the ordered delivery protocol for one unit. A nil
// return means the caption was delivered; decorative steps never affect it.
type Publisher interface {
	Publish(ctx context.Context, unit domain.PublishUnit) error
}
