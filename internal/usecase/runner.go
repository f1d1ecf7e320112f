// Package usecase orchestrates one complete run: parallel feed fetch under
// a deadline, bulk dedup seed, then a strictly sequential decide/save/
// publish loop over candidates in recency order.
package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"fashionfeed/internal/caption"
	"fashionfeed/internal/config"
	"fashionfeed/internal/domain"
	"fashionfeed/internal/fingerprint"
	"fashionfeed/internal/ports"
	"fashionfeed/internal/relevance"
)

// RunnerDeps wires all driven adapters into the run orchestration.
type RunnerDeps struct {
	Source    ports.EntrySource
	Store     ports.HistoryStore
	Images    ports.ImageResolver
	Publisher ports.Publisher
	Filter    *relevance.Filter
	Logger    *slog.Logger

	// Now and Sleep default to the real clock; tests override them.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)
}

// Runner executes the batch schedule for one invocation.
type Runner struct {
	source    ports.EntrySource
	store     ports.HistoryStore
	images    ports.ImageResolver
	publisher ports.Publisher
	filter    *relevance.Filter
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration)

	feeds   []config.FeedConfig
	run     config.RunConfig
	caption config.CaptionConfig
}

// NewRunner constructs the orchestration component.
func NewRunner(deps RunnerDeps, feeds []config.FeedConfig, run config.RunConfig, capCfg config.CaptionConfig) *Runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Runner{
		source:    deps.Source,
		store:     deps.Store,
		images:    deps.Images,
		publisher: deps.Publisher,
		filter:    deps.Filter,
		logger:    deps.Logger,
		now:       now,
		sleep:     sleep,
		feeds:     feeds,
		run:       run,
		caption:   capCfg,
	}
}

// Run drives one invocation to completion and returns its counters.
// Exhausting candidates, reaching the post cap and breaching the time
// floor are all normal terminations, distinguished only in the summary.
func (r *Runner) Run(ctx context.Context) domain.RunStats {
	start := r.now()
	deadline := start.Add(r.run.Budget())
	stats := domain.RunStats{}

	candidates := r.fetchAll(ctx, deadline, &stats)
	sortByRecency(candidates)
	r.info("fetch phase done", "candidates", len(candidates), "feeds_ok", stats.FeedsOK, "feeds_failed", stats.FeedsFailed)

	known := r.seedKnown(ctx)

	r.processAll(ctx, deadline, candidates, known, &stats)

	r.info("run summary",
		"checked", stats.Checked,
		"skip_time", stats.SkipTime,
		"skip_filter", stats.SkipFilter,
		"skip_dupe", stats.SkipDupe,
		"posted", stats.Posted,
		"errors", stats.Errors,
	)
	return stats
}

// fetchAll dispatches every feed concurrently. Each fetch carries its own
// timeout inside the fetcher; the phase as a whole is clipped to the run
// deadline, and whatever arrived by then is the result.
func (r *Runner) fetchAll(ctx context.Context, deadline time.Time, stats *domain.RunStats) []domain.Candidate {
	phaseCtx, cancel := context.WithDeadline(ctx, deadline.Add(-r.run.MinFloor()))
	defer cancel()

	var (
		mu         sync.Mutex
		candidates []domain.Candidate
	)
	var wg sync.WaitGroup
	for _, feed := range r.feeds {
		wg.Add(1)
		go func(feed config.FeedConfig) {
			defer wg.Done()
			entries, err := r.source.Fetch(phaseCtx, feed.URL, feed.Label)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FeedsFailed++
				r.warn("feed failed", "feed", feed.Label, "url", feed.URL, "error", err)
				return
			}
			stats.FeedsOK++
			candidates = append(candidates, entries...)
		}(feed)
	}
	wg.Wait()

	return candidates
}

// seedKnown bulk-loads the known-fingerprint view. nil means the store
// gave no information; the per-item fallback and Create's conflict
// response then carry the dedup safety alone.
func (r *Runner) seedKnown(ctx context.Context) *knownSet {
	loadCtx, cancel := context.WithTimeout(ctx, r.run.FetchTimeout())
	defer cancel()

	prints, err := r.store.BulkLoad(loadCtx, r.run.HistoryLimit)
	if err != nil {
		r.warn("bulk load unavailable, relying on create conflicts", "error", err)
		return nil
	}

	set := newKnownSet()
	for _, fp := range prints {
		set.add(fp.TitleHash, fp.Link)
	}
	r.info("dedup seed loaded", "records", len(prints))
	return set
}

func (r *Runner) processAll(ctx context.Context, deadline time.Time, candidates []domain.Candidate, known *knownSet, stats *domain.RunStats) {
	horizon := r.now().Add(-r.run.AgeHorizon())
	inRun := newKnownSet()

	for _, cand := range candidates {
		remaining := deadline.Sub(r.now())
		if remaining < r.run.MinFloor() {
			r.info("time floor reached, stopping cleanly", "remaining", remaining)
			return
		}
		if stats.Posted >= r.run.MaxPostsPerRun {
			r.info("post cap reached", "posted", stats.Posted)
			return
		}

		stats.Checked++

		if cand.Title == "" || cand.Link == "" {
			continue
		}
		if !cand.PublishedAt.IsZero() && cand.PublishedAt.Before(horizon) {
			stats.SkipTime++
			continue
		}

		desc := caption.Truncate(caption.StripHTML(cand.Description), r.caption.MaxDescription)

		if !r.filter.IsRelevant(cand.Title, desc, cand.FeedURL, cand.FeedLabel) {
			stats.SkipFilter++
			continue
		}

		fp := domain.Fingerprint{
			TitleHash:   fingerprint.TitleHash(cand.Title),
			ContentHash: fingerprint.ContentHash(cand.Title),
			Link:        cand.Link,
			DomainHash:  fingerprint.DomainHash(cand.Link),
		}

		if r.isDuplicate(ctx, fp, known, inRun) {
			stats.SkipDupe++
			continue
		}
		inRun.add(fp.TitleHash, fp.Link)

		// Reservation: save must succeed before any publish attempt, so a
		// concurrent run racing on the same fingerprint never double-posts.
		if !r.store.Create(ctx, r.buildRecord(cand, fp, desc)) {
			stats.SkipDupe++
			continue
		}

		unit := r.buildUnit(ctx, deadline, cand, desc)

		if err := r.publisher.Publish(ctx, unit); err != nil {
			stats.Errors++
			r.warn("publish failed, reservation kept", "title", cand.Title, "error", err)
			continue
		}

		stats.Posted++
		r.info("posted", "title", cand.Title, "images", len(unit.ImageURLs))

		if stats.Posted < r.run.MaxPostsPerRun {
			if deadline.Sub(r.now()) > r.run.MinFloor()+r.run.InterPostDelay() {
				r.sleep(ctx, r.run.InterPostDelay())
			}
		}
	}
}

// isDuplicate consults, in order: the in-run set, the bulk-loaded view
// (title hash first, link as the legacy secondary key), and — only when
// the bulk load gave no information — per-item store lookups.
func (r *Runner) isDuplicate(ctx context.Context, fp domain.Fingerprint, known, inRun *knownSet) bool {
	if inRun.has(fp.TitleHash, fp.Link) {
		return true
	}
	if known != nil {
		return known.has(fp.TitleHash, fp.Link)
	}
	return r.store.Exists(ctx, "title_hash", fp.TitleHash) ||
		r.store.Exists(ctx, "link", fp.Link)
}

func (r *Runner) buildRecord(cand domain.Candidate, fp domain.Fingerprint, desc string) domain.Record {
	now := r.now().UTC()
	category := ""
	if len(cand.Categories) > 0 {
		category = cand.Categories[0]
	}
	published := cand.PublishedAt
	if published.IsZero() {
		published = now
	}
	return domain.Record{
		Fingerprint: fp,
		Title:       cand.Title,
		FeedURL:     cand.FeedURL,
		Category:    category,
		TrendScore:  r.filter.TrendScore(cand.Title, desc, cand.Categories),
		PostHour:    now.Hour(),
		PublishedAt: published,
		CreatedAt:   now,
	}
}

func (r *Runner) buildUnit(ctx context.Context, deadline time.Time, cand domain.Candidate, desc string) domain.PublishUnit {
	imgCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	return domain.PublishUnit{
		ImageURLs: r.images.Resolve(imgCtx, cand),
		Caption: caption.Build(cand.Title, desc, cand.Link, caption.Options{
			Channel:  r.caption.Channel,
			Hashtags: r.caption.Hashtags,
			MaxLen:   r.caption.MaxLen,
		}),
	}
}

// sortByRecency orders newest first; entries with no parseable date sort
// as oldest.
func sortByRecency(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].PublishedAt, candidates[j].PublishedAt
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.After(b)
	})
}

type knownSet struct {
	titles map[string]struct{}
	links  map[string]struct{}
}

func newKnownSet() *knownSet {
	return &knownSet{titles: map[string]struct{}{}, links: map[string]struct{}{}}
}

func (s *knownSet) add(titleHash, link string) {
	if titleHash != "" {
		s.titles[titleHash] = struct{}{}
	}
	if link != "" {
		s.links[link] = struct{}{}
	}
}

func (s *knownSet) has(titleHash, link string) bool {
	if _, ok := s.titles[titleHash]; ok {
		return true
	}
	_, ok := s.links[link]
	return ok
}

func (r *Runner) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Runner) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
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
