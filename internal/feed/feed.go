package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	"github.com/matheuskafuri/hrnews/internal/config"
	"github.com/matheuskafuri/hrnews/internal/retry"
)

// Article is one normalized feed entry. Never mutated after creation.
type Article struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Description string            `json:"description"`
	Content     string            `json:"content"`
	Source      config.FeedSource `json:"source"`
	PublishedAt time.Time         `json:"publishedAt"`
}

// Parser is the slice of gofeed.Parser the fetcher needs.
type Parser interface {
	ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error)
}

// Options selects the fetch mode and its window.
type Options struct {
	PerDay       bool
	TargetDate   string // YYYY-MM-DD; per-day mode only, empty means today
	LookbackDays int
	MaxResults   int // lookback mode only; per-day returns everything
}

type Fetcher struct {
	parser Parser
	policy retry.Policy
	now    func() time.Time
}

func New() *Fetcher {
	return NewWithParser(gofeed.NewParser(), retry.Default())
}

func NewWithParser(p Parser, policy retry.Policy) *Fetcher {
	return &Fetcher{parser: p, policy: policy, now: time.Now}
}

// Fetch pulls every feed registered for the topic, deduplicates entries by
// case-insensitive title (first occurrence wins, feeds in registry order) and
// keeps only entries inside the active window. A feed that fails to parse is
// logged and skipped; the whole fetch is retried only when every feed failed.
// An empty result is not an error.
func (f *Fetcher) Fetch(ctx context.Context, t config.Topic, opts Options) ([]Article, error) {
	var articles []Article
	err := f.policy.Do(ctx, func() error {
		var attemptErr error
		articles, attemptErr = f.fetchOnce(ctx, t, opts)
		return attemptErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching topic %q: %w", t.Name, err)
	}
	if len(articles) == 0 {
		log.Warn().Str("topic", t.Name).Msg("no articles found in registered feeds")
	}
	return articles, nil
}

type feedResult struct {
	feed *gofeed.Feed
	err  error
}

func (f *Fetcher) fetchOnce(ctx context.Context, t config.Topic, opts Options) ([]Article, error) {
	now := f.now()
	win := f.buildWindow(now, opts)

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 15
	}

	// Fan out one task per feed; a failing feed must not cancel its
	// siblings, so errors are collected rather than propagated.
	results := make([]feedResult, len(t.Feeds))
	var wg sync.WaitGroup
	for i, src := range t.Feeds {
		wg.Add(1)
		go func(i int, src config.FeedSource) {
			defer wg.Done()
			parsed, err := f.parser.ParseURLWithContext(src.URL, ctx)
			results[i] = feedResult{feed: parsed, err: err}
		}(i, src)
	}
	wg.Wait()

	failed := 0
	for i, r := range results {
		if r.err != nil {
			failed++
			log.Warn().
				Str("topic", t.Name).
				Str("feed", t.Feeds[i].Name).
				Err(r.err).
				Msg("skipping unreachable feed")
		}
	}
	if len(t.Feeds) > 0 && failed == len(t.Feeds) {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}

	// Merge strictly in registry order, entries in feed order, so the
	// first-occurrence-wins dedup stays deterministic under parallel fetch.
	var articles []Article
	seen := make(map[string]bool)
merge:
	for i, r := range results {
		if r.err != nil || r.feed == nil {
			continue
		}
		src := t.Feeds[i]
		for _, item := range r.feed.Items {
			title := strings.TrimSpace(item.Title)
			if title == "" || seen[strings.ToLower(title)] {
				continue
			}

			published, explicitZone := publishedTime(item, now)
			if !win.contains(published, explicitZone) {
				continue
			}

			seen[strings.ToLower(title)] = true
			articles = append(articles, Article{
				Title:       title,
				URL:         item.Link,
				Description: description(item),
				Content:     content(item),
				Source:      src,
				PublishedAt: published,
			})
			if !opts.PerDay && len(articles) >= maxResults {
				break merge
			}
		}
	}
	return articles, nil
}

// publishedTime resolves an entry's timestamp, substituting the current time
// when it is missing or unparseable. The boolean reports whether the raw feed
// value carried an explicit timezone.
func publishedTime(item *gofeed.Item, now time.Time) (time.Time, bool) {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed, hasExplicitZone(item.Published)
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed, hasExplicitZone(item.Updated)
	}
	return now, true
}

func description(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

func content(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}
