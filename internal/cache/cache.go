// Package cache holds the two in-process cache tiers of the pipeline: the
// per-topic-per-day article cache and the per-article summary cache. Both are
// explicit services injected into their callers, never package globals.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matheuskafuri/hrnews/internal/feed"
)

// ArticleTTL is the wall-clock retention of an article cache entry.
const ArticleTTL = 24 * time.Hour

type articleEntry struct {
	articles  []feed.Article
	createdAt time.Time
}

// ArticleCache stores fetch results keyed by (topic, calendar day). Entries
// older than ArticleTTL are invisible to readers and swept on every Put.
type ArticleCache struct {
	mu      sync.RWMutex
	entries map[string]articleEntry
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

func NewArticleCache() *ArticleCache {
	return &ArticleCache{
		entries: make(map[string]articleEntry),
		ttl:     ArticleTTL,
		now:     time.Now,
	}
}

func articleKey(topic, day string) string {
	return strings.ToLower(topic) + ":" + day
}

// Get returns the cached list for (topic, day), treating stale entries as
// absent.
func (c *ArticleCache) Get(topic, day string) ([]feed.Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[articleKey(topic, day)]
	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.articles, true
}

// Put stores the list for (topic, day) and lazily sweeps every stale entry.
func (c *ArticleCache) Put(topic, day string, articles []feed.Article) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) > c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[articleKey(topic, day)] = articleEntry{articles: articles, createdAt: now}
}

// GetOrFetch returns the cached list for (topic, day) or runs fetch and
// stores the result. Concurrent callers for the same key coalesce onto a
// single in-flight fetch. The boolean reports a cache hit.
func (c *ArticleCache) GetOrFetch(ctx context.Context, topic, day string, fetch func(context.Context) ([]feed.Article, error)) ([]feed.Article, bool, error) {
	if articles, ok := c.Get(topic, day); ok {
		return articles, true, nil
	}

	type fetched struct {
		articles []feed.Article
		hit      bool
	}
	v, err, _ := c.group.Do(articleKey(topic, day), func() (interface{}, error) {
		// A sibling caller may have populated the entry while this call
		// waited on the flight group.
		if articles, ok := c.Get(topic, day); ok {
			return fetched{articles: articles, hit: true}, nil
		}
		articles, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(topic, day, articles)
		return fetched{articles: articles}, nil
	})
	if err != nil {
		return nil, false, err
	}
	f := v.(fetched)
	return f.articles, f.hit, nil
}

// Len reports the number of live entries.
func (c *ArticleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if c.now().Sub(e.createdAt) <= c.ttl {
			n++
		}
	}
	return n
}

// SummaryCache stores generated summaries keyed by (article title, topic).
// Keying by title rather than URL collapses the same headline reported by
// different feeds onto one summary. Entries never expire.
type SummaryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewSummaryCache() *SummaryCache {
	return &SummaryCache{entries: make(map[string]string)}
}

func summaryKey(title, topic string) string {
	return title + ":" + topic
}

func (c *SummaryCache) Get(title, topic string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[summaryKey(title, topic)]
	return s, ok
}

func (c *SummaryCache) Put(title, topic, summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[summaryKey(title, topic)] = summary
}

// Len reports the number of cached summaries.
func (c *SummaryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
