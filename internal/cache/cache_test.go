package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheuskafuri/hrnews/internal/feed"
)

func articles(titles ...string) []feed.Article {
	out := make([]feed.Article, len(titles))
	for i, title := range titles {
		out[i] = feed.Article{Title: title}
	}
	return out
}

// testClock drives an ArticleCache with a controllable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestArticleCache() (*ArticleCache, *testClock) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewArticleCache()
	c.now = clock.Now
	return c, clock
}

func TestArticleCachePutGet(t *testing.T) {
	c, _ := newTestArticleCache()

	if _, ok := c.Get("leadership", "2024-03-01"); ok {
		t.Fatal("expected miss on empty cache")
	}

	want := articles("One", "Two")
	c.Put("leadership", "2024-03-01", want)

	got, ok := c.Get("leadership", "2024-03-01")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 2 || got[0].Title != "One" {
		t.Errorf("unexpected cached value: %+v", got)
	}

	if _, ok := c.Get("leadership", "2024-03-02"); ok {
		t.Error("different day must be a distinct key")
	}
}

func TestArticleCacheTopicCaseInsensitive(t *testing.T) {
	c, _ := newTestArticleCache()
	c.Put("Leadership", "2024-03-01", articles("One"))
	if _, ok := c.Get("LEADERSHIP", "2024-03-01"); !ok {
		t.Error("topic key should be case-insensitive")
	}
}

func TestArticleCacheExpiry(t *testing.T) {
	c, clock := newTestArticleCache()
	c.Put("leadership", "2024-03-01", articles("One"))

	clock.Advance(ArticleTTL)
	if _, ok := c.Get("leadership", "2024-03-01"); !ok {
		t.Error("entry at exactly TTL should still be live")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("leadership", "2024-03-01"); ok {
		t.Error("entry past TTL should be invisible")
	}
}

func TestArticleCacheSweepOnPut(t *testing.T) {
	c, clock := newTestArticleCache()
	c.Put("leadership", "2024-03-01", articles("One"))
	c.Put("talent", "2024-03-01", articles("Two"))

	clock.Advance(ArticleTTL + time.Second)
	c.Put("culture", "2024-03-02", articles("Three"))

	c.mu.RLock()
	stored := len(c.entries)
	c.mu.RUnlock()
	if stored != 1 {
		t.Errorf("expected stale entries swept on Put, %d entries remain", stored)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 live entry, got %d", c.Len())
	}
}

func TestGetOrFetchMissThenHit(t *testing.T) {
	c, _ := newTestArticleCache()
	var calls int32

	fetch := func(ctx context.Context) ([]feed.Article, error) {
		atomic.AddInt32(&calls, 1)
		return articles("Fetched"), nil
	}

	got, hit, err := c.GetOrFetch(context.Background(), "leadership", "2024-03-01", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("first call must be a miss")
	}
	if len(got) != 1 || got[0].Title != "Fetched" {
		t.Errorf("unexpected result: %+v", got)
	}

	got, hit, err = c.GetOrFetch(context.Background(), "leadership", "2024-03-01", fetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hit {
		t.Error("second call must be a hit")
	}
	if len(got) != 1 {
		t.Errorf("unexpected result: %+v", got)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 fetch, got %d", n)
	}
}

func TestGetOrFetchCoalescesConcurrentCallers(t *testing.T) {
	c, _ := newTestArticleCache()

	var calls int32
	gate := make(chan struct{})
	fetch := func(ctx context.Context) ([]feed.Article, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return articles("Shared"), nil
	}

	const callers = 8
	results := make([][]feed.Article, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrFetch(context.Background(), "leadership", "2024-03-01", fetch)
		}(i)
	}

	// Let the callers pile onto the flight group before releasing the fetch.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected a single coalesced fetch, got %d", n)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if len(results[i]) != 1 || results[i][0].Title != "Shared" {
			t.Errorf("caller %d: unexpected result %+v", i, results[i])
		}
	}
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	c, _ := newTestArticleCache()
	boom := errors.New("feeds down")

	_, _, err := c.GetOrFetch(context.Background(), "leadership", "2024-03-01", func(ctx context.Context) ([]feed.Article, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed fetch must not populate the cache")
	}

	// A later successful fetch for the same key goes through.
	got, hit, err := c.GetOrFetch(context.Background(), "leadership", "2024-03-01", func(ctx context.Context) ([]feed.Article, error) {
		return articles("Recovered"), nil
	})
	if err != nil || hit {
		t.Fatalf("expected fresh fetch, hit=%v err=%v", hit, err)
	}
	if len(got) != 1 || got[0].Title != "Recovered" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestSummaryCache(t *testing.T) {
	c := NewSummaryCache()

	if _, ok := c.Get("Big Story", "leadership"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("Big Story", "leadership", "A summary.")
	got, ok := c.Get("Big Story", "leadership")
	if !ok || got != "A summary." {
		t.Errorf("got %q, ok=%v", got, ok)
	}

	// Same title under a different topic is a distinct entry.
	if _, ok := c.Get("Big Story", "talent"); ok {
		t.Error("topic must scope the key")
	}

	c.Put("Big Story", "leadership", "Revised.")
	if got, _ := c.Get("Big Story", "leadership"); got != "Revised." {
		t.Errorf("expected overwrite, got %q", got)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}
