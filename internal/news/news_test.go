package news

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/matheuskafuri/hrnews/internal/cache"
	"github.com/matheuskafuri/hrnews/internal/config"
	"github.com/matheuskafuri/hrnews/internal/feed"
	"github.com/matheuskafuri/hrnews/internal/history"
	"github.com/matheuskafuri/hrnews/internal/prompt"
	"github.com/matheuskafuri/hrnews/internal/retry"
	"github.com/matheuskafuri/hrnews/internal/summarize"
)

type stubParser struct {
	mu    sync.Mutex
	calls int
	feed  *gofeed.Feed
	err   error
}

func (s *stubParser) ParseURLWithContext(feedURL string, ctx context.Context) (*gofeed.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.feed, nil
}

func (s *stubParser) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeAI struct {
	mu          sync.Mutex
	summarizeFn func(content string) (string, error)
}

func (f *fakeAI) Summarize(ctx context.Context, model, systemPrompt, content string) (string, error) {
	f.mu.Lock()
	fn := f.summarizeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(content)
	}
	return "a summary", nil
}

func (f *fakeAI) Tag(ctx context.Context, content string, allowed []string) (string, error) {
	return "Leadership", nil
}

func todayFeed(titles ...string) *gofeed.Feed {
	published := time.Now()
	items := make([]*gofeed.Item, len(titles))
	for i, title := range titles {
		p := published
		items[i] = &gofeed.Item{Title: title, Link: "https://example.com/" + title, Description: "about " + title, PublishedParsed: &p}
	}
	return &gofeed.Feed{Items: items}
}

func staleFeed() *gofeed.Feed {
	published := time.Now().Add(-72 * time.Hour)
	return &gofeed.Feed{Items: []*gofeed.Item{
		{Title: "Old News", Link: "https://example.com/old", PublishedParsed: &published},
	}}
}

func writeTestPrompts(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.json")
	if err := os.WriteFile(path, []byte(`{"NEWS_SUMMARIZER": "You are an HR analyst."}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(t *testing.T, parser *stubParser, client *fakeAI) *Service {
	t.Helper()
	cfg := &config.Config{
		PromptFile: writeTestPrompts(t),
		Topics: []config.Topic{
			{Name: "hr strategy and leadership", Tag: "Leadership", Feeds: []config.FeedSource{{Name: "Feed A", URL: "https://a.example/rss"}}},
			{Name: "talent acquisition and labor trends", Tag: "Talent", Feeds: []config.FeedSource{{Name: "Feed B", URL: "https://b.example/rss"}}},
		},
	}

	policy := retry.Policy{MaxAttempts: 1, MinBackoff: time.Microsecond, MaxBackoff: time.Microsecond}
	fetcher := feed.NewWithParser(parser, policy)
	orch := summarize.NewOrchestrator(client, cache.NewSummaryCache(), policy, 2)

	return NewService(cfg, fetcher, cache.NewArticleCache(), prompt.NewStore(), orch, history.New(10), nil)
}

func TestHandleInvalidInput(t *testing.T) {
	svc := newTestService(t, &stubParser{feed: todayFeed("Story")}, &fakeAI{})

	resp := svc.Handle(context.Background(), Request{Input: "@#$%^"})
	if resp.Status != StatusError || resp.Kind != KindInvalidInput {
		t.Fatalf("got status %q kind %q", resp.Status, resp.Kind)
	}
	if resp.Message != "Please provide a valid topic or query." {
		t.Errorf("got message %q", resp.Message)
	}
}

func TestHandleUnknownTopic(t *testing.T) {
	svc := newTestService(t, &stubParser{feed: todayFeed("Story")}, &fakeAI{})

	resp := svc.Handle(context.Background(), Request{Input: "whats new"})
	if resp.Kind != KindUnknownTopic {
		t.Fatalf("got kind %q", resp.Kind)
	}
	if !strings.Contains(resp.Message, "hr strategy and leadership") {
		t.Errorf("message should list registered topics, got %q", resp.Message)
	}
}

func TestHandleSuccess(t *testing.T) {
	parser := &stubParser{feed: todayFeed("First Story", "Second Story")}
	svc := newTestService(t, parser, &fakeAI{})

	resp := svc.Handle(context.Background(), Request{Input: "give me hr strategy and leadership updates", UserID: "alice"})
	if resp.Status != StatusSuccess {
		t.Fatalf("got %q: %s", resp.Status, resp.Message)
	}
	if resp.Topic != "hr strategy and leadership" {
		t.Errorf("got topic %q", resp.Topic)
	}
	if resp.TotalArticles != 2 || len(resp.Articles) != 2 {
		t.Fatalf("expected 2 articles, got total=%d len=%d", resp.TotalArticles, len(resp.Articles))
	}
	if resp.CachedArticles {
		t.Error("first fetch must not report a cache hit")
	}
	if resp.Articles[0].Summary != "a summary" || resp.Articles[0].Tag != "Leadership" {
		t.Errorf("unexpected record: %+v", resp.Articles[0])
	}

	hist := svc.History("alice")
	if len(hist) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(hist))
	}
	if hist[0].Topic != "hr strategy and leadership" || len(hist[0].Summaries) != 2 {
		t.Errorf("unexpected history entry: %+v", hist[0])
	}
}

func TestHandleArticleCacheHit(t *testing.T) {
	parser := &stubParser{feed: todayFeed("Story")}
	svc := newTestService(t, parser, &fakeAI{})
	req := Request{Input: "hr strategy and leadership"}

	first := svc.Handle(context.Background(), req)
	if first.Status != StatusSuccess {
		t.Fatalf("first call failed: %s", first.Message)
	}
	callsAfterFirst := parser.callCount()

	second := svc.Handle(context.Background(), req)
	if second.Status != StatusSuccess {
		t.Fatalf("second call failed: %s", second.Message)
	}
	if !second.CachedArticles {
		t.Error("second call must report the article cache hit")
	}
	if parser.callCount() != callsAfterFirst {
		t.Error("second call must not hit the feeds")
	}
	// The summary cache serves the second pass too.
	if !second.Articles[0].Cached {
		t.Error("expected summary cache hit on second call")
	}
}

func TestHandleNoArticles(t *testing.T) {
	svc := newTestService(t, &stubParser{feed: staleFeed()}, &fakeAI{})

	resp := svc.Handle(context.Background(), Request{Input: "hr strategy and leadership"})
	if resp.Kind != KindNoArticles {
		t.Fatalf("got kind %q", resp.Kind)
	}
	if resp.Message != "No articles found for topic: hr strategy and leadership" {
		t.Errorf("got message %q", resp.Message)
	}
	if len(resp.Articles) != 0 {
		t.Error("error responses must not carry articles")
	}
}

func TestHandleFetchFailureReportsNoArticles(t *testing.T) {
	svc := newTestService(t, &stubParser{err: errors.New("network down")}, &fakeAI{})

	resp := svc.Handle(context.Background(), Request{Input: "hr strategy and leadership"})
	if resp.Kind != KindNoArticles {
		t.Fatalf("fetch failure should degrade to no-articles, got kind %q", resp.Kind)
	}
}

func TestHandlePromptLoadFailure(t *testing.T) {
	svc := newTestService(t, &stubParser{feed: todayFeed("Story")}, &fakeAI{})

	resp := svc.Handle(context.Background(), Request{
		Input:      "hr strategy and leadership",
		PromptFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	if resp.Kind != KindPromptLoad {
		t.Fatalf("got kind %q", resp.Kind)
	}
	if resp.Message != "Failed to load summarization prompt." {
		t.Errorf("got message %q", resp.Message)
	}
}

func TestHandleAnonymousNotTracked(t *testing.T) {
	svc := newTestService(t, &stubParser{feed: todayFeed("Story")}, &fakeAI{})

	resp := svc.Handle(context.Background(), Request{Input: "hr strategy and leadership"})
	if resp.Status != StatusSuccess {
		t.Fatalf("unexpected failure: %s", resp.Message)
	}
	if got := svc.History(""); got != nil {
		t.Errorf("anonymous requests must not be tracked, got %v", got)
	}
}

func TestHandleSummarizerFailureReducesTotals(t *testing.T) {
	client := &fakeAI{
		summarizeFn: func(content string) (string, error) {
			if strings.HasPrefix(content, "Broken Story") {
				return "", errors.New("model overloaded")
			}
			return "ok", nil
		},
	}
	svc := newTestService(t, &stubParser{feed: todayFeed("Good Story", "Broken Story")}, client)

	resp := svc.Handle(context.Background(), Request{Input: "hr strategy and leadership"})
	if resp.Status != StatusSuccess {
		t.Fatalf("unexpected failure: %s", resp.Message)
	}
	if resp.TotalArticles != 1 || len(resp.Articles) != 1 {
		t.Errorf("expected the failing article dropped, got total=%d", resp.TotalArticles)
	}
	if resp.Articles[0].Title != "Good Story" {
		t.Errorf("got %q", resp.Articles[0].Title)
	}
}
