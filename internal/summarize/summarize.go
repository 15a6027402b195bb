// Package summarize turns fetched articles into summary records, reusing the
// summary cache and tolerating per-article failures.
package summarize

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matheuskafuri/hrnews/internal/ai"
	"github.com/matheuskafuri/hrnews/internal/cache"
	"github.com/matheuskafuri/hrnews/internal/config"
	"github.com/matheuskafuri/hrnews/internal/feed"
	"github.com/matheuskafuri/hrnews/internal/retry"
	"github.com/matheuskafuri/hrnews/internal/topic"
)

// Record is one summarized article. Cached is true when the summary came
// from the summary cache; cached records carry no tag.
type Record struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Tag         string    `json:"tag,omitempty"`
	Cached      bool      `json:"cached"`
}

type Orchestrator struct {
	client  ai.Client
	cache   *cache.SummaryCache
	policy  retry.Policy
	workers int
}

func NewOrchestrator(client ai.Client, summaries *cache.SummaryCache, policy retry.Policy, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{client: client, cache: summaries, policy: policy, workers: workers}
}

// Run summarizes every article for the topic, in input order. Articles whose
// summarization fails outright are logged and dropped from the result;
// classifier failures degrade to the topic's default tag.
func (o *Orchestrator) Run(ctx context.Context, articles []feed.Article, t config.Topic, promptText, model string) []Record {
	results := make([]*Record, len(articles))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.workers)
	for i, a := range articles {
		wg.Add(1)
		go func(i int, a feed.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.summarizeOne(ctx, a, t, promptText, model)
		}(i, a)
	}
	wg.Wait()

	records := make([]Record, 0, len(articles))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records
}

func (o *Orchestrator) summarizeOne(ctx context.Context, a feed.Article, t config.Topic, promptText, model string) *Record {
	if summary, ok := o.cache.Get(a.Title, t.Name); ok {
		log.Debug().Str("title", a.Title).Msg("summary cache hit")
		return &Record{
			Title:       a.Title,
			URL:         a.URL,
			Summary:     summary,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
			Cached:      true,
		}
	}

	content := strings.Join([]string{a.Title, a.Description, a.Content}, "\n")

	var summary string
	err := o.policy.Do(ctx, func() error {
		var callErr error
		summary, callErr = o.client.Summarize(ctx, model, promptText, content)
		return callErr
	})
	if err != nil {
		log.Error().Str("title", a.Title).Err(err).Msg("summarization failed, skipping article")
		return nil
	}

	o.cache.Put(a.Title, t.Name, summary)

	return &Record{
		Title:       a.Title,
		URL:         a.URL,
		Summary:     summary,
		Source:      a.Source.Name,
		PublishedAt: a.PublishedAt,
		Tag:         o.tag(ctx, t, content),
		Cached:      false,
	}
}

// tag asks the classifier for a tag and validates it against the closed set,
// falling back to the topic's default tag. Classifier failures never fail the
// record.
func (o *Orchestrator) tag(ctx context.Context, t config.Topic, content string) string {
	fallback := t.Tag
	if fallback == "" || !topic.IsValidTag(fallback) {
		fallback = string(topic.DefaultTag(t.Name))
	}

	var detected string
	err := o.policy.Do(ctx, func() error {
		var callErr error
		detected, callErr = o.client.Tag(ctx, content, topic.AllTagNames())
		return callErr
	})
	if err != nil {
		log.Warn().Str("topic", t.Name).Err(err).Msg("tag detection failed, using default")
		return fallback
	}
	if !topic.IsValidTag(detected) {
		return fallback
	}
	return detected
}
