// Package news is the top-level query pipeline: free-text input in,
// summarized articles out, with the article cache, summary cache, prompt
// store and per-user history wired between.
package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matheuskafuri/hrnews/internal/cache"
	"github.com/matheuskafuri/hrnews/internal/config"
	"github.com/matheuskafuri/hrnews/internal/feed"
	"github.com/matheuskafuri/hrnews/internal/history"
	"github.com/matheuskafuri/hrnews/internal/prompt"
	"github.com/matheuskafuri/hrnews/internal/store"
	"github.com/matheuskafuri/hrnews/internal/summarize"
	"github.com/matheuskafuri/hrnews/internal/topic"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error kinds carried on Response.Kind for callers that branch on the
// failure class; not part of the wire format.
const (
	KindInvalidInput = "invalid_input"
	KindUnknownTopic = "unknown_topic"
	KindNoArticles   = "no_articles"
	KindPromptLoad   = "prompt_load"
)

// Request is one news query.
type Request struct {
	Input      string `json:"input"`
	UserID     string `json:"user_id,omitempty"`
	PromptFile string `json:"prompt_file,omitempty"`
	Model      string `json:"model,omitempty"`
}

// Response is the structured outcome. On error only Status and Message are
// set; partial article data is never returned.
type Response struct {
	Status         string             `json:"status"`
	Topic          string             `json:"topic,omitempty"`
	Articles       []summarize.Record `json:"articles,omitempty"`
	CachedArticles bool               `json:"cached_articles,omitempty"`
	TotalArticles  int                `json:"total_articles,omitempty"`
	Message        string             `json:"message,omitempty"`
	Kind           string             `json:"-"`
}

func errorResponse(kind, format string, args ...interface{}) Response {
	return Response{Status: StatusError, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Service coordinates the pipeline components. Construct once at startup and
// share across requests; all components are safe for concurrent use.
type Service struct {
	cfg          *config.Config
	fetcher      *feed.Fetcher
	articles     *cache.ArticleCache
	prompts      *prompt.Store
	orchestrator *summarize.Orchestrator
	history      *history.History
	archive      *store.Store // optional
	now          func() time.Time
}

func NewService(cfg *config.Config, fetcher *feed.Fetcher, articles *cache.ArticleCache, prompts *prompt.Store, orchestrator *summarize.Orchestrator, hist *history.History, archive *store.Store) *Service {
	return &Service{
		cfg:          cfg,
		fetcher:      fetcher,
		articles:     articles,
		prompts:      prompts,
		orchestrator: orchestrator,
		history:      hist,
		archive:      archive,
		now:          time.Now,
	}
}

// Handle runs the full pipeline for one request.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	query := topic.Sanitize(req.Input)
	if query == "" {
		log.Warn().Msg("empty or invalid input received")
		return errorResponse(KindInvalidInput, "Please provide a valid topic or query.")
	}

	matched, ok := topic.Resolve(query, s.cfg.Topics)
	if !ok {
		log.Warn().Str("query", query).Msg("input does not match a registered topic")
		return errorResponse(KindUnknownTopic, "Please specify one of: %s", strings.Join(s.cfg.TopicNames(), ", "))
	}

	day := s.now().Format("2006-01-02")
	articles, cached, err := s.articles.GetOrFetch(ctx, matched.Name, day, func(ctx context.Context) ([]feed.Article, error) {
		fetched, err := s.fetcher.Fetch(ctx, matched, feed.Options{
			PerDay:       true,
			LookbackDays: s.cfg.GetLookbackDays(),
			MaxResults:   s.cfg.GetMaxResults(),
		})
		if err != nil {
			return nil, err
		}
		s.archiveArticles(matched.Name, fetched)
		return fetched, nil
	})
	if err != nil {
		// Transient fetch failure is contained: report absence rather
		// than surfacing the transport error.
		log.Error().Str("topic", matched.Name).Err(err).Msg("fetch failed after retries")
		articles, cached = nil, false
	}
	if cached {
		log.Info().Str("topic", matched.Name).Msg("article cache hit")
	}

	if len(articles) == 0 {
		return errorResponse(KindNoArticles, "No articles found for topic: %s", matched.Name)
	}

	promptFile := req.PromptFile
	if promptFile == "" {
		promptFile = s.cfg.GetPromptFile()
	}
	promptText, err := s.prompts.Get(promptFile, prompt.SummarizerKey)
	if err != nil {
		log.Error().Err(err).Msg("loading summarization prompt")
		return errorResponse(KindPromptLoad, "Failed to load summarization prompt.")
	}

	records := s.orchestrator.Run(ctx, articles, matched, promptText, req.Model)

	s.history.Append(req.UserID, history.Entry{
		Role:      "user",
		Content:   query,
		Timestamp: s.now(),
		Topic:     matched.Name,
		Summaries: records,
	})

	log.Info().Str("topic", matched.Name).Int("articles", len(records)).Msg("generated summaries")
	return Response{
		Status:         StatusSuccess,
		Topic:          matched.Name,
		Articles:       records,
		CachedArticles: cached,
		TotalArticles:  len(records),
	}
}

// History exposes the per-user query history.
func (s *Service) History(userID string) []history.Entry {
	return s.history.Recent(userID)
}

func (s *Service) archiveArticles(topicName string, articles []feed.Article) {
	if s.archive == nil || len(articles) == 0 {
		return
	}
	if err := s.archive.Upsert(topicName, articles); err != nil {
		log.Warn().Str("topic", topicName).Err(err).Msg("archiving fetched articles")
	}
}
