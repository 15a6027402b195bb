package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/matheuskafuri/hrnews/internal/ai"
	"github.com/matheuskafuri/hrnews/internal/cache"
	"github.com/matheuskafuri/hrnews/internal/config"
	"github.com/matheuskafuri/hrnews/internal/feed"
	"github.com/matheuskafuri/hrnews/internal/history"
	"github.com/matheuskafuri/hrnews/internal/news"
	"github.com/matheuskafuri/hrnews/internal/prompt"
	"github.com/matheuskafuri/hrnews/internal/retry"
	"github.com/matheuskafuri/hrnews/internal/store"
	"github.com/matheuskafuri/hrnews/internal/summarize"
)

// buildService wires the pipeline from config. The returned closer releases
// the archive handle.
func buildService(cfg *config.Config) (*news.Service, func(), error) {
	client, err := ai.New(cfg.AI, cfg.AIKey())
	if err != nil {
		return nil, nil, fmt.Errorf("configuring AI provider: %w", err)
	}

	policy := retry.Default()
	orchestrator := summarize.NewOrchestrator(client, cache.NewSummaryCache(), policy, cfg.GetWorkers())

	// The archive is best-effort; the pipeline runs without it.
	archive, err := store.Open(config.ArchivePath())
	closer := func() {}
	if err != nil {
		log.Warn().Err(err).Msg("opening article archive, continuing without it")
		archive = nil
	} else {
		closer = func() { archive.Close() }
	}

	svc := news.NewService(
		cfg,
		feed.New(),
		cache.NewArticleCache(),
		prompt.NewStore(),
		orchestrator,
		history.New(cfg.GetHistoryLimit()),
		archive,
	)
	return svc, closer, nil
}
