// Package prompt loads named prompt templates from JSON key-value files and
// caches each template once per process.
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// SummarizerKey names the article summarization template.
const SummarizerKey = "NEWS_SUMMARIZER"

// Store caches prompt texts per (file path, prompt key). Only successful
// loads are cached; a failed load is retried on the next call.
type Store struct {
	mu    sync.RWMutex
	cache map[string]string
}

func NewStore() *Store {
	return &Store{cache: make(map[string]string)}
}

// Get returns the template stored under key in the JSON file at path.
func (s *Store) Get(path, key string) (string, error) {
	cacheKey := path + ":" + key

	s.mu.RLock()
	text, ok := s.cache[cacheKey]
	s.mu.RUnlock()
	if ok {
		return text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("loading prompt file %s: %w", path, err)
	}

	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return "", fmt.Errorf("parsing prompt file %s: %w", path, err)
	}

	text, ok = prompts[key]
	if !ok {
		return "", fmt.Errorf("prompt %q not found in %s", key, path)
	}

	s.mu.Lock()
	s.cache[cacheKey] = text
	s.mu.Unlock()
	return text, nil
}
