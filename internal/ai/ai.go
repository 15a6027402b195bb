package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matheuskafuri/hrnews/internal/config"
)

// Client is the pair of external text-generation capabilities the pipeline
// depends on: summarization and single-tag classification.
type Client interface {
	// Summarize produces a short expert-perspective summary of content,
	// using systemPrompt as the system instruction.
	Summarize(ctx context.Context, model, systemPrompt, content string) (string, error)
	// Tag assigns one tag to content from the allowed set. The returned
	// string is not guaranteed to be in the set; callers validate.
	Tag(ctx context.Context, content string, allowed []string) (string, error)
}

// New creates a Client from the given AI config.
func New(cfg *config.AIConfig, apiKey string) (Client, error) {
	if cfg == nil || apiKey == "" {
		return nil, fmt.Errorf("AI not configured")
	}

	client := &http.Client{Timeout: 60 * time.Second}

	switch cfg.Provider {
	case "openai", "":
		return &openaiProvider{apiKey: apiKey, model: cfg.Model, client: client, baseURL: "https://api.openai.com"}, nil
	case "claude":
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return &claudeProvider{apiKey: apiKey, model: model, client: client, baseURL: "https://api.anthropic.com"}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (valid: openai, claude)", cfg.Provider)
	}
}

const (
	defaultModel    = "gpt-4-turbo"
	deprecatedModel = "gpt-3.5-turbo"

	summarizeUserPrompt = "Summarize the following news article in 2-3 sentences from an HR expert perspective:\n%s"
	classifySystem      = "You are an HR expert. Assign one tag from [%s] based on the article content."
	classifyUserPrompt  = "Analyze this content and assign a tag: %s"

	classifyContentLimit = 500
)

// resolveModel substitutes the default model for empty or known-deprecated
// identifiers.
func resolveModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" || model == deprecatedModel {
		return defaultModel
	}
	return model
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// --- OpenAI provider ---

type openaiProvider struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (o *openaiProvider) Summarize(ctx context.Context, model, systemPrompt, content string) (string, error) {
	if model == "" {
		model = o.model
	}
	req := openaiRequest{
		Model: resolveModel(model),
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(summarizeUserPrompt, content)},
		},
		Temperature: 0.7,
		MaxTokens:   150,
		Stream:      true,
	}

	resp, err := o.post(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return collectStream(resp.Body)
}

func (o *openaiProvider) Tag(ctx context.Context, content string, allowed []string) (string, error) {
	req := openaiRequest{
		Model: defaultModel,
		Messages: []openaiMessage{
			{Role: "system", Content: fmt.Sprintf(classifySystem, strings.Join(allowed, ", "))},
			{Role: "user", Content: fmt.Sprintf(classifyUserPrompt, truncateRunes(content, classifyContentLimit))},
		},
		MaxTokens: 10,
	}

	resp, err := o.post(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var or openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", err
	}
	if len(or.Choices) == 0 {
		return "", fmt.Errorf("empty openai response")
	}
	return strings.TrimSpace(or.Choices[0].Message.Content), nil
}

func (o *openaiProvider) post(ctx context.Context, payload openaiRequest) (*http.Response, error) {
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("openai API %d: %s", resp.StatusCode, string(b))
	}
	return resp, nil
}

// collectStream concatenates the incremental content fragments of an SSE
// chat-completion stream and trims the result.
func collectStream(r io.Reader) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}
		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			b.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// --- Claude provider ---

type claudeProvider struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *claudeProvider) Summarize(ctx context.Context, model, systemPrompt, content string) (string, error) {
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = c.model
	}
	text, err := c.call(ctx, claudeRequest{
		Model:     model,
		MaxTokens: 150,
		System:    systemPrompt,
		Messages:  []claudeMessage{{Role: "user", Content: fmt.Sprintf(summarizeUserPrompt, content)}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *claudeProvider) Tag(ctx context.Context, content string, allowed []string) (string, error) {
	text, err := c.call(ctx, claudeRequest{
		Model:     c.model,
		MaxTokens: 10,
		System:    fmt.Sprintf(classifySystem, strings.Join(allowed, ", ")),
		Messages:  []claudeMessage{{Role: "user", Content: fmt.Sprintf(classifyUserPrompt, truncateRunes(content, classifyContentLimit))}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *claudeProvider) call(ctx context.Context, payload claudeRequest) (string, error) {
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("claude API %d: %s", resp.StatusCode, string(b))
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Content) == 0 {
		return "", fmt.Errorf("empty claude response")
	}
	return cr.Content[0].Text, nil
}
