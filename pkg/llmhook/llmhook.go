// Package llmhook implements the optional post-scoring summarization hook
// (spec.md §9 design notes): a [config.Summarizer] enriches a document's
// Description field from its title and body. The core search pipeline never
// depends on this package directly — it only depends on the config.Summarizer
// interface — so kgsearchd runs fully without an LLM configured.
//
// Trimmed down from the teacher's pkg/provider/llm/openai provider: kgsearchd
// needs a single non-streaming completion per document, not the full
// streaming/tool-calling chat surface the voice pipeline required.
package llmhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/terraphim/kgsearchd/internal/config"
)

// OpenAISummarizer implements [config.Summarizer] using the OpenAI chat
// completions API to produce a one- or two-sentence summary of a document.
type OpenAISummarizer struct {
	client oai.Client
	model  string
}

// NewOpenAISummarizer constructs a summarizer for the given model. baseURL
// and timeout are optional; a zero timeout means the SDK's default.
func NewOpenAISummarizer(apiKey, model, baseURL string, timeout time.Duration) (*OpenAISummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llmhook: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llmhook: model must not be empty")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	return &OpenAISummarizer{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Summarize implements [config.Summarizer].
func (s *OpenAISummarizer) Summarize(ctx context.Context, title, body string) (string, error) {
	prompt := fmt.Sprintf("Summarize the following document in one or two sentences.\n\nTitle: %s\n\n%s", title, truncate(body, 4000))

	resp, err := s.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage("You write terse, factual one-sentence document summaries."),
			oai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmhook: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmhook: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// truncate bounds body so an oversized document body never blows the
// model's context window; it cuts on a rune boundary.
func truncate(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max])
}

// NewFactory returns a [config.SummarizerFactory] that builds an
// [OpenAISummarizer] from a [config.SummarizerConfig], for registration
// under the "openai" provider name.
func NewFactory() config.SummarizerFactory {
	return func(cfg config.SummarizerConfig) (config.Summarizer, error) {
		return NewOpenAISummarizer(cfg.APIKey, cfg.Model, cfg.BaseURL, 30*time.Second)
	}
}
