package aiengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/visibleai/siteaudit/internal/analysis"
)

const (
	defaultModel = "gpt-4o-mini"
	maxTokens    = 512
)

const systemPrompt = `You rate how well a website is positioned to be cited by AI answer
engines. Respond with a JSON object whose keys are exactly "chatgpt",
"perplexity", "claude", "google_ai" and "bing_chat", each mapped to an
integer score between 0 and 100.`

// OpenAIScorer asks a chat model for engine compatibility scores. It is
// enabled through config; the static scorer remains the default.
type OpenAIScorer struct {
	client *openai.Client
	model  string
}

// NewOpenAIScorer builds a model-backed scorer.
func NewOpenAIScorer(apiKey, model string) *OpenAIScorer {
	if model == "" {
		model = defaultModel
	}
	return &OpenAIScorer{client: openai.NewClient(apiKey), model: model}
}

// Score requests a JSON score object for the target and clamps every value
// into 0..100. Missing engines fall back to the static baseline.
func (s *OpenAIScorer) Score(ctx context.Context, target analysis.Target) (map[string]int, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Rate the website at " + target.URL},
		},
	}
	if strings.HasPrefix(s.model, "o1") || strings.HasPrefix(s.model, "o3") || strings.HasPrefix(s.model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("engine scoring completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("engine scoring completion: empty response")
	}

	var raw map[string]int
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
		return nil, fmt.Errorf("decode engine scores: %w", err)
	}

	baseline, _ := StaticScorer{}.Score(ctx, target)
	scores := make(map[string]int, len(baseline))
	for engine, fallback := range baseline {
		v, ok := raw[engine]
		if !ok {
			v = fallback
		}
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		scores[engine] = v
	}
	return scores, nil
}
