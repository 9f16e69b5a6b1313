package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/soundprediction/akgraph/pkg/types"
)

const classifyPrompt = `Classify this document. Respond with JSON only:
{"domain":"technical|business|legal|academic|medical|financial|general","subdomain":"...","description":"one sentence","key_entity_types":["..."],"key_relationship_types":["..."],"confidence":0.9}
Entity types are short uppercase nouns; relationship types are uppercase verb phrases with underscores.`

// OpenAIClassifier implements Classifier through a chat completion API.
type OpenAIClassifier struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewOpenAIClassifier builds a classifier against the given API. An empty
// baseURL uses the public OpenAI endpoint.
func NewOpenAIClassifier(apiKey, baseURL, model string) *OpenAIClassifier {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClassifier{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, title, contentSample string) (*types.DocumentAnalysis, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Title: %s\n\n%s", title, contentSample)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}
	return parseAnalysis(resp.Choices[0].Message.Content)
}

func parseAnalysis(content string) (*types.DocumentAnalysis, error) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in classification response")
	}
	raw := content[start : end+1]

	var analysis types.DocumentAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return nil, fmt.Errorf("unmarshal failed (%v) and repair failed: %w", err, rerr)
		}
		if err := json.Unmarshal([]byte(repaired), &analysis); err != nil {
			return nil, fmt.Errorf("unmarshal repaired JSON: %w", err)
		}
	}
	if analysis.Domain == "" {
		analysis.Domain = "general"
	}
	if analysis.Subdomain == "" {
		analysis.Subdomain = "general"
	}
	return &analysis, nil
}
