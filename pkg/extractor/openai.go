package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/soundprediction/akgraph/pkg/types"
)

// Default LLM parameters.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.1
	DefaultRateLimit   = rate.Limit(2) // requests per second
	DefaultRateBurst   = 4
)

const systemPrompt = `You are a knowledge-graph extraction engine. Given a text chunk, extract entities and the relationships between them. Respond with JSON only, no prose, in this shape:
{"entities":[{"name":"...","type":"...","confidence":0.9,"properties":{}}],"relationships":[{"source":"...","target":"...","type":"...","confidence":0.9}]}
Entity types are short uppercase nouns (PERSON, PROJECT, AMOUNT). Relationship types are uppercase verb phrases with underscores (MANAGES, HAS_BUDGET). Confidence is between 0 and 1. Source and target must be entity names from the same response.`

// OpenAI extracts candidates through an OpenAI-compatible chat completion
// API. Calls are rate limited; retry and circuit breaking are layered on
// by wrappers.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// OpenAIOption configures the extractor.
type OpenAIOption func(*OpenAI)

// WithModel overrides the completion model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) { o.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) OpenAIOption {
	return func(o *OpenAI) { o.temperature = t }
}

// WithRateLimit overrides the request rate and burst.
func WithRateLimit(limit rate.Limit, burst int) OpenAIOption {
	return func(o *OpenAI) { o.limiter = rate.NewLimiter(limit, burst) }
}

// WithOpenAILogger sets the structured logger.
func WithOpenAILogger(l *slog.Logger) OpenAIOption {
	return func(o *OpenAI) { o.logger = l }
}

// NewOpenAI builds an extractor against the given API. An empty baseURL
// uses the public OpenAI endpoint; set it to point at a compatible local
// server.
func NewOpenAI(apiKey, baseURL string, opts ...OpenAIOption) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	o := &OpenAI{
		client:      openai.NewClientWithConfig(config),
		model:       DefaultModel,
		temperature: DefaultTemperature,
		limiter:     rate.NewLimiter(DefaultRateLimit, DefaultRateBurst),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAI) Name() string { return MethodLLM }

// Extract sends the chunk to the model and parses the JSON candidates out
// of the reply.
func (o *OpenAI) Extract(ctx context.Context, req Request) (*Result, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoResult
	}

	result, err := parseExtraction(resp.Choices[0].Message.Content)
	if err != nil {
		o.logger.Warn("failed to parse extraction response", "error", err)
		return nil, fmt.Errorf("parse extraction: %w", err)
	}
	result.Method = MethodLLM
	return result, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	if req.Domain != "" {
		fmt.Fprintf(&b, "Document domain: %s", req.Domain)
		if req.Subdomain != "" {
			fmt.Fprintf(&b, " / %s", req.Subdomain)
		}
		b.WriteString("\n")
	}
	if len(req.EntityTypes) > 0 {
		fmt.Fprintf(&b, "Prefer these entity types where they fit: %s\n",
			strings.Join(req.EntityTypes, ", "))
	}
	if len(req.RelationshipTypes) > 0 {
		fmt.Fprintf(&b, "Prefer these relationship types where they fit: %s\n",
			strings.Join(req.RelationshipTypes, ", "))
	}
	b.WriteString("\nText:\n")
	b.WriteString(req.ChunkText)
	return b.String()
}

// clampConfidence keeps extractor-reported scores inside [0, 1].
func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func validCandidates(entities []types.CandidateEntity, relationships []types.CandidateRelationship) ([]types.CandidateEntity, []types.CandidateRelationship) {
	outE := entities[:0]
	for _, e := range entities {
		e.Name = strings.TrimSpace(e.Name)
		e.Type = strings.TrimSpace(e.Type)
		e.Confidence = clampConfidence(e.Confidence)
		if e.Name == "" || e.Type == "" {
			continue
		}
		outE = append(outE, e)
	}
	outR := relationships[:0]
	for _, r := range relationships {
		r.SourceName = strings.TrimSpace(r.SourceName)
		r.TargetName = strings.TrimSpace(r.TargetName)
		r.Type = strings.TrimSpace(r.Type)
		r.Confidence = clampConfidence(r.Confidence)
		if r.SourceName == "" || r.TargetName == "" || r.Type == "" {
			continue
		}
		outR = append(outR, r)
	}
	return outE, outR
}
