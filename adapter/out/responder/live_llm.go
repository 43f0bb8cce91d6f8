package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"live_server/core/domain"
	"live_server/pkg/apperr"
	"live_server/pkg/resilience"
)

// =============================================================================
// Tier 2 / Tier 3 - LLM
// =============================================================================

// ChatCompleter is the slice of the OpenAI client the responder needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMConfig configures one LLM pipeline.
type LLMConfig struct {
	Tier        domain.ResponseTier
	Model       string
	MaxTokens   int
	Temperature float64
	Persona     string // host persona / product context, prepended to the system prompt
}

const DefaultModel = "gpt-4o-mini"

// QuickConfig returns settings for the small, fast pipeline.
func QuickConfig(model string) LLMConfig {
	return LLMConfig{Tier: domain.TierQuick, Model: model, MaxTokens: 80, Temperature: 0.5}
}

// FullConfig returns settings for the full pipeline.
func FullConfig(model string) LLMConfig {
	return LLMConfig{Tier: domain.TierFull, Model: model, MaxTokens: 300, Temperature: 0.7}
}

// NewOpenAIClient builds a client. baseURL is optional and points the
// client at an OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// LLMResponder generates a reply through a chat completion, guarded by a
// circuit breaker so a failing provider falls back quickly.
type LLMResponder struct {
	client  ChatCompleter
	cfg     LLMConfig
	breaker *resilience.Breaker
	log     zerolog.Logger
}

func NewLLMResponder(client ChatCompleter, cfg LLMConfig, breaker *resilience.Breaker, log zerolog.Logger) *LLMResponder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig(string(cfg.Tier)), log)
	}
	return &LLMResponder{
		client:  client,
		cfg:     cfg,
		breaker: breaker,
		log:     log.With().Str("component", "llm_responder").Str("tier", string(cfg.Tier)).Logger(),
	}
}

func (r *LLMResponder) Dispatch(ctx context.Context, entry domain.QueueEntry, tier domain.ResponseTier) (*domain.Response, error) {
	text, err := r.breaker.Execute(func() (string, error) {
		return r.complete(ctx, &entry)
	})
	if err != nil {
		if resilience.IsRejected(err) {
			return nil, apperr.DispatchFailure(string(tier), fmt.Errorf("circuit %s: %w", r.breaker.State(), err))
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperr.DispatchFailure(string(tier), err)
	}
	return &domain.Response{Text: text, Tier: tier, Model: r.cfg.Model}, nil
}

func (r *LLMResponder) complete(ctx context.Context, e *domain.QueueEntry) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: float32(r.cfg.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt(e)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(e)},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

func (r *LLMResponder) systemPrompt(e *domain.QueueEntry) string {
	var b strings.Builder
	if r.cfg.Persona != "" {
		b.WriteString(r.cfg.Persona)
		b.WriteString("\n\n")
	}
	b.WriteString("You are the host of a live-commerce stream replying to viewer comments out loud. ")
	b.WriteString("Reply in the viewer's language, address them by name, stay friendly and factual.\n")
	if r.cfg.Tier == domain.TierQuick {
		b.WriteString("Answer in one short sentence.\n")
	} else {
		b.WriteString("Answer in at most three sentences.\n")
	}
	fmt.Fprintf(&b, "Detected intent: %s (confidence %.2f).\n", e.Classification.IntentID, e.Classification.Confidence)
	fmt.Fprintf(&b, "Detected emotion: %s.\n", e.Emotion.EmotionID)
	if e.Emotion.EmotionID.IsNegative() {
		b.WriteString("The viewer seems upset: acknowledge it before answering.\n")
	}
	return b.String()
}

func userPrompt(e *domain.QueueEntry) string {
	c := &e.Comment
	if c.IsGift && c.Message == "" {
		return fmt.Sprintf("%s sent a gift worth %.0f. Thank them.", c.Name(), c.GiftValue)
	}
	if c.IsGift {
		return fmt.Sprintf("%s (sent a gift worth %.0f): %s", c.Name(), c.GiftValue, c.Message)
	}
	return fmt.Sprintf("%s: %s", c.Name(), c.Message)
}
