package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/prompts"
)

// Client is the OpenAI-compatible corrector. It works against the hosted
// API or any compatible local endpoint (vLLM, Ollama, llama.cpp).
type Client struct {
	client      *openai.Client
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// Config holds configuration for creating a model client.
type Config struct {
	Endpoint    string // Base URL; empty uses the hosted OpenAI API
	Model       string // Model name, e.g. "gpt-4o-mini"
	APIKey      string // Optional for local endpoints
	MaxTokens   int
	Temperature float64
}

// NewClient creates a new OpenAI-compatible corrector.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.Named("llm"),
	}, nil
}

var _ SQLCorrector = (*Client)(nil)

// Correct asks the model for a repaired statement.
func (c *Client) Correct(ctx context.Context, req *CorrectionRequest) (*CorrectionResult, error) {
	user := prompts.BuildCorrectionPrompt(&prompts.CorrectionInput{
		SQL:           req.SQL,
		Question:      req.Question,
		Strategy:      req.Strategy,
		Issues:        req.Issues,
		SchemaContext: req.SchemaContext,
	})

	c.logger.Debug("correction request",
		zap.String("model", c.model),
		zap.String("strategy", string(req.Strategy)),
		zap.Int("issues", len(req.Issues)))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.CorrectionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	})
	if err != nil {
		c.logger.Error("correction request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeResponse, "no choices in response", false, nil)
	}

	result, err := parseCorrectionResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Info("correction request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}
