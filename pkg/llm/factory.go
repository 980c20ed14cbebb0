package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// NewCorrector builds the corrector selected by provider: "openai" (the
// default, covering any OpenAI-compatible endpoint), "anthropic", or "mock"
// for offline runs.
func NewCorrector(provider string, cfg *Config, logger *zap.Logger) (SQLCorrector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return NewClient(cfg, logger)
	case "anthropic":
		return NewAnthropicClient(cfg, logger)
	case "mock":
		return NewMockCorrector(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", provider)
	}
}
