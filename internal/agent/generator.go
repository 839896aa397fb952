package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/config"
)

// GenerateRequest is a single text generation call.
type GenerateRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
	MaxTokens    int
	Temperature  float64
}

// Generation is the reply of a Generator.
type Generation struct {
	Text      string
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

// Generator produces text for an agent.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
}

// NewGenerator selects a backend by cfg.Generator.
func NewGenerator(cfg config.AgentConfig, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Generator {
	case "", "static":
		return NewStaticGenerator(cfg.StaticText), nil
	case "cli":
		return NewCLIGenerator(cfg.ClaudeCLI, logger), nil
	case "anthropic":
		g, err := NewAnthropicGenerator(cfg.AnthropicAPIKey, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generator %q", cfg.Generator)
	}
}

// StaticGenerator always returns the same text.
type StaticGenerator struct {
	text string
}

// NewStaticGenerator returns a generator replying with text.
func NewStaticGenerator(text string) *StaticGenerator {
	return &StaticGenerator{text: text}
}

func (g *StaticGenerator) Generate(ctx context.Context, _ GenerateRequest) (*Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Generation{Text: g.text}, nil
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (*Generation, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	return f(ctx, req)
}
