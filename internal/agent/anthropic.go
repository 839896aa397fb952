package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/klubi/relay/internal/apperrors"
)

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client anthropic.Client
	logger *zap.Logger
}

// NewAnthropicGenerator creates a generator for the given API key. Extra
// request options are passed to the SDK client.
func NewAnthropicGenerator(apiKey string, logger *zap.Logger, opts ...option.RequestOption) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic generator requires an API key")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicGenerator{
		client: anthropic.NewClient(opts...),
		logger: logger,
	}, nil
}

// Generate sends one user message and concatenates the text blocks of the
// reply.
func (g *AnthropicGenerator) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	g.logger.Debug("calling anthropic messages API",
		zap.String("model", req.Model),
		zap.Int("promptLen", len(req.Prompt)),
	)

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return nil, generationError("anthropic returned no text content", nil, true)
	}

	return &Generation{
		Text:      text.String(),
		TokensIn:  int(resp.Usage.InputTokens),
		TokensOut: int(resp.Usage.OutputTokens),
	}, nil
}

// classifyAnthropicError maps SDK errors onto the application error family:
// 429 becomes a RateLimitError, 5xx a retryable GENERATION_ERROR.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return generationError(fmt.Sprintf("anthropic request failed: %v", err), err, true)
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		rl := apperrors.NewRateLimitError("anthropic", retryAfter(apiErr.Response))
		rl.Cause = err
		return rl
	case apiErr.StatusCode >= 500:
		return generationError(fmt.Sprintf("anthropic server error: %d", apiErr.StatusCode), err, true).
			WithStatus(apiErr.StatusCode)
	default:
		return generationError(fmt.Sprintf("anthropic request rejected: %d", apiErr.StatusCode), err, false).
			WithStatus(apiErr.StatusCode)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
