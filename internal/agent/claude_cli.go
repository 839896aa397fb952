package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/apperrors"
)

// CLIGenerator wraps the local Claude CLI in print mode. It uses the user's
// local Claude login instead of a raw API key.
type CLIGenerator struct {
	cliBin string // path to the claude binary
	logger *zap.Logger
}

// NewCLIGenerator creates a generator that calls the Claude CLI.
// If cliBin is empty, it defaults to "claude" (resolved via PATH).
func NewCLIGenerator(cliBin string, logger *zap.Logger) *CLIGenerator {
	if cliBin == "" {
		cliBin = "claude"
	}
	return &CLIGenerator{
		cliBin: cliBin,
		logger: logger,
	}
}

// cliResponse maps the JSON output of `claude -p --output-format json`.
type cliResponse struct {
	Type       string  `json:"type"`
	Subtype    string  `json:"subtype"`
	IsError    bool    `json:"is_error"`
	Result     string  `json:"result"`
	DurationMs int     `json:"duration_ms"`
	TotalCost  float64 `json:"total_cost_usd"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate sends the prompt to the CLI and parses its JSON reply.
func (g *CLIGenerator) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	args := []string{
		"-p", req.Prompt,
		"--output-format", "json",
	}
	if model := resolveModel(req.Model); model != "" {
		args = append(args, "--model", model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	g.logger.Debug("executing claude CLI",
		zap.String("bin", g.cliBin),
		zap.String("model", req.Model),
		zap.Int("promptLen", len(req.Prompt)),
	)

	cmd := exec.CommandContext(ctx, g.cliBin, args...)
	// Unset CLAUDECODE to allow nested invocation.
	cmd.Env = filterEnv(os.Environ(), "CLAUDECODE")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, generationError(fmt.Sprintf("claude CLI error: %s", msg), err, false)
	}

	var resp cliResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, generationError("parsing claude CLI output", err, false)
	}
	if resp.IsError && resp.Subtype != "error_max_turns" {
		return nil, generationError(fmt.Sprintf("claude CLI returned error: %s", resp.Result), nil, false)
	}

	g.logger.Debug("claude CLI call completed",
		zap.Int("tokensIn", resp.Usage.InputTokens),
		zap.Int("tokensOut", resp.Usage.OutputTokens),
		zap.Float64("costUSD", resp.TotalCost),
		zap.Int("durationMs", resp.DurationMs),
	)

	return &Generation{
		Text:      resp.Result,
		TokensIn:  resp.Usage.InputTokens,
		TokensOut: resp.Usage.OutputTokens,
		CostUSD:   resp.TotalCost,
	}, nil
}

func generationError(msg string, cause error, retryable bool) *apperrors.AppError {
	return apperrors.New(apperrors.CodeGeneration, msg).
		WithStatus(502).
		WithRetryable(retryable).
		WithCause(cause)
}

// resolveModel maps full model ids to the CLI's short aliases.
func resolveModel(model string) string {
	switch {
	case strings.HasPrefix(model, "claude-sonnet"):
		return "sonnet"
	case strings.HasPrefix(model, "claude-haiku"):
		return "haiku"
	case strings.HasPrefix(model, "claude-opus"):
		return "opus"
	default:
		return model
	}
}

// filterEnv returns a copy of env with the given key removed.
func filterEnv(env []string, key string) []string {
	prefix := key + "="
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, prefix) {
			result = append(result, e)
		}
	}
	return result
}
