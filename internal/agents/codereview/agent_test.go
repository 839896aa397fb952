package codereview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/klubi/relay/internal/agent"
	"github.com/klubi/relay/internal/apperrors"
	"github.com/klubi/relay/internal/tools"
	"github.com/klubi/relay/internal/tools/filesystem"
	"github.com/klubi/relay/internal/tools/github"
	"github.com/klubi/relay/pkg/apis/v1alpha1"
)

func newTestAgent(t *testing.T, gen agent.Generator, maxFiles int) (*agent.Agent, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	gh, err := github.NewRegistry(github.Options{}, nil, logger)
	if err != nil {
		t.Fatalf("github registry: %v", err)
	}
	fs, err := filesystem.NewRegistry(logger)
	if err != nil {
		t.Fatalf("filesystem registry: %v", err)
	}
	a, err := New(Params{
		GitHub:            gh,
		Files:             fs,
		Generator:         gen,
		Model:             "test-model",
		MaxFilesPerReview: maxFiles,
		Logger:            logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, logs
}

func TestDefinition(t *testing.T) {
	a, _ := newTestAgent(t, agent.NewStaticGenerator("ok"), 0)

	if a.Name() != "code-review" {
		t.Errorf("expected name code-review, got %s", a.Name())
	}
	opts := a.Options()
	if opts.MaxSteps != 15 || opts.Temperature != 0.7 || opts.MaxFilesPerReview != 10 {
		t.Errorf("unexpected options %+v", opts)
	}
	names := a.Tools().Names()
	if len(names) != 10 {
		t.Errorf("expected github and files tools, got %v", names)
	}
	if !a.Tools().Has(github.GetPR) || !a.Tools().Has(filesystem.Read) {
		t.Error("expected get_pr and read in the toolset")
	}
}

func TestExecuteWithStaticGenerator(t *testing.T) {
	a, logs := newTestAgent(t, agent.NewStaticGenerator("Code review completed successfully"), 0)

	out, err := a.Execute(context.Background(), v1alpha1.CodeReviewData{PRURL: "https://github.com/o/r/pull/1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := out.(Result)
	expected := Result{
		PRURL:    "https://github.com/o/r/pull/1",
		Status:   "completed",
		Feedback: "Code review completed successfully",
	}
	if res.PRURL != expected.PRURL || res.Status != expected.Status || res.Feedback != expected.Feedback {
		t.Errorf("expected %+v, got %+v", expected, res)
	}
	if res.Issues != nil || res.Suggestions != nil {
		t.Errorf("expected no findings, got %+v", res)
	}
	if logs.FilterMessage("Starting code review").Len() != 1 {
		t.Error("expected a start log record")
	}
}

func TestExecuteBuildsPromptFromPullRequest(t *testing.T) {
	var got agent.GenerateRequest
	gen := agent.GeneratorFunc(func(ctx context.Context, req agent.GenerateRequest) (*agent.Generation, error) {
		got = req
		return &agent.Generation{Text: "ISSUE: missing null check\n- SUGGESTION: extract helper\nOverall fine."}, nil
	})
	a, _ := newTestAgent(t, gen, 1)

	out, err := a.Execute(context.Background(), v1alpha1.CodeReviewData{PRURL: "https://github.com/acme/api/pull/42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.SystemPrompt != Instructions || got.Model != "test-model" || got.Temperature != 0.7 {
		t.Errorf("unexpected request %+v", got)
	}
	for _, want := range []string{"Example PR", "src/index.ts", "+45 -12", "1 more changed files"} {
		if !strings.Contains(got.Prompt, want) {
			t.Errorf("expected prompt to contain %q, got:\n%s", want, got.Prompt)
		}
	}
	if strings.Contains(got.Prompt, "--- src/utils.ts") {
		t.Error("expected file contents to be limited by maxFilesPerReview")
	}

	res := out.(Result)
	if len(res.Issues) != 1 || res.Issues[0] != "missing null check" {
		t.Errorf("unexpected issues %v", res.Issues)
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0] != "extract helper" {
		t.Errorf("unexpected suggestions %v", res.Suggestions)
	}
}

func TestExecuteNonGitHubURL(t *testing.T) {
	var prompt string
	gen := agent.GeneratorFunc(func(ctx context.Context, req agent.GenerateRequest) (*agent.Generation, error) {
		prompt = req.Prompt
		return &agent.Generation{Text: "fine"}, nil
	})
	a, _ := newTestAgent(t, gen, 0)

	if _, err := a.Execute(context.Background(), v1alpha1.CodeReviewData{PRURL: "https://git.example/merge/3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(prompt, "Title:") {
		t.Errorf("expected URL-only prompt, got %q", prompt)
	}
}

func TestExecuteRejectsBadPayloads(t *testing.T) {
	a, logs := newTestAgent(t, agent.NewStaticGenerator("x"), 0)

	_, err := a.Execute(context.Background(), v1alpha1.CodeReviewData{})
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Violations[0].Field != "prUrl" {
		t.Errorf("expected prUrl violation, got %+v", verr.Violations)
	}

	_, err = a.Execute(context.Background(), nil)
	if !errors.As(err, &verr) || verr.Violations[0].Field != "prUrl" {
		t.Errorf("expected prUrl violation for a missing payload, got %v", err)
	}

	_, err = a.Execute(context.Background(), v1alpha1.RawData{"prUrl": "x"})
	ae, ok := apperrors.From(err)
	if !ok || ae.Code != apperrors.CodeInvalidPayload {
		t.Errorf("expected INVALID_PAYLOAD, got %v", err)
	}

	if logs.FilterMessage("Starting code review").Len() != 0 {
		t.Error("expected no start log for rejected payloads")
	}
}

func TestExecutePropagatesGeneratorErrors(t *testing.T) {
	rl := apperrors.NewRateLimitError("anthropic", 0)
	gen := agent.GeneratorFunc(func(ctx context.Context, req agent.GenerateRequest) (*agent.Generation, error) {
		return nil, rl
	})
	a, _ := newTestAgent(t, gen, 0)

	_, err := a.Execute(context.Background(), v1alpha1.CodeReviewData{PRURL: "https://github.com/o/r/pull/1"})
	if err != error(rl) {
		t.Errorf("expected generator error unchanged, got %v", err)
	}
}

func TestExecuteWithoutGitHubTools(t *testing.T) {
	fs, _ := filesystem.NewRegistry(nil)
	a, err := New(Params{Files: fs, Generator: agent.NewStaticGenerator("x")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = a.Execute(context.Background(), v1alpha1.CodeReviewData{PRURL: "https://github.com/o/r/pull/1"})
	ae, ok := apperrors.From(err)
	if !ok || ae.Code != apperrors.CodeToolNotFound {
		t.Errorf("expected TOOL_NOT_FOUND, got %v", err)
	}
}

func TestNewRequiresGenerator(t *testing.T) {
	if _, err := New(Params{GitHub: tools.NewRegistry()}); err == nil {
		t.Error("expected error without generator")
	}
}
