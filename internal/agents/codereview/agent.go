// Package codereview implements the code-review agent.
package codereview

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/agent"
	"github.com/klubi/relay/internal/apperrors"
	"github.com/klubi/relay/internal/tools"
	"github.com/klubi/relay/internal/tools/filesystem"
	"github.com/klubi/relay/internal/tools/github"
	"github.com/klubi/relay/pkg/apis/v1alpha1"
)

// Name is the agent name; it matches the task type it serves.
const Name = "code-review"

// Defaults for Params.
const (
	DefaultMaxSteps          = 15
	DefaultTemperature       = 0.7
	DefaultMaxFilesPerReview = 10
)

var prURLPattern = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([^/]+)/([^/]+)/pull/(\d+)/?$`)

// Params wires the agent's dependencies.
type Params struct {
	GitHub    *tools.Registry
	Files     *tools.Registry
	Generator agent.Generator
	Model     string
	MaxTokens int
	// Temperature and MaxFilesPerReview fall back to the package defaults
	// when zero.
	Temperature       float64
	MaxFilesPerReview int
	ToolOptions       []tools.Option
	Logger            *zap.Logger
}

// Result is returned by a successful review.
type Result struct {
	PRURL       string   `json:"prUrl" yaml:"prUrl"`
	Status      string   `json:"status" yaml:"status"`
	Feedback    string   `json:"feedback" yaml:"feedback"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Issues      []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

type reviewer struct {
	gen       agent.Generator
	model     string
	maxTokens int
	logger    *zap.Logger
}

// New builds the code review agent with the github and filesystem tools.
func New(p Params) (*agent.Agent, error) {
	if p.Generator == nil {
		return nil, fmt.Errorf("%s agent requires a generator", Name)
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.MaxFilesPerReview <= 0 {
		p.MaxFilesPerReview = DefaultMaxFilesPerReview
	}

	toolset := tools.NewRegistry(append([]tools.Option{tools.WithLogger(p.Logger)}, p.ToolOptions...)...)
	for _, r := range []*tools.Registry{p.GitHub, p.Files} {
		if r == nil {
			continue
		}
		if err := toolset.Merge(r); err != nil {
			return nil, fmt.Errorf("building %s toolset: %w", Name, err)
		}
	}

	rv := &reviewer{
		gen:       p.Generator,
		model:     p.Model,
		maxTokens: p.MaxTokens,
		logger:    p.Logger.With(zap.String("agent", Name)),
	}
	return agent.New(agent.Config{
		Name:         Name,
		Description:  "Reviews pull requests for quality, security and best practices",
		Instructions: Instructions,
		Tools:        toolset,
		Options: agent.Options{
			MaxSteps:          DefaultMaxSteps,
			Temperature:       p.Temperature,
			MaxFilesPerReview: p.MaxFilesPerReview,
		},
	}, rv.execute), nil
}

func (rv *reviewer) execute(ctx context.Context, a *agent.Agent, data v1alpha1.TaskData) (interface{}, error) {
	if data == nil {
		data = v1alpha1.CodeReviewData{}
	}
	d, ok := data.(v1alpha1.CodeReviewData)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInvalidPayload,
			"%s agent expects a code review payload, got %T", Name, data).WithStatus(400)
	}
	if err := tools.ValidateStruct(Name, d); err != nil {
		return nil, err
	}

	rv.logger.Info("Starting code review", zap.String("prUrl", d.PRURL))

	pr, files, err := rv.gather(ctx, a, d.PRURL)
	if err != nil {
		return nil, err
	}

	gen, err := rv.gen.Generate(ctx, agent.GenerateRequest{
		Model:        rv.model,
		SystemPrompt: a.Instructions(),
		Prompt:       buildPrompt(d.PRURL, pr, files),
		MaxTokens:    rv.maxTokens,
		Temperature:  a.Options().Temperature,
	})
	if err != nil {
		return nil, err
	}

	issues, suggestions := parseFindings(gen.Text)
	return Result{
		PRURL:       d.PRURL,
		Status:      "completed",
		Feedback:    gen.Text,
		Suggestions: suggestions,
		Issues:      issues,
	}, nil
}

// gather fetches the pull request and its changed files when the URL points
// at a GitHub pull request. Other URLs are reviewed from the URL alone.
func (rv *reviewer) gather(ctx context.Context, a *agent.Agent, prURL string) (*github.PullRequest, []filesystem.FileContent, error) {
	m := prURLPattern.FindStringSubmatch(prURL)
	if m == nil {
		return nil, nil, nil
	}
	number, err := strconv.Atoi(m[3])
	if err != nil {
		return nil, nil, nil
	}

	out, err := a.Use(ctx, github.GetPR, github.GetPRInput{Repo: m[1] + "/" + m[2], PRNumber: number})
	if err != nil {
		return nil, nil, err
	}
	pr, ok := out.(github.PullRequest)
	if !ok {
		return nil, nil, apperrors.NewToolError(github.GetPR, fmt.Sprintf("unexpected output %T", out), nil)
	}

	paths := pr.ChangedFiles
	if limit := a.Options().MaxFilesPerReview; len(paths) > limit {
		paths = paths[:limit]
	}
	files := make([]filesystem.FileContent, 0, len(paths))
	for _, path := range paths {
		out, err := a.Use(ctx, filesystem.Read, filesystem.ReadInput{Path: path})
		if err != nil {
			return nil, nil, err
		}
		if fc, ok := out.(filesystem.FileContent); ok {
			files = append(files, fc)
		}
	}

	rv.logger.Debug("gathered pull request context",
		zap.Int("prNumber", pr.Number),
		zap.Int("files", len(files)),
	)
	return &pr, files, nil
}
