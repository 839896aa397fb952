// Package deployment implements the deployment agent.
package deployment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/agent"
	"github.com/klubi/relay/internal/apperrors"
	"github.com/klubi/relay/internal/tools"
	"github.com/klubi/relay/internal/tools/database"
	"github.com/klubi/relay/internal/tools/github"
	"github.com/klubi/relay/pkg/apis/v1alpha1"
)

// Name is the agent name; it matches the task type it serves.
const Name = "deployment"

// DefaultEnvironment is used when the payload names none.
const DefaultEnvironment = "production"

const instructions = `You are a deployment agent. Merge the requested pull request
when one is given, apply pending database migrations when asked, and report
the environment that was deployed.`

// Result is returned by a successful deployment.
type Result struct {
	Status      string                  `json:"status" yaml:"status"`
	Environment string                  `json:"environment" yaml:"environment"`
	Merge       *github.MergeResult     `json:"merge,omitempty" yaml:"merge,omitempty"`
	Migration   *database.MigrateResult `json:"migration,omitempty" yaml:"migration,omitempty"`
}

// New builds the deployment agent with the github and database tools.
func New(gh, db *tools.Registry, logger *zap.Logger, opts ...tools.Option) (*agent.Agent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	toolset := tools.NewRegistry(append([]tools.Option{tools.WithLogger(logger)}, opts...)...)
	for _, r := range []*tools.Registry{gh, db} {
		if r == nil {
			continue
		}
		if err := toolset.Merge(r); err != nil {
			return nil, fmt.Errorf("building %s toolset: %w", Name, err)
		}
	}

	logger = logger.With(zap.String("agent", Name))
	return agent.New(agent.Config{
		Name:         Name,
		Description:  "Deploys changes to an environment",
		Instructions: instructions,
		Tools:        toolset,
		Options:      agent.Options{MaxSteps: 10},
	}, func(ctx context.Context, a *agent.Agent, data v1alpha1.TaskData) (interface{}, error) {
		return deploy(ctx, a, data, logger)
	}), nil
}

func deploy(ctx context.Context, a *agent.Agent, data v1alpha1.TaskData, logger *zap.Logger) (interface{}, error) {
	// A missing payload deploys with every default.
	if data == nil {
		data = v1alpha1.DeploymentData{}
	}
	d, ok := data.(v1alpha1.DeploymentData)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInvalidPayload,
			"%s agent expects a deployment payload, got %T", Name, data).WithStatus(400)
	}
	if err := tools.ValidateStruct(Name, d); err != nil {
		return nil, err
	}

	env := d.Environment
	if env == "" {
		env = DefaultEnvironment
	}
	logger.Info("Starting deployment", zap.String("environment", env))

	res := Result{Status: "deployed", Environment: env}

	if d.Repo != "" && d.PRNumber > 0 {
		out, err := a.Use(ctx, github.MergePR, github.MergePRInput{
			Repo:        d.Repo,
			PRNumber:    d.PRNumber,
			MergeMethod: d.MergeMethod,
		})
		if err != nil {
			return nil, err
		}
		mr, ok := out.(github.MergeResult)
		if !ok {
			return nil, apperrors.NewToolError(github.MergePR, fmt.Sprintf("unexpected output %T", out), nil)
		}
		res.Merge = &mr
	}

	if d.RunMigrations {
		out, err := a.Use(ctx, database.Migrate, database.MigrateInput{Direction: "up"})
		if err != nil {
			return nil, err
		}
		mig, ok := out.(database.MigrateResult)
		if !ok {
			return nil, apperrors.NewToolError(database.Migrate, fmt.Sprintf("unexpected output %T", out), nil)
		}
		res.Migration = &mig
	}

	return res, nil
}
