// Package agent implements the agent factory and the text generation backends
// agents use to produce their output.
package agent

import (
	"context"

	"github.com/klubi/relay/internal/tools"
	"github.com/klubi/relay/pkg/apis/v1alpha1"
)

// ExecuteFunc is the behaviour of an agent variant. It receives the agent
// itself so it can reach the bound tools and options.
type ExecuteFunc func(ctx context.Context, a *Agent, data v1alpha1.TaskData) (interface{}, error)

// Config describes an agent at construction time.
type Config struct {
	Name         string
	Description  string
	Instructions string
	Tools        *tools.Registry
	Options      Options
}

// Options are per-agent tuning knobs.
type Options struct {
	MaxSteps          int
	Temperature       float64
	MaxFilesPerReview int
}

// Agent bundles instructions, a toolset and one execute strategy. It holds no
// state that changes between calls.
type Agent struct {
	name         string
	description  string
	instructions string
	tools        *tools.Registry
	options      Options
	execute      ExecuteFunc
}

// EchoResult is what an agent without its own strategy returns.
type EchoResult struct {
	Status string           `json:"status"`
	Data   v1alpha1.TaskData `json:"data"`
}

// New creates an agent. A nil execute echoes the payload back as
// {status: "success", data}.
func New(cfg Config, execute ExecuteFunc) *Agent {
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry()
	}
	if execute == nil {
		execute = echo
	}
	return &Agent{
		name:         cfg.Name,
		description:  cfg.Description,
		instructions: cfg.Instructions,
		tools:        cfg.Tools,
		options:      cfg.Options,
		execute:      execute,
	}
}

func echo(_ context.Context, _ *Agent, data v1alpha1.TaskData) (interface{}, error) {
	return EchoResult{Status: "success", Data: data}, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Description returns the one-line summary of what the agent does.
func (a *Agent) Description() string { return a.description }

// Instructions returns the system prompt the agent runs with.
func (a *Agent) Instructions() string { return a.instructions }

// Tools returns the registry of tools the agent may invoke.
func (a *Agent) Tools() *tools.Registry { return a.tools }

// Options returns the generation options the agent was built with.
func (a *Agent) Options() Options { return a.options }

// Execute runs the agent's strategy on data.
func (a *Agent) Execute(ctx context.Context, data v1alpha1.TaskData) (interface{}, error) {
	return a.execute(ctx, a, data)
}

// Use resolves and invokes one of the agent's tools.
func (a *Agent) Use(ctx context.Context, tool string, input interface{}) (interface{}, error) {
	return a.tools.Invoke(ctx, tool, input)
}
