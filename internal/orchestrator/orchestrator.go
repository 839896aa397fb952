// Package orchestrator dispatches tasks to agents and normalizes every
// outcome into a TaskResult envelope.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/agent"
	"github.com/klubi/relay/internal/apperrors"
	"github.com/klubi/relay/internal/logging"
	"github.com/klubi/relay/pkg/apis/v1alpha1"
)

// Route binds a task type to the agent that handles it.
type Route struct {
	Type  v1alpha1.TaskType
	Agent *agent.Agent
}

// Options tune dispatch.
type Options struct {
	Retry RetryPolicy
	// TaskTimeout bounds one Orchestrate call, retries included. Zero means
	// no bound beyond the caller's context.
	TaskTimeout time.Duration
	Metrics     *Metrics
}

// Orchestrator routes tasks through a fixed dispatch table. It holds no
// mutable state, so concurrent Orchestrate calls are independent.
type Orchestrator struct {
	routes  map[v1alpha1.TaskType]*agent.Agent
	opts    Options
	metrics *Metrics
	logger  *zap.Logger
}

// New builds the dispatch table. A type routed twice, or routed to a nil
// agent, is an error.
func New(routes []Route, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	table := make(map[v1alpha1.TaskType]*agent.Agent, len(routes))
	for _, r := range routes {
		if r.Agent == nil {
			return nil, fmt.Errorf("route %q has no agent", r.Type)
		}
		if _, dup := table[r.Type]; dup {
			return nil, fmt.Errorf("task type %q routed more than once", r.Type)
		}
		table[r.Type] = r.Agent
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Orchestrator{
		routes:  table,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Types returns the routed task types.
func (o *Orchestrator) Types() []v1alpha1.TaskType {
	out := make([]v1alpha1.TaskType, 0, len(o.routes))
	for t := range o.routes {
		out = append(out, t)
	}
	return out
}

// Agent returns the agent routed for taskType.
func (o *Orchestrator) Agent(taskType v1alpha1.TaskType) (*agent.Agent, bool) {
	a, ok := o.routes[taskType]
	return a, ok
}

// Orchestrate runs task and reports the outcome. It never panics and never
// returns an error; failures are carried in the envelope.
func (o *Orchestrator) Orchestrate(ctx context.Context, task v1alpha1.Task) v1alpha1.TaskResult {
	start := time.Now()

	o.logger.Info("Orchestrating task",
		zap.String("type", string(task.Type)),
		zap.String("userId", task.UserID),
		zap.String("priority", string(task.Priority)),
	)

	data, attempts, err := o.dispatch(ctx, task)
	elapsed := time.Since(start)

	label := string(task.Type)
	if _, routed := o.routes[task.Type]; !routed {
		label = unroutedLabel
	}
	o.metrics.observe(label, err == nil, elapsed.Seconds())

	result := v1alpha1.TaskResult{Duration: elapsed.Milliseconds()}
	if attempts > 1 {
		result.Attempts = attempts
	}

	if err != nil {
		result.Error = err.Error()
		if ae, ok := apperrors.From(err); ok {
			result.Code = ae.Code
			if status, known := ae.HTTPStatus(); known {
				result.StatusCode = status
			}
		}
		o.logger.Error("Task failed",
			logging.Err(err),
			zap.String("type", string(task.Type)),
			zap.Int64("duration", result.Duration),
		)
		return result
	}

	result.Success = true
	result.Data = data
	o.logger.Info("Task completed successfully",
		zap.String("type", string(task.Type)),
		zap.Int64("duration", result.Duration),
	)
	return result
}

func (o *Orchestrator) dispatch(ctx context.Context, task v1alpha1.Task) (interface{}, int, error) {
	a, ok := o.routes[task.Type]
	if !ok {
		return nil, 1, apperrors.Newf(apperrors.CodeUnknownTaskType, "Unknown task type: %s", task.Type).
			WithStatus(400)
	}

	if o.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.TaskTimeout)
		defer cancel()
	}

	return o.opts.Retry.run(ctx,
		func(ctx context.Context) (interface{}, error) {
			return o.invoke(ctx, a, task.Data)
		},
		func(err error, wait time.Duration) {
			o.metrics.retried(string(task.Type))
			o.logger.Warn("Retrying task",
				zap.String("type", string(task.Type)),
				zap.String("error", err.Error()),
				zap.Duration("backoff", wait),
			)
		},
	)
}

// invoke runs the agent and turns a panic into an AGENT_PANIC error.
func (o *Orchestrator) invoke(ctx context.Context, a *agent.Agent, data v1alpha1.TaskData) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("agent panicked",
				zap.String("agent", a.Name()),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			out = nil
			err = apperrors.Newf(apperrors.CodeAgentPanic, "agent %s panicked: %v", a.Name(), r)
		}
	}()
	return a.Execute(ctx, data)
}
