package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/klubi/relay/internal/apiserver"
	"github.com/klubi/relay/internal/app"
	"github.com/klubi/relay/internal/config"
	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

func newRunCmd() *cobra.Command {
	var (
		name     string
		data     string
		sets     []string
		userID   string
		priority string
		local    bool
	)

	cmd := &cobra.Command{
		Use:   "run <task-type>",
		Short: "Run a task and print its result",
		Long: `Submit one task and wait for its result.

The payload is given as JSON with --data, as key=value pairs with --set, or
both (--set wins). Values given with --set are parsed as YAML scalars, so
numbers and booleans keep their type.

By default the task is recorded as a TaskRun on the server. With --local it
runs in this process and nothing is recorded.`,
		Example: `  relay run code-review --set prUrl=https://github.com/acme/api/pull/42
  relay run deployment --set environment=staging --set repo=acme/api --set prNumber=7
  relay run deployment --data '{"runMigrations":true}' --local -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(data, sets)
			if err != nil {
				return err
			}
			task, err := v1alpha1.NewTask(v1alpha1.TaskType(args[0]), payload)
			if err != nil {
				return err
			}
			task.UserID = userID
			task.Priority = v1alpha1.Priority(priority)

			var result v1alpha1.TaskResult
			if local {
				result, err = runLocal(cmd.Context(), task)
			} else {
				result, err = runRemote(cmd.Context(), name, task)
			}
			if err != nil {
				return err
			}

			if err := printResult(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("task %s failed", task.Type)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "TaskRun name (default: generated)")
	cmd.Flags().StringVar(&data, "data", "", "Task payload as a JSON object")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Payload field as key=value (repeatable)")
	cmd.Flags().StringVar(&userID, "user", "", "User ID recorded with the task")
	cmd.Flags().StringVar(&priority, "priority", string(v1alpha1.PriorityMedium), "Task priority: low|medium|high")
	cmd.Flags().BoolVar(&local, "local", false, "Run in-process instead of on the server")

	return cmd
}

// buildPayload merges the --data object with --set pairs.
func buildPayload(data string, sets []string) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q must be key=value", kv)
		}
		payload[key] = parseScalar(raw)
	}
	return payload, nil
}

// parseScalar returns raw as a YAML number or bool when it is one, and as the
// plain string otherwise. "a: b" stays a string rather than becoming a map.
func parseScalar(raw string) interface{} {
	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool:
		return v
	default:
		return raw
	}
}

func runRemote(ctx context.Context, name string, task v1alpha1.Task) (v1alpha1.TaskResult, error) {
	if name == "" {
		name = apiserver.GenerateName(task.Type)
	}
	run, err := apiClient.CreateTaskRun(ctx, v1alpha1.NewTaskRun(name, task))
	if err != nil {
		return v1alpha1.TaskResult{}, fmt.Errorf("creating task run: %w", err)
	}
	if run.Status.Result == nil {
		return v1alpha1.TaskResult{}, fmt.Errorf("task run %s has no result", run.Metadata.Name)
	}
	return *run.Status.Result, nil
}

func runLocal(ctx context.Context, task v1alpha1.Task) (v1alpha1.TaskResult, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return v1alpha1.TaskResult{}, err
	}
	// The store is not used in-process; keep it in memory.
	cfg.Store.Type = "memory"

	a, err := app.Build(cfg, zap.NewNop())
	if err != nil {
		return v1alpha1.TaskResult{}, err
	}
	defer a.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	return a.Orchestrator.Orchestrate(ctx, task), nil
}

// printResult writes the envelope. Table output shows a colored banner and
// the data or error below it.
func printResult(w io.Writer, res v1alpha1.TaskResult) error {
	if done, err := printStructured(w, res); done || err != nil {
		return err
	}

	if res.Success {
		color.New(color.FgGreen, color.Bold).Fprintf(w, "Task Succeeded")
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(w, "Task Failed")
	}
	fmt.Fprintf(w, " (%s", formatDuration(res.Duration))
	if res.Attempts > 1 {
		fmt.Fprintf(w, ", %d attempts", res.Attempts)
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	if !res.Success {
		if res.Code != "" {
			fmt.Fprintf(w, "[%s] ", res.Code)
		}
		fmt.Fprintln(w, res.Error)
		return nil
	}
	return printJSON(w, res.Data)
}
