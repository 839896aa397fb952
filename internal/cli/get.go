package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
	"github.com/klubi/relay/pkg/client"
)

func newGetCmd() *cobra.Command {
	var (
		phase    string
		taskType string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "get <resource-type> [name]",
		Short: "List or get resources",
		Long: `Display one or many resources.

Resource types: taskruns (taskrun, runs, tr), tools (tool)`,
		Example: `  relay get taskruns
  relay get taskruns --phase Failed --limit 10
  relay get taskrun review-42 -o yaml
  relay get tools`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 1 {
				name = args[1]
			}

			out := cmd.OutOrStdout()
			switch normalizeResourceType(args[0]) {
			case "taskruns":
				return getTaskRuns(cmd, out, name, client.ListOptions{
					Phase: v1alpha1.TaskRunPhase(phase),
					Type:  v1alpha1.TaskType(taskType),
					Limit: limit,
				})
			case "tools":
				return getTools(cmd, out, name)
			default:
				return fmt.Errorf("unknown resource type %q. Valid types: taskruns, tools", args[0])
			}
		},
	}

	cmd.Flags().StringVar(&phase, "phase", "", "Filter task runs by phase")
	cmd.Flags().StringVar(&taskType, "type", "", "Filter task runs by task type")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of task runs (0 = all)")

	return cmd
}

// normalizeResourceType maps various aliases to canonical resource type names.
func normalizeResourceType(t string) string {
	switch strings.ToLower(t) {
	case "taskrun", "taskruns", "run", "runs", "tr":
		return "taskruns"
	case "tool", "tools":
		return "tools"
	default:
		return t
	}
}

func getTaskRuns(cmd *cobra.Command, out io.Writer, name string, opts client.ListOptions) error {
	var runs []v1alpha1.TaskRun
	if name != "" {
		run, err := apiClient.GetTaskRun(cmd.Context(), name)
		if err != nil {
			return err
		}
		runs = []v1alpha1.TaskRun{*run}
	} else {
		var err error
		runs, err = apiClient.ListTaskRuns(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(runs) == 0 && outputFormat == "table" {
			fmt.Fprintln(out, "No task runs found.")
			return nil
		}
	}
	return printOutput(out, runs, taskRunHeaders, taskRunToRow)
}

var taskRunHeaders = []string{"NAME", "TYPE", "PHASE", "DURATION", "ATTEMPTS", "AGE"}

func taskRunToRow(run v1alpha1.TaskRun) []string {
	duration, attempts := "-", "-"
	if res := run.Status.Result; res != nil {
		duration = formatDuration(res.Duration)
		attempts = "1"
		if res.Attempts > 0 {
			attempts = strconv.Itoa(res.Attempts)
		}
	}
	return []string{
		run.Metadata.Name,
		string(run.Spec.Type),
		colorPhase(string(run.Status.Phase)),
		duration,
		attempts,
		formatAge(run.Metadata.CreatedAt),
	}
}

func getTools(cmd *cobra.Command, out io.Writer, name string) error {
	var descs []client.ToolDescriptor
	if name != "" {
		d, err := apiClient.GetTool(cmd.Context(), name)
		if err != nil {
			return err
		}
		descs = []client.ToolDescriptor{*d}
	} else {
		var err error
		descs, err = apiClient.ListTools(cmd.Context())
		if err != nil {
			return err
		}
	}
	return printOutput(out, descs, toolHeaders, toolToRow)
}

var toolHeaders = []string{"NAME", "DESCRIPTION"}

func toolToRow(d client.ToolDescriptor) []string {
	return []string{d.Name, truncate(d.Description, 70)}
}
