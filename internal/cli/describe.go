package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klubi/relay/pkg/client"
)

func newDescribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <resource-type> <name>",
		Short: "Show detailed info about a resource",
		Long:  "Print a detailed description of a task run or tool in kubectl-describe style.",
		Example: `  relay describe taskrun review-42
  relay describe tool github:create_issue`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch normalizeResourceType(args[0]) {
			case "taskruns":
				return describeTaskRun(cmd, out, args[1])
			case "tools":
				return describeTool(cmd, out, args[1])
			default:
				return fmt.Errorf("unknown resource type %q", args[0])
			}
		},
	}

	return cmd
}

func describeTaskRun(cmd *cobra.Command, w io.Writer, name string) error {
	run, err := apiClient.GetTaskRun(cmd.Context(), name)
	if err != nil {
		return err
	}
	if done, err := printStructured(w, run); done || err != nil {
		return err
	}

	bold := color.New(color.Bold)

	bold.Fprintln(w, "TaskRun:")
	printField(w, "  Name", run.Metadata.Name)
	printField(w, "  UID", run.Metadata.UID)
	printField(w, "  Labels", formatLabels(run.Metadata.Labels))
	printField(w, "  Created", formatTime(run.Metadata.CreatedAt))
	printField(w, "  Updated", formatTime(run.Metadata.UpdatedAt))

	fmt.Fprintln(w)
	bold.Fprintln(w, "Spec:")
	printField(w, "  Type", string(run.Spec.Type))
	printField(w, "  User", run.Spec.UserID)
	printField(w, "  Priority", string(run.Spec.Priority))
	data := run.Spec.DataMap()
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printField(w, "  Data."+k, fmt.Sprint(data[k]))
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Status:")
	printField(w, "  Phase", colorPhase(string(run.Status.Phase)))
	printField(w, "  Started", formatTime(run.Status.StartedAt))
	printField(w, "  Finished", formatTime(run.Status.FinishedAt))

	res := run.Status.Result
	if res == nil {
		return nil
	}
	fmt.Fprintln(w)
	bold.Fprintln(w, "Result:")
	printField(w, "  Success", strconv.FormatBool(res.Success))
	printField(w, "  Duration", formatDuration(res.Duration))
	if res.Attempts > 0 {
		printField(w, "  Attempts", strconv.Itoa(res.Attempts))
	}
	if !res.Success {
		printField(w, "  Code", res.Code)
		if res.StatusCode != 0 {
			printField(w, "  Status Code", strconv.Itoa(res.StatusCode))
		}
		printField(w, "  Error", res.Error)
		return nil
	}
	fmt.Fprintln(w, "  Data:")
	return printJSON(w, res.Data)
}

func describeTool(cmd *cobra.Command, w io.Writer, name string) error {
	d, err := apiClient.GetTool(cmd.Context(), name)
	if err != nil {
		return err
	}
	if done, err := printStructured(w, d); done || err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Fprintln(w, "Tool:")
	printField(w, "  Name", d.Name)
	printField(w, "  Description", d.Description)
	printField(w, "  Required", strings.Join(requiredParams(d.Parameters), ", "))

	fmt.Fprintln(w)
	bold.Fprintln(w, "Parameters:")
	rows := make([][]string, 0, len(d.Parameters.Params))
	for _, p := range d.Parameters.Params {
		rows = append(rows, []string{p.Name, paramType(p), strconv.FormatBool(p.Required), paramConstraints(p), p.Default, p.Description})
	}
	printTable(w, []string{"  NAME", "TYPE", "REQUIRED", "CONSTRAINTS", "DEFAULT", "DESCRIPTION"}, indent(rows))
	return nil
}

func requiredParams(s client.ToolSchema) []string {
	var out []string
	for _, p := range s.Params {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

func paramType(p client.ToolParam) string {
	if p.Items != "" {
		return p.Type + "<" + p.Items + ">"
	}
	return p.Type
}

// paramConstraints renders enum and range constraints compactly, e.g.
// "open|closed|all" or "1..100".
func paramConstraints(p client.ToolParam) string {
	var parts []string
	if len(p.Enum) > 0 {
		parts = append(parts, strings.Join(p.Enum, "|"))
	}
	if p.Minimum != nil || p.Maximum != nil {
		parts = append(parts, bounds(p.Minimum, p.Maximum))
	}
	if p.MinLength != nil || p.MaxLength != nil {
		var lo, hi *float64
		if p.MinLength != nil {
			v := float64(*p.MinLength)
			lo = &v
		}
		if p.MaxLength != nil {
			v := float64(*p.MaxLength)
			hi = &v
		}
		parts = append(parts, "len "+bounds(lo, hi))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func bounds(lo, hi *float64) string {
	format := func(f *float64) string {
		if f == nil {
			return ""
		}
		return strconv.FormatFloat(*f, 'f', -1, 64)
	}
	return format(lo) + ".." + format(hi)
}

func indent(rows [][]string) [][]string {
	for _, r := range rows {
		if len(r) > 0 {
			r[0] = "  " + r[0]
		}
	}
	return rows
}
