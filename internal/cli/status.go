package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
	"github.com/klubi/relay/pkg/client"
)

func newStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server dashboard",
		Long:  "Display an overview of the relay server: health, recorded runs by phase and tools.",
		Example: `  relay status
  relay status --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if watch {
				return statusWatch(cmd.Context(), out)
			}
			return statusPrint(cmd.Context(), out)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Continuously refresh (every 5 seconds)")

	return cmd
}

func statusPrint(ctx context.Context, w io.Writer) error {
	if err := apiClient.Healthz(ctx); err != nil {
		color.New(color.FgRed).Fprintln(w, "Relay: UNREACHABLE")
		return fmt.Errorf("cannot reach server: %w", err)
	}

	color.New(color.FgCyan, color.Bold).Fprintln(w, "Relay Status")
	fmt.Fprintln(w, "============")
	fmt.Fprintln(w)

	tools, err := apiClient.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}
	domains := map[string]int{}
	for _, t := range tools {
		domain, _, _ := strings.Cut(t.Name, ":")
		domains[domain]++
	}
	fmt.Fprintf(w, "Tools: %d", len(tools))
	if len(domains) > 0 {
		parts := make([]string, 0, len(domains))
		for _, d := range []string{"github", "files", "db"} {
			if n := domains[d]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, d))
			}
		}
		fmt.Fprintf(w, " (%s)", strings.Join(parts, ", "))
	}
	fmt.Fprintln(w)

	runs, err := apiClient.ListTaskRuns(ctx, client.ListOptions{})
	if err != nil {
		return fmt.Errorf("listing task runs: %w", err)
	}
	counts := map[v1alpha1.TaskRunPhase]int{}
	byType := map[v1alpha1.TaskType]int{}
	for _, r := range runs {
		counts[r.Status.Phase]++
		byType[r.Spec.Type]++
	}

	fmt.Fprintf(w, "Task Runs: %d total", len(runs))
	if len(runs) > 0 {
		var parts []string
		if n := counts[v1alpha1.RunPending]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d pending", n))
		}
		if n := counts[v1alpha1.RunRunning]; n > 0 {
			parts = append(parts, color.YellowString("%d running", n))
		}
		if n := counts[v1alpha1.RunSucceeded]; n > 0 {
			parts = append(parts, color.GreenString("%d succeeded", n))
		}
		if n := counts[v1alpha1.RunFailed]; n > 0 {
			parts = append(parts, color.RedString("%d failed", n))
		}
		fmt.Fprintf(w, " (%s)", strings.Join(parts, ", "))
	}
	fmt.Fprintln(w)

	for _, t := range []v1alpha1.TaskType{v1alpha1.TaskCodeReview, v1alpha1.TaskDeployment} {
		fmt.Fprintf(w, "  %-14s %d\n", t, byType[t])
	}

	if len(runs) > 0 {
		last := runs[0]
		fmt.Fprintf(w, "\nLast run: %s (%s, %s ago)\n",
			last.Metadata.Name, colorPhase(string(last.Status.Phase)), formatAge(last.Metadata.CreatedAt))
	}
	return nil
}

func statusWatch(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "Watching status (Ctrl+C to stop)...")
	fmt.Fprintln(w)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		// Clear screen with ANSI escape.
		fmt.Fprint(w, "\033[2J\033[H")

		if err := statusPrint(ctx, w); err != nil {
			fmt.Fprintf(w, "\nError: %v\n", err)
		}
		fmt.Fprintf(w, "\nLast updated: %s\n", time.Now().Format("15:04:05"))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
