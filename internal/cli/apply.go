package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klubi/relay/pkg/manifest"
)

func newApplyCmd() *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "apply -f <file>",
		Short: "Submit TaskRuns from a manifest file",
		Long: `Submit every TaskRun in a YAML manifest. Each run is orchestrated by the
server and recorded with its outcome. Use "-f -" to read standard input.`,
		Example: `  relay apply -f review.yaml
  cat runs.yaml | relay apply -f -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := manifest.ParseFile(filename)
			if err != nil {
				return fmt.Errorf("parsing manifest %s: %w", filename, err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No resources found in manifest.")
				return nil
			}

			failed := 0
			for _, run := range runs {
				created, err := apiClient.CreateTaskRun(cmd.Context(), run)
				if err != nil {
					return fmt.Errorf("applying taskrun/%s: %w", run.Metadata.Name, err)
				}
				fmt.Fprintf(out, "taskrun/%s created (%s)\n", created.Metadata.Name, colorPhase(string(created.Status.Phase)))
				if created.Status.Result != nil && !created.Status.Result.Success {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d task runs failed", failed, len(runs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filename, "filename", "f", "", "Path to manifest file (required)")
	cmd.MarkFlagRequired("filename")

	return cmd
}
