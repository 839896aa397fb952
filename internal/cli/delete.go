package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete taskrun <name>...",
		Short: "Delete recorded task runs",
		Long:  "Delete one or more task runs by name. Tools cannot be deleted.",
		Example: `  relay delete taskrun review-42
  relay delete runs review-1 review-2`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if normalizeResourceType(args[0]) != "taskruns" {
				return fmt.Errorf("unknown resource type %q. Valid types: taskruns", args[0])
			}
			for _, name := range args[1:] {
				if err := apiClient.DeleteTaskRun(cmd.Context(), name); err != nil {
					return fmt.Errorf("deleting taskrun/%s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "taskrun/%s deleted\n", name)
			}
			return nil
		},
	}

	return cmd
}
