package cli

import (
	"github.com/spf13/cobra"

	"github.com/klubi/relay/pkg/client"
)

var (
	serverAddr string
	configPath string
	apiClient  *client.Client
)

// NewRootCmd creates the top-level relay CLI command with all subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Route development tasks to AI agents",
		Long: `Relay orchestrates code review and deployment agents.
Submit tasks, inspect recorded runs and call agent tools directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			apiClient = client.New(serverAddr)
		},
	}

	cmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:7420", "Relay server address")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json|yaml")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (serve and run --local)")

	cmd.AddCommand(
		newServeCmd(),
		newRunCmd(),
		newApplyCmd(),
		newGetCmd(),
		newDescribeCmd(),
		newDeleteCmd(),
		newToolsCmd(),
		newStatusCmd(),
		newInitCmd(),
		newUICmd(),
	)

	return cmd
}
