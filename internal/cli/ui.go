package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klubi/relay/internal/tui"
)

func newUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ui",
		Aliases: []string{"top", "dashboard"},
		Short:   "Launch the interactive terminal UI",
		Long:    "Launch a k9s-style terminal UI for browsing task runs and tools.",
		Example: `  relay ui
  relay ui --server http://127.0.0.1:7420`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tui.NewApp(apiClient).Run(); err != nil {
				return fmt.Errorf("UI error: %w", err)
			}
			return nil
		},
	}

	return cmd
}
