package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const manifestTemplate = `apiVersion: relay.dev/v1alpha1
kind: TaskRun
metadata:
  name: %[1]s-review
  labels:
    repo: %[1]s
spec:
  type: code-review
  priority: medium
  data:
    prUrl: https://github.com/%[2]s/pull/1
---
apiVersion: relay.dev/v1alpha1
kind: TaskRun
metadata:
  name: %[1]s-deploy
  labels:
    repo: %[1]s
spec:
  type: deployment
  priority: high
  data:
    environment: staging
    repo: %[2]s
    prNumber: 1
    mergeMethod: squash
    runMigrations: true
`

const configTemplate = `# relay configuration. Every key can also be set as RELAY_<SECTION>_<KEY>.
server:
  host: 127.0.0.1
  port: 7420
store:
  type: bolt
  data_dir: %s
agent:
  generator: static   # static | cli | anthropic
  model: claude-sonnet-4-20250514
  max_tokens: 4096
tools:
  cache_size: 64
  http_timeout: 30s
  max_review_files: 10
orchestrator:
  max_attempts: 1
  initial_backoff: 500ms
  max_backoff: 10s
log:
  level: info
  format: console
`

func newInitCmd() *cobra.Command {
	var (
		repo       string
		outputFile string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Write starter manifest and config files",
		Long: `Create a TaskRun manifest and a relay config file in the current directory.

The manifest holds a code review and a deployment run that you can customize
and submit with 'relay apply -f'.`,
		Example: `  relay init api --repo acme/api
  relay init api --output-file runs.yaml --config-file relay.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "example"
			if len(args) > 0 {
				name = args[0]
			}
			if repo == "" {
				repo = "acme/" + name
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			manifestPath := filepath.Join(cwd, outputFile)
			configFilePath := filepath.Join(cwd, configFile)
			for _, p := range []string{manifestPath, configFilePath} {
				if _, err := os.Stat(p); err == nil {
					return fmt.Errorf("file %s already exists", p)
				}
			}

			if err := os.WriteFile(manifestPath, []byte(fmt.Sprintf(manifestTemplate, name, repo)), 0o644); err != nil {
				return fmt.Errorf("writing manifest file: %w", err)
			}
			dataDir := filepath.Join(cwd, ".relay", "data")
			if err := os.WriteFile(configFilePath, []byte(fmt.Sprintf(configTemplate, dataDir)), 0o644); err != nil {
				return fmt.Errorf("writing config file: %w", err)
			}

			out := cmd.OutOrStdout()
			color.New(color.FgCyan, color.Bold).Fprintln(out, "Relay initialized!")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  Manifest: %s\n", manifestPath)
			fmt.Fprintf(out, "  Config:   %s\n", configFilePath)
			fmt.Fprintln(out)

			color.New(color.Bold).Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  1. Start the server:")
			fmt.Fprintf(out, "     relay serve --config %s\n", configFile)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  2. Submit the runs:")
			fmt.Fprintf(out, "     relay apply -f %s\n", outputFile)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  3. Inspect them:")
			fmt.Fprintln(out, "     relay get taskruns")
			fmt.Fprintf(out, "     relay describe taskrun %s-review\n", name)

			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository as owner/name (default: acme/<name>)")
	cmd.Flags().StringVar(&outputFile, "output-file", "taskruns.yaml", "Manifest filename")
	cmd.Flags().StringVar(&configFile, "config-file", "relay.yaml", "Config filename")

	return cmd
}
