package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List, describe and invoke agent tools",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every registered tool",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return getTools(cmd, cmd.OutOrStdout(), "")
			},
		},
		&cobra.Command{
			Use:   "describe <name>",
			Short: "Show a tool's parameters",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return describeTool(cmd, cmd.OutOrStdout(), args[0])
			},
		},
		newToolsInvokeCmd(),
	)

	return cmd
}

func newToolsInvokeCmd() *cobra.Command {
	var (
		input     string
		inputFile string
		sets      []string
	)

	cmd := &cobra.Command{
		Use:   "invoke <name>",
		Short: "Invoke a tool directly",
		Long: `Invoke a tool on the server and print its output.

Input is a JSON object given with --input, a JSON or YAML file given with
--file, and/or key=value pairs given with --set.`,
		Example: `  relay tools invoke github:create_issue --set repo=acme/api --set title="Flaky test"
  relay tools invoke db:query --input '{"sql":"SELECT * FROM users"}'
  relay tools invoke github:merge_pr -f merge.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputFile != "" {
				doc, err := readInputFile(inputFile)
				if err != nil {
					return err
				}
				input = doc
			}
			payload, err := buildPayload(input, sets)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}

			out, err := apiClient.InvokeTool(cmd.Context(), args[0], raw)
			if err != nil {
				return err
			}

			var v interface{}
			if err := json.Unmarshal(out, &v); err != nil {
				return fmt.Errorf("decoding tool output: %w", err)
			}
			if done, err := printStructured(cmd.OutOrStdout(), v); done || err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Tool input as a JSON object")
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read tool input from a JSON or YAML file")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Input field as key=value (repeatable)")

	return cmd
}

// readInputFile loads a JSON or YAML object and returns it as JSON.
func readInputFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading input file: %w", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parsing input file %s: %w", path, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
