package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// outputFormat is set by the root command's -o flag.
// Supported values: "table" (default), "json", "yaml".
var outputFormat string

// printTable writes tabular data using aligned columns.
func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// printJSON writes the value as pretty-printed JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML writes the value as YAML.
func printYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

// printStructured writes v as JSON or YAML per outputFormat and reports
// whether it did. Table output is left to the caller.
func printStructured(w io.Writer, v interface{}) (bool, error) {
	switch outputFormat {
	case "json":
		return true, printJSON(w, v)
	case "yaml":
		return true, printYAML(w, v)
	case "", "table":
		return false, nil
	default:
		return false, fmt.Errorf("unknown output format %q (want table, json or yaml)", outputFormat)
	}
}

// printOutput writes items as JSON, YAML or a table. For tables, toRow
// converts each item to a row of strings.
func printOutput[T any](w io.Writer, items []T, headers []string, toRow func(T) []string) error {
	if done, err := printStructured(w, items); done || err != nil {
		return err
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, toRow(item))
	}
	printTable(w, headers, rows)
	return nil
}

// printField writes one "Label: value" line of a describe view.
func printField(w io.Writer, label, value string) {
	if value == "" {
		value = "<none>"
	}
	fmt.Fprintf(w, "%-24s%s\n", label+":", value)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "<none>"
	}
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatAge returns a human-readable duration string relative to the given
// time, such as "5s", "3m", "2h", "4d". Returns "<unknown>" for zero times.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "<unknown>"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func colorPhase(phase string) string {
	switch phase {
	case "Succeeded":
		return color.GreenString(phase)
	case "Failed":
		return color.RedString(phase)
	case "Running":
		return color.YellowString(phase)
	case "Pending":
		return color.WhiteString(phase)
	default:
		return phase
	}
}
