package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
	"github.com/klubi/relay/pkg/client"
)

func headerText(server, view, filter string) string {
	views := []struct{ key, id, label string }{
		{"1", viewRuns, "TaskRuns"},
		{"2", viewTools, "Tools"},
	}
	parts := make([]string, 0, len(views))
	for _, v := range views {
		if v.id == view {
			parts = append(parts, fmt.Sprintf("[::b]<%s>[%s][::-]", v.key, v.label))
		} else {
			parts = append(parts, fmt.Sprintf("<%s>%s", v.key, v.label))
		}
	}
	text := fmt.Sprintf(" [::b]Relay[::-] | %s | %s", server, strings.Join(parts, "  "))
	if filter != "" {
		text += fmt.Sprintf(" | [yellow]filter: %s[-]", filter)
	}
	return text
}

func runRow(r v1alpha1.TaskRun) []string {
	duration := "-"
	if r.Status.Result != nil {
		duration = (time.Duration(r.Status.Result.Duration) * time.Millisecond).String()
	}
	return []string{
		r.Metadata.Name,
		string(r.Spec.Type),
		string(r.Status.Phase),
		duration,
		formatAge(r.Metadata.CreatedAt),
	}
}

// matchesFilter reports whether any value contains filter, which must already
// be lower case.
func matchesFilter(filter string, values ...string) bool {
	if filter == "" {
		return true
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), filter) {
			return true
		}
	}
	return false
}

func field(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "[::b]%-10s[-::-] %s\n", label+":", value)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func describeRun(run *v1alpha1.TaskRun) string {
	var b strings.Builder
	field(&b, "Name", run.Metadata.Name)
	field(&b, "UID", run.Metadata.UID)
	field(&b, "Type", string(run.Spec.Type))
	field(&b, "User", run.Spec.UserID)
	field(&b, "Priority", string(run.Spec.Priority))
	phase := string(run.Status.Phase)
	field(&b, "Phase", fmt.Sprintf("[%s]%s[-]", phaseColorName(phase), phase))
	field(&b, "Created", stamp(run.Metadata.CreatedAt))
	field(&b, "Started", stamp(run.Status.StartedAt))
	field(&b, "Finished", stamp(run.Status.FinishedAt))

	if len(run.Metadata.Labels) > 0 {
		b.WriteString("[::b]Labels:[-::-]\n")
		writeSorted(&b, run.Metadata.Labels)
	}
	if data := run.Spec.DataMap(); len(data) > 0 {
		b.WriteString("[::b]Data:[-::-]\n")
		flat := make(map[string]string, len(data))
		for k, v := range data {
			flat[k] = fmt.Sprint(v)
		}
		writeSorted(&b, flat)
	}

	res := run.Status.Result
	if res == nil {
		return b.String()
	}
	b.WriteString("\n")
	if res.Success {
		out, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			out = []byte(fmt.Sprint(res.Data))
		}
		fmt.Fprintf(&b, "[::b]Output:[-::-]\n%s\n", out)
	} else {
		fmt.Fprintf(&b, "[red][::b]Error (%s):[-::-]\n%s[-]\n", res.Code, res.Error)
	}
	return b.String()
}

func describeTool(t *client.ToolDescriptor) string {
	var b strings.Builder
	field(&b, "Name", t.Name)
	b.WriteString(t.Description + "\n\n")
	b.WriteString("[::b]Parameters:[-::-]\n")
	for _, p := range t.Parameters.Params {
		req := ""
		if p.Required {
			req = " [yellow](required)[-]"
		}
		typ := p.Type
		if p.Items != "" {
			typ += "<" + p.Items + ">"
		}
		fmt.Fprintf(&b, "  %s %s%s\n", p.Name, typ, req)
		if len(p.Enum) > 0 {
			fmt.Fprintf(&b, "    one of: %s\n", strings.Join(p.Enum, ", "))
		}
		if p.Description != "" {
			fmt.Fprintf(&b, "    %s\n", p.Description)
		}
	}
	return b.String()
}

func writeSorted(b *strings.Builder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %s\n", k, m[k])
	}
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
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

func phaseColor(phase string) tcell.Color {
	switch v1alpha1.TaskRunPhase(phase) {
	case v1alpha1.RunSucceeded:
		return tcell.ColorGreen
	case v1alpha1.RunRunning:
		return tcell.ColorYellow
	case v1alpha1.RunFailed:
		return tcell.ColorRed
	default:
		return tcell.ColorWhite
	}
}

func phaseColorName(phase string) string {
	switch v1alpha1.TaskRunPhase(phase) {
	case v1alpha1.RunSucceeded:
		return "green"
	case v1alpha1.RunRunning:
		return "yellow"
	case v1alpha1.RunFailed:
		return "red"
	default:
		return "white"
	}
}
