package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
	"github.com/klubi/relay/pkg/client"
)

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		filter string
		values []string
		want   bool
	}{
		{"", []string{"anything"}, true},
		{"review", []string{"pr-1", "code-review"}, true},
		{"fail", []string{"deploy-1", "Failed"}, true},
		{"deploy", []string{"review-1", "code-review"}, false},
	}
	for _, tt := range tests {
		if got := matchesFilter(tt.filter, tt.values...); got != tt.want {
			t.Errorf("matchesFilter(%q, %v): expected %v, got %v", tt.filter, tt.values, tt.want, got)
		}
	}
}

func TestRunRow(t *testing.T) {
	run := v1alpha1.NewTaskRun("review-1", v1alpha1.Task{Type: v1alpha1.TaskCodeReview})
	row := runRow(*run)
	if row[0] != "review-1" || row[1] != "code-review" || row[2] != "Pending" {
		t.Errorf("unexpected row %v", row)
	}
	if row[3] != "-" || row[4] != "-" {
		t.Errorf("expected placeholders for duration and age, got %q and %q", row[3], row[4])
	}

	run.Status.Result = &v1alpha1.TaskResult{Success: true, Duration: 1500}
	if got := runRow(*run)[3]; got != "1.5s" {
		t.Errorf("expected duration 1.5s, got %q", got)
	}
}

func TestDescribeRun(t *testing.T) {
	run := v1alpha1.NewTaskRun("deploy-1", v1alpha1.Task{
		Type: v1alpha1.TaskDeployment,
		Data: v1alpha1.DeploymentData{Environment: "staging", Repo: "o/r", PRNumber: 3},
	})
	run.Metadata.Labels = map[string]string{"team": "infra"}
	run.Status.Phase = v1alpha1.RunFailed
	run.Status.Result = &v1alpha1.TaskResult{Error: "merge conflict", Code: "TOOL_FAILED"}

	out := describeRun(run)
	for _, want := range []string{"deploy-1", "[red]Failed[-]", "team: infra", "environment: staging", "Error (TOOL_FAILED)", "merge conflict"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected describe output to contain %q, got:\n%s", want, out)
		}
	}

	run.Status.Phase = v1alpha1.RunSucceeded
	run.Status.Result = &v1alpha1.TaskResult{Success: true, Data: map[string]string{"status": "deployed"}}
	out = describeRun(run)
	if !strings.Contains(out, `"status": "deployed"`) {
		t.Errorf("expected indented output data, got:\n%s", out)
	}
}

func TestDescribeTool(t *testing.T) {
	tool := &client.ToolDescriptor{
		Name:        "github:list_prs",
		Description: "List pull requests",
		Parameters: client.ToolSchema{Params: []client.ToolParam{
			{Name: "repo", Type: "string", Required: true},
			{Name: "state", Type: "string", Enum: []string{"open", "closed", "all"}},
		}},
	}
	out := describeTool(tool)
	for _, want := range []string{"github:list_prs", "repo string [yellow](required)[-]", "one of: open, closed, all"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected describe output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestHeaderText(t *testing.T) {
	h := headerText("http://127.0.0.1:7420", viewTools, "db")
	if !strings.Contains(h, "[::b]<2>[Tools][::-]") {
		t.Errorf("expected tools view highlighted, got %q", h)
	}
	if !strings.Contains(h, "<1>TaskRuns") || !strings.Contains(h, "filter: db") {
		t.Errorf("unexpected header %q", h)
	}
}

func TestFormatAge(t *testing.T) {
	if got := formatAge(time.Now().Add(-90 * time.Minute)); got != "1h" {
		t.Errorf("expected 1h, got %q", got)
	}
	if got := formatAge(time.Now().Add(-49 * time.Hour)); got != "2d" {
		t.Errorf("expected 2d, got %q", got)
	}
}

func TestPhaseColor(t *testing.T) {
	if phaseColor("Succeeded") != tcell.ColorGreen || phaseColor("Failed") != tcell.ColorRed {
		t.Error("unexpected terminal phase colors")
	}
	if phaseColorName("Running") != "yellow" || phaseColorName("Pending") != "white" {
		t.Error("unexpected phase color names")
	}
}
