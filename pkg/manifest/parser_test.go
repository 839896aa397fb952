package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klubi/relay/pkg/apis/v1alpha1"
)

func TestParseCodeReview(t *testing.T) {
	yaml := []byte(`
apiVersion: relay.dev/v1alpha1
kind: TaskRun
metadata:
  name: review-42
  labels:
    team: api
spec:
  type: code-review
  userId: u1
  priority: high
  data:
    prUrl: https://github.com/acme/api/pull/42
`)
	runs, err := ParseBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Kind != "TaskRun" {
		t.Errorf("expected kind TaskRun, got %s", run.Kind)
	}
	if run.Metadata.Name != "review-42" {
		t.Errorf("expected name review-42, got %s", run.Metadata.Name)
	}
	if run.Metadata.Labels["team"] != "api" {
		t.Errorf("expected label team=api, got %s", run.Metadata.Labels["team"])
	}
	if run.Spec.Priority != v1alpha1.PriorityHigh {
		t.Errorf("expected priority high, got %s", run.Spec.Priority)
	}
	if run.Spec.UserID != "u1" {
		t.Errorf("expected userId u1, got %s", run.Spec.UserID)
	}
	data, ok := run.Spec.Data.(v1alpha1.CodeReviewData)
	if !ok {
		t.Fatalf("expected CodeReviewData, got %T", run.Spec.Data)
	}
	if data.PRURL != "https://github.com/acme/api/pull/42" {
		t.Errorf("expected prUrl, got %s", data.PRURL)
	}
}

func TestParseDeployment(t *testing.T) {
	yaml := []byte(`
kind: TaskRun
metadata:
  name: ship-it
spec:
  type: deployment
  data:
    environment: staging
    repo: acme/api
    prNumber: 7
    mergeMethod: squash
    runMigrations: true
`)
	runs, err := ParseBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs[0].APIVersion != v1alpha1.APIVersion {
		t.Errorf("expected default apiVersion %s, got %s", v1alpha1.APIVersion, runs[0].APIVersion)
	}
	data, ok := runs[0].Spec.Data.(v1alpha1.DeploymentData)
	if !ok {
		t.Fatalf("expected DeploymentData, got %T", runs[0].Spec.Data)
	}
	if data.Environment != "staging" || data.Repo != "acme/api" || data.PRNumber != 7 {
		t.Errorf("unexpected deployment data: %+v", data)
	}
	if data.MergeMethod != "squash" || !data.RunMigrations {
		t.Errorf("expected squash with migrations, got %+v", data)
	}
}

func TestParseUnknownTaskTypeKeepsRawData(t *testing.T) {
	yaml := []byte(`
kind: TaskRun
spec:
  type: triage
  data:
    issue: 12
`)
	runs, err := ParseBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, ok := runs[0].Spec.Data.(v1alpha1.RawData)
	if !ok {
		t.Fatalf("expected RawData, got %T", runs[0].Spec.Data)
	}
	if raw["issue"] != 12 {
		t.Errorf("expected issue 12, got %v", raw["issue"])
	}
	if runs[0].Metadata.Name != "" {
		t.Errorf("expected empty name to be left for the server, got %s", runs[0].Metadata.Name)
	}
}

func TestParseMultiDocument(t *testing.T) {
	yaml := []byte(`
apiVersion: relay.dev/v1alpha1
kind: TaskRun
metadata:
  name: one
spec:
  type: code-review
  data:
    prUrl: https://github.com/o/r/pull/1
---
---
apiVersion: relay.dev/v1alpha1
kind: TaskRun
metadata:
  name: two
spec:
  type: deployment
`)
	runs, err := ParseBytes(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Metadata.Name != "one" || runs[1].Metadata.Name != "two" {
		t.Errorf("expected one then two, got %s then %s", runs[0].Metadata.Name, runs[1].Metadata.Name)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown kind", "kind: AgentPod\nmetadata:\n  name: x\n", "unknown resource kind"},
		{"wrong version", "apiVersion: relay.dev/v1beta1\nkind: TaskRun\nspec:\n  type: deployment\n", "unsupported apiVersion"},
		{"missing type", "kind: TaskRun\nmetadata:\n  name: x\n", "no spec.type"},
		{"status set", "kind: TaskRun\nspec:\n  type: deployment\nstatus:\n  phase: Succeeded\n", "must not set status"},
		{"bad payload", "kind: TaskRun\nspec:\n  type: code-review\n  data: [1, 2]\n", "decoding code-review payload"},
		{"bad yaml", "kind: [TaskRun\n", "decoding yaml document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	runs, err := ParseBytes([]byte("# nothing here\n---\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := "kind: TaskRun\nmetadata:\n  name: from-file\nspec:\n  type: deployment\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error writing file: %v", err)
	}

	runs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].Metadata.Name != "from-file" {
		t.Errorf("expected from-file, got %+v", runs)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestParseReader(t *testing.T) {
	runs, err := Parse(strings.NewReader("kind: TaskRun\nspec:\n  type: deployment\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}
