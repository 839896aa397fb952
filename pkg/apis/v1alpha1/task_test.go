package v1alpha1

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestTaskJSONPicksVariant(t *testing.T) {
	cases := []struct {
		in    string
		check func(t *testing.T, d TaskData)
	}{
		{
			in: `{"type":"code-review","data":{"prUrl":"https://github.com/o/r/pull/1"},"userId":"u1","priority":"high"}`,
			check: func(t *testing.T, d TaskData) {
				cr, ok := d.(CodeReviewData)
				if !ok {
					t.Fatalf("expected CodeReviewData, got %T", d)
				}
				if cr.PRURL != "https://github.com/o/r/pull/1" {
					t.Errorf("unexpected prUrl %q", cr.PRURL)
				}
			},
		},
		{
			in: `{"type":"deployment","data":{"environment":"staging","repo":"o/r","prNumber":4}}`,
			check: func(t *testing.T, d TaskData) {
				dd, ok := d.(DeploymentData)
				if !ok {
					t.Fatalf("expected DeploymentData, got %T", d)
				}
				if dd.Environment != "staging" || dd.PRNumber != 4 {
					t.Errorf("unexpected payload %+v", dd)
				}
			},
		},
		{
			in: `{"type":"unknown-type","data":{"x":1}}`,
			check: func(t *testing.T, d TaskData) {
				raw, ok := d.(RawData)
				if !ok {
					t.Fatalf("expected RawData, got %T", d)
				}
				if raw["x"] != float64(1) {
					t.Errorf("unexpected raw payload %v", raw)
				}
			},
		},
		{
			in: `{"type":"code-review"}`,
			check: func(t *testing.T, d TaskData) {
				if cr, ok := d.(CodeReviewData); !ok || cr.PRURL != "" {
					t.Errorf("expected empty CodeReviewData, got %#v", d)
				}
			},
		},
	}

	for _, tc := range cases {
		var task Task
		if err := json.Unmarshal([]byte(tc.in), &task); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		tc.check(t, task.Data)
	}
}

func TestTaskJSONRejectsMalformedPayload(t *testing.T) {
	var task Task
	err := json.Unmarshal([]byte(`{"type":"code-review","data":{"prUrl":7}}`), &task)
	if err == nil {
		t.Fatal("expected error for numeric prUrl")
	}
	if !strings.Contains(err.Error(), "code-review") {
		t.Errorf("expected error to name the task type, got %v", err)
	}
}

func TestTaskJSONRoundTrip(t *testing.T) {
	task := Task{
		Type:     TaskCodeReview,
		Data:     CodeReviewData{PRURL: "https://github.com/o/r/pull/2"},
		UserID:   "u7",
		Priority: PriorityLow,
	}

	buf, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	expected := `{"type":"code-review","data":{"prUrl":"https://github.com/o/r/pull/2"},"userId":"u7","priority":"low"}`
	if string(buf) != expected {
		t.Errorf("expected %s, got %s", expected, buf)
	}

	var back Task
	if err := json.Unmarshal(buf, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != task {
		t.Errorf("expected %+v, got %+v", task, back)
	}
}

func TestTaskYAML(t *testing.T) {
	doc := `
type: deployment
userId: ops
data:
  environment: staging
  runMigrations: true
`
	var task Task
	if err := yaml.Unmarshal([]byte(doc), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	dd, ok := task.Data.(DeploymentData)
	if !ok {
		t.Fatalf("expected DeploymentData, got %T", task.Data)
	}
	if dd.Environment != "staging" || !dd.RunMigrations || task.UserID != "ops" {
		t.Errorf("unexpected task %+v", task)
	}

	out, err := yaml.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), "runMigrations: true") {
		t.Errorf("expected payload in YAML output, got:\n%s", out)
	}
}

func TestNewTask(t *testing.T) {
	task, err := NewTask(TaskCodeReview, map[string]interface{}{"prUrl": "https://x/pull/1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cr := task.Data.(CodeReviewData); cr.PRURL != "https://x/pull/1" {
		t.Errorf("unexpected payload %+v", cr)
	}
	if m := task.DataMap(); m["prUrl"] != "https://x/pull/1" {
		t.Errorf("unexpected data map %v", m)
	}

	if _, err := NewTask(TaskDeployment, map[string]interface{}{"prNumber": "four"}); err == nil {
		t.Error("expected malformed deployment payload to fail")
	}
}
