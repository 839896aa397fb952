package apiserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/app"
	"github.com/klubi/relay/internal/config"
	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

// newTestServer builds a server over a default in-memory app.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	a, err := app.Build(config.DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error building app: %v", err)
	}
	srv := NewServer("127.0.0.1:0", Deps{
		Orchestrator: a.Orchestrator,
		Tools:        a.Tools,
		Store:        a.Store,
		Gatherer:     a.Metrics,
	}, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		a.Close()
	})
	return ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("unexpected error building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error on %s %s: %v", method, url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "GET", ts.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestOrchestrateCodeReview(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/v1alpha1/orchestrate",
		`{"type":"code-review","data":{"prUrl":"https://github.com/o/r/pull/1"},"userId":"u1","priority":"high"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res struct {
		Success bool `json:"success"`
		Data    struct {
			PRURL    string `json:"prUrl"`
			Status   string `json:"status"`
			Feedback string `json:"feedback"`
		} `json:"data"`
	}
	decode(t, resp, &res)
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.Data.Status != "completed" {
		t.Errorf("expected status completed, got %q", res.Data.Status)
	}
	if res.Data.Feedback != "Code review completed successfully" {
		t.Errorf("expected static feedback, got %q", res.Data.Feedback)
	}
}

func TestOrchestrateUnknownType(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/v1alpha1/orchestrate", `{"type":"unknown","data":{}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res v1alpha1.TaskResult
	decode(t, resp, &res)
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "unknown") {
		t.Errorf("expected error to name the type, got %q", res.Error)
	}
	if res.Code != "UNKNOWN_TASK_TYPE" {
		t.Errorf("expected code UNKNOWN_TASK_TYPE, got %q", res.Code)
	}
}

func TestOrchestrateBadBody(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{not json`, `{"data":{}}`} {
		resp := do(t, "POST", ts.URL+"/api/v1alpha1/orchestrate", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

func TestTaskRunLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/v1alpha1/taskruns", `{
		"apiVersion": "relay.dev/v1alpha1",
		"kind": "TaskRun",
		"metadata": {"name": "review-1"},
		"spec": {"type": "code-review", "data": {"prUrl": "https://github.com/o/r/pull/7"}}
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created v1alpha1.TaskRun
	decode(t, resp, &created)
	if created.Status.Phase != v1alpha1.RunSucceeded {
		t.Errorf("expected phase Succeeded, got %s", created.Status.Phase)
	}
	if created.Status.Result == nil || !created.Status.Result.Success {
		t.Fatalf("expected a successful result, got %+v", created.Status.Result)
	}
	if created.Status.StartedAt.IsZero() || created.Status.FinishedAt.IsZero() {
		t.Error("expected start and finish times to be recorded")
	}

	resp = do(t, "GET", ts.URL+"/api/v1alpha1/taskruns/review-1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got v1alpha1.TaskRun
	decode(t, resp, &got)
	if got.Metadata.UID != created.Metadata.UID {
		t.Errorf("expected UID %s, got %s", created.Metadata.UID, got.Metadata.UID)
	}

	resp = do(t, "POST", ts.URL+"/api/v1alpha1/taskruns",
		`{"kind":"TaskRun","metadata":{"name":"review-1"},"spec":{"type":"code-review","data":{"prUrl":"x"}}}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", resp.StatusCode)
	}

	resp = do(t, "DELETE", ts.URL+"/api/v1alpha1/taskruns/review-1", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = do(t, "GET", ts.URL+"/api/v1alpha1/taskruns/review-1", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateTaskRunFromBareTask(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/v1alpha1/taskruns", `{"type":"deployment","data":{"environment":"staging"}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var run v1alpha1.TaskRun
	decode(t, resp, &run)
	if !strings.HasPrefix(run.Metadata.Name, "deployment-") {
		t.Errorf("expected generated name with deployment- prefix, got %s", run.Metadata.Name)
	}
	if run.Status.Phase != v1alpha1.RunSucceeded {
		t.Errorf("expected phase Succeeded, got %s", run.Status.Phase)
	}
}

func TestFailedTaskRunIsRecorded(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/v1alpha1/taskruns", `{"type":"code-review","data":{}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var run v1alpha1.TaskRun
	decode(t, resp, &run)
	if run.Status.Phase != v1alpha1.RunFailed {
		t.Errorf("expected phase Failed, got %s", run.Status.Phase)
	}

	resp = do(t, "GET", ts.URL+"/api/v1alpha1/taskruns?phase=Failed", "")
	var runs []v1alpha1.TaskRun
	decode(t, resp, &runs)
	if len(runs) != 1 {
		t.Errorf("expected 1 failed run, got %d", len(runs))
	}
}

func TestListTaskRunsEmptyAndBadLimit(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "GET", ts.URL+"/api/v1alpha1/taskruns", "")
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Errorf("expected empty JSON array, got %s", raw)
	}

	resp = do(t, "GET", ts.URL+"/api/v1alpha1/taskruns?limit=abc", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestListAndGetTools(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "GET", ts.URL+"/api/v1alpha1/tools", "")
	var descs []struct {
		Name string `json:"name"`
	}
	decode(t, resp, &descs)
	if len(descs) != 12 {
		t.Errorf("expected 12 tools, got %d", len(descs))
	}

	resp = do(t, "GET", ts.URL+"/api/v1alpha1/tools/github:create_issue", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = do(t, "GET", ts.URL+"/api/v1alpha1/tools/github:nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body errorBody
	decode(t, resp, &body)
	if body.Code != "TOOL_NOT_FOUND" {
		t.Errorf("expected code TOOL_NOT_FOUND, got %q", body.Code)
	}
}

func TestInvokeTool(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/v1alpha1/tools/github:create_issue/invoke", `{"repo":"o/r","title":"Bug"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var issue struct {
		IssueNumber int    `json:"issueNumber"`
		State       string `json:"state"`
	}
	decode(t, resp, &issue)
	if issue.IssueNumber != 42 {
		t.Errorf("expected issue 42, got %d", issue.IssueNumber)
	}
}

func TestInvokeToolValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/v1alpha1/tools/github:create_issue/invoke", `{"repo":"o/r"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body errorBody
	decode(t, resp, &body)
	if body.Code != "VALIDATION_ERROR" {
		t.Errorf("expected code VALIDATION_ERROR, got %q", body.Code)
	}
	if len(body.Violations) != 1 || body.Violations[0].Field != "title" {
		t.Errorf("expected a single title violation, got %+v", body.Violations)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/api/v1alpha1/orchestrate", `{"type":"deployment","data":{}}`)
	resp.Body.Close()

	resp = do(t, "GET", ts.URL+"/metrics", "")
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(raw), `relay_tasks_total{status="success",type="deployment"} 1`) {
		t.Errorf("expected deployment success counter in metrics output, got:\n%s", raw)
	}
}
