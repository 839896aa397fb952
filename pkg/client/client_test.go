package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/apiserver"
	"github.com/klubi/relay/internal/app"
	"github.com/klubi/relay/internal/config"
	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	a, err := app.Build(config.DefaultConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error building app: %v", err)
	}
	srv := apiserver.NewServer("", apiserver.Deps{
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
	return New(ts.URL)
}

func TestHealthz(t *testing.T) {
	c := newTestClient(t)
	if err := c.Healthz(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrchestrate(t *testing.T) {
	c := newTestClient(t)

	res, err := c.Orchestrate(context.Background(), v1alpha1.Task{Type: "unknown", Data: v1alpha1.RawData{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure for unknown type")
	}
	if res.Error != "Unknown task type: unknown" {
		t.Errorf("expected unknown task type error, got %q", res.Error)
	}
}

func TestTaskRunRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	run := v1alpha1.NewTaskRun("deploy-1", v1alpha1.Task{
		Type: v1alpha1.TaskDeployment,
		Data: v1alpha1.DeploymentData{Environment: "staging", Repo: "o/r", PRNumber: 3},
	})
	created, err := c.CreateTaskRun(ctx, run)
	if err != nil {
		t.Fatalf("unexpected error on create: %v", err)
	}
	if created.Status.Phase != v1alpha1.RunSucceeded {
		t.Errorf("expected phase Succeeded, got %s", created.Status.Phase)
	}

	got, err := c.GetTaskRun(ctx, "deploy-1")
	if err != nil {
		t.Fatalf("unexpected error on get: %v", err)
	}
	data, ok := got.Spec.Data.(v1alpha1.DeploymentData)
	if !ok {
		t.Fatalf("expected DeploymentData, got %T", got.Spec.Data)
	}
	if data.PRNumber != 3 {
		t.Errorf("expected prNumber 3, got %d", data.PRNumber)
	}

	runs, err := c.ListTaskRuns(ctx, ListOptions{Type: v1alpha1.TaskDeployment, Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error on list: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	if err := c.DeleteTaskRun(ctx, "deploy-1"); err != nil {
		t.Fatalf("unexpected error on delete: %v", err)
	}
	_, err = c.GetTaskRun(ctx, "deploy-1")
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestTools(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	descs, err := c.ListTools(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(descs) == 0 || descs[0].Name != "db:migrate" {
		t.Errorf("expected db:migrate first in name order, got %+v", descs)
	}

	desc, err := c.GetTool(ctx, "files:read")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.Name != "files:read" {
		t.Errorf("expected files:read, got %s", desc.Name)
	}

	out, err := c.InvokeTool(ctx, "db:migrate", json.RawMessage(`{"dryRun":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res map[string]interface{}
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatalf("unexpected error decoding output: %v", err)
	}
	if len(res) == 0 {
		t.Error("expected a migration result")
	}
}

func TestInvokeToolError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.InvokeTool(context.Background(), "github:get_pr", json.RawMessage(`{"repo":"o/r"}`))
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected code VALIDATION_ERROR, got %q", apiErr.Code)
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := New(ts.URL).Healthz(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "boom" {
		t.Errorf("expected 502 boom, got %d %q", apiErr.StatusCode, apiErr.Message)
	}
}
