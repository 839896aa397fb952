package apiserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/klubi/relay/internal/apperrors"
	"github.com/klubi/relay/internal/store"
	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// writeJSON serialises data as JSON and writes it to the response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// writeError writes a JSON error envelope to the response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// errorBody is the response for application errors.
type errorBody struct {
	Error      string                `json:"error"`
	Code       string                `json:"code,omitempty"`
	Violations []apperrors.Violation `json:"violations,omitempty"`
}

// writeAppError maps err onto its own status when it belongs to the
// application error family, and 500 otherwise.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	ae, ok := apperrors.From(err)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusInternalServerError
	if code, has := ae.HTTPStatus(); has && code >= 400 && code < 600 {
		status = code
	}
	body := errorBody{Error: ae.Message, Code: ae.Code}
	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		body.Violations = ve.Violations
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, name string) {
	switch err {
	case store.ErrNotFound:
		s.writeError(w, http.StatusNotFound, "taskrun "+name+" not found")
	case store.ErrAlreadyExists:
		s.writeError(w, http.StatusConflict, "taskrun "+name+" already exists")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Orchestrate
// ---------------------------------------------------------------------------

// handleOrchestrate runs one task and returns its envelope. The envelope is
// the outcome, so a failed task still answers 200.
func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var task v1alpha1.Task
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&task); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if task.Type == "" {
		s.writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	result := s.deps.Orchestrator.Orchestrate(r.Context(), task)
	s.writeJSON(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// TaskRuns
// ---------------------------------------------------------------------------

// handleCreateTaskRun records the run, orchestrates it synchronously and
// stores the outcome. The body may be a full TaskRun or a bare Task.
func (s *Server) handleCreateTaskRun(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := decodeTaskRun(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if run.Spec.Type == "" {
		s.writeError(w, http.StatusBadRequest, "spec.type is required")
		return
	}
	if run.Metadata.Name == "" {
		run.Metadata.Name = GenerateName(run.Spec.Type)
	}
	run.Status = v1alpha1.TaskRunStatus{Phase: v1alpha1.RunPending}

	if err := s.deps.Store.Create(run); err != nil {
		s.writeStoreError(w, err, run.Metadata.Name)
		return
	}

	run.Status.Phase = v1alpha1.RunRunning
	run.Status.StartedAt = time.Now().UTC()
	if err := s.deps.Store.Update(run); err != nil {
		s.writeStoreError(w, err, run.Metadata.Name)
		return
	}

	result := s.deps.Orchestrator.Orchestrate(r.Context(), run.Spec)

	run.Status.Result = &result
	run.Status.FinishedAt = time.Now().UTC()
	run.Status.Phase = v1alpha1.RunSucceeded
	if !result.Success {
		run.Status.Phase = v1alpha1.RunFailed
	}
	if err := s.deps.Store.Update(run); err != nil {
		s.writeStoreError(w, err, run.Metadata.Name)
		return
	}

	s.logger.Info("task run finished",
		zap.String("name", run.Metadata.Name),
		zap.String("phase", string(run.Status.Phase)),
		zap.Int64("duration", result.Duration),
	)
	s.writeJSON(w, http.StatusCreated, run)
}

// decodeTaskRun accepts either a TaskRun document or a bare Task.
func decodeTaskRun(raw []byte) (*v1alpha1.TaskRun, error) {
	var probe struct {
		Kind string          `json:"kind"`
		Spec json.RawMessage `json:"spec"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.Kind != "" || len(probe.Spec) > 0 {
		if probe.Kind != "" && probe.Kind != v1alpha1.KindTaskRun {
			return nil, errors.New("unsupported kind: " + probe.Kind)
		}
		var run v1alpha1.TaskRun
		if err := json.Unmarshal(raw, &run); err != nil {
			return nil, err
		}
		return &run, nil
	}

	var task v1alpha1.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, err
	}
	return v1alpha1.NewTaskRun("", task), nil
}

// GenerateName returns a fresh run name for a task type.
func GenerateName(taskType v1alpha1.TaskType) string {
	return string(taskType) + "-" + uuid.NewString()[:8]
}

func (s *Server) handleGetTaskRun(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	run, err := s.deps.Store.Get(name)
	if err != nil {
		s.writeStoreError(w, err, name)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListTaskRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{
		Phase: v1alpha1.TaskRunPhase(q.Get("phase")),
		Type:  v1alpha1.TaskType(q.Get("type")),
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}

	runs, err := s.deps.Store.List(opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*v1alpha1.TaskRun{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleDeleteTaskRun(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.deps.Store.Delete(name); err != nil {
		s.writeStoreError(w, err, name)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	descs, err := s.deps.Tools.DescribeAll()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, descs)
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	desc, err := s.deps.Tools.Describe(mux.Vars(r)["name"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, desc)
}

// handleInvokeTool runs a tool with the request body as its input. An empty
// body is treated as an empty input.
func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.deps.Tools.Invoke(r.Context(), name, json.RawMessage(raw))
	if err != nil {
		s.logger.Warn("tool invocation failed",
			zap.String("tool", name),
			zap.String("kind", apperrors.KindOf(err)),
			zap.Error(err),
		)
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}
