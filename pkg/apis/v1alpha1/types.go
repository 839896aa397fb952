// Package v1alpha1 defines the relay task types and resource kinds.
package v1alpha1

import "time"

const (
	APIVersion = "relay.dev/v1alpha1"
)

// Resource kinds
const (
	KindTaskRun = "TaskRun"
)

// TypeMeta describes the API version and kind of a resource.
type TypeMeta struct {
	APIVersion string `json:"apiVersion" yaml:"apiVersion"`
	Kind       string `json:"kind" yaml:"kind"`
}

// ObjectMeta holds metadata common to all resources.
type ObjectMeta struct {
	Name      string            `json:"name" yaml:"name"`
	Labels    map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	UID       string            `json:"uid,omitempty" yaml:"uid,omitempty"`
	CreatedAt time.Time         `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// -------------------------------------------------------
// TaskResult
// -------------------------------------------------------

// TaskResult is the envelope produced exactly once per orchestrated task.
// Exactly one of Data or Error is meaningful, selected by Success.
type TaskResult struct {
	Success bool        `json:"success" yaml:"success"`
	Data    interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	Error   string      `json:"error,omitempty" yaml:"error,omitempty"`
	// Code and StatusCode are copied from the failing application error.
	Code       string `json:"code,omitempty" yaml:"code,omitempty"`
	StatusCode int    `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	// Duration is wall-clock milliseconds.
	Duration int64 `json:"duration" yaml:"duration"`
	// Attempts is set only when the task was retried.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// -------------------------------------------------------
// TaskRun (Job equivalent)
// -------------------------------------------------------

// TaskRunPhase represents the lifecycle phase of a TaskRun.
type TaskRunPhase string

const (
	RunPending   TaskRunPhase = "Pending"
	RunRunning   TaskRunPhase = "Running"
	RunSucceeded TaskRunPhase = "Succeeded"
	RunFailed    TaskRunPhase = "Failed"
)

// Finished reports whether the phase is terminal.
func (p TaskRunPhase) Finished() bool {
	return p == RunSucceeded || p == RunFailed
}

// TaskRun records one submission of a task and its outcome.
type TaskRun struct {
	TypeMeta `json:",inline" yaml:",inline"`
	Metadata ObjectMeta    `json:"metadata" yaml:"metadata"`
	Spec     Task          `json:"spec" yaml:"spec"`
	Status   TaskRunStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

type TaskRunStatus struct {
	Phase      TaskRunPhase `json:"phase" yaml:"phase"`
	Result     *TaskResult  `json:"result,omitempty" yaml:"result,omitempty"`
	StartedAt  time.Time    `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt time.Time    `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
}

// NewTaskRun returns a Pending run of task.
func NewTaskRun(name string, task Task) *TaskRun {
	return &TaskRun{
		TypeMeta: TypeMeta{APIVersion: APIVersion, Kind: KindTaskRun},
		Metadata: ObjectMeta{Name: name},
		Spec:     task,
		Status:   TaskRunStatus{Phase: RunPending},
	}
}

// -------------------------------------------------------
// Watch types
// -------------------------------------------------------

// EventType represents the type of a watch event.
type EventType string

const (
	EventAdded    EventType = "ADDED"
	EventModified EventType = "MODIFIED"
	EventDeleted  EventType = "DELETED"
)

// WatchEvent is emitted when a resource changes in the store.
type WatchEvent struct {
	Type   EventType
	Kind   string
	Key    string
	Object interface{}
}
