package v1alpha1

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// TaskType selects the agent that handles a task.
type TaskType string

const (
	TaskCodeReview TaskType = "code-review"
	TaskDeployment TaskType = "deployment"
)

// Priority is informational; tasks are never reordered by it.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is a unit of work submitted to the orchestrator.
type Task struct {
	Type     TaskType
	Data     TaskData
	UserID   string
	Priority Priority
}

// TaskData is the payload of a task. The concrete type is selected by the
// task type:
//
//	code-review  CodeReviewData
//	deployment   DeploymentData
//	anything else RawData
type TaskData interface {
	taskData()
}

// CodeReviewData is the payload of a code-review task.
type CodeReviewData struct {
	PRURL string `json:"prUrl" yaml:"prUrl" validate:"required"`
}

// DeploymentData is the payload of a deployment task.
type DeploymentData struct {
	Environment   string `json:"environment,omitempty" yaml:"environment,omitempty"`
	Repo          string `json:"repo,omitempty" yaml:"repo,omitempty" validate:"required_with=PRNumber"`
	PRNumber      int    `json:"prNumber,omitempty" yaml:"prNumber,omitempty" validate:"omitempty,min=1"`
	MergeMethod   string `json:"mergeMethod,omitempty" yaml:"mergeMethod,omitempty" validate:"omitempty,oneof=merge squash rebase"`
	RunMigrations bool   `json:"runMigrations,omitempty" yaml:"runMigrations,omitempty"`
}

// RawData carries the payload of a task type with no typed variant.
type RawData map[string]interface{}

func (CodeReviewData) taskData() {}
func (DeploymentData) taskData() {}
func (RawData) taskData()        {}

// NewTask builds a task from loose key/values, picking the payload variant
// from taskType.
func NewTask(taskType TaskType, data map[string]interface{}) (Task, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Task{}, fmt.Errorf("encoding %s payload: %w", taskType, err)
	}
	d, err := decodeJSONData(taskType, raw)
	if err != nil {
		return Task{}, err
	}
	return Task{Type: taskType, Data: d}, nil
}

// DataMap returns the payload as generic key/values.
func (t Task) DataMap() map[string]interface{} {
	if raw, ok := t.Data.(RawData); ok {
		return raw
	}
	out := map[string]interface{}{}
	if t.Data == nil {
		return out
	}
	buf, err := json.Marshal(t.Data)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(buf, &out)
	return out
}

type taskJSON struct {
	Type     TaskType        `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Priority Priority        `json:"priority,omitempty"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	w := taskJSON{Type: t.Type, UserID: t.UserID, Priority: t.Priority}
	if t.Data != nil {
		buf, err := json.Marshal(t.Data)
		if err != nil {
			return nil, err
		}
		w.Data = buf
	}
	return json.Marshal(w)
}

func (t *Task) UnmarshalJSON(b []byte) error {
	var w taskJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	d, err := decodeJSONData(w.Type, w.Data)
	if err != nil {
		return err
	}
	*t = Task{Type: w.Type, Data: d, UserID: w.UserID, Priority: w.Priority}
	return nil
}

func decodeJSONData(taskType TaskType, raw json.RawMessage) (TaskData, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = []byte("{}")
	}
	switch taskType {
	case TaskCodeReview:
		var d CodeReviewData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", taskType, err)
		}
		return d, nil
	case TaskDeployment:
		var d DeploymentData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", taskType, err)
		}
		return d, nil
	default:
		d := RawData{}
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", taskType, err)
		}
		return d, nil
	}
}

type taskYAML struct {
	Type     TaskType    `yaml:"type"`
	Data     interface{} `yaml:"data,omitempty"`
	UserID   string      `yaml:"userId,omitempty"`
	Priority Priority    `yaml:"priority,omitempty"`
}

func (t Task) MarshalYAML() (interface{}, error) {
	return taskYAML{Type: t.Type, Data: t.Data, UserID: t.UserID, Priority: t.Priority}, nil
}

func (t *Task) UnmarshalYAML(value *yaml.Node) error {
	var w struct {
		Type     TaskType  `yaml:"type"`
		Data     yaml.Node `yaml:"data"`
		UserID   string    `yaml:"userId"`
		Priority Priority  `yaml:"priority"`
	}
	if err := value.Decode(&w); err != nil {
		return err
	}

	var (
		d   TaskData
		err error
	)
	switch w.Type {
	case TaskCodeReview:
		var v CodeReviewData
		err = decodeNode(&w.Data, &v)
		d = v
	case TaskDeployment:
		var v DeploymentData
		err = decodeNode(&w.Data, &v)
		d = v
	default:
		v := RawData{}
		err = decodeNode(&w.Data, &v)
		d = v
	}
	if err != nil {
		return fmt.Errorf("decoding %s payload: %w", w.Type, err)
	}
	*t = Task{Type: w.Type, Data: d, UserID: w.UserID, Priority: w.Priority}
	return nil
}

func decodeNode(n *yaml.Node, v interface{}) error {
	if n.Kind == 0 {
		return nil
	}
	return n.Decode(v)
}
