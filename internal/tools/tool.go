// Package tools defines named, schema-validated capabilities that agents
// invoke, and the registry that resolves them by name.
//
// Tool names follow "domain:action", e.g. "github:create_issue".
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/klubi/relay/internal/apperrors"
)

// Tool is a named capability with a declarative input schema.
type Tool interface {
	Name() string
	Description() string
	Parameters() Schema
	// Execute validates raw against the schema and runs the tool. Invalid
	// input fails with *apperrors.ValidationError before any side effect.
	Execute(ctx context.Context, raw json.RawMessage) (interface{}, error)
}

// Descriptor is the serialisable view of a tool.
type Descriptor struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Parameters  Schema `json:"parameters" yaml:"parameters"`
}

// Describe returns the descriptor of t.
func Describe(t Tool) Descriptor {
	return Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

// Func is the typed body of a tool. It only ever sees validated input.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

// TypedTool adapts a Func to the Tool interface. In must be a struct whose
// tags declare the schema.
type TypedTool[In, Out any] struct {
	name        string
	description string
	schema      Schema
	defaults    []fieldDefault
	fn          Func[In, Out]
}

// New builds a tool from a typed function. It panics if In is not a struct or
// carries malformed tags.
func New[In, Out any](name, description string, fn Func[In, Out]) *TypedTool[In, Out] {
	var zero In
	schema, defaults := buildSchema(reflect.TypeOf(zero))
	return &TypedTool[In, Out]{
		name:        name,
		description: description,
		schema:      schema,
		defaults:    defaults,
		fn:          fn,
	}
}

func (t *TypedTool[In, Out]) Name() string        { return t.name }
func (t *TypedTool[In, Out]) Description() string { return t.description }
func (t *TypedTool[In, Out]) Parameters() Schema  { return t.schema }

// Execute decodes raw, applies defaults, validates and calls the function.
func (t *TypedTool[In, Out]) Execute(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	in, err := t.Decode(raw)
	if err != nil {
		return nil, err
	}
	out, err := t.run(ctx, in)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Call validates an already-typed input and runs the tool. A typed value
// cannot leave a field out, so zero-valued fields take their defaults.
func (t *TypedTool[In, Out]) Call(ctx context.Context, in In) (Out, error) {
	applyDefaults(reflect.ValueOf(&in).Elem(), t.defaults, zeroField)
	return t.run(ctx, in)
}

func (t *TypedTool[In, Out]) run(ctx context.Context, in In) (Out, error) {
	var zero Out
	if err := ValidateStruct(t.name, in); err != nil {
		return zero, err
	}
	out, err := t.fn(ctx, in)
	if err != nil {
		return zero, wrapError(t.name, err)
	}
	return out, nil
}

// Decode parses raw into In and fills defaults for the keys raw leaves out.
// An explicit value, zero or not, is kept and validated as given. Unknown
// fields and type mismatches are validation failures.
func (t *TypedTool[In, Out]) Decode(raw json.RawMessage) (In, error) {
	var in In
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		applyDefaults(reflect.ValueOf(&in).Elem(), t.defaults, absentKey(nil))
		return in, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, decodeError(t.name, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return in, apperrors.NewValidationError(t.name, nil, fmt.Errorf("trailing data after input object"))
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return in, decodeError(t.name, err)
	}
	applyDefaults(reflect.ValueOf(&in).Elem(), t.defaults, absentKey(keys))
	return in, nil
}

// Marshal encodes arbitrary input for Execute. Raw messages pass through.
func Marshal(input interface{}) (json.RawMessage, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return json.RawMessage(v), nil
	}
	buf, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding tool input: %w", err)
	}
	return buf, nil
}

func decodeError(toolName string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "(root)"
		}
		return apperrors.NewValidationError(toolName, []apperrors.Violation{{
			Field:      field,
			Constraint: "type",
			Param:      typeErr.Type.String(),
		}}, err)
	}
	return apperrors.NewValidationError(toolName, nil, err)
}

// wrapError leaves family errors untouched and wraps anything else as a
// ToolError naming the tool.
func wrapError(toolName string, err error) error {
	if _, ok := apperrors.From(err); ok {
		return err
	}
	return apperrors.NewToolError(toolName, fmt.Sprintf("%s failed: %v", toolName, err), err)
}
