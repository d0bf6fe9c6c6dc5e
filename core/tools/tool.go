package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-live/core/transport"
	"github.com/xeipuuv/gojsonschema"
)

// Handler executes a tool call. The returned value is sent back to the
// model as the call's output.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the arguments object.
	Parameters json.RawMessage

	handler Handler
	schema  *gojsonschema.Schema
}

// NewTool derives the parameter schema from T and decodes arguments into it
// before calling execute.
func NewTool[T any](name, description string, execute func(ctx context.Context, args T) (any, error)) (Tool, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.ReflectFromType(reflect.TypeOf((*T)(nil)).Elem())
	schema.Version = ""
	schema.ID = ""

	parameters, err := json.Marshal(schema)
	if err != nil {
		return Tool{}, fmt.Errorf("failed to marshal parameter schema of tool %q: %w", name, err)
	}

	return NewRawTool(name, description, parameters, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("failed to decode arguments: %w", err)
			}
		}
		return execute(ctx, args)
	})
}

// MustNewTool is NewTool for statically known argument types.
func MustNewTool[T any](name, description string, execute func(ctx context.Context, args T) (any, error)) Tool {
	tool, err := NewTool(name, description, execute)
	if err != nil {
		panic(err)
	}
	return tool
}

// NewRawTool builds a tool from an explicit schema. An empty schema accepts
// any arguments object.
func NewRawTool(name, description string, parameters json.RawMessage, handler Handler) (Tool, error) {
	if strings.TrimSpace(name) == "" {
		return Tool{}, fmt.Errorf("tool name must not be empty")
	}
	if handler == nil {
		return Tool{}, fmt.Errorf("tool %q has no handler", name)
	}

	tool := Tool{Name: name, Description: description, Parameters: parameters, handler: handler}
	if len(parameters) > 0 {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(parameters))
		if err != nil {
			return Tool{}, fmt.Errorf("invalid parameter schema for tool %q: %w", name, err)
		}
		tool.schema = schema
	}
	return tool, nil
}

func (t Tool) Declaration() transport.ToolDeclaration {
	return transport.ToolDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// ValidationError describes arguments that do not satisfy a tool's schema.
type ValidationError struct {
	Tool   string
	Detail []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(e.Detail, "; "))
}

func (t Tool) Validate(args json.RawMessage) error {
	if t.schema == nil {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	result, err := t.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return &ValidationError{Tool: t.Name, Detail: []string{err.Error()}}
	}
	if !result.Valid() {
		detail := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			detail[i] = desc.String()
		}
		return &ValidationError{Tool: t.Name, Detail: detail}
	}
	return nil
}
