package llms

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Tool is a function the assistant may invoke mid-stream. Parameters are
// derived from the Go argument struct via schema reflection.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`

	execute func(arguments string) (string, error)
}

// NewTool builds a tool whose parameter schema is reflected from T.
func NewTool[T any](name, description string, execute func(parameters T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var zero T
	schema := reflector.ReflectFromType(reflect.TypeOf(zero))

	return Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		execute: func(arguments string) (string, error) {
			var parameters T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &parameters); err != nil {
					return "", fmt.Errorf("failed to parse tool arguments: %w", err)
				}
			}
			return execute(parameters)
		},
	}
}

// Execute runs the tool against the raw JSON arguments from the model.
func (t Tool) Execute(arguments string) (string, error) {
	if t.execute == nil {
		return "", fmt.Errorf("tool %q has no executor", t.Name)
	}
	return t.execute(arguments)
}

// FindTool returns the named tool, or false when it is not registered.
func FindTool(tools []Tool, name string) (Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}
