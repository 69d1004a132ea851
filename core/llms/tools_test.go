package llms

import (
	"strings"
	"testing"
)

func TestNewToolReflectsParameterSchema(t *testing.T) {
	tool := NewTool("campus_schedule", "Look up the student's schedule",
		func(parameters struct {
			Day string `json:"day" jsonschema:"description=Day to look up"`
		}) (string, error) {
			return "classes on " + parameters.Day, nil
		})

	if tool.Parameters == nil {
		t.Fatal("expected a reflected parameter schema")
	}
	if _, ok := tool.Parameters.Properties.Get("day"); !ok {
		t.Error("expected schema to contain the day property")
	}
}

func TestToolExecuteParsesArguments(t *testing.T) {
	tool := NewTool("campus_schedule", "Look up the student's schedule",
		func(parameters struct {
			Day string `json:"day"`
		}) (string, error) {
			return "classes on " + parameters.Day, nil
		})

	result, err := tool.Execute(`{"day": "tuesday"}`)
	if err != nil {
		t.Fatalf("failed to execute tool: %v", err)
	}
	if result != "classes on tuesday" {
		t.Errorf("unexpected tool result: %q", result)
	}

	if _, err := tool.Execute(`{not json`); err == nil {
		t.Error("expected malformed arguments to fail")
	} else if !strings.Contains(err.Error(), "tool arguments") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFindTool(t *testing.T) {
	tools := []Tool{
		NewTool("a", "", func(struct{}) (string, error) { return "", nil }),
		NewTool("b", "", func(struct{}) (string, error) { return "", nil }),
	}

	if tool, ok := FindTool(tools, "b"); !ok || tool.Name != "b" {
		t.Errorf("expected to find tool b, got %v %v", tool.Name, ok)
	}
	if _, ok := FindTool(tools, "missing"); ok {
		t.Error("expected missing tool to not be found")
	}
}
