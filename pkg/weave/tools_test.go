package weave

import (
	"strings"
	"testing"

	"github.com/weavelabs/weave-go/pkg/wire"
)

func summarizeDescriptor() wire.WorkflowDescriptor {
	return wire.WorkflowDescriptor{
		Type: "function",
		Function: wire.WorkflowFunction{
			Name:        "summarize",
			Description: "Summarize a block of text",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":      map[string]any{"type": "string"},
					"sentences": map[string]any{"type": "integer", "minimum": 1},
				},
				"required": []any{"text"},
			},
			Strict: true,
		},
	}
}

func TestWorkflowTools(t *testing.T) {
	tools := WorkflowTools([]wire.WorkflowDescriptor{
		summarizeDescriptor(),
		{Type: "function", Function: wire.WorkflowFunction{Name: "bare"}},
	})
	if len(tools) != 2 {
		t.Fatalf("len = %d, want 2", len(tools))
	}

	fn := tools[0].GetFunction()
	if fn == nil {
		t.Fatal("first tool has no function")
	}
	if fn.Name != "summarize" {
		t.Errorf("Name = %q", fn.Name)
	}
	if fn.Description.Value != "Summarize a block of text" {
		t.Errorf("Description = %q", fn.Description.Value)
	}
	if !fn.Strict.Value {
		t.Error("Strict not carried through")
	}
	if _, ok := fn.Parameters["properties"]; !ok {
		t.Errorf("Parameters = %v", fn.Parameters)
	}

	bare := tools[1].GetFunction()
	if bare == nil || bare.Name != "bare" {
		t.Errorf("second tool = %+v", bare)
	}
}

func TestValidateWorkflowArgs(t *testing.T) {
	d := summarizeDescriptor()

	tests := []struct {
		name    string
		args    any
		wantErr string
	}{
		{
			name: "valid",
			args: map[string]any{"text": "hello", "sentences": 2},
		},
		{
			name:    "missing required",
			args:    map[string]any{"sentences": 2},
			wantErr: "text",
		},
		{
			name:    "wrong type",
			args:    map[string]any{"text": 7},
			wantErr: "text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWorkflowArgs(d, tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateWorkflowArgsNoSchema(t *testing.T) {
	d := wire.WorkflowDescriptor{Type: "function", Function: wire.WorkflowFunction{Name: "open"}}
	if err := ValidateWorkflowArgs(d, map[string]any{"anything": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateWorkflowArgs(d, nil); err != nil {
		t.Fatalf("unexpected error for nil args: %v", err)
	}
}
