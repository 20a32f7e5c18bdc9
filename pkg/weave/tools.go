package weave

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"github.com/xeipuuv/gojsonschema"

	"github.com/weavelabs/weave-go/pkg/wire"
)

// WorkflowTools converts workflow descriptors into OpenAI function-tool
// parameters. The wire shape already matches the OpenAI format, so a
// world's workflow catalog can be handed to a chat completion request and
// the model's tool calls routed back through Session.RunWorkflow.
func WorkflowTools(descriptors []wire.WorkflowDescriptor) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		fn := shared.FunctionDefinitionParam{
			Name:       d.Function.Name,
			Parameters: shared.FunctionParameters(d.Function.Parameters),
		}
		if d.Function.Description != "" {
			fn.Description = openai.String(d.Function.Description)
		}
		if d.Function.Strict {
			fn.Strict = openai.Bool(true)
		}
		tools = append(tools, openai.ChatCompletionFunctionTool(fn))
	}
	return tools
}

// ValidateWorkflowArgs checks args against the descriptor's declared
// parameter schema before the workflow is sent. A descriptor without a
// schema accepts anything.
func ValidateWorkflowArgs(d wire.WorkflowDescriptor, args any) error {
	if len(d.Function.Parameters) == 0 {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(d.Function.Parameters),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("weave: validate args for %q: %w", d.Function.Name, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("weave: args for %q do not match schema: %s",
		d.Function.Name, strings.Join(msgs, "; "))
}
