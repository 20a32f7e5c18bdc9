// Command weave-mcp bridges a Weave world's workflow catalog to the Model
// Context Protocol: every remote workflow becomes an MCP tool served over
// stdio, so MCP clients can run billable workflows without speaking the
// Weave wire protocol themselves.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/weavelabs/weave-go/internal/config"
	"github.com/weavelabs/weave-go/internal/version"
	"github.com/weavelabs/weave-go/pkg/weave"
	"github.com/weavelabs/weave-go/pkg/wire"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("weave-mcp: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := weave.NewSession(weave.Config{
		URL:     cfg.URL,
		APIKey:  cfg.APIKey,
		WorldID: cfg.WorldID,
		Debug:   cfg.Debug,
	})
	defer session.Close()

	workflows, err := session.ListWorkflows(ctx)
	if err != nil {
		log.Fatalf("weave-mcp: list workflows: %v", err)
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "weave-mcp",
		Version: version.String(),
	}, nil)

	for _, w := range workflows {
		if err := registerWorkflowTool(server, session, w); err != nil {
			log.Fatalf("weave-mcp: register %s: %v", w.Function.Name, err)
		}
	}

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("weave-mcp: %v", err)
	}
}

// registerWorkflowTool exposes one workflow as an MCP tool, reusing the
// workflow's declared parameter schema as the tool input schema.
func registerWorkflowTool(server *mcp.Server, session *weave.Session, w wire.WorkflowDescriptor) error {
	tool := &mcp.Tool{
		Name:        w.Function.Name,
		Description: w.Function.Description,
	}
	if len(w.Function.Parameters) > 0 {
		schema, err := toSchema(w.Function.Parameters)
		if err != nil {
			return err
		}
		tool.InputSchema = schema
	}

	name := w.Function.Name
	mcp.AddTool(server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		raw, err := session.RunWorkflow(ctx, name, args)
		if err != nil {
			return nil, nil, err
		}
		var result any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &result); err != nil {
				return nil, nil, fmt.Errorf("decode workflow result: %w", err)
			}
		}
		return nil, result, nil
	})
	return nil
}

func toSchema(params map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &schema, nil
}
