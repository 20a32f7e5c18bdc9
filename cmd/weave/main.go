// Command weave is a small CLI for poking at a Weave world: list its
// workflow catalog, run a workflow, or call an actor's command.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/weavelabs/weave-go/internal/config"
	"github.com/weavelabs/weave-go/internal/version"
	"github.com/weavelabs/weave-go/pkg/weave"
)

const usage = `usage: weave <command> [args]

commands:
  workflows                     list the world's workflows
  run <workflow> [json-args]    run a workflow and print its result
  call <actor> <command> [json-args...]
                                invoke an actor command and print its result
  version                       print the build version

configuration (environment):
  WEAVE_API_KEY (required), WEAVE_WORLD_ID, WEAVE_URL, WEAVE_DEBUG
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if os.Args[1] == "version" {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	session := weave.NewSession(weave.Config{
		URL:     cfg.URL,
		APIKey:  cfg.APIKey,
		WorldID: cfg.WorldID,
		Debug:   cfg.Debug,
	})
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "workflows":
		err = listWorkflows(ctx, session)
	case "run":
		err = runWorkflow(ctx, session, os.Args[2:])
	case "call":
		err = callCommand(ctx, session, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func listWorkflows(ctx context.Context, session *weave.Session) error {
	workflows, err := session.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	if len(workflows) == 0 {
		fmt.Println("no workflows available")
		return nil
	}
	for _, w := range workflows {
		if w.Function.Description != "" {
			fmt.Printf("%s\t%s\n", w.Function.Name, w.Function.Description)
		} else {
			fmt.Println(w.Function.Name)
		}
	}
	return nil
}

func runWorkflow(ctx context.Context, session *weave.Session, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("run: workflow name required")
	}
	var wfArgs any
	if len(args) > 1 {
		if err := json.Unmarshal([]byte(args[1]), &wfArgs); err != nil {
			return fmt.Errorf("run: args must be JSON: %w", err)
		}
	}
	result, err := session.RunWorkflow(ctx, args[0], wfArgs)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func callCommand(ctx context.Context, session *weave.Session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("call: actor and command required")
	}
	cmdArgs := make([]any, 0, len(args)-2)
	for _, raw := range args[2:] {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			// Bare words are convenient on the command line.
			v = raw
		}
		cmdArgs = append(cmdArgs, v)
	}
	result, err := session.RunCommand(ctx, args[0], args[1], cmdArgs...)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(raw json.RawMessage) error {
	if len(raw) == 0 {
		fmt.Println("null")
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "weave:", err)
	os.Exit(1)
}
