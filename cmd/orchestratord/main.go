// Package main provides the CLI entry point for orchestratord, the
// standalone process that hosts the agent orchestration core: workflow
// compilation and execution, the tool runtime, the agent turn engine, the
// event bus, and the scheduler admission guard. HTTP/REST, auth, and the
// LLM provider itself are deliberately external to this binary; orchestratord
// wires the pieces together and runs the engine, it does not serve a public
// API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/eventbus"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/scheduler"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/workflow"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "orchestratord",
		Short:        "Run and inspect agent orchestration workflows",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd(), buildWorkflowCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration core and block until signalled",
		Long: `Wires the event bus, tool runtime, agent turn engine, and workflow engine
together and runs until SIGINT/SIGTERM. This process hosts the core only; a
caller wires persistent stores, connectors, and the HTTP/REST surface around
it (those are explicitly out of scope for this binary).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := eventbus.New(slog.Default())

	registry := agent.NewToolRegistry()
	threads := sessions.NewMemoryStore()
	runtime := agent.NewAgenticRuntime(orchestrator.NoopProvider{}, threads, nil)

	executors := workflow.NewExecutors(
		orchestrator.NewToolInvoker(registry),
		orchestrator.NewAgentTurnRunner(runtime, threads),
	)
	store := workflow.NewMemoryStore()
	engine := workflow.NewEngine(store, executors, bus, slog.Default())

	guard := &scheduler.Guard{Kill: scheduler.NewKillSwitch()}
	cron := scheduler.NewCronDispatcher(store, engine, slog.Default(), 15*time.Second)

	slog.Info("orchestratord started", "version", version, "commit", commit)
	slog.Info("core wired", "engine", engine != nil, "kill_switch_engaged", guard.Kill.Engaged())

	go func() {
		if err := cron.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("cron dispatcher stopped", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("orchestratord shutting down")
	return nil
}

func buildWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Validate and run workflow definitions from a JSON file",
	}
	cmd.AddCommand(buildWorkflowValidateCmd(), buildWorkflowRunCmd())
	return cmd
}

func buildWorkflowValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Run the structural/compile/business checks against a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}
			result := workflow.Validate(wf)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("workflow failed validation")
			}
			return nil
		},
	}
}

func buildWorkflowRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Validate, reserve, and run a workflow definition to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}
			if result := workflow.Validate(wf); !result.Valid {
				data, _ := json.MarshalIndent(result, "", "  ")
				return fmt.Errorf("workflow failed validation: %s", data)
			}

			registry := agent.NewToolRegistry()
			threads := sessions.NewMemoryStore()
			runtime := agent.NewAgenticRuntime(orchestrator.NoopProvider{}, threads, nil)
			executors := workflow.NewExecutors(
				orchestrator.NewToolInvoker(registry),
				orchestrator.NewAgentTurnRunner(runtime, threads),
			)
			store := workflow.NewMemoryStore()
			if err := store.CreateWorkflow(cmd.Context(), wf); err != nil {
				return err
			}
			engine := workflow.NewEngine(store, executors, nil, slog.Default())

			exec, err := engine.Reserve(cmd.Context(), wf)
			if err != nil {
				return fmt.Errorf("reserve execution: %w", err)
			}
			finished, err := engine.Start(cmd.Context(), exec.ID)
			if err != nil {
				return fmt.Errorf("run execution: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(finished)
		},
	}
}

func loadWorkflow(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	var wf models.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow file: %w", err)
	}
	return &wf, nil
}
