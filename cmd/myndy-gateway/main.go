// Package main provides the CLI entry point for the Myndy agent-
// orchestration gateway.
//
// # Basic Usage
//
// Start the server:
//
//	myndy-gateway serve --config gateway.yaml
//
// Inspect valve state of a running instance over its admin HTTP surface:
//
//	myndy-gateway valves spec
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/myndy/gateway/internal/agents"
	"github.com/myndy/gateway/internal/backendclient"
	"github.com/myndy/gateway/internal/gatewayhttp"
	"github.com/myndy/gateway/internal/gwconfig"
	"github.com/myndy/gateway/internal/gwlog"
	"github.com/myndy/gateway/internal/gwmetrics"
	"github.com/myndy/gateway/internal/llm"
	"github.com/myndy/gateway/internal/shadow"
	"github.com/myndy/gateway/internal/toolregistry"
	"github.com/myndy/gateway/internal/tools"
	"github.com/myndy/gateway/internal/valves"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "myndy-gateway",
		Short:        "Myndy agent-orchestration gateway",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd(), buildValvesCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var configPath string
	var testMode bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		Long: `Start the gateway HTTP server.

With --test, the gateway builds its full dependency graph, validates
it, and exits without binding a listener: 0 on success, 1 on any
wiring failure. This is meant for deploy-time smoke checks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, testMode)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&testMode, "test", false, "Validate wiring and exit without serving")
	return cmd
}

func runServe(ctx context.Context, configPath string, testMode bool) error {
	cfg, err := gwconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	ring := gwlog.NewRingBuffer(2000)
	logger := slog.New(gwlog.NewHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}),
		ring,
	))
	slog.SetDefault(logger)

	logger.Info("starting myndy-gateway", "version", version, "commit", commit, "pipeline_id", cfg.PipelineID)

	valveManager := valves.New(cfg.PipelineID, cfg.ValvesPath, logger)
	valves.RegisterDefaults(valveManager)
	valveManager.Load()
	if cfg.Backend.BaseURL != "" {
		mustUpdate(valveManager, "backend_base_url", cfg.Backend.BaseURL)
	}
	if cfg.Backend.APIKey != "" {
		mustUpdate(valveManager, "backend_api_key", cfg.Backend.APIKey)
	}
	if cfg.Port != 0 {
		mustUpdate(valveManager, "port", cfg.Port)
	}

	if retention := valveManager.GetInt("log_retention"); retention != 2000 {
		ring.Resize(retention)
	}
	valveManager.OnChange(func(delta map[string]any) {
		if _, ok := delta["log_retention"]; ok {
			ring.Resize(valveManager.GetInt("log_retention"))
		}
	})

	backendClient := backendclient.New(backendclient.Config{
		BaseURL: valveManager.GetString("backend_base_url"),
		APIKey:  valveManager.GetString("backend_api_key"),
		Timeout: time.Duration(valveManager.GetInt("backend_timeout_seconds")) * time.Second,
		Logger:  logger,
	})
	valveManager.OnChange(func(delta map[string]any) {
		if v, ok := delta["backend_timeout_seconds"]; ok {
			if f, ok := v.(float64); ok {
				backendClient.SetTimeout(time.Duration(f) * time.Second)
			}
		}
	})

	toolRegistry := toolregistry.New(logger)
	if err := tools.RegisterAll(toolRegistry, backendClient); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		return fmt.Errorf("building LLM client: %w", err)
	}

	diagnostics := gwlog.NewDiagnostics(ring)

	shadowPipeline := shadow.NewBackendPipeline(backendClient)
	observer := shadow.New(shadowPipeline, shadow.Config{
		Enabled:        valveManager.GetBool("shadow_enabled"),
		Deadline:       time.Duration(valveManager.GetInt("shadow_deadline_seconds")) * time.Second,
		MaxConcurrency: valveManager.GetInt("shadow_max_concurrency"),
		Logger:         logger,
	})
	valveManager.OnChange(func(delta map[string]any) {
		observer.Reconfigure(
			valveManager.GetBool("shadow_enabled"),
			time.Duration(valveManager.GetInt("shadow_deadline_seconds"))*time.Second,
			valveManager.GetInt("shadow_max_concurrency"),
		)
	})

	metrics := gwmetrics.New()

	bindings := agents.Defaults(
		valveManager.GetInt("max_iterations"),
		time.Duration(valveManager.GetInt("max_wall_time_seconds"))*time.Second,
	)
	agentBindings := make([]gatewayhttp.AgentBinding, 0, len(bindings))
	for _, b := range bindings {
		agentBindings = append(agentBindings, gatewayhttp.AgentBinding{
			Descriptor:        b.Runtime,
			RoutingDescriptor: b.Routing,
			IsShadow:          b.Routing.Name == agents.ShadowObserver,
		})
	}

	server := gatewayhttp.New(gatewayhttp.Dependencies{
		PipelineID:  cfg.PipelineID,
		Agents:      agentBindings,
		Valves:      valveManager,
		Ring:        ring,
		Diagnostics: diagnostics,
		Observer:    observer,
		LLMClient:   llmClient,
		Tools:       toolRegistry,
		Metrics:     metrics,
		Logger:      logger,
	})

	if testMode {
		logger.Info("wiring validated", "agents", len(agentBindings), "tools", len(toolRegistry.List("")))
		return nil
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := fmt.Sprintf(":%d", valveManager.GetInt("port"))
	logger.Info("listening", "addr", addr)
	if err := server.Serve(runCtx, addr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("myndy-gateway stopped gracefully")
	return nil
}

func mustUpdate(m *valves.Manager, name string, value any) {
	if _, err := m.Update(map[string]any{name: value}); err != nil {
		slog.Warn("failed to apply startup valve override", "valve", name, "error", err)
	}
}

func buildLLMClient(cfg gwconfig.Config) (llm.Client, error) {
	return llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:       cfg.Anthropic.APIKey,
		BaseURL:      cfg.Anthropic.BaseURL,
		DefaultModel: cfg.Anthropic.Model,
	})
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
